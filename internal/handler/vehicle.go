package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/drivoro/vehicle-rental/internal/repository"
)

// VehicleHandler exposes read-only vehicle lookups so customers can
// see a rate card before booking.  Catalog management lives elsewhere
// in the platform; nothing here writes.
type VehicleHandler struct {
	Vehicles *repository.VehicleRepo
}

func NewVehicleHandler(vehicles *repository.VehicleRepo) *VehicleHandler {
	if vehicles == nil {
		panic("nil repository passed to NewVehicleHandler")
	}
	return &VehicleHandler{Vehicles: vehicles}
}

// Get handles GET /v1/vehicles/:id.
func (h *VehicleHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid vehicle id"})
	}
	v, err := h.Vehicles.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrVehicleNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "vehicle not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, v)
}
