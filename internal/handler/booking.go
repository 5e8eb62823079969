package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/drivoro/vehicle-rental/internal/engine"
	"github.com/drivoro/vehicle-rental/internal/model"
	"github.com/drivoro/vehicle-rental/internal/repository"
)

// BookingHandler exposes the reservation engine to customers.  All
// methods assume JWT authentication and role validation already ran;
// the handler's own job is binding, catalog lookups and translating
// engine errors to HTTP.
type BookingHandler struct {
	Engine   *engine.Engine
	Vehicles *repository.VehicleRepo
}

// NewBookingHandler constructs a BookingHandler.  Both dependencies
// must be non-nil.
func NewBookingHandler(eng *engine.Engine, vehicles *repository.VehicleRepo) *BookingHandler {
	if eng == nil || vehicles == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{Engine: eng, Vehicles: vehicles}
}

type createBookingReq struct {
	VehicleID       uint64    `json:"vehicle_id"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	PickupLocation  string    `json:"pickup_location"`
	DropoffLocation string    `json:"dropoff_location"`
}

// Create handles POST /v1/bookings.  It resolves the vehicle's rate
// card from the catalog and asks the engine for a new PENDING
// reservation.  Returns 201 with the reservation, 409 with the
// conflicting intervals when the vehicle is taken.
func (h *BookingHandler) Create(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.VehicleID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "vehicle_id is required"})
	}
	if req.PickupLocation == "" || req.DropoffLocation == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "pickup_location and dropoff_location are required"})
	}

	ctx := c.Request().Context()
	rateCard, err := h.Vehicles.RateCard(ctx, req.VehicleID)
	if err != nil {
		if errors.Is(err, repository.ErrVehicleNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "vehicle not found"})
		}
		return engineError(c, err)
	}

	res, err := h.Engine.CreateBooking(ctx, actor, engine.CreateBookingInput{
		VehicleID:       req.VehicleID,
		Interval:        model.NewInterval(req.Start, req.End),
		PickupLocation:  req.PickupLocation,
		DropoffLocation: req.DropoffLocation,
		RateCard:        rateCard,
	})
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// List handles GET /v1/bookings and returns the caller's
// reservations, newest first.
func (h *BookingHandler) List(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	out, err := h.Engine.ListByCustomer(c.Request().Context(), actor.ID)
	if err != nil {
		return engineError(c, err)
	}
	if out == nil {
		out = []model.Reservation{}
	}
	return c.JSON(http.StatusOK, out)
}

// Get handles GET /v1/bookings/:id.  Customers only see their own
// reservations; admins see any.
func (h *BookingHandler) Get(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	res, err := h.Engine.Reservation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return engineError(c, err)
	}
	if actor.Role != model.RoleAdmin && res.CustomerID != actor.ID {
		// Same body as a missing id so ids cannot be probed.
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	}
	return c.JSON(http.StatusOK, res)
}

// Cancel handles POST /v1/bookings/:id/cancel.  The engine enforces
// who may cancel and computes the late-cancellation flag.
func (h *BookingHandler) Cancel(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	res, err := h.Engine.CancelBooking(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
