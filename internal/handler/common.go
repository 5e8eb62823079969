package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/drivoro/vehicle-rental/internal/engine"
	"github.com/drivoro/vehicle-rental/internal/model"
	"github.com/drivoro/vehicle-rental/internal/pricing"
	"github.com/drivoro/vehicle-rental/internal/repository"
)

// conflictPart is the slice of a conflicting reservation exposed to
// callers of a failed booking: enough to offer alternative dates,
// nothing about whose booking it is.
type conflictPart struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// engineError translates engine errors into HTTP responses.
// Validation problems are 400, business-rule rejections 409 with
// details, infrastructure failures 503 so clients know a retry may
// help.  Authorization failures are a generic 403 that does not
// reveal which role would have been required.
func engineError(c echo.Context, err error) error {
	var (
		notAvail *engine.VehicleNotAvailableError
		illegal  *engine.IllegalTransitionError
	)
	switch {
	case errors.Is(err, engine.ErrInvalidInterval):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid interval"})
	case errors.Is(err, pricing.ErrInvalidRateCard):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid rate card"})
	case errors.Is(err, engine.ErrUnauthorized):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, engine.ErrReservationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	case errors.Is(err, repository.ErrVehicleNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "vehicle not found"})
	case errors.As(err, &notAvail):
		conflicts := make([]conflictPart, 0, len(notAvail.Conflicts))
		for _, r := range notAvail.Conflicts {
			conflicts = append(conflicts, conflictPart{Start: r.Interval.Start, End: r.Interval.End})
		}
		return c.JSON(http.StatusConflict, echo.Map{"error": "vehicle not available", "conflicts": conflicts})
	case errors.Is(err, engine.ErrAlreadyConfirmed):
		return c.JSON(http.StatusConflict, echo.Map{"error": "reservation already confirmed"})
	case errors.As(err, &illegal):
		return c.JSON(http.StatusConflict, echo.Map{
			"error": "illegal transition", "from": illegal.From, "to": illegal.To,
		})
	case errors.Is(err, engine.ErrStoreTimeout), errors.Is(err, engine.ErrCatalogUnavailable):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily unavailable"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// actorFrom reads the actor stored by the JWT middleware.  A missing
// actor means the route was registered without JWTAuth, which is a
// wiring bug; handlers answer 401.
func actorFrom(c echo.Context) (model.Actor, bool) {
	a, ok := c.Get("actor").(model.Actor)
	return a, ok
}
