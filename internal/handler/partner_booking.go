package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/drivoro/vehicle-rental/internal/engine"
	"github.com/drivoro/vehicle-rental/internal/model"
)

// PartnerBookingHandler exposes the decision side of the engine to
// partners and admins: confirming, rejecting and operating bookings
// on vehicles they control.  Ownership itself is enforced by the
// engine's transition guards, not here.
type PartnerBookingHandler struct {
	Engine *engine.Engine
}

func NewPartnerBookingHandler(eng *engine.Engine) *PartnerBookingHandler {
	if eng == nil {
		panic("nil engine passed to NewPartnerBookingHandler")
	}
	return &PartnerBookingHandler{Engine: eng}
}

// List handles GET /v1/partner/bookings.  Partners see bookings on
// their own vehicles; admins may inspect any partner via
// ?partner_id=.
func (h *PartnerBookingHandler) List(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	partnerID := actor.ID
	if actor.Role == model.RoleAdmin {
		q := c.QueryParam("partner_id")
		id, err := strconv.ParseUint(q, 10, 64)
		if err != nil || id == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "partner_id query parameter required"})
		}
		partnerID = id
	}
	out, err := h.Engine.ListByPartner(c.Request().Context(), partnerID)
	if err != nil {
		return engineError(c, err)
	}
	if out == nil {
		out = []model.Reservation{}
	}
	return c.JSON(http.StatusOK, out)
}

// Confirm handles POST /v1/partner/bookings/:id/confirm.
func (h *PartnerBookingHandler) Confirm(c echo.Context) error {
	return h.decide(c, func(actor model.Actor, id string) (*model.Reservation, error) {
		return h.Engine.ConfirmBooking(c.Request().Context(), actor, id)
	})
}

// Reject handles POST /v1/partner/bookings/:id/reject.  The optional
// body carries a reason recorded in the audit notes.
func (h *PartnerBookingHandler) Reject(c echo.Context) error {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.Bind(&body)
	return h.decide(c, func(actor model.Actor, id string) (*model.Reservation, error) {
		return h.Engine.RejectBooking(c.Request().Context(), actor, id, body.Reason)
	})
}

// Cancel handles POST /v1/partner/bookings/:id/cancel.
func (h *PartnerBookingHandler) Cancel(c echo.Context) error {
	return h.decide(c, func(actor model.Actor, id string) (*model.Reservation, error) {
		return h.Engine.CancelBooking(c.Request().Context(), actor, id)
	})
}

// Start handles POST /v1/partner/bookings/:id/start, the explicit
// operator path for handing the vehicle over.
func (h *PartnerBookingHandler) Start(c echo.Context) error {
	return h.decide(c, func(actor model.Actor, id string) (*model.Reservation, error) {
		return h.Engine.StartBooking(c.Request().Context(), actor, id)
	})
}

// Complete handles POST /v1/partner/bookings/:id/complete, the
// explicit operator path for taking the vehicle back.
func (h *PartnerBookingHandler) Complete(c echo.Context) error {
	return h.decide(c, func(actor model.Actor, id string) (*model.Reservation, error) {
		return h.Engine.CompleteBooking(c.Request().Context(), actor, id)
	})
}

func (h *PartnerBookingHandler) decide(c echo.Context, op func(model.Actor, string) (*model.Reservation, error)) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	res, err := op(actor, id)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
