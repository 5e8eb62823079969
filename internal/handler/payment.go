package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/drivoro/vehicle-rental/internal/engine"
	"github.com/drivoro/vehicle-rental/internal/model"
)

// PaymentHandler receives payment-gateway callbacks.  This is the
// single entry point through which a reservation's payment status
// ever changes; booking confirmation and cancellation leave it
// untouched.
type PaymentHandler struct {
	Engine *engine.Engine
	Secret string
}

func NewPaymentHandler(eng *engine.Engine, secret string) *PaymentHandler {
	if eng == nil {
		panic("nil engine passed to NewPaymentHandler")
	}
	return &PaymentHandler{Engine: eng, Secret: secret}
}

type paymentNotifyReq struct {
	ReservationID string `json:"reservation_id"`
	Status        string `json:"status"` // UNPAID | AUTHORIZED | PAID
}

// Notify handles POST /v1/payments/notify.  The gateway authenticates
// with a shared secret header rather than a user JWT.
func (h *PaymentHandler) Notify(c echo.Context) error {
	given := c.Request().Header.Get("X-Payment-Secret")
	if subtle.ConstantTimeCompare([]byte(given), []byte(h.Secret)) != 1 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req paymentNotifyReq
	if err := c.Bind(&req); err != nil || req.ReservationID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	ps := model.PaymentStatus(req.Status)
	switch ps {
	case model.PaymentUnpaid, model.PaymentAuthorized, model.PaymentPaid:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown payment status"})
	}
	if err := h.Engine.MarkPaymentStatus(c.Request().Context(), req.ReservationID, ps); err != nil {
		return engineError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
