package handlers

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"coachledger/internal/services"
)

type GatewayHandler struct {
	gateway *services.GatewayService
}

func NewGatewayHandler(gateway *services.GatewayService) *GatewayHandler {
	return &GatewayHandler{gateway: gateway}
}

type checkoutRequest struct {
	MemberID  uint    `json:"member_id" validate:"required"`
	RecordIDs []uint  `json:"record_ids"`
	Amount    float64 `json:"amount" validate:"gte=0"`
}

// CreateOrder handles POST /gateway/orders: opens an order intent covering
// one or more of the member's dues.
func (h *GatewayHandler) CreateOrder(c echo.Context) error {
	var req checkoutRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := requireSelfAccess(c, req.MemberID); err != nil {
		return err
	}

	order, err := h.gateway.CreateOrder(tenantID(c), req.MemberID, req.RecordIDs, req.Amount, actor(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, order)
}

type confirmRequest struct {
	GatewayOrderID   string `json:"gateway_order_id" validate:"required"`
	GatewayPaymentID string `json:"gateway_payment_id" validate:"required"`
	Signature        string `json:"signature" validate:"required"`
}

// ConfirmPayment handles POST /gateway/orders/confirm: the client-confirmed
// completion path after checkout redirect.
func (h *GatewayHandler) ConfirmPayment(c echo.Context) error {
	var req confirmRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	order, err := h.gateway.ConfirmClientPayment(tenantID(c), req.GatewayOrderID, req.GatewayPaymentID, req.Signature, actor(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, order)
}

// Webhook handles POST /gateway/webhook. Unauthenticated: the gateway signs
// the raw body and verification happens inside the service, which also logs
// every delivery before acting on it. Duplicate deliveries return 200.
func (h *GatewayHandler) Webhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}
	signature := c.Request().Header.Get("X-Gateway-Signature")

	if err := h.gateway.HandleWebhook(c.Request().Context(), body, signature); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

// GetOrder handles GET /gateway/orders/:ref
func (h *GatewayHandler) GetOrder(c echo.Context) error {
	order, err := h.gateway.GetOrder(tenantID(c), c.Param("ref"))
	if err != nil {
		return err
	}
	if err := requireSelfAccess(c, order.MemberID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, order)
}

type gatewayRefundRequest struct {
	RecordID uint    `json:"record_id" validate:"required"`
	Amount   float64 `json:"amount" validate:"required,gt=0"`
	Reason   string  `json:"reason" validate:"required"`
}

// InitiateRefund handles POST /gateway/refunds
func (h *GatewayHandler) InitiateRefund(c echo.Context) error {
	var req gatewayRefundRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	refund, err := h.gateway.InitiateRefund(tenantID(c), req.RecordID, req.Amount, req.Reason, actor(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, refund)
}
