package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"coachledger/internal/models"
	"coachledger/internal/services"
)

type PaymentHandler struct {
	payments *services.PaymentService
}

func NewPaymentHandler(payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

type manualPaymentRequest struct {
	RecordID  uint               `json:"record_id" validate:"required"`
	Amount    float64            `json:"amount" validate:"required,gt=0"`
	Mode      models.PaymentMode `json:"mode" validate:"required,oneof=cash cheque bank_transfer upi"`
	Reference string             `json:"reference"`
}

// RecordManualPayment handles POST /payments
func (h *PaymentHandler) RecordManualPayment(c echo.Context) error {
	var req manualPaymentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	payment, err := h.payments.RecordManualPayment(tenantID(c), services.ManualPaymentInput{
		RecordID:  req.RecordID,
		Amount:    req.Amount,
		Mode:      req.Mode,
		Reference: req.Reference,
	}, actor(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, payment)
}

type refundRequest struct {
	RecordID  uint               `json:"record_id" validate:"required"`
	PaymentID *uint              `json:"payment_id"`
	Amount    float64            `json:"amount" validate:"required,gt=0"`
	Reason    string             `json:"reason" validate:"required"`
	Mode      models.PaymentMode `json:"mode" validate:"required,oneof=cash cheque bank_transfer upi"`
}

// RecordRefund handles POST /refunds
func (h *PaymentHandler) RecordRefund(c echo.Context) error {
	var req refundRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	refund, err := h.payments.RecordRefund(tenantID(c), services.RefundInput{
		RecordID:  req.RecordID,
		PaymentID: req.PaymentID,
		Amount:    req.Amount,
		Reason:    req.Reason,
		Mode:      req.Mode,
	}, actor(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, refund)
}
