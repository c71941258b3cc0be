package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"coachledger/internal/services"
	"coachledger/internal/tax"
)

// errorResponse is the JSON error envelope
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// reasonCodes maps business-rule violations to stable reason codes callers
// can branch on. Validation problems and rule violations reject with no
// partial effect; idempotent replays never reach here because they are
// treated as success upstream.
var reasonCodes = []struct {
	err    error
	status int
	code   string
}{
	{services.ErrDuplicateAssignment, http.StatusConflict, "DUPLICATE_ASSIGNMENT"},
	{services.ErrOverpaymentRejected, http.StatusUnprocessableEntity, "OVERPAYMENT_REJECTED"},
	{services.ErrRefundExceedsPaid, http.StatusUnprocessableEntity, "REFUND_EXCEEDS_PAID"},
	{services.ErrSignatureMismatch, http.StatusBadRequest, "SIGNATURE_MISMATCH"},
	{services.ErrAmountNotPositive, http.StatusBadRequest, "AMOUNT_NOT_POSITIVE"},
	{services.ErrInstallmentPlanMismatch, http.StatusBadRequest, "INSTALLMENT_PLAN_MISMATCH"},
	{services.ErrDiscountExceedsAmount, http.StatusBadRequest, "DISCOUNT_EXCEEDS_AMOUNT"},
	{services.ErrStructureNotCurrent, http.StatusConflict, "STRUCTURE_NOT_CURRENT"},
	{services.ErrAssignmentPaused, http.StatusConflict, "ASSIGNMENT_PAUSED"},
	{services.ErrRecordNotPayable, http.StatusUnprocessableEntity, "RECORD_NOT_PAYABLE"},
	{services.ErrOrderNotPayable, http.StatusUnprocessableEntity, "ORDER_NOT_PAYABLE"},
	{services.ErrNothingToCollect, http.StatusUnprocessableEntity, "NOTHING_TO_COLLECT"},
	{tax.ErrInvalidTaxRate, http.StatusBadRequest, "INVALID_TAX_RATE"},
	{tax.ErrNegativeAmount, http.StatusBadRequest, "NEGATIVE_AMOUNT"},
}

// CustomErrorHandler translates errors to JSON responses for Echo.
// Domain sentinel errors carry their reason code; unknown errors are treated
// as retryable infrastructure failures and never leak internals.
func CustomErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	resp := errorResponse{Error: "internal error"}

	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		status = he.Code
		if msg, ok := he.Message.(string); ok && msg != "" {
			resp.Error = msg
		} else {
			resp.Error = http.StatusText(status)
		}

	case errors.Is(err, gorm.ErrRecordNotFound):
		status = http.StatusNotFound
		resp.Error = "not found"

	default:
		for _, rc := range reasonCodes {
			if errors.Is(err, rc.err) {
				status = rc.status
				resp.Error = rc.err.Error()
				resp.Code = rc.code
				break
			}
		}
	}

	if status >= http.StatusInternalServerError {
		c.Logger().Error(err)
	}

	if jsonErr := c.JSON(status, resp); jsonErr != nil {
		c.Logger().Error(jsonErr)
	}
}
