package services

import "errors"

// Business-rule violations. Each is rejected with no partial effect and mapped
// to a specific HTTP status at the edge (see middleware.CustomErrorHandler).
var (
	ErrDuplicateAssignment     = errors.New("member already has an active assignment")
	ErrOverpaymentRejected     = errors.New("payment exceeds outstanding balance")
	ErrRefundExceedsPaid       = errors.New("refund exceeds paid amount")
	ErrSignatureMismatch       = errors.New("gateway signature mismatch")
	ErrAmountNotPositive       = errors.New("amount must be positive")
	ErrInstallmentPlanMismatch = errors.New("installment plan does not sum to base amount")
	ErrDiscountExceedsAmount   = errors.New("discount plus scholarship exceeds effective amount")
	ErrStructureNotCurrent     = errors.New("fee structure is not current")
	ErrAssignmentPaused        = errors.New("assignment is paused")
	ErrRecordNotPayable        = errors.New("record is not payable")
	ErrOrderNotPayable         = errors.New("gateway order is not in a payable state")
	ErrNothingToCollect        = errors.New("no outstanding balance to collect")
)
