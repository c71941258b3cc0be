package services

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"coachledger/internal/models"
)

// PaymentService records manual (offline) payments and refunds against fee
// records. Gateway-originated payments go through GatewayService, which calls
// into the same ledger primitives.
//
// Receipt policy (fixed): exactly one receipt number is issued per fee record,
// in the transaction of the payment that first settles it in full. Partial
// payments acknowledge via the payment row itself, not a receipt.
type PaymentService struct {
	db      *gorm.DB
	ledger  *LedgerService
	receipt *ReceiptService
	audit   *AuditService
}

func NewPaymentService(db *gorm.DB, ledger *LedgerService, receipt *ReceiptService, audit *AuditService) *PaymentService {
	return &PaymentService{db: db, ledger: ledger, receipt: receipt, audit: audit}
}

// ManualPaymentInput is the validated input for an offline payment
type ManualPaymentInput struct {
	RecordID  uint
	Amount    float64
	Mode      models.PaymentMode
	Reference string
}

// RecordManualPayment appends a FeePayment and applies it to the record in one
// transaction. Two concurrent payments against the same record serialize on
// the row lock; if the second would overshoot the balance it is rejected whole
// with ErrOverpaymentRejected.
func (s *PaymentService) RecordManualPayment(tenantID uint, in ManualPaymentInput, actor Actor) (*models.FeePayment, error) {
	if in.Amount <= 0 {
		return nil, ErrAmountNotPositive
	}
	if in.Mode == models.PaymentModeGateway {
		return nil, fmt.Errorf("gateway payments are recorded via reconciliation: %w", ErrRecordNotPayable)
	}

	var payment models.FeePayment
	var before, after models.FeeRecord

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var record models.FeeRecord
		if err := lockForUpdate(tx).
			Where("tenant_id = ?", tenantID).
			First(&record, in.RecordID).Error; err != nil {
			return fmt.Errorf("record not found: %w", err)
		}
		before = record

		now := time.Now()
		if err := s.ledger.ApplyPayment(tx, &record, in.Amount, now); err != nil {
			return err
		}

		payment = models.FeePayment{
			TenantID:       tenantID,
			RecordID:       record.ID,
			MemberID:       record.MemberID,
			Amount:         in.Amount,
			Mode:           in.Mode,
			RecordedByID:   actor.ID,
			RecordedByRole: actor.Role,
			PaidAt:         now,
		}
		if in.Reference != "" {
			payment.Reference = &in.Reference
		}
		if err := tx.Create(&payment).Error; err != nil {
			return fmt.Errorf("failed to record payment: %w", err)
		}

		if record.Status == models.FeeRecordStatusPaid && record.ReceiptNumber == nil {
			number, err := s.receipt.NextReceiptNumber(tx, tenantID, FinancialYear(now))
			if err != nil {
				return err
			}
			record.ReceiptNumber = &number
			if err := tx.Model(&record).Update("receipt_number", number).Error; err != nil {
				return fmt.Errorf("failed to attach receipt number: %w", err)
			}
		}

		after = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(tenantID, "fee_record", after.ID, "payment.recorded", actor, before, after,
		fmt.Sprintf("payment %d via %s", payment.ID, payment.Mode))
	s.ledger.invalidateDuesCache(tenantID, after.MemberID)
	return &payment, nil
}

// RefundInput is the validated input for a manual refund
type RefundInput struct {
	RecordID  uint
	PaymentID *uint
	Amount    float64
	Reason    string
	Mode      models.PaymentMode
}

// RecordRefund appends a FeeRefund and decrements the record's paid amount.
// Payments are never deleted; the refund row is the only history of the
// reversal. A PAID record moves back to PARTIALLY_PAID or PENDING.
func (s *PaymentService) RecordRefund(tenantID uint, in RefundInput, actor Actor) (*models.FeeRefund, error) {
	if in.Amount <= 0 {
		return nil, ErrAmountNotPositive
	}

	var refund models.FeeRefund
	var before, after models.FeeRecord

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var record models.FeeRecord
		if err := lockForUpdate(tx).
			Where("tenant_id = ?", tenantID).
			First(&record, in.RecordID).Error; err != nil {
			return fmt.Errorf("record not found: %w", err)
		}
		before = record

		netPaid, err := s.netPaid(tx, tenantID, record.ID)
		if err != nil {
			return err
		}
		if in.Amount > netPaid+models.AmountEpsilon {
			return ErrRefundExceedsPaid
		}

		now := time.Now()
		// Open the tracked window in which paid may transiently exceed final
		if err := tx.Model(&record).Update("refund_in_progress", true).Error; err != nil {
			return err
		}

		refund = models.FeeRefund{
			TenantID:       tenantID,
			RecordID:       record.ID,
			PaymentID:      in.PaymentID,
			MemberID:       record.MemberID,
			Amount:         in.Amount,
			Reason:         in.Reason,
			Mode:           in.Mode,
			RecordedByID:   actor.ID,
			RecordedByRole: actor.Role,
			RefundedAt:     now,
		}
		if err := tx.Create(&refund).Error; err != nil {
			return fmt.Errorf("failed to record refund: %w", err)
		}

		if err := s.ledger.ApplyRefundEffect(tx, &record, in.Amount, now); err != nil {
			return err
		}

		after = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(tenantID, "fee_record", after.ID, "refund.recorded", actor, before, after, in.Reason)
	s.ledger.invalidateDuesCache(tenantID, after.MemberID)
	return &refund, nil
}

// netPaid sums payments minus refunds straight from the event rows, the source
// the record's paid_amount projection must always reconcile against.
func (s *PaymentService) netPaid(tx *gorm.DB, tenantID, recordID uint) (float64, error) {
	var paid, refunded float64
	err := tx.Model(&models.FeePayment{}).
		Where("tenant_id = ? AND record_id = ?", tenantID, recordID).
		Select("COALESCE(SUM(amount), 0)").Scan(&paid).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum payments: %w", err)
	}
	err = tx.Model(&models.FeeRefund{}).
		Where("tenant_id = ? AND record_id = ?", tenantID, recordID).
		Select("COALESCE(SUM(amount), 0)").Scan(&refunded).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum refunds: %w", err)
	}
	return paid - refunded, nil
}
