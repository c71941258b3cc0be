package models

import (
	"time"

	"gorm.io/gorm"
)

// FeeRecordStatus is a projection of paid vs final vs due date, never an
// independently settable truth. Use DeriveStatus to recompute it.
type FeeRecordStatus string

const (
	FeeRecordStatusPending       FeeRecordStatus = "PENDING"
	FeeRecordStatusPartiallyPaid FeeRecordStatus = "PARTIALLY_PAID"
	FeeRecordStatusPaid          FeeRecordStatus = "PAID"
	FeeRecordStatusOverdue       FeeRecordStatus = "OVERDUE"
	FeeRecordStatusWaived        FeeRecordStatus = "WAIVED"
)

// AmountEpsilon absorbs rounding noise in monetary comparisons
const AmountEpsilon = 0.01

// FeeRecord is one payable instance generated from an assignment
type FeeRecord struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	TenantID     uint `gorm:"index:idx_record_tenant_status;index:idx_record_tenant_due;not null" json:"tenant_id"`
	AssignmentID uint `gorm:"index" json:"assignment_id"`
	StructureID  uint `gorm:"index" json:"structure_id"`
	MemberID     uint `gorm:"index" json:"member_id"`

	PeriodLabel string `gorm:"type:varchar(100)" json:"period_label"` // e.g. "April 2026", "Installment 2/4"

	BaseAmount float64 `gorm:"type:decimal(15,2)" json:"base_amount"`
	Discount   float64 `gorm:"type:decimal(15,2);default:0" json:"discount"`
	Fine       float64 `gorm:"type:decimal(15,2);default:0" json:"fine"`

	TaxAmount float64 `gorm:"type:decimal(15,2);default:0" json:"tax_amount"`
	CGST      float64 `gorm:"type:decimal(15,2);default:0" json:"cgst"`
	SGST      float64 `gorm:"type:decimal(15,2);default:0" json:"sgst"`
	IGST      float64 `gorm:"type:decimal(15,2);default:0" json:"igst"`
	Cess      float64 `gorm:"type:decimal(15,2);default:0" json:"cess"`

	FinalAmount float64 `gorm:"type:decimal(15,2)" json:"final_amount"`
	PaidAmount  float64 `gorm:"type:decimal(15,2);default:0" json:"paid_amount"`

	DueDate time.Time       `gorm:"index:idx_record_tenant_due" json:"due_date"`
	Status  FeeRecordStatus `gorm:"type:varchar(20);default:'PENDING';index:idx_record_tenant_status" json:"status"`

	Waived     bool    `gorm:"default:false" json:"waived"`
	WaiveNote  *string `gorm:"type:text" json:"waive_note,omitempty"`
	WaivedByID *uint   `json:"waived_by_id,omitempty"`

	// Carried credit: when this record is waived with a positive paid balance,
	// that balance is applied to exactly one sibling record, marked here so the
	// step is idempotent.
	CreditAppliedToID *uint   `json:"credit_applied_to_id,omitempty"`
	CreditReceived    float64 `gorm:"type:decimal(15,2);default:0" json:"credit_received"`

	// RefundInProgress marks the window during which paid may briefly exceed final
	RefundInProgress bool `gorm:"default:false" json:"refund_in_progress"`

	ReceiptNumber *string `gorm:"type:varchar(50)" json:"receipt_number,omitempty"`

	// Relationships
	Assignment FeeAssignment `gorm:"foreignKey:AssignmentID" json:"assignment,omitempty"`
	Payments   []FeePayment  `gorm:"foreignKey:RecordID" json:"payments,omitempty"`
	Refunds    []FeeRefund   `gorm:"foreignKey:RecordID" json:"refunds,omitempty"`
}

// Outstanding is the remaining payable balance, floored at zero
func (r FeeRecord) Outstanding() float64 {
	out := r.FinalAmount - r.PaidAmount
	if out < 0 {
		return 0
	}
	return out
}

// DeriveStatus recomputes the record status from its balance fields.
// Waived wins over everything; a settled balance is PAID; a nonzero balance
// past the due date is OVERDUE; otherwise partially paid or pending.
func DeriveStatus(finalAmount, paidAmount float64, dueDate time.Time, waived bool, now time.Time) FeeRecordStatus {
	if waived {
		return FeeRecordStatusWaived
	}
	if paidAmount >= finalAmount-AmountEpsilon {
		return FeeRecordStatusPaid
	}
	if now.After(dueDate) {
		return FeeRecordStatusOverdue
	}
	if paidAmount > AmountEpsilon {
		return FeeRecordStatusPartiallyPaid
	}
	return FeeRecordStatusPending
}

// RecomputeStatus applies DeriveStatus to the record in place
func (r *FeeRecord) RecomputeStatus(now time.Time) {
	r.Status = DeriveStatus(r.FinalAmount, r.PaidAmount, r.DueDate, r.Waived, now)
}

// ApplyCredit folds a carried credit from a waived sibling into this record,
// reducing the final amount (floored at zero) and re-deriving the status
func (r *FeeRecord) ApplyCredit(credit float64, now time.Time) {
	r.FinalAmount -= credit
	if r.FinalAmount < 0 {
		r.FinalAmount = 0
	}
	r.CreditReceived += credit
	r.RecomputeStatus(now)
}
