package models

import (
	"time"

	"gorm.io/gorm"
)

// PaymentMode is the channel a payment came through
type PaymentMode string

const (
	PaymentModeCash         PaymentMode = "cash"
	PaymentModeCheque       PaymentMode = "cheque"
	PaymentModeBankTransfer PaymentMode = "bank_transfer"
	PaymentModeUPI          PaymentMode = "upi"
	PaymentModeGateway      PaymentMode = "gateway"
)

// FeePayment is an append-only payment event against a fee record.
// The unique (record_id, gateway_payment_id) index makes gateway payment
// application idempotent at the storage layer as a second line of defense.
type FeePayment struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	TenantID uint `gorm:"index;not null" json:"tenant_id"`
	RecordID uint `gorm:"index;index:idx_payment_record_gwpayment,unique,where:gateway_payment_id IS NOT NULL" json:"record_id"`
	MemberID uint `gorm:"index" json:"member_id"`

	Amount float64     `gorm:"type:decimal(15,2)" json:"amount"`
	Mode   PaymentMode `gorm:"type:varchar(20)" json:"mode"`

	Reference        *string `gorm:"type:varchar(255)" json:"reference,omitempty"`
	GatewayOrderID   *string `gorm:"type:varchar(100)" json:"gateway_order_id,omitempty"`
	GatewayPaymentID *string `gorm:"type:varchar(100);index:idx_payment_record_gwpayment,unique,where:gateway_payment_id IS NOT NULL" json:"gateway_payment_id,omitempty"`

	RecordedByID   uint      `json:"recorded_by_id"`
	RecordedByRole string    `gorm:"type:varchar(20)" json:"recorded_by_role"`
	PaidAt         time.Time `json:"paid_at"`

	// Relationships
	Record  FeeRecord   `gorm:"foreignKey:RecordID" json:"record,omitempty"`
	Refunds []FeeRefund `gorm:"foreignKey:PaymentID" json:"refunds,omitempty"`
}
