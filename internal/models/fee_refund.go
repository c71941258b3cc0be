package models

import (
	"time"

	"gorm.io/gorm"
)

// FeeRefund is an append-only reduction event against a fee record.
// It decrements the record's paid amount; the original FeePayment rows are
// never deleted or edited.
type FeeRefund struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	TenantID  uint  `gorm:"index;not null" json:"tenant_id"`
	RecordID  uint  `gorm:"index" json:"record_id"`
	PaymentID *uint `gorm:"index" json:"payment_id,omitempty"`
	MemberID  uint  `gorm:"index" json:"member_id"`

	Amount float64     `gorm:"type:decimal(15,2)" json:"amount"`
	Reason string      `gorm:"type:text" json:"reason"`
	Mode   PaymentMode `gorm:"type:varchar(20)" json:"mode"`

	// GatewayRefundID is set for refunds completed by the gateway; the unique
	// index is the idempotency key for refund webhooks.
	GatewayRefundID *string `gorm:"type:varchar(100);uniqueIndex:idx_refund_gateway_id,where:gateway_refund_id IS NOT NULL" json:"gateway_refund_id,omitempty"`

	RecordedByID   uint      `json:"recorded_by_id"`
	RecordedByRole string    `gorm:"type:varchar(20)" json:"recorded_by_role"`
	RefundedAt     time.Time `json:"refunded_at"`

	// Relationships
	Record  FeeRecord   `gorm:"foreignKey:RecordID" json:"record,omitempty"`
	Payment *FeePayment `gorm:"foreignKey:PaymentID" json:"payment,omitempty"`
}
