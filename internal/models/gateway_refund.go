package models

import (
	"time"

	"gorm.io/gorm"
)

// GatewayRefundStatus is the lifecycle of a refund initiated at the gateway
type GatewayRefundStatus string

const (
	GatewayRefundStatusInitiated GatewayRefundStatus = "INITIATED"
	GatewayRefundStatusProcessed GatewayRefundStatus = "PROCESSED"
	GatewayRefundStatusFailed    GatewayRefundStatus = "FAILED"
)

// GatewayRefund tracks one refund request sent to the gateway until its
// completion webhook arrives. The unique gateway refund id is the idempotency
// key for applying the internal refund exactly once.
type GatewayRefund struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	TenantID uint `gorm:"index;not null" json:"tenant_id"`
	RecordID uint `gorm:"index" json:"record_id"`

	// FeeRefundID is set once the completion webhook applies the refund
	FeeRefundID *uint `json:"fee_refund_id,omitempty"`

	GatewayRefundID  string `gorm:"type:varchar(100);uniqueIndex" json:"gateway_refund_id"`
	GatewayPaymentID string `gorm:"type:varchar(100);index" json:"gateway_payment_id"`

	AmountMinor int64  `json:"amount_minor"`
	Reason      string `gorm:"type:text" json:"reason"`

	Status        GatewayRefundStatus `gorm:"type:varchar(20);default:'INITIATED';index" json:"status"`
	FailureReason *string             `gorm:"type:text" json:"failure_reason,omitempty"`
	ProcessedAt   *time.Time          `json:"processed_at,omitempty"`

	InitiatedByID   uint   `json:"initiated_by_id"`
	InitiatedByRole string `gorm:"type:varchar(20)" json:"initiated_by_role"`
}
