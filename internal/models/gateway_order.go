package models

import (
	"time"

	"gorm.io/gorm"
)

// GatewayOrderStatus is the lifecycle of one online payment attempt
type GatewayOrderStatus string

const (
	GatewayOrderStatusCreated GatewayOrderStatus = "CREATED"
	GatewayOrderStatusPaid    GatewayOrderStatus = "PAID"
	GatewayOrderStatusFailed  GatewayOrderStatus = "FAILED"
)

// OrderAllocation is one record's deterministic share of a multi-record order
type OrderAllocation struct {
	RecordID uint    `json:"record_id"`
	Amount   float64 `json:"amount"`
}

// GatewayOrder is one order intent opened with the external payment gateway.
// PaymentRecorded guards against double application: it is flipped in the same
// transaction that creates the FeePayment rows, so replays are no-ops.
type GatewayOrder struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	TenantID uint `gorm:"index;not null" json:"tenant_id"`
	MemberID uint `gorm:"index" json:"member_id"`

	InternalRef string `gorm:"type:varchar(100);uniqueIndex" json:"internal_ref"`

	// Amount is in minor currency units as required at the gateway boundary
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `gorm:"type:varchar(10);default:'INR'" json:"currency"`

	Allocations []OrderAllocation `gorm:"serializer:json" json:"allocations"`

	Status          GatewayOrderStatus `gorm:"type:varchar(20);default:'CREATED';index" json:"status"`
	PaymentRecorded bool               `gorm:"default:false" json:"payment_recorded"`

	GatewayOrderID   string  `gorm:"type:varchar(100);index" json:"gateway_order_id"`
	GatewayPaymentID *string `gorm:"type:varchar(100)" json:"gateway_payment_id,omitempty"`
	GatewaySignature *string `gorm:"type:varchar(255)" json:"gateway_signature,omitempty"`

	FailureReason *string    `gorm:"type:text" json:"failure_reason,omitempty"`
	ExpiresAt     time.Time  `gorm:"index" json:"expires_at"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}
