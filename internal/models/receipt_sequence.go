package models

import (
	"time"
)

// ReceiptSequence is one monotonic counter per (tenant, financial year).
// It is only ever advanced through a single atomic upsert-and-return; numbers
// are never reused even when the record they were issued for is later voided.
type ReceiptSequence struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TenantID      uint   `gorm:"uniqueIndex:idx_receipt_seq_tenant_fy;not null" json:"tenant_id"`
	FinancialYear string `gorm:"type:varchar(10);uniqueIndex:idx_receipt_seq_tenant_fy;not null" json:"financial_year"` // e.g. "2025-26"
	LastValue     int64  `gorm:"default:0" json:"last_value"`
}
