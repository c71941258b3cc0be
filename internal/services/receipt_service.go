package services

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ReceiptService issues strictly increasing, gap-free receipt numbers per
// (tenant, financial year).
type ReceiptService struct {
	db *gorm.DB
}

func NewReceiptService(db *gorm.DB) *ReceiptService {
	return &ReceiptService{db: db}
}

// NextReceiptNumber atomically advances the (tenant, fy) counter and returns
// the formatted receipt number. The increment is a single upsert-and-return
// statement so concurrent callers serialize at the row and can never read the
// same value. Works both standalone and inside a caller's transaction.
func (s *ReceiptService) NextReceiptNumber(tx *gorm.DB, tenantID uint, financialYear string) (string, error) {
	if tx == nil {
		tx = s.db
	}

	var next int64
	err := tx.Raw(`
		INSERT INTO receipt_sequences (tenant_id, financial_year, last_value, created_at, updated_at)
		VALUES (?, ?, 1, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (tenant_id, financial_year)
		DO UPDATE SET last_value = receipt_sequences.last_value + 1, updated_at = CURRENT_TIMESTAMP
		RETURNING last_value
	`, tenantID, financialYear).Scan(&next).Error
	if err != nil {
		return "", fmt.Errorf("failed to advance receipt sequence: %w", err)
	}

	return FormatReceiptNumber(tenantID, financialYear, next), nil
}

// FormatReceiptNumber embeds the financial year and the zero-padded counter
func FormatReceiptNumber(tenantID uint, financialYear string, value int64) string {
	return fmt.Sprintf("RCP/%s/%d/%06d", financialYear, tenantID, value)
}

// FinancialYear returns the Indian financial year partition key for t,
// e.g. 2026-05-01 -> "2026-27", 2026-02-01 -> "2025-26". The year rolls over
// in April.
func FinancialYear(t time.Time) string {
	year := t.Year()
	if t.Month() < time.April {
		year--
	}
	return fmt.Sprintf("%04d-%02d", year, (year+1)%100)
}
