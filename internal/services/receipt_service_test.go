package services

import (
	"sync"
	"testing"
	"time"

	"coachledger/internal/models"
)

func TestFinancialYear(t *testing.T) {
	tests := []struct {
		name string
		date time.Time
		want string
	}{
		{"mid fy", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), "2025-26"},
		{"april starts new fy", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), "2026-27"},
		{"march belongs to previous fy", time.Date(2026, 3, 31, 23, 59, 0, 0, time.UTC), "2025-26"},
		{"january belongs to previous fy", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), "2025-26"},
		{"century rollover", time.Date(2099, 5, 1, 0, 0, 0, 0, time.UTC), "2099-00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FinancialYear(tt.date); got != tt.want {
				t.Errorf("FinancialYear(%s) = %s, want %s", tt.date.Format("2006-01-02"), got, tt.want)
			}
		})
	}
}

func TestFormatReceiptNumber(t *testing.T) {
	got := FormatReceiptNumber(42, "2025-26", 7)
	want := "RCP/2025-26/42/000007"
	if got != want {
		t.Errorf("FormatReceiptNumber() = %s, want %s", got, want)
	}

	// counter wider than the pad must not truncate
	got = FormatReceiptNumber(1, "2025-26", 1234567)
	want = "RCP/2025-26/1/1234567"
	if got != want {
		t.Errorf("FormatReceiptNumber() = %s, want %s", got, want)
	}
}

// Concurrent issuance must never hand out the same number twice, and the
// counter must end gap-free at exactly the number of issued receipts.
func TestNextReceiptNumberConcurrent(t *testing.T) {
	db := newTestDB(t)
	svc := NewReceiptService(db)

	const n = 50
	numbers := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			number, err := svc.NextReceiptNumber(nil, 1, "2026-27")
			if err != nil {
				t.Errorf("NextReceiptNumber() error = %v", err)
				return
			}
			numbers <- number
		}()
	}
	wg.Wait()
	close(numbers)

	seen := make(map[string]bool)
	for number := range numbers {
		if seen[number] {
			t.Fatalf("receipt number %s issued twice", number)
		}
		seen[number] = true
	}
	if len(seen) != n {
		t.Fatalf("issued %d numbers, want %d", len(seen), n)
	}

	var seq models.ReceiptSequence
	if err := db.Where("tenant_id = ? AND financial_year = ?", 1, "2026-27").First(&seq).Error; err != nil {
		t.Fatalf("load sequence: %v", err)
	}
	if seq.LastValue != n {
		t.Errorf("counter = %d, want %d", seq.LastValue, n)
	}
}
