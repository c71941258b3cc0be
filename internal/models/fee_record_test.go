package models

import (
	"testing"
	"time"
)

func TestDeriveStatus(t *testing.T) {
	due := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	beforeDue := due.AddDate(0, 0, -5)
	afterDue := due.AddDate(0, 0, 5)

	tests := []struct {
		name   string
		final  float64
		paid   float64
		waived bool
		now    time.Time
		want   FeeRecordStatus
	}{
		{"unpaid before due", 950, 0, false, beforeDue, FeeRecordStatusPending},
		{"partial before due", 950, 200, false, beforeDue, FeeRecordStatusPartiallyPaid},
		{"fully paid", 950, 950, false, beforeDue, FeeRecordStatusPaid},
		{"paid within epsilon", 950, 949.995, false, beforeDue, FeeRecordStatusPaid},
		{"unpaid past due", 950, 0, false, afterDue, FeeRecordStatusOverdue},
		{"partial past due", 950, 200, false, afterDue, FeeRecordStatusOverdue},
		{"paid past due stays paid", 950, 950, false, afterDue, FeeRecordStatusPaid},
		{"waived wins over paid", 950, 950, true, beforeDue, FeeRecordStatusWaived},
		{"waived wins over overdue", 950, 0, true, afterDue, FeeRecordStatusWaived},
		{"zero amount record is paid", 0, 0, false, beforeDue, FeeRecordStatusPaid},
		{"sub-epsilon payment still pending", 950, 0.005, false, beforeDue, FeeRecordStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveStatus(tt.final, tt.paid, due, tt.waived, tt.now)
			if got != tt.want {
				t.Errorf("DeriveStatus(%v, %v, waived=%v) = %s, want %s", tt.final, tt.paid, tt.waived, got, tt.want)
			}
		})
	}
}

func TestRecordLifecycle(t *testing.T) {
	// A record settled and then partially refunded must fall back to
	// PARTIALLY_PAID once the refund window closes.
	due := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	now := due.AddDate(0, 0, -1)

	record := FeeRecord{FinalAmount: 950, DueDate: due}
	record.RecomputeStatus(now)
	if record.Status != FeeRecordStatusPending {
		t.Fatalf("fresh record status = %s, want PENDING", record.Status)
	}

	record.PaidAmount = 950
	record.RecomputeStatus(now)
	if record.Status != FeeRecordStatusPaid {
		t.Fatalf("settled record status = %s, want PAID", record.Status)
	}

	record.PaidAmount = 750
	record.RecomputeStatus(now)
	if record.Status != FeeRecordStatusPartiallyPaid {
		t.Fatalf("refunded record status = %s, want PARTIALLY_PAID", record.Status)
	}
}

func TestApplyCredit(t *testing.T) {
	due := time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)
	now := due.AddDate(0, 0, -1)

	tests := []struct {
		name       string
		record     FeeRecord
		credit     float64
		wantFinal  float64
		wantStatus FeeRecordStatus
	}{
		{
			name:       "partial credit reduces final",
			record:     FeeRecord{FinalAmount: 1000, DueDate: due},
			credit:     300,
			wantFinal:  700,
			wantStatus: FeeRecordStatusPending,
		},
		{
			name:       "credit covering the balance settles the record",
			record:     FeeRecord{FinalAmount: 1000, PaidAmount: 700, DueDate: due},
			credit:     300,
			wantFinal:  700,
			wantStatus: FeeRecordStatusPaid,
		},
		{
			name:       "credit larger than final floors at zero",
			record:     FeeRecord{FinalAmount: 200, DueDate: due},
			credit:     500,
			wantFinal:  0,
			wantStatus: FeeRecordStatusPaid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.record.ApplyCredit(tt.credit, now)
			if tt.record.FinalAmount != tt.wantFinal {
				t.Errorf("FinalAmount = %v, want %v", tt.record.FinalAmount, tt.wantFinal)
			}
			if tt.record.CreditReceived != tt.credit {
				t.Errorf("CreditReceived = %v, want %v", tt.record.CreditReceived, tt.credit)
			}
			if tt.record.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", tt.record.Status, tt.wantStatus)
			}
		})
	}
}

func TestOutstanding(t *testing.T) {
	tests := []struct {
		name  string
		final float64
		paid  float64
		want  float64
	}{
		{"unpaid", 950, 0, 950},
		{"partial", 950, 300, 650},
		{"settled", 950, 950, 0},
		{"overpaid floors at zero", 950, 1000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := FeeRecord{FinalAmount: tt.final, PaidAmount: tt.paid}
			if got := r.Outstanding(); got != tt.want {
				t.Errorf("Outstanding() = %v, want %v", got, tt.want)
			}
		})
	}
}
