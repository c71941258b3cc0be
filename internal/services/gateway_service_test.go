package services

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"coachledger/internal/models"
)

func TestAllocatePayment(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2026, 4, d, 0, 0, 0, 0, time.UTC)
	}
	records := []models.FeeRecord{
		{ID: 3, FinalAmount: 500, PaidAmount: 0, DueDate: day(20)},
		{ID: 1, FinalAmount: 1000, PaidAmount: 200, DueDate: day(5)},
		{ID: 2, FinalAmount: 300, PaidAmount: 0, DueDate: day(5)},
	}

	tests := []struct {
		name    string
		amount  float64
		want    []models.OrderAllocation
		wantErr error
	}{
		{
			name:   "oldest due first, id breaks ties",
			amount: 1000,
			want: []models.OrderAllocation{
				{RecordID: 1, Amount: 800},
				{RecordID: 2, Amount: 200},
			},
		},
		{
			name:   "exact full settlement",
			amount: 1600,
			want: []models.OrderAllocation{
				{RecordID: 1, Amount: 800},
				{RecordID: 2, Amount: 300},
				{RecordID: 3, Amount: 500},
			},
		},
		{
			name:   "partial into first record only",
			amount: 500,
			want: []models.OrderAllocation{
				{RecordID: 1, Amount: 500},
			},
		},
		{
			name:    "unallocatable remainder rejected whole",
			amount:  1700,
			wantErr: ErrOverpaymentRejected,
		},
		{
			name:    "nothing outstanding",
			amount:  0,
			wantErr: ErrNothingToCollect,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AllocatePayment(records, tt.amount)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("AllocatePayment() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d allocations, want %d: %+v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i].RecordID != tt.want[i].RecordID || math.Abs(got[i].Amount-tt.want[i].Amount) > models.AmountEpsilon {
					t.Errorf("allocation %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestAllocatePaymentDeterministic(t *testing.T) {
	due := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	records := []models.FeeRecord{
		{ID: 9, FinalAmount: 400, DueDate: due},
		{ID: 4, FinalAmount: 400, DueDate: due},
		{ID: 7, FinalAmount: 400, DueDate: due},
	}

	first, err := AllocatePayment(records, 600)
	if err != nil {
		t.Fatalf("AllocatePayment() error = %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := AllocatePayment(records, 600)
		if err != nil {
			t.Fatalf("AllocatePayment() error = %v", err)
		}
		for j := range first {
			if again[j] != first[j] {
				t.Fatalf("allocation differs between runs: %+v vs %+v", again, first)
			}
		}
	}
	if first[0].RecordID != 4 || first[1].RecordID != 7 {
		t.Errorf("equal due dates must allocate in id order, got %+v", first)
	}
}

func TestWebhookEnvelopeDecoding(t *testing.T) {
	body := []byte(`{
		"event": "payment.captured",
		"payload": {
			"payment": {
				"entity": {
					"id": "pay_123",
					"order_id": "order_456",
					"amount": 95000,
					"status": "captured"
				}
			}
		}
	}`)

	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Event != "payment.captured" {
		t.Errorf("event = %s", envelope.Event)
	}
	entity := envelope.Payload.Payment.Entity
	if entity.ID != "pay_123" || entity.OrderID != "order_456" || entity.Amount != 95000 {
		t.Errorf("payment entity = %+v", entity)
	}
}

func TestMinorUnitConversion(t *testing.T) {
	if got := toMinorUnits(950.00); got != 95000 {
		t.Errorf("toMinorUnits(950.00) = %d", got)
	}
	if got := toMinorUnits(0.1 + 0.2); got != 30 {
		t.Errorf("toMinorUnits(0.3) = %d", got)
	}
	if got := fromMinorUnits(95000); got != 950.00 {
		t.Errorf("fromMinorUnits(95000) = %v", got)
	}
}
