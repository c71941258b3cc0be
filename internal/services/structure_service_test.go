package services

import (
	"errors"
	"testing"

	"coachledger/internal/models"
)

func TestValidateInstallmentPlan(t *testing.T) {
	plan := func(amounts ...float64) []models.InstallmentItem {
		items := make([]models.InstallmentItem, len(amounts))
		for i, a := range amounts {
			items[i] = models.InstallmentItem{Label: "slice", Amount: a}
		}
		return items
	}

	tests := []struct {
		name      string
		structure models.FeeStructure
		wantErr   error
	}{
		{
			name: "exact sum",
			structure: models.FeeStructure{
				BillingCycle:    models.BillingCycleInstallment,
				BaseAmount:      12000,
				InstallmentPlan: plan(3000, 3000, 3000, 3000),
			},
		},
		{
			name: "within one percent tolerance",
			structure: models.FeeStructure{
				BillingCycle:    models.BillingCycleInstallment,
				BaseAmount:      12000,
				InstallmentPlan: plan(4000, 4000, 3940),
			},
		},
		{
			name: "sum off by two percent",
			structure: models.FeeStructure{
				BillingCycle:    models.BillingCycleInstallment,
				BaseAmount:      12000,
				InstallmentPlan: plan(4000, 4000, 3760),
			},
			wantErr: ErrInstallmentPlanMismatch,
		},
		{
			name: "empty plan",
			structure: models.FeeStructure{
				BillingCycle: models.BillingCycleInstallment,
				BaseAmount:   12000,
			},
			wantErr: ErrInstallmentPlanMismatch,
		},
		{
			name: "zero slice rejected",
			structure: models.FeeStructure{
				BillingCycle:    models.BillingCycleInstallment,
				BaseAmount:      12000,
				InstallmentPlan: plan(12000, 0),
			},
			wantErr: ErrAmountNotPositive,
		},
		{
			name: "non-installment cycle skips validation",
			structure: models.FeeStructure{
				BillingCycle: models.BillingCyclePeriodic,
				BaseAmount:   12000,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInstallmentPlan(&tt.structure)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateInstallmentPlan() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
