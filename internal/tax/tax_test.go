package tax

import (
	"errors"
	"math"
	"testing"

	"coachledger/internal/models"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name      string
		input     Input
		wantFinal float64
		wantTax   float64
		wantCGST  float64
		wantSGST  float64
		wantIGST  float64
		wantErr   error
	}{
		{
			name: "no tax with discount and fine",
			input: Input{
				BaseAmount: 1000, Discount: 100, Fine: 50,
				TaxType: models.TaxTypeNone,
			},
			wantFinal: 950,
		},
		{
			name: "exclusive intra splits cgst sgst",
			input: Input{
				BaseAmount: 1000,
				TaxType:    models.TaxTypeGSTExclusive, GSTRate: 18,
				SupplyType: models.SupplyTypeIntra,
			},
			wantFinal: 1180, wantTax: 180, wantCGST: 90, wantSGST: 90,
		},
		{
			name: "exclusive inter charges igst",
			input: Input{
				BaseAmount: 1000,
				TaxType:    models.TaxTypeGSTExclusive, GSTRate: 18,
				SupplyType: models.SupplyTypeInter,
			},
			wantFinal: 1180, wantTax: 180, wantIGST: 180,
		},
		{
			name: "inclusive keeps quoted amount",
			input: Input{
				BaseAmount: 1180,
				TaxType:    models.TaxTypeGSTInclusive, GSTRate: 18,
				SupplyType: models.SupplyTypeIntra,
			},
			wantFinal: 1180, wantTax: 180, wantCGST: 90, wantSGST: 90,
		},
		{
			name: "unlisted rate rejected",
			input: Input{
				BaseAmount: 1000,
				TaxType:    models.TaxTypeGSTExclusive, GSTRate: 15,
			},
			wantErr: ErrInvalidTaxRate,
		},
		{
			name: "discount beyond base rejected",
			input: Input{
				BaseAmount: 100, Discount: 200,
				TaxType: models.TaxTypeNone,
			},
			wantErr: ErrNegativeAmount,
		},
		{
			name: "negative input rejected",
			input: Input{
				BaseAmount: -1,
				TaxType:    models.TaxTypeNone,
			},
			wantErr: ErrNegativeAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Compute() error = %v; want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Compute() unexpected error: %v", err)
			}
			if got.FinalAmount != tt.wantFinal {
				t.Errorf("FinalAmount = %v; want %v", got.FinalAmount, tt.wantFinal)
			}
			if got.TaxAmount != tt.wantTax {
				t.Errorf("TaxAmount = %v; want %v", got.TaxAmount, tt.wantTax)
			}
			if got.CGST != tt.wantCGST || got.SGST != tt.wantSGST || got.IGST != tt.wantIGST {
				t.Errorf("split = cgst %v sgst %v igst %v; want %v %v %v",
					got.CGST, got.SGST, got.IGST, tt.wantCGST, tt.wantSGST, tt.wantIGST)
			}
		})
	}
}

func TestComputeInclusiveRoundTrip(t *testing.T) {
	// Backing the pre-tax base out of final and tax must reproduce the
	// original net within the rounding epsilon.
	for _, gross := range []float64{1180, 999.99, 550, 12345.67} {
		got, err := Compute(Input{
			BaseAmount: gross,
			TaxType:    models.TaxTypeGSTInclusive, GSTRate: 18,
			SupplyType: models.SupplyTypeIntra,
		})
		if err != nil {
			t.Fatalf("Compute(%v) error: %v", gross, err)
		}
		back := got.FinalAmount - got.TaxAmount - got.Cess
		if math.Abs(back-got.NetAmount) > models.AmountEpsilon {
			t.Errorf("gross %v: back-computed base %v differs from net %v", gross, back, got.NetAmount)
		}
	}
}

func TestComputeDeterministic(t *testing.T) {
	in := Input{
		BaseAmount: 2499.50, Discount: 250, Fine: 99.95,
		TaxType: models.TaxTypeGSTExclusive, GSTRate: 12, CessRate: 1,
		SupplyType: models.SupplyTypeInter,
	}
	first, err := Compute(in)
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Compute(in)
		if err != nil {
			t.Fatalf("Compute() error: %v", err)
		}
		if again != first {
			t.Fatalf("Compute() not deterministic: %+v vs %+v", again, first)
		}
	}
}
