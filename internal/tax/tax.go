// Package tax computes a fee's gross amount, GST split, and net payable.
// Everything here is pure and deterministic so amounts can be re-derived
// identically for audit replay.
package tax

import (
	"errors"
	"math"

	"coachledger/internal/models"
)

var (
	// ErrInvalidTaxRate is returned when the GST rate is not one of the
	// notified slabs.
	ErrInvalidTaxRate = errors.New("invalid tax rate")
	// ErrNegativeAmount is returned when the inputs would produce a negative
	// payable amount.
	ErrNegativeAmount = errors.New("negative amount")
)

// allowedGSTRates are the notified GST slabs
var allowedGSTRates = map[float64]bool{0: true, 5: true, 12: true, 18: true, 28: true}

// Input carries everything needed to derive a record's amounts
type Input struct {
	BaseAmount float64
	Discount   float64
	Fine       float64
	TaxType    models.TaxType
	GSTRate    float64 // percent, one of the notified slabs
	CessRate   float64 // percent, free-form
	SupplyType models.SupplyType
}

// Breakdown is the derived tax split and final payable
type Breakdown struct {
	NetAmount   float64 // base - discount + fine, pre tax
	TaxAmount   float64 // GST portion only
	CGST        float64
	SGST        float64
	IGST        float64
	Cess        float64
	FinalAmount float64
}

// Compute derives the tax breakdown and final payable from the inputs.
// GST_EXCLUSIVE adds tax on top of base-discount+fine; GST_INCLUSIVE backs the
// tax out of that same net. Intra supply splits the rate evenly between CGST
// and SGST; inter supply charges the full rate as IGST.
func Compute(in Input) (Breakdown, error) {
	var b Breakdown

	if in.BaseAmount < 0 || in.Discount < 0 || in.Fine < 0 || in.CessRate < 0 {
		return b, ErrNegativeAmount
	}
	if in.TaxType != models.TaxTypeNone && !allowedGSTRates[in.GSTRate] {
		return b, ErrInvalidTaxRate
	}

	net := in.BaseAmount - in.Discount + in.Fine
	if net < 0 {
		return b, ErrNegativeAmount
	}

	switch in.TaxType {
	case models.TaxTypeNone:
		b.NetAmount = round2(net)
		b.FinalAmount = b.NetAmount
		return b, nil

	case models.TaxTypeGSTExclusive:
		b.NetAmount = round2(net)
		b.TaxAmount = round2(net * in.GSTRate / 100)
		b.Cess = round2(net * in.CessRate / 100)
		b.FinalAmount = round2(net + b.TaxAmount + b.Cess)

	case models.TaxTypeGSTInclusive:
		// Back the tax out of the gross so final stays what was quoted
		divisor := 1 + (in.GSTRate+in.CessRate)/100
		base := net / divisor
		b.NetAmount = round2(base)
		b.TaxAmount = round2(base * in.GSTRate / 100)
		b.Cess = round2(base * in.CessRate / 100)
		b.FinalAmount = round2(net)

	default:
		return b, ErrInvalidTaxRate
	}

	if in.SupplyType == models.SupplyTypeInter {
		b.IGST = b.TaxAmount
	} else {
		b.CGST = round2(b.TaxAmount / 2)
		b.SGST = round2(b.TaxAmount - b.CGST)
	}

	if b.FinalAmount < 0 {
		return Breakdown{}, ErrNegativeAmount
	}
	return b, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
