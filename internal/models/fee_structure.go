package models

import (
	"time"

	"github.com/teambition/rrule-go"
	"gorm.io/gorm"
)

// BillingCycle determines how fee records are generated from a structure
type BillingCycle string

const (
	BillingCycleOneTime     BillingCycle = "onetime"
	BillingCyclePeriodic    BillingCycle = "periodic"
	BillingCycleInstallment BillingCycle = "installment"
)

// TaxType determines how tax is applied to the net amount
type TaxType string

const (
	TaxTypeNone         TaxType = "NONE"
	TaxTypeGSTExclusive TaxType = "GST_EXCLUSIVE"
	TaxTypeGSTInclusive TaxType = "GST_INCLUSIVE"
)

// SupplyType selects the GST split: intra-region uses CGST+SGST, inter-region uses IGST
type SupplyType string

const (
	SupplyTypeIntra SupplyType = "INTRA"
	SupplyTypeInter SupplyType = "INTER"
)

// InstallmentItem is one slice of an installment plan.
// DueOffsetDays is relative to the record generation date.
type InstallmentItem struct {
	Label         string  `json:"label"`
	DueOffsetDays int     `json:"due_offset_days"`
	Amount        float64 `json:"amount"`
}

// FeeStructure is a reusable billing template scoped to a tenant.
// Once a structure is referenced by a fee record it is never edited in place;
// amendments create a new row and flip IsCurrent on the old one.
type FeeStructure struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	TenantID uint   `gorm:"index;not null" json:"tenant_id"`
	Name     string `gorm:"type:varchar(255)" json:"name"`

	BaseAmount float64 `gorm:"type:decimal(15,2)" json:"base_amount"`
	Currency   string  `gorm:"type:varchar(10);default:'INR'" json:"currency"`

	BillingCycle      BillingCycle `gorm:"type:varchar(20);default:'onetime'" json:"billing_cycle"`
	RecurringInterval *string      `gorm:"type:text" json:"recurring_interval"` // RFC 5545 RRULE string, periodic cycles only

	LateFineRate float64 `gorm:"type:decimal(7,4);default:0" json:"late_fine_rate"` // fraction of base per overdue period

	TaxType    TaxType    `gorm:"type:varchar(20);default:'NONE'" json:"tax_type"`
	GSTRate    float64    `gorm:"type:decimal(5,2);default:0" json:"gst_rate"`
	CessRate   float64    `gorm:"type:decimal(5,2);default:0" json:"cess_rate"`
	SupplyType SupplyType `gorm:"type:varchar(10);default:'INTRA'" json:"supply_type"`

	InstallmentPlan []InstallmentItem `gorm:"serializer:json" json:"installment_plan,omitempty"`

	// Supersession bookkeeping. IsCurrent=false rows are kept forever so
	// already-issued records retain their historical amounts.
	IsCurrent      bool       `gorm:"default:true;index" json:"is_current"`
	ReplacedAt     *time.Time `json:"replaced_at,omitempty"`
	SupersededByID *uint      `json:"superseded_by_id,omitempty"`

	// Relationships
	Assignments []FeeAssignment `gorm:"foreignKey:StructureID" json:"assignments,omitempty"`
}

// PeriodsBetween expands the recurring interval into period start dates within
// [from, until). Returns nil for non-periodic cycles or unparseable rules.
func (s FeeStructure) PeriodsBetween(from, until time.Time) []time.Time {
	if s.BillingCycle != BillingCyclePeriodic {
		return nil
	}
	if s.RecurringInterval == nil || *s.RecurringInterval == "" {
		return nil
	}
	rule, err := rrule.StrToRRule(*s.RecurringInterval)
	if err != nil {
		return nil
	}
	rule.DTStart(from)
	return rule.Between(from, until, true)
}

// InstallmentTotal sums the plan item amounts
func (s FeeStructure) InstallmentTotal() float64 {
	var total float64
	for _, item := range s.InstallmentPlan {
		total += item.Amount
	}
	return total
}
