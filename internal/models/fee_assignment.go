package models

import (
	"time"

	"gorm.io/gorm"
)

// FeeAssignment binds one structure to one member with per-member overrides.
// At most one active (non-deleted) assignment exists per (tenant, member).
type FeeAssignment struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// The partial unique index backstops the application-level duplicate
	// check: two concurrent Assign calls cannot both insert.
	TenantID    uint `gorm:"uniqueIndex:idx_assignment_tenant_member,where:deleted_at IS NULL;not null" json:"tenant_id"`
	StructureID uint `gorm:"index" json:"structure_id"`
	// MemberID refers to the member in the external identity module; no FK here.
	MemberID uint `gorm:"uniqueIndex:idx_assignment_tenant_member,where:deleted_at IS NULL" json:"member_id"`

	OverrideAmount *float64 `gorm:"type:decimal(15,2)" json:"override_amount,omitempty"`
	Discount       float64  `gorm:"type:decimal(15,2);default:0" json:"discount"`
	Scholarship    float64  `gorm:"type:decimal(15,2);default:0" json:"scholarship"`

	Paused   bool       `gorm:"default:false" json:"paused"`
	PausedAt *time.Time `json:"paused_at,omitempty"`

	// Relationships
	Structure FeeStructure `gorm:"foreignKey:StructureID" json:"structure,omitempty"`
	Records   []FeeRecord  `gorm:"foreignKey:AssignmentID" json:"records,omitempty"`
}

// EffectiveAmount is the override amount when set, otherwise the structure base
func (a FeeAssignment) EffectiveAmount() float64 {
	if a.OverrideAmount != nil {
		return *a.OverrideAmount
	}
	return a.Structure.BaseAmount
}
