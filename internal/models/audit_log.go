package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLogEntry captures before/after snapshots for every financial mutation.
// Write-once: no soft delete, never updated by normal operation.
type AuditLogEntry struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	TenantID uint `gorm:"index:idx_audit_tenant_entity" json:"tenant_id"`

	EntityType string `gorm:"type:varchar(50);index:idx_audit_tenant_entity" json:"entity_type"`
	EntityID   uint   `gorm:"index:idx_audit_tenant_entity" json:"entity_id"`
	Event      string `gorm:"type:varchar(100)" json:"event"`

	ActorID   uint   `json:"actor_id"`
	ActorRole string `gorm:"type:varchar(20)" json:"actor_role"`

	Before datatypes.JSON `gorm:"type:jsonb" json:"before,omitempty"`
	After  datatypes.JSON `gorm:"type:jsonb" json:"after,omitempty"`
	Note   *string        `gorm:"type:text" json:"note,omitempty"`
}
