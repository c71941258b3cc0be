package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GatewayWebhookLog is the immutable receipt of every inbound gateway callback.
// Rows are written before verification and kept even on failure so events can
// be replayed forensically.
type GatewayWebhookLog struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	TenantID uint `gorm:"index" json:"tenant_id"`

	EventName string         `gorm:"type:varchar(100);index" json:"event_name"`
	Payload   datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	Signature string         `gorm:"type:varchar(255)" json:"signature"`

	Verified  bool    `gorm:"default:false" json:"verified"`
	Processed bool    `gorm:"default:false" json:"processed"`
	Error     *string `gorm:"type:text" json:"error,omitempty"`
}
