package services

import (
	"encoding/json"
	"log"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"coachledger/internal/models"
)

// Actor identifies who performed a mutation. Authentication happens upstream;
// handlers pass the already-verified identity through.
type Actor struct {
	ID   uint
	Role string
}

// AuditService writes before/after snapshots for financial mutations.
// Writes are best-effort adjacent to the mutation they describe: a failed
// audit write is logged loudly but never rolls back a confirmed payment.
type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// Record writes one audit entry. Snapshot arguments may be any JSON-encodable
// value or nil. Always returns nil so callers can fire-and-forget; failures
// are logged with enough context to reconcile the trail later.
func (s *AuditService) Record(tenantID uint, entityType string, entityID uint, event string, actor Actor, before, after interface{}, note string) error {
	entry := models.AuditLogEntry{
		TenantID:   tenantID,
		EntityType: entityType,
		EntityID:   entityID,
		Event:      event,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Before:     marshalSnapshot(before),
		After:      marshalSnapshot(after),
	}
	if note != "" {
		entry.Note = &note
	}

	if err := s.db.Create(&entry).Error; err != nil {
		log.Printf("AUDIT WRITE FAILED tenant=%d %s/%d event=%s actor=%d: %v",
			tenantID, entityType, entityID, event, actor.ID, err)
	}
	return nil
}

func marshalSnapshot(v interface{}) datatypes.JSON {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}
