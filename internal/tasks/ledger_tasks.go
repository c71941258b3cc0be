package tasks

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"coachledger/internal/models"
	"coachledger/internal/services"
)

// systemActor attributes worker-driven mutations in the audit trail
var systemActor = services.Actor{Role: "system"}

// GenerateFeeRecordsHandler walks every active, unpaused assignment and
// derives the fee records for the upcoming window. Recurring structures only
// produce records for periods inside the window, so repeated runs with the
// same window are additive but bounded.
func GenerateFeeRecordsHandler(ctx context.Context, db *gorm.DB, args map[string]interface{}) (map[string]interface{}, error) {
	windowDays := 31
	if v, ok := args["window_days"].(float64); ok && v > 0 {
		windowDays = int(v)
	}

	ledger := newLedger(db)

	var assignments []models.FeeAssignment
	if err := db.Preload("Structure").
		Where("paused = false").
		Find(&assignments).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	until := now.AddDate(0, 0, windowDays)

	created := 0
	for _, assignment := range assignments {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// All cycles go through the same idempotent per-period check, so the
		// sweep also backfills one-time and installment records whose issue
		// at assignment time did not happen.
		records, err := ledger.GenerateForAssignment(&assignment, now, until, systemActor)
		if err != nil {
			log.Printf("record generation failed for assignment %d: %v", assignment.ID, err)
			continue
		}
		created += len(records)
	}

	return map[string]interface{}{
		"status":        "success",
		"created_count": created,
	}, nil
}

// MarkOverdueRecordsHandler flips unpaid records past their due date to OVERDUE
func MarkOverdueRecordsHandler(ctx context.Context, db *gorm.DB, args map[string]interface{}) (map[string]interface{}, error) {
	ledger := newLedger(db)
	affected, err := ledger.MarkOverdue(time.Now())
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"status":        "success",
		"overdue_count": affected,
	}, nil
}

func newLedger(db *gorm.DB) *services.LedgerService {
	audit := services.NewAuditService(db)
	receipt := services.NewReceiptService(db)
	return services.NewLedgerService(db, receipt, audit, nil)
}
