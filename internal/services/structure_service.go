package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"gorm.io/gorm"

	"coachledger/internal/models"
)

// installmentTolerance allows plan items to drift from the base amount by up
// to 1% to absorb manual rounding of the slices.
const installmentTolerance = 0.01

// defaultGenerateWindowDays is how far ahead records are generated when an
// assignment is created; the sweep extends the window afterwards.
const defaultGenerateWindowDays = 31

// StructureService owns fee structures and their member assignments
type StructureService struct {
	db     *gorm.DB
	ledger *LedgerService
	audit  *AuditService
}

func NewStructureService(db *gorm.DB, ledger *LedgerService, audit *AuditService) *StructureService {
	return &StructureService{db: db, ledger: ledger, audit: audit}
}

// CreateStructure validates and persists a new fee template
func (s *StructureService) CreateStructure(tenantID uint, structure *models.FeeStructure, actor Actor) error {
	structure.TenantID = tenantID
	structure.IsCurrent = true

	if structure.BaseAmount < 0 {
		return ErrAmountNotPositive
	}
	if err := ValidateInstallmentPlan(structure); err != nil {
		return err
	}

	if err := s.db.Create(structure).Error; err != nil {
		return fmt.Errorf("failed to create fee structure: %w", err)
	}

	s.audit.Record(tenantID, "fee_structure", structure.ID, "structure.created", actor, nil, structure, "")
	return nil
}

// SupersedeStructure amends a structure without editing it in place: the
// changes land in a fresh row and the old row is marked non-current, so
// records already issued against it keep their historical amounts.
func (s *StructureService) SupersedeStructure(tenantID, structureID uint, changes *models.FeeStructure, actor Actor) (*models.FeeStructure, error) {
	var old models.FeeStructure
	if err := s.db.Where("tenant_id = ?", tenantID).First(&old, structureID).Error; err != nil {
		return nil, fmt.Errorf("structure not found: %w", err)
	}
	if !old.IsCurrent {
		return nil, ErrStructureNotCurrent
	}

	changes.ID = 0
	changes.TenantID = tenantID
	changes.IsCurrent = true
	if changes.Name == "" {
		changes.Name = old.Name
	}
	if changes.Currency == "" {
		changes.Currency = old.Currency
	}
	if err := ValidateInstallmentPlan(changes); err != nil {
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(changes).Error; err != nil {
			return fmt.Errorf("failed to create replacement structure: %w", err)
		}
		now := time.Now()
		return tx.Model(&models.FeeStructure{}).
			Where("id = ? AND tenant_id = ? AND is_current = true", old.ID, tenantID).
			Updates(map[string]interface{}{
				"is_current":       false,
				"replaced_at":      now,
				"superseded_by_id": changes.ID,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(tenantID, "fee_structure", old.ID, "structure.superseded", actor, old, changes, "")
	return changes, nil
}

// Assign binds a structure to a member. A member can hold at most one active
// assignment per tenant; a second attempt fails with ErrDuplicateAssignment.
func (s *StructureService) Assign(tenantID uint, assignment *models.FeeAssignment, actor Actor) error {
	var structure models.FeeStructure
	if err := s.db.Where("tenant_id = ?", tenantID).First(&structure, assignment.StructureID).Error; err != nil {
		return fmt.Errorf("structure not found: %w", err)
	}
	if !structure.IsCurrent {
		return ErrStructureNotCurrent
	}

	assignment.TenantID = tenantID
	assignment.Structure = structure
	if assignment.Discount < 0 || assignment.Scholarship < 0 {
		return ErrAmountNotPositive
	}
	if assignment.Discount+assignment.Scholarship > assignment.EffectiveAmount()+models.AmountEpsilon {
		return ErrDiscountExceedsAmount
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.FeeAssignment{}).
			Where("tenant_id = ? AND member_id = ?", tenantID, assignment.MemberID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateAssignment
		}
		return tx.Create(assignment).Error
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateAssignment) {
			return err
		}
		// The partial unique index catches the race the count cannot see
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateAssignment
		}
		return fmt.Errorf("failed to create assignment: %w", err)
	}

	s.audit.Record(tenantID, "fee_assignment", assignment.ID, "assignment.created", actor, nil, assignment, "")

	// Issue the initial records right away; the sweep re-runs generation with
	// the same idempotent per-period check, so a failure here only delays.
	now := time.Now()
	if _, err := s.ledger.GenerateForAssignment(assignment, now, now.AddDate(0, 0, defaultGenerateWindowDays), actor); err != nil {
		log.Printf("initial record generation failed for assignment %d: %v", assignment.ID, err)
	}
	return nil
}

// PauseAssignment stops record generation for the member without touching
// already-issued records
func (s *StructureService) PauseAssignment(tenantID, assignmentID uint, actor Actor) error {
	return s.setPaused(tenantID, assignmentID, true, actor)
}

// ResumeAssignment re-enables record generation
func (s *StructureService) ResumeAssignment(tenantID, assignmentID uint, actor Actor) error {
	return s.setPaused(tenantID, assignmentID, false, actor)
}

func (s *StructureService) setPaused(tenantID, assignmentID uint, paused bool, actor Actor) error {
	var assignment models.FeeAssignment
	if err := s.db.Where("tenant_id = ?", tenantID).First(&assignment, assignmentID).Error; err != nil {
		return fmt.Errorf("assignment not found: %w", err)
	}

	before := assignment
	assignment.Paused = paused
	if paused {
		now := time.Now()
		assignment.PausedAt = &now
	} else {
		assignment.PausedAt = nil
	}

	if err := s.db.Save(&assignment).Error; err != nil {
		return fmt.Errorf("failed to update assignment: %w", err)
	}

	event := "assignment.resumed"
	if paused {
		event = "assignment.paused"
	}
	s.audit.Record(tenantID, "fee_assignment", assignment.ID, event, actor, before, assignment, "")
	return nil
}

// GetActiveAssignment returns the member's single active assignment with its
// structure preloaded
func (s *StructureService) GetActiveAssignment(tenantID, memberID uint) (*models.FeeAssignment, error) {
	var assignment models.FeeAssignment
	err := s.db.Preload("Structure").
		Where("tenant_id = ? AND member_id = ?", tenantID, memberID).
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

// ValidateInstallmentPlan checks that installment-cycle plans sum to the base
// amount within the 1% tolerance and carry positive slices.
func ValidateInstallmentPlan(structure *models.FeeStructure) error {
	if structure.BillingCycle != models.BillingCycleInstallment {
		return nil
	}
	if len(structure.InstallmentPlan) == 0 {
		return ErrInstallmentPlanMismatch
	}
	for _, item := range structure.InstallmentPlan {
		if item.Amount <= 0 {
			return ErrAmountNotPositive
		}
	}
	total := structure.InstallmentTotal()
	if structure.BaseAmount <= 0 {
		return ErrAmountNotPositive
	}
	if math.Abs(total-structure.BaseAmount)/structure.BaseAmount > installmentTolerance {
		return ErrInstallmentPlanMismatch
	}
	return nil
}
