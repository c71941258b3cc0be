package services

import (
	"errors"
	"testing"

	"gorm.io/gorm"

	"coachledger/internal/models"
)

func newStructureService(db *gorm.DB) *StructureService {
	return NewStructureService(db, newLedgerService(db), NewAuditService(db))
}

// Assigning a one-time structure must issue its fee record immediately
func TestAssignIssuesInitialRecords(t *testing.T) {
	db := newTestDB(t)
	svc := newStructureService(db)

	structure := models.FeeStructure{
		TenantID:     1,
		Name:         "Registration",
		BaseAmount:   1000,
		BillingCycle: models.BillingCycleOneTime,
		TaxType:      models.TaxTypeNone,
		IsCurrent:    true,
	}
	if err := db.Create(&structure).Error; err != nil {
		t.Fatalf("seed structure: %v", err)
	}

	assignment := models.FeeAssignment{StructureID: structure.ID, MemberID: 10}
	if err := svc.Assign(1, &assignment, Actor{ID: 1, Role: "admin"}); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}

	var records []models.FeeRecord
	if err := db.Where("assignment_id = ?", assignment.ID).Find(&records).Error; err != nil {
		t.Fatalf("load records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if records[0].FinalAmount != 1000 || records[0].Status != models.FeeRecordStatusPending {
		t.Errorf("record = %v/%s, want 1000/PENDING", records[0].FinalAmount, records[0].Status)
	}
}

func TestAssignRejectsDuplicate(t *testing.T) {
	db := newTestDB(t)
	svc := newStructureService(db)

	structure := models.FeeStructure{
		TenantID:     1,
		Name:         "Monthly",
		BaseAmount:   500,
		BillingCycle: models.BillingCycleOneTime,
		TaxType:      models.TaxTypeNone,
		IsCurrent:    true,
	}
	if err := db.Create(&structure).Error; err != nil {
		t.Fatalf("seed structure: %v", err)
	}

	first := models.FeeAssignment{StructureID: structure.ID, MemberID: 10}
	if err := svc.Assign(1, &first, Actor{ID: 1, Role: "admin"}); err != nil {
		t.Fatalf("first Assign() error = %v", err)
	}

	second := models.FeeAssignment{StructureID: structure.ID, MemberID: 10}
	if err := svc.Assign(1, &second, Actor{ID: 1, Role: "admin"}); !errors.Is(err, ErrDuplicateAssignment) {
		t.Errorf("second Assign() error = %v, want ErrDuplicateAssignment", err)
	}
}

// The partial unique index must stop a duplicate the pre-insert count cannot
// see, and the driver error must surface as a duplicate-key condition.
func TestAssignmentUniqueIndexBacksUpCheck(t *testing.T) {
	db := newTestDB(t)

	a := models.FeeAssignment{TenantID: 1, StructureID: 1, MemberID: 10}
	if err := db.Create(&a).Error; err != nil {
		t.Fatalf("first insert: %v", err)
	}

	b := models.FeeAssignment{TenantID: 1, StructureID: 2, MemberID: 10}
	if err := db.Create(&b).Error; !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Errorf("second insert error = %v, want gorm.ErrDuplicatedKey", err)
	}

	// Soft-deleting the first row frees the slot
	if err := db.Delete(&a).Error; err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	c := models.FeeAssignment{TenantID: 1, StructureID: 2, MemberID: 10}
	if err := db.Create(&c).Error; err != nil {
		t.Errorf("insert after soft delete: %v", err)
	}
}
