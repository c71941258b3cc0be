package services

import (
	"testing"
	"time"

	"gorm.io/gorm"

	"coachledger/internal/models"
)

func seedAssignment(t *testing.T, db *gorm.DB, structure models.FeeStructure, memberID uint) (*models.FeeStructure, *models.FeeAssignment) {
	t.Helper()
	if err := db.Create(&structure).Error; err != nil {
		t.Fatalf("seed structure: %v", err)
	}
	assignment := models.FeeAssignment{
		TenantID:    structure.TenantID,
		StructureID: structure.ID,
		MemberID:    memberID,
		Structure:   structure,
	}
	if err := db.Create(&assignment).Error; err != nil {
		t.Fatalf("seed assignment: %v", err)
	}
	return &structure, &assignment
}

// Records that a mutating write already projected to OVERDUE must still get
// the late fine on the next sweep; the fine is assessed exactly once.
func TestMarkOverdueAssessesFineOnProjectedRecords(t *testing.T) {
	db := newTestDB(t)
	ledger := newLedgerService(db)
	now := time.Now()

	_, assignment := seedAssignment(t, db, models.FeeStructure{
		TenantID:     1,
		Name:         "Monthly Coaching",
		BaseAmount:   1000,
		LateFineRate: 0.05,
		TaxType:      models.TaxTypeNone,
	}, 10)

	// A partial payment past the due date already persisted OVERDUE with no fine
	record := models.FeeRecord{
		TenantID:     1,
		AssignmentID: assignment.ID,
		StructureID:  assignment.StructureID,
		MemberID:     10,
		PeriodLabel:  "August 2026",
		BaseAmount:   1000,
		FinalAmount:  1000,
		PaidAmount:   100,
		DueDate:      now.AddDate(0, 0, -3),
		Status:       models.FeeRecordStatusOverdue,
	}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("seed record: %v", err)
	}

	affected, err := ledger.MarkOverdue(now)
	if err != nil {
		t.Fatalf("MarkOverdue() error = %v", err)
	}
	if affected != 1 {
		t.Fatalf("affected = %d, want 1", affected)
	}

	var got models.FeeRecord
	if err := db.First(&got, record.ID).Error; err != nil {
		t.Fatalf("reload record: %v", err)
	}
	if got.Fine != 50 {
		t.Errorf("fine = %v, want 50", got.Fine)
	}
	if got.FinalAmount != 1050 {
		t.Errorf("final amount = %v, want 1050", got.FinalAmount)
	}
	if got.Status != models.FeeRecordStatusOverdue {
		t.Errorf("status = %s, want OVERDUE", got.Status)
	}

	// The next sweep must not assess the fine again
	affected, err = ledger.MarkOverdue(now)
	if err != nil {
		t.Fatalf("second MarkOverdue() error = %v", err)
	}
	if affected != 0 {
		t.Errorf("second sweep affected = %d, want 0", affected)
	}
	if err := db.First(&got, record.ID).Error; err != nil {
		t.Fatalf("reload record: %v", err)
	}
	if got.Fine != 50 || got.FinalAmount != 1050 {
		t.Errorf("second sweep changed fine/final to %v/%v", got.Fine, got.FinalAmount)
	}
}

func TestMarkOverdueWithoutFineRate(t *testing.T) {
	db := newTestDB(t)
	ledger := newLedgerService(db)
	now := time.Now()

	_, assignment := seedAssignment(t, db, models.FeeStructure{
		TenantID:   1,
		Name:       "No Fine",
		BaseAmount: 800,
		TaxType:    models.TaxTypeNone,
	}, 11)

	record := models.FeeRecord{
		TenantID:     1,
		AssignmentID: assignment.ID,
		StructureID:  assignment.StructureID,
		MemberID:     11,
		PeriodLabel:  "August 2026",
		BaseAmount:   800,
		FinalAmount:  800,
		DueDate:      now.AddDate(0, 0, -1),
		Status:       models.FeeRecordStatusPending,
	}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("seed record: %v", err)
	}

	affected, err := ledger.MarkOverdue(now)
	if err != nil {
		t.Fatalf("MarkOverdue() error = %v", err)
	}
	if affected != 1 {
		t.Fatalf("affected = %d, want 1", affected)
	}

	var got models.FeeRecord
	if err := db.First(&got, record.ID).Error; err != nil {
		t.Fatalf("reload record: %v", err)
	}
	if got.Status != models.FeeRecordStatusOverdue {
		t.Errorf("status = %s, want OVERDUE", got.Status)
	}
	if got.Fine != 0 || got.FinalAmount != 800 {
		t.Errorf("fine/final = %v/%v, want 0/800", got.Fine, got.FinalAmount)
	}

	// Already flipped and nothing to fine: the next sweep skips it
	affected, err = ledger.MarkOverdue(now)
	if err != nil {
		t.Fatalf("second MarkOverdue() error = %v", err)
	}
	if affected != 0 {
		t.Errorf("second sweep affected = %d, want 0", affected)
	}
}
