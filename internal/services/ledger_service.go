package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"coachledger/internal/models"
	"coachledger/internal/tax"
)

// LedgerService owns fee records: generation from assignments, payment and
// refund application, waiving with carried credit, and status bookkeeping.
type LedgerService struct {
	db      *gorm.DB
	receipt *ReceiptService
	audit   *AuditService
	cache   *RedisCache
}

func NewLedgerService(db *gorm.DB, receipt *ReceiptService, audit *AuditService, cache *RedisCache) *LedgerService {
	return &LedgerService{db: db, receipt: receipt, audit: audit, cache: cache}
}

// GenerateForAssignment derives fee records for the assignment's billing
// cycle. One-time cycles produce a single record; installment cycles expand
// the plan; periodic cycles expand the structure's recurrence rule between
// [from, until). Paused assignments generate nothing.
func (s *LedgerService) GenerateForAssignment(assignment *models.FeeAssignment, from, until time.Time, actor Actor) ([]models.FeeRecord, error) {
	if assignment.Paused {
		return nil, ErrAssignmentPaused
	}
	structure := assignment.Structure

	type slice struct {
		label   string
		amount  float64
		dueDate time.Time
	}
	var slices []slice

	switch structure.BillingCycle {
	case models.BillingCycleOneTime:
		slices = append(slices, slice{
			label:   structure.Name,
			amount:  assignment.EffectiveAmount(),
			dueDate: from,
		})

	case models.BillingCycleInstallment:
		// Per-member override scales the plan proportionally
		scale := 1.0
		if assignment.OverrideAmount != nil && structure.BaseAmount > 0 {
			scale = *assignment.OverrideAmount / structure.BaseAmount
		}
		for i, item := range structure.InstallmentPlan {
			slices = append(slices, slice{
				label:   fmt.Sprintf("%s (%d/%d)", item.Label, i+1, len(structure.InstallmentPlan)),
				amount:  item.Amount * scale,
				dueDate: from.AddDate(0, 0, item.DueOffsetDays),
			})
		}

	case models.BillingCyclePeriodic:
		for _, start := range structure.PeriodsBetween(from, until) {
			slices = append(slices, slice{
				label:   start.Format("January 2006"),
				amount:  assignment.EffectiveAmount(),
				dueDate: start,
			})
		}
	}

	if len(slices) == 0 {
		return nil, nil
	}

	// Discount and scholarship apply once per generation run, against the
	// first slice only, so installment totals stay reconcilable.
	var created []models.FeeRecord
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for i, sl := range slices {
			// Generation is idempotent per period: overlapping sweep windows
			// must not bill the same period twice.
			var existing int64
			if err := tx.Model(&models.FeeRecord{}).
				Where("assignment_id = ? AND period_label = ?", assignment.ID, sl.label).
				Count(&existing).Error; err != nil {
				return err
			}
			if existing > 0 {
				continue
			}

			discount := 0.0
			if i == 0 {
				discount = assignment.Discount + assignment.Scholarship
			}

			breakdown, err := tax.Compute(tax.Input{
				BaseAmount: sl.amount,
				Discount:   discount,
				TaxType:    structure.TaxType,
				GSTRate:    structure.GSTRate,
				CessRate:   structure.CessRate,
				SupplyType: structure.SupplyType,
			})
			if err != nil {
				return fmt.Errorf("amount derivation failed for %q: %w", sl.label, err)
			}

			record := models.FeeRecord{
				TenantID:     assignment.TenantID,
				AssignmentID: assignment.ID,
				StructureID:  structure.ID,
				MemberID:     assignment.MemberID,
				PeriodLabel:  sl.label,
				BaseAmount:   sl.amount,
				Discount:     discount,
				TaxAmount:    breakdown.TaxAmount,
				CGST:         breakdown.CGST,
				SGST:         breakdown.SGST,
				IGST:         breakdown.IGST,
				Cess:         breakdown.Cess,
				FinalAmount:  breakdown.FinalAmount,
				DueDate:      sl.dueDate,
				Status:       models.FeeRecordStatusPending,
			}
			if err := tx.Create(&record).Error; err != nil {
				return fmt.Errorf("failed to create fee record: %w", err)
			}
			created = append(created, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, r := range created {
		s.audit.Record(assignment.TenantID, "fee_record", r.ID, "record.generated", actor, nil, r, "")
	}
	s.invalidateDuesCache(assignment.TenantID, assignment.MemberID)
	return created, nil
}

// ApplyPayment increments the record's paid amount inside the caller's
// transaction. The record row must already be locked (SELECT ... FOR UPDATE)
// by the caller. Rejects whole payments that would exceed the final amount by
// more than the rounding epsilon; there is no partial application.
func (s *LedgerService) ApplyPayment(tx *gorm.DB, record *models.FeeRecord, amount float64, now time.Time) error {
	if amount <= 0 {
		return ErrAmountNotPositive
	}
	if record.Waived {
		return ErrRecordNotPayable
	}
	if record.PaidAmount+amount > record.FinalAmount+models.AmountEpsilon {
		return ErrOverpaymentRejected
	}

	record.PaidAmount += amount
	record.RecomputeStatus(now)

	return tx.Model(record).Updates(map[string]interface{}{
		"paid_amount": record.PaidAmount,
		"status":      record.Status,
	}).Error
}

// ApplyRefundEffect decrements the paid amount and re-derives the status.
// The refund-in-progress marker is cleared in the same update; it exists so
// the paid>final invariant can be relaxed only inside an explicit window.
func (s *LedgerService) ApplyRefundEffect(tx *gorm.DB, record *models.FeeRecord, amount float64, now time.Time) error {
	if amount <= 0 {
		return ErrAmountNotPositive
	}
	if amount > record.PaidAmount+models.AmountEpsilon {
		return ErrRefundExceedsPaid
	}

	record.PaidAmount -= amount
	if record.PaidAmount < 0 {
		record.PaidAmount = 0
	}
	record.RefundInProgress = false
	record.RecomputeStatus(now)

	return tx.Model(record).Updates(map[string]interface{}{
		"paid_amount":        record.PaidAmount,
		"status":             record.Status,
		"refund_in_progress": false,
	}).Error
}

// Waive zeroes out a record administratively. If the waived record carries a
// positive paid balance (overpayment, plan change), that balance is applied as
// credit to the member's oldest unpaid sibling record in the same transaction.
// The CreditAppliedToID marker makes the step idempotent: a record's credit
// moves at most once, and re-waiving an already-waived record is a no-op.
func (s *LedgerService) Waive(tenantID, recordID uint, note string, actor Actor) (*models.FeeRecord, error) {
	var waived models.FeeRecord

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).
			Where("tenant_id = ?", tenantID).
			First(&waived, recordID).Error; err != nil {
			return fmt.Errorf("record not found: %w", err)
		}
		if waived.Waived {
			return nil // already waived, nothing to redo
		}

		before := waived
		now := time.Now()

		waived.Waived = true
		waived.WaiveNote = &note
		waived.WaivedByID = &actor.ID
		waived.RecomputeStatus(now)

		if waived.PaidAmount > models.AmountEpsilon && waived.CreditAppliedToID == nil {
			if err := s.applyCarriedCredit(tx, &waived, now); err != nil {
				return err
			}
		}

		if err := tx.Save(&waived).Error; err != nil {
			return fmt.Errorf("failed to waive record: %w", err)
		}

		s.audit.Record(tenantID, "fee_record", waived.ID, "record.waived", actor, before, waived, note)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateDuesCache(waived.TenantID, waived.MemberID)
	return &waived, nil
}

// applyCarriedCredit moves the waived record's paid balance onto the oldest
// unpaid sibling, reducing that sibling's final amount. Runs inside the waive
// transaction with both rows locked.
func (s *LedgerService) applyCarriedCredit(tx *gorm.DB, waived *models.FeeRecord, now time.Time) error {
	var sibling models.FeeRecord
	err := lockForUpdate(tx).
		Where("tenant_id = ? AND assignment_id = ? AND id <> ? AND waived = false AND status IN ?",
			waived.TenantID, waived.AssignmentID, waived.ID,
			[]models.FeeRecordStatus{
				models.FeeRecordStatusPending,
				models.FeeRecordStatusPartiallyPaid,
				models.FeeRecordStatusOverdue,
			}).
		Order("due_date asc, id asc").
		First(&sibling).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// No successor to carry to; the balance stays on the waived record
		// and remains visible for a manual refund.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to find credit target: %w", err)
	}

	credit := waived.PaidAmount
	sibling.ApplyCredit(credit, now)

	if err := tx.Model(&sibling).Updates(map[string]interface{}{
		"final_amount":    sibling.FinalAmount,
		"credit_received": sibling.CreditReceived,
		"status":          sibling.Status,
	}).Error; err != nil {
		return fmt.Errorf("failed to apply carried credit: %w", err)
	}

	waived.CreditAppliedToID = &sibling.ID
	return nil
}

// MarkOverdue flips unpaid records past their due date to OVERDUE and
// assesses the structure's late fine where one is configured. Run by the
// sweep worker; the status projection is also recomputed on every mutating
// write, so this only keeps listings current between payments.
func (s *LedgerService) MarkOverdue(now time.Time) (int64, error) {
	// OVERDUE rows with no fine yet are included: any mutating write past the
	// due date stores the record as OVERDUE before the sweep sees it, and the
	// fine must still be assessed for those.
	var due []models.FeeRecord
	err := s.db.Preload("Assignment.Structure").
		Where("due_date < ? AND waived = false AND (status IN ? OR (status = ? AND fine = 0))",
			now,
			[]models.FeeRecordStatus{models.FeeRecordStatusPending, models.FeeRecordStatusPartiallyPaid},
			models.FeeRecordStatusOverdue).
		Find(&due).Error
	if err != nil {
		return 0, fmt.Errorf("failed to list due records: %w", err)
	}

	var affected int64
	for i := range due {
		if due[i].Status == models.FeeRecordStatusOverdue && due[i].Assignment.Structure.LateFineRate <= 0 {
			continue
		}
		if err := s.markOverdueRecord(&due[i], now); err != nil {
			return affected, err
		}
		affected++
	}
	return affected, nil
}

// markOverdueRecord re-derives one record under its row lock. The fine is
// assessed at most once (Fine stays zero until the first overdue sweep), and
// the tax breakdown is recomputed so the fine is taxed like the base it
// attaches to. Carried credit already folded into the final amount is
// preserved.
func (s *LedgerService) markOverdueRecord(stale *models.FeeRecord, now time.Time) error {
	structure := stale.Assignment.Structure

	return s.db.Transaction(func(tx *gorm.DB) error {
		var record models.FeeRecord
		if err := lockForUpdate(tx).
			First(&record, stale.ID).Error; err != nil {
			return err
		}
		if record.Waived || !now.After(record.DueDate) {
			return nil
		}

		updates := map[string]interface{}{}

		if structure.LateFineRate > 0 && record.Fine < models.AmountEpsilon {
			fine := round2(structure.LateFineRate * record.BaseAmount)
			breakdown, err := tax.Compute(tax.Input{
				BaseAmount: record.BaseAmount,
				Discount:   record.Discount,
				Fine:       fine,
				TaxType:    structure.TaxType,
				GSTRate:    structure.GSTRate,
				CessRate:   structure.CessRate,
				SupplyType: structure.SupplyType,
			})
			if err != nil {
				return fmt.Errorf("fine derivation failed for record %d: %w", record.ID, err)
			}

			record.Fine = fine
			record.TaxAmount = breakdown.TaxAmount
			record.CGST = breakdown.CGST
			record.SGST = breakdown.SGST
			record.IGST = breakdown.IGST
			record.Cess = breakdown.Cess
			record.FinalAmount = round2(breakdown.FinalAmount - record.CreditReceived)
			if record.FinalAmount < 0 {
				record.FinalAmount = 0
			}

			updates["fine"] = record.Fine
			updates["tax_amount"] = record.TaxAmount
			updates["cgst"] = record.CGST
			updates["sgst"] = record.SGST
			updates["igst"] = record.IGST
			updates["cess"] = record.Cess
			updates["final_amount"] = record.FinalAmount
		}

		record.RecomputeStatus(now)
		updates["status"] = record.Status
		return tx.Model(&record).Updates(updates).Error
	})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ListRecords returns tenant-scoped records, optionally filtered by member
// and status
func (s *LedgerService) ListRecords(tenantID uint, memberID uint, status models.FeeRecordStatus) ([]models.FeeRecord, error) {
	query := s.db.Where("tenant_id = ?", tenantID)
	if memberID > 0 {
		query = query.Where("member_id = ?", memberID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var records []models.FeeRecord
	if err := query.Order("due_date asc, id asc").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return records, nil
}

// GetRecord fetches one tenant-scoped record with payments and refunds
func (s *LedgerService) GetRecord(tenantID, recordID uint) (*models.FeeRecord, error) {
	var record models.FeeRecord
	err := s.db.Preload("Payments").Preload("Refunds").
		Where("tenant_id = ?", tenantID).
		First(&record, recordID).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// DuesSummary is a member's aggregate balance view
type DuesSummary struct {
	MemberID    uint    `json:"member_id"`
	TotalDue    float64 `json:"total_due"`
	TotalPaid   float64 `json:"total_paid"`
	Outstanding float64 `json:"outstanding"`
	OpenRecords int     `json:"open_records"`
}

// MemberDuesSummary aggregates a member's balances, cached briefly in Redis
func (s *LedgerService) MemberDuesSummary(ctx context.Context, tenantID, memberID uint) (DuesSummary, error) {
	compute := func() (DuesSummary, error) {
		summary := DuesSummary{MemberID: memberID}
		records, err := s.ListRecords(tenantID, memberID, "")
		if err != nil {
			return summary, err
		}
		for _, r := range records {
			if r.Waived {
				continue
			}
			summary.TotalDue += r.FinalAmount
			summary.TotalPaid += r.PaidAmount
			if r.Outstanding() > models.AmountEpsilon {
				summary.Outstanding += r.Outstanding()
				summary.OpenRecords++
			}
		}
		return summary, nil
	}

	if s.cache == nil {
		return compute()
	}
	return GetOrSet(s.cache, ctx, duesCacheKey(tenantID, memberID), 30*time.Second, compute)
}

func (s *LedgerService) invalidateDuesCache(tenantID, memberID uint) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(context.Background(), duesCacheKey(tenantID, memberID))
}

func duesCacheKey(tenantID, memberID uint) string {
	return fmt.Sprintf("dues:%d:%d", tenantID, memberID)
}
