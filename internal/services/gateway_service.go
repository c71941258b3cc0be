package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"coachledger/internal/models"
)

// orderTTL is how long a created-but-unconfirmed order stays payable before
// the sweep marks it FAILED
const orderTTL = 30 * time.Minute

// GatewayService reconciles external gateway activity against the internal
// ledger. Two completion paths exist for every order: the client-confirmed
// callback and the asynchronous webhook. Both converge on applyPayment, which
// the order's payment_recorded flag makes at-most-once.
type GatewayService struct {
	db      *gorm.DB
	client  *GatewayClient
	ledger  *LedgerService
	receipt *ReceiptService
	audit   *AuditService
	cache   *RedisCache
}

func NewGatewayService(db *gorm.DB, client *GatewayClient, ledger *LedgerService, receipt *ReceiptService, audit *AuditService, cache *RedisCache) *GatewayService {
	return &GatewayService{db: db, client: client, ledger: ledger, receipt: receipt, audit: audit, cache: cache}
}

// AllocatePayment splits amount across records in a fixed, reproducible order:
// oldest due date first, ties broken by id. Each record receives at most its
// outstanding balance; amount must land within the epsilon of fully allocated.
func AllocatePayment(records []models.FeeRecord, amount float64) ([]models.OrderAllocation, error) {
	sorted := make([]models.FeeRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].DueDate.Equal(sorted[j].DueDate) {
			return sorted[i].DueDate.Before(sorted[j].DueDate)
		}
		return sorted[i].ID < sorted[j].ID
	})

	remaining := amount
	var allocations []models.OrderAllocation
	for _, r := range sorted {
		if remaining <= models.AmountEpsilon {
			break
		}
		out := r.Outstanding()
		if out <= models.AmountEpsilon {
			continue
		}
		share := math.Min(out, remaining)
		share = math.Round(share*100) / 100
		allocations = append(allocations, models.OrderAllocation{RecordID: r.ID, Amount: share})
		remaining -= share
	}

	if remaining > models.AmountEpsilon {
		return nil, ErrOverpaymentRejected
	}
	if len(allocations) == 0 {
		return nil, ErrNothingToCollect
	}
	return allocations, nil
}

// CreateOrder opens one gateway order intent covering the given records.
// Amount zero means "collect everything outstanding". The allocation is
// computed up front and frozen on the order so webhook replay is reproducible.
func (s *GatewayService) CreateOrder(tenantID, memberID uint, recordIDs []uint, amount float64, actor Actor) (*models.GatewayOrder, error) {
	query := s.db.Where("tenant_id = ? AND member_id = ? AND waived = false", tenantID, memberID)
	if len(recordIDs) > 0 {
		query = query.Where("id IN ?", recordIDs)
	}
	var records []models.FeeRecord
	if err := query.Order("due_date asc, id asc").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}

	if amount <= 0 {
		for _, r := range records {
			amount += r.Outstanding()
		}
		amount = math.Round(amount*100) / 100
	}
	if amount <= 0 {
		return nil, ErrNothingToCollect
	}

	allocations, err := AllocatePayment(records, amount)
	if err != nil {
		return nil, err
	}

	// Reuse an open order that already covers any of the requested records.
	// A second intent over the same record would make its webhook capture
	// unapplicable once the first one settles.
	var open []models.GatewayOrder
	if err := s.db.Where("tenant_id = ? AND member_id = ? AND status = ? AND payment_recorded = false AND expires_at > ?",
		tenantID, memberID, models.GatewayOrderStatusCreated, time.Now()).
		Find(&open).Error; err != nil {
		return nil, fmt.Errorf("failed to check open orders: %w", err)
	}
	requested := make(map[uint]bool, len(allocations))
	for _, a := range allocations {
		requested[a.RecordID] = true
	}
	for i := range open {
		for _, a := range open[i].Allocations {
			if requested[a.RecordID] {
				return &open[i], nil
			}
		}
	}

	internalRef := newInternalRef("ORD")
	amountMinor := toMinorUnits(amount)

	resp, err := s.client.CreateOrder(CreateOrderRequest{
		AmountMinor: amountMinor,
		Currency:    "INR",
		Receipt:     internalRef,
		Notes: map[string]string{
			"tenant_id": fmt.Sprintf("%d", tenantID),
			"member_id": fmt.Sprintf("%d", memberID),
		},
	})
	if err != nil {
		return nil, err
	}

	order := models.GatewayOrder{
		TenantID:       tenantID,
		MemberID:       memberID,
		InternalRef:    internalRef,
		AmountMinor:    amountMinor,
		Currency:       "INR",
		Allocations:    allocations,
		Status:         models.GatewayOrderStatusCreated,
		GatewayOrderID: resp.OrderID,
		ExpiresAt:      time.Now().Add(orderTTL),
	}
	if err := s.db.Create(&order).Error; err != nil {
		return nil, fmt.Errorf("failed to persist gateway order: %w", err)
	}

	s.audit.Record(tenantID, "gateway_order", order.ID, "order.created", actor, nil, order, "")
	return &order, nil
}

// ConfirmClientPayment is the client-confirmed completion path: the caller
// supplies the gateway order id, payment id, and signature from the checkout
// redirect. The signature is recomputed from the shared secret; divergence
// fails with ErrSignatureMismatch and nothing is applied.
func (s *GatewayService) ConfirmClientPayment(tenantID uint, gatewayOrderID, gatewayPaymentID, signature string, actor Actor) (*models.GatewayOrder, error) {
	if !s.client.VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature) {
		return nil, ErrSignatureMismatch
	}

	var order models.GatewayOrder
	if err := s.db.Where("tenant_id = ? AND gateway_order_id = ?", tenantID, gatewayOrderID).
		First(&order).Error; err != nil {
		return nil, fmt.Errorf("gateway order not found: %w", err)
	}

	if err := s.applyPayment(&order, gatewayPaymentID, signature, actor); err != nil {
		return nil, err
	}
	return &order, nil
}

// webhookEnvelope is the gateway's callback shape: an event name plus nested
// entity objects. Unknown event types are logged and acknowledged.
type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Amount  int64  `json:"amount"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
		Refund struct {
			Entity struct {
				ID        string `json:"id"`
				PaymentID string `json:"payment_id"`
				Amount    int64  `json:"amount"`
				Status    string `json:"status"`
			} `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

// HandleWebhook processes one inbound gateway callback. The raw payload is
// logged before anything can fail so every delivery is replayable; the
// signature covers the raw body and is checked in constant time. Redeliveries
// are treated as success and logged as no-ops.
func (s *GatewayService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	var envelope webhookEnvelope
	parseErr := json.Unmarshal(body, &envelope)

	logEntry := models.GatewayWebhookLog{
		EventName: envelope.Event,
		Payload:   datatypes.JSON(body),
		Signature: signature,
	}
	if err := s.db.Create(&logEntry).Error; err != nil {
		// The log is forensic, not a gate; keep going
		log.Printf("failed to persist webhook log: %v", err)
	}

	fail := func(err error) error {
		msg := err.Error()
		s.db.Model(&logEntry).Updates(map[string]interface{}{"error": msg})
		return err
	}

	if !s.client.VerifyWebhookSignature(body, signature) {
		return fail(ErrSignatureMismatch)
	}
	s.db.Model(&logEntry).Update("verified", true)

	if parseErr != nil {
		return fail(fmt.Errorf("malformed webhook payload: %w", parseErr))
	}

	// Fast-path dedupe; the payment_recorded flag remains the correctness
	// mechanism if two deliveries race past this.
	if s.cache != nil {
		key := fmt.Sprintf("webhook:%s:%s:%s", envelope.Event,
			envelope.Payload.Payment.Entity.ID, envelope.Payload.Refund.Entity.ID)
		if ok, err := s.cache.SetNX(ctx, key, true, time.Minute); err == nil && !ok {
			log.Printf("duplicate webhook delivery suppressed: %s", envelope.Event)
		}
	}

	var tenantID uint
	var err error
	switch envelope.Event {
	case "payment.captured":
		tenantID, err = s.handlePaymentCaptured(envelope)
	case "payment.failed":
		tenantID, err = s.handlePaymentFailed(envelope)
	case "refund.processed":
		tenantID, err = s.handleRefundProcessed(envelope)
	case "refund.failed":
		tenantID, err = s.handleRefundFailed(envelope)
	default:
		log.Printf("ignoring unhandled webhook event %q", envelope.Event)
	}
	if tenantID != 0 {
		s.db.Model(&logEntry).Update("tenant_id", tenantID)
	}
	if err != nil {
		return fail(err)
	}

	now := time.Now()
	s.db.Model(&logEntry).Updates(map[string]interface{}{"processed": true, "updated_at": now})
	return nil
}

func (s *GatewayService) handlePaymentCaptured(envelope webhookEnvelope) (uint, error) {
	entity := envelope.Payload.Payment.Entity

	var order models.GatewayOrder
	if err := s.db.Where("gateway_order_id = ?", entity.OrderID).First(&order).Error; err != nil {
		return 0, fmt.Errorf("webhook references unknown order %q: %w", entity.OrderID, err)
	}
	if entity.Amount != order.AmountMinor {
		return order.TenantID, fmt.Errorf("webhook amount %d does not match order %d: %w",
			entity.Amount, order.AmountMinor, ErrOrderNotPayable)
	}

	actor := Actor{Role: "gateway"}
	return order.TenantID, s.applyPayment(&order, entity.ID, "", actor)
}

func (s *GatewayService) handlePaymentFailed(envelope webhookEnvelope) (uint, error) {
	entity := envelope.Payload.Payment.Entity

	var order models.GatewayOrder
	if err := s.db.Where("gateway_order_id = ?", entity.OrderID).First(&order).Error; err != nil {
		return 0, fmt.Errorf("webhook references unknown order %q: %w", entity.OrderID, err)
	}

	// Never fail an order that already recorded its payment; late or
	// out-of-order failure events lose to the recorded flag.
	reason := "gateway reported payment failure"
	result := s.db.Model(&models.GatewayOrder{}).
		Where("id = ? AND payment_recorded = false AND status = ?",
			order.ID, models.GatewayOrderStatusCreated).
		Updates(map[string]interface{}{
			"status":         models.GatewayOrderStatusFailed,
			"failure_reason": reason,
		})
	if result.Error != nil {
		return order.TenantID, result.Error
	}
	if result.RowsAffected == 0 {
		log.Printf("payment.failed for order %q was a no-op", entity.OrderID)
	}
	return order.TenantID, nil
}

// applyPayment is the single application point both completion paths converge
// on. The payment_recorded flag is flipped by a conditional update inside the
// same transaction that creates the FeePayment rows; zero rows affected means
// another caller already applied this order and the call is a successful no-op.
// Only payment_recorded gates the claim: a verified capture lands even on an
// order the TTL sweep already marked FAILED, and flips it back to PAID.
func (s *GatewayService) applyPayment(order *models.GatewayOrder, gatewayPaymentID, signature string, actor Actor) error {
	applied := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		claim := tx.Model(&models.GatewayOrder{}).
			Where("id = ? AND payment_recorded = false", order.ID).
			Update("payment_recorded", true)
		if claim.Error != nil {
			return claim.Error
		}
		if claim.RowsAffected == 0 {
			return nil // already applied, replay is a no-op
		}
		applied = true

		now := time.Now()
		for _, alloc := range order.Allocations {
			var record models.FeeRecord
			if err := lockForUpdate(tx).
				Where("tenant_id = ?", order.TenantID).
				First(&record, alloc.RecordID).Error; err != nil {
				return fmt.Errorf("allocated record %d not found: %w", alloc.RecordID, err)
			}

			if err := s.ledger.ApplyPayment(tx, &record, alloc.Amount, now); err != nil {
				return fmt.Errorf("failed to apply allocation to record %d: %w", alloc.RecordID, err)
			}

			payment := models.FeePayment{
				TenantID:         order.TenantID,
				RecordID:         record.ID,
				MemberID:         record.MemberID,
				Amount:           alloc.Amount,
				Mode:             models.PaymentModeGateway,
				GatewayOrderID:   &order.GatewayOrderID,
				GatewayPaymentID: &gatewayPaymentID,
				RecordedByID:     actor.ID,
				RecordedByRole:   actor.Role,
				PaidAt:           now,
			}
			if err := tx.Create(&payment).Error; err != nil {
				return fmt.Errorf("failed to record gateway payment: %w", err)
			}

			if record.Status == models.FeeRecordStatusPaid && record.ReceiptNumber == nil {
				number, err := s.receipt.NextReceiptNumber(tx, order.TenantID, FinancialYear(now))
				if err != nil {
					return err
				}
				if err := tx.Model(&record).Update("receipt_number", number).Error; err != nil {
					return fmt.Errorf("failed to attach receipt number: %w", err)
				}
			}
		}

		updates := map[string]interface{}{
			"status":             models.GatewayOrderStatusPaid,
			"gateway_payment_id": gatewayPaymentID,
			"paid_at":            now,
		}
		if signature != "" {
			updates["gateway_signature"] = signature
		}
		return tx.Model(order).Updates(updates).Error
	})
	if err != nil {
		return err
	}

	if applied {
		order.Status = models.GatewayOrderStatusPaid
		order.PaymentRecorded = true
		s.audit.Record(order.TenantID, "gateway_order", order.ID, "order.paid", actor, nil, order, "")
		s.ledger.invalidateDuesCache(order.TenantID, order.MemberID)
	} else {
		log.Printf("gateway order %s already applied; duplicate ignored", order.GatewayOrderID)
	}
	return nil
}

// InitiateRefund asks the gateway to reverse part of a captured payment and
// opens a GatewayRefund row in INITIATED. The internal FeeRefund is only
// written when the completion webhook arrives.
func (s *GatewayService) InitiateRefund(tenantID, recordID uint, amount float64, reason string, actor Actor) (*models.GatewayRefund, error) {
	if amount <= 0 {
		return nil, ErrAmountNotPositive
	}

	var payment models.FeePayment
	err := s.db.Where("tenant_id = ? AND record_id = ? AND gateway_payment_id IS NOT NULL", tenantID, recordID).
		Order("paid_at desc").
		First(&payment).Error
	if err != nil {
		return nil, fmt.Errorf("no gateway payment on record %d: %w", recordID, err)
	}
	if amount > payment.Amount+models.AmountEpsilon {
		return nil, ErrRefundExceedsPaid
	}

	resp, err := s.client.CreateRefund(CreateRefundRequest{
		PaymentID:   *payment.GatewayPaymentID,
		AmountMinor: toMinorUnits(amount),
		Notes:       map[string]string{"reason": reason},
	})
	if err != nil {
		return nil, err
	}

	refund := models.GatewayRefund{
		TenantID:         tenantID,
		RecordID:         recordID,
		GatewayRefundID:  resp.RefundID,
		GatewayPaymentID: *payment.GatewayPaymentID,
		AmountMinor:      resp.AmountMinor,
		Reason:           reason,
		Status:           models.GatewayRefundStatusInitiated,
		InitiatedByID:    actor.ID,
		InitiatedByRole:  actor.Role,
	}
	if err := s.db.Create(&refund).Error; err != nil {
		return nil, fmt.Errorf("failed to persist gateway refund: %w", err)
	}

	s.audit.Record(tenantID, "gateway_refund", refund.ID, "refund.initiated", actor, nil, refund, reason)
	return &refund, nil
}

// handleRefundProcessed applies the internal refund exactly once, keyed by the
// gateway refund id: the row lock plus status check make replays no-ops, and
// the unique gateway_refund_id on fee_refunds backstops at the storage layer.
func (s *GatewayService) handleRefundProcessed(envelope webhookEnvelope) (uint, error) {
	entity := envelope.Payload.Refund.Entity
	actor := Actor{Role: "gateway"}

	var tenantID uint
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var gwRefund models.GatewayRefund
		if err := lockForUpdate(tx).
			Where("gateway_refund_id = ?", entity.ID).
			First(&gwRefund).Error; err != nil {
			return fmt.Errorf("webhook references unknown refund %q: %w", entity.ID, err)
		}
		tenantID = gwRefund.TenantID
		if gwRefund.Status == models.GatewayRefundStatusProcessed {
			log.Printf("refund %s already processed; duplicate ignored", entity.ID)
			return nil
		}

		var record models.FeeRecord
		if err := lockForUpdate(tx).
			Where("tenant_id = ?", gwRefund.TenantID).
			First(&record, gwRefund.RecordID).Error; err != nil {
			return fmt.Errorf("refund target record not found: %w", err)
		}

		now := time.Now()
		amount := fromMinorUnits(gwRefund.AmountMinor)
		refundID := gwRefund.GatewayRefundID

		feeRefund := models.FeeRefund{
			TenantID:        gwRefund.TenantID,
			RecordID:        record.ID,
			MemberID:        record.MemberID,
			Amount:          amount,
			Reason:          gwRefund.Reason,
			Mode:            models.PaymentModeGateway,
			GatewayRefundID: &refundID,
			RecordedByID:    gwRefund.InitiatedByID,
			RecordedByRole:  gwRefund.InitiatedByRole,
			RefundedAt:      now,
		}
		if err := tx.Create(&feeRefund).Error; err != nil {
			return fmt.Errorf("failed to record gateway refund: %w", err)
		}

		if err := s.ledger.ApplyRefundEffect(tx, &record, amount, now); err != nil {
			return err
		}

		if err := tx.Model(&gwRefund).Updates(map[string]interface{}{
			"status":        models.GatewayRefundStatusProcessed,
			"fee_refund_id": feeRefund.ID,
			"processed_at":  now,
		}).Error; err != nil {
			return err
		}

		s.audit.Record(gwRefund.TenantID, "fee_record", record.ID, "refund.processed", actor, nil, record, gwRefund.Reason)
		s.ledger.invalidateDuesCache(gwRefund.TenantID, record.MemberID)
		return nil
	})
	return tenantID, err
}

func (s *GatewayService) handleRefundFailed(envelope webhookEnvelope) (uint, error) {
	entity := envelope.Payload.Refund.Entity

	var gwRefund models.GatewayRefund
	if err := s.db.Where("gateway_refund_id = ?", entity.ID).First(&gwRefund).Error; err != nil {
		return 0, fmt.Errorf("webhook references unknown refund %q: %w", entity.ID, err)
	}

	reason := "gateway reported refund failure"
	err := s.db.Model(&models.GatewayRefund{}).
		Where("id = ? AND status = ?", gwRefund.ID, models.GatewayRefundStatusInitiated).
		Updates(map[string]interface{}{
			"status":         models.GatewayRefundStatusFailed,
			"failure_reason": reason,
		}).Error
	return gwRefund.TenantID, err
}

// ExpireStaleOrders marks created-but-unconfirmed orders past their TTL as
// FAILED. Called by the sweep worker; expiry never touches payment_recorded,
// so a verified capture arriving afterwards still applies through applyPayment
// and flips the order back to PAID.
func (s *GatewayService) ExpireStaleOrders(now time.Time) (int64, error) {
	result := s.db.Model(&models.GatewayOrder{}).
		Where("status = ? AND payment_recorded = false AND expires_at < ?",
			models.GatewayOrderStatusCreated, now).
		Updates(map[string]interface{}{
			"status":         models.GatewayOrderStatusFailed,
			"failure_reason": "order expired unconfirmed",
		})
	return result.RowsAffected, result.Error
}

// GetOrder fetches one tenant-scoped order
func (s *GatewayService) GetOrder(tenantID uint, internalRef string) (*models.GatewayOrder, error) {
	var order models.GatewayOrder
	err := s.db.Where("tenant_id = ? AND internal_ref = ?", tenantID, internalRef).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func newInternalRef(prefix string) string {
	now := time.Now().Format("20060102-150405")
	u := strings.ToUpper(uuid.New().String()[:8])
	return prefix + "-" + now + "-" + u
}

func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func fromMinorUnits(minor int64) float64 {
	return float64(minor) / 100
}
