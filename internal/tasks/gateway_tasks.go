package tasks

import (
	"context"
	"time"

	"gorm.io/gorm"

	"coachledger/internal/services"
)

// ExpireGatewayOrdersHandler fails created-but-unconfirmed gateway orders
// past their TTL. There is no user-facing cancellation of an in-flight
// payment; expiry by this sweep is the only way out of CREATED besides
// confirmation.
func ExpireGatewayOrdersHandler(ctx context.Context, db *gorm.DB, args map[string]interface{}) (map[string]interface{}, error) {
	audit := services.NewAuditService(db)
	receipt := services.NewReceiptService(db)
	ledger := services.NewLedgerService(db, receipt, audit, nil)
	gateway := services.NewGatewayService(db, services.NewGatewayClient(), ledger, receipt, audit, nil)

	affected, err := gateway.ExpireStaleOrders(time.Now())
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"status":        "success",
		"expired_count": affected,
	}, nil
}
