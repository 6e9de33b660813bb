package repository

import (
	"context"
	"fmt"
	"time"

	"service_orders/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// writeBalance stores b only if the row still holds the balance that was read.
func writeBalance(ctx context.Context, db *gorm.DB, model interface{}, entity string, id uint, b models.Balance, expected decimal.Decimal) error {
	res := db.WithContext(ctx).Model(model).
		Where("id = ? AND outstanding_balance = ?", id, expected).
		Updates(map[string]interface{}{
			"total_amount":        b.TotalAmount,
			"outstanding_balance": b.OutstandingBalance,
			"payment_status":      b.PaymentStatus,
			"updated_at":          time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update %s %d balance: %w", entity, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return &models.ConcurrencyConflictError{Entity: entity, ID: id}
	}
	return nil
}
