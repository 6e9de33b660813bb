package repository

import (
	"context"
	"fmt"
	"time"

	"service_orders/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id uint) (*models.Payment, error)
	LockByID(ctx context.Context, id uint) (*models.Payment, error)
	GetByReference(ctx context.Context, refType models.ReferenceType, refID uint) ([]models.Payment, error)
	LockActiveByReference(ctx context.Context, refType models.ReferenceType, refID uint) ([]models.Payment, error)
	SumActive(ctx context.Context, refType models.ReferenceType, refID uint) (decimal.Decimal, error)
	// Cancel stores the cancellation fields of a payment that is still active.
	Cancel(ctx context.Context, payment *models.Payment) error
	AggregateByMethod(ctx context.Context) ([]models.MethodTotal, error)
	AggregateByDateRange(ctx context.Context, from, to time.Time) ([]models.DailyTotal, error)
}

type paymentRepository struct {
	db *gorm.DB
}

// Both aggregates skip cancelled payments and payments of cancelled documents.
const countedPayments = `
FROM payments p
LEFT JOIN orders o ON p.reference_type = 'service_order' AND o.id = p.reference_id
LEFT JOIN sales_orders so ON p.reference_type = 'sales_order' AND so.id = p.reference_id
WHERE p.status = 'active'
  AND COALESCE(o.status, so.status, '') <> 'cancelled'`

// utcDay buckets by UTC date whatever the session time zone is.
const utcDay = `DATE(p.created_at AT TIME ZONE 'UTC')`

func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, id).Error; err != nil {
		return nil, translate(err, "payment", id)
	}
	return &payment, nil
}

func (r *paymentRepository) LockByID(ctx context.Context, id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Clauses(forUpdate()).First(&payment, id).Error; err != nil {
		return nil, translate(err, "payment", id)
	}
	return &payment, nil
}

func (r *paymentRepository) GetByReference(ctx context.Context, refType models.ReferenceType, refID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", refType, refID).
		Order("created_at, id").
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list payments of %s %d: %w", refType, refID, err)
	}
	return payments, nil
}

func (r *paymentRepository) LockActiveByReference(ctx context.Context, refType models.ReferenceType, refID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).Clauses(forUpdate()).
		Where("reference_type = ? AND reference_id = ? AND status = ?", refType, refID, models.PaymentActive).
		Order("id").
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock payments of %s %d: %w", refType, refID, err)
	}
	return payments, nil
}

func (r *paymentRepository) SumActive(ctx context.Context, refType models.ReferenceType, refID uint) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.WithContext(ctx).Model(&models.Payment{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("reference_type = ? AND reference_id = ? AND status = ?", refType, refID, models.PaymentActive).
		Row().Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum payments of %s %d: %w", refType, refID, err)
	}
	return sum, nil
}

func (r *paymentRepository) Cancel(ctx context.Context, payment *models.Payment) error {
	res := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", payment.ID, models.PaymentActive).
		Updates(map[string]interface{}{
			"status":              payment.Status,
			"cancelled_at":        payment.CancelledAt,
			"cancelled_by":        payment.CancelledBy,
			"cancellation_reason": payment.CancellationReason,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to cancel payment %d: %w", payment.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return &models.ConcurrencyConflictError{Entity: "payment", ID: payment.ID}
	}
	return nil
}

func (r *paymentRepository) AggregateByMethod(ctx context.Context) ([]models.MethodTotal, error) {
	var rows []models.MethodTotal
	err := r.db.WithContext(ctx).Raw(`
SELECT p.payment_method AS payment_method, COUNT(*) AS count, COALESCE(SUM(p.amount), 0) AS total` +
		countedPayments + `
GROUP BY p.payment_method
ORDER BY p.payment_method`).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate payments by method: %w", err)
	}
	return rows, nil
}

// AggregateByDateRange groups by UTC calendar day, from and to both inclusive.
// Only the calendar dates of from and to are used.
func (r *paymentRepository) AggregateByDateRange(ctx context.Context, from, to time.Time) ([]models.DailyTotal, error) {
	var rows []models.DailyTotal
	start := models.DateIn(from, time.UTC)
	end := models.DateIn(to, time.UTC).AddDate(0, 0, 1)
	err := r.db.WithContext(ctx).Raw(`
SELECT TO_CHAR(`+utcDay+`, 'YYYY-MM-DD') AS day, COUNT(*) AS count, COALESCE(SUM(p.amount), 0) AS total`+
		countedPayments+`
  AND p.created_at >= ? AND p.created_at < ?
GROUP BY `+utcDay+`
ORDER BY `+utcDay, start, end).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate payments by day: %w", err)
	}
	return rows, nil
}
