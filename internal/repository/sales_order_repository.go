package repository

import (
	"context"
	"fmt"
	"time"

	"service_orders/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SalesOrderRepository interface {
	Create(ctx context.Context, order *models.SalesOrder) error
	GetByID(ctx context.Context, id uint) (*models.SalesOrder, error)
	LockByID(ctx context.Context, id uint) (*models.SalesOrder, error)
	UpdateStatus(ctx context.Context, order *models.SalesOrder) error
	UpdateBalance(ctx context.Context, order *models.SalesOrder, expected decimal.Decimal) error
}

type salesOrderRepository struct {
	db *gorm.DB
}

func (r *salesOrderRepository) Create(ctx context.Context, order *models.SalesOrder) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("failed to create sales order: %w", err)
	}
	return nil
}

func (r *salesOrderRepository) GetByID(ctx context.Context, id uint) (*models.SalesOrder, error) {
	var order models.SalesOrder
	if err := r.db.WithContext(ctx).First(&order, id).Error; err != nil {
		return nil, translate(err, "sales order", id)
	}
	return &order, nil
}

func (r *salesOrderRepository) LockByID(ctx context.Context, id uint) (*models.SalesOrder, error) {
	var order models.SalesOrder
	if err := r.db.WithContext(ctx).Clauses(forUpdate()).First(&order, id).Error; err != nil {
		return nil, translate(err, "sales order", id)
	}
	return &order, nil
}

func (r *salesOrderRepository) UpdateStatus(ctx context.Context, order *models.SalesOrder) error {
	order.UpdatedAt = time.Now()
	err := r.db.WithContext(ctx).Model(&models.SalesOrder{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
		"status":              order.Status,
		"payment_status":      order.PaymentStatus,
		"cancellation_reason": order.CancellationReason,
		"cancelled_at":        order.CancelledAt,
		"updated_at":          order.UpdatedAt,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update sales order %d status: %w", order.ID, err)
	}
	return nil
}

func (r *salesOrderRepository) UpdateBalance(ctx context.Context, order *models.SalesOrder, expected decimal.Decimal) error {
	return writeBalance(ctx, r.db, &models.SalesOrder{}, "sales order", order.ID, order.Balance, expected)
}
