package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"service_orders/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uint) (*models.Order, error)
	// LockByID reads the order row under a row lock. Associations are not loaded.
	LockByID(ctx context.Context, id uint) (*models.Order, error)
	UpdateStatus(ctx context.Context, order *models.Order) error
	// UpdateBalance writes the balance fields if outstanding_balance still equals expected.
	UpdateBalance(ctx context.Context, order *models.Order, expected decimal.Decimal) error
	ReplaceServiceLines(ctx context.Context, orderID uint, lines []models.OrderServiceLine) error
	AddWorkers(ctx context.Context, workers []models.OrderWorker) error
	ListWorkers(ctx context.Context, orderID uint) ([]models.OrderWorker, error)
}

type orderRepository struct {
	db *gorm.DB
}

func (r *orderRepository) Create(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Services").
		Preload("Workers").
		Preload("CustomFields").
		First(&order, id).Error
	if err != nil {
		return nil, translate(err, "order", id)
	}
	return &order, nil
}

func (r *orderRepository) LockByID(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Clauses(forUpdate()).First(&order, id).Error; err != nil {
		return nil, translate(err, "order", id)
	}
	return &order, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, order *models.Order) error {
	order.UpdatedAt = time.Now()
	err := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
		"status":              order.Status,
		"payment_status":      order.PaymentStatus,
		"cancellation_reason": order.CancellationReason,
		"cancelled_at":        order.CancelledAt,
		"updated_at":          order.UpdatedAt,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update order %d status: %w", order.ID, err)
	}
	return nil
}

func (r *orderRepository) UpdateBalance(ctx context.Context, order *models.Order, expected decimal.Decimal) error {
	return writeBalance(ctx, r.db, &models.Order{}, "order", order.ID, order.Balance, expected)
}

func (r *orderRepository) ReplaceServiceLines(ctx context.Context, orderID uint, lines []models.OrderServiceLine) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("order_id = ?", orderID).Delete(&models.OrderServiceLine{}).Error; err != nil {
		return fmt.Errorf("failed to remove service lines of order %d: %w", orderID, err)
	}
	if len(lines) == 0 {
		return nil
	}
	for i := range lines {
		lines[i].OrderID = orderID
	}
	if err := db.Create(&lines).Error; err != nil {
		return fmt.Errorf("failed to insert service lines of order %d: %w", orderID, err)
	}
	return nil
}

func (r *orderRepository) AddWorkers(ctx context.Context, workers []models.OrderWorker) error {
	err := r.db.WithContext(ctx).Create(&workers).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return models.NewValidationError("workers", "worker already assigned to this order")
	}
	if err != nil {
		return fmt.Errorf("failed to assign workers: %w", err)
	}
	return nil
}

func (r *orderRepository) ListWorkers(ctx context.Context, orderID uint) ([]models.OrderWorker, error) {
	var workers []models.OrderWorker
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id").Find(&workers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list workers of order %d: %w", orderID, err)
	}
	return workers, nil
}
