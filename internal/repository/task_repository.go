package repository

import (
	"context"
	"fmt"
	"time"

	"service_orders/internal/models"

	"gorm.io/gorm"
)

type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id uint) (*models.Task, error)
	LockByID(ctx context.Context, id uint) (*models.Task, error)
	GetByOrderID(ctx context.Context, orderID uint) ([]models.Task, error)
	// LockByOrderID reads every task linked to the order under a row lock.
	LockByOrderID(ctx context.Context, orderID uint) ([]models.Task, error)
	GetByWorkerID(ctx context.Context, workerID uint) ([]models.Task, error)
	UpdateStatus(ctx context.Context, task *models.Task) error
}

type taskRepository struct {
	db *gorm.DB
}

func (r *taskRepository) Create(ctx context.Context, task *models.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

func (r *taskRepository) GetByID(ctx context.Context, id uint) (*models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).First(&task, id).Error; err != nil {
		return nil, translate(err, "task", id)
	}
	return &task, nil
}

func (r *taskRepository) LockByID(ctx context.Context, id uint) (*models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).Clauses(forUpdate()).First(&task, id).Error; err != nil {
		return nil, translate(err, "task", id)
	}
	return &task, nil
}

func (r *taskRepository) GetByOrderID(ctx context.Context, orderID uint) ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id").Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks of order %d: %w", orderID, err)
	}
	return tasks, nil
}

func (r *taskRepository) LockByOrderID(ctx context.Context, orderID uint) ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.WithContext(ctx).Clauses(forUpdate()).Where("order_id = ?", orderID).Order("id").Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock tasks of order %d: %w", orderID, err)
	}
	return tasks, nil
}

func (r *taskRepository) GetByWorkerID(ctx context.Context, workerID uint) ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.WithContext(ctx).Where("worker_id = ?", workerID).Order("due_date, id").Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks of worker %d: %w", workerID, err)
	}
	return tasks, nil
}

func (r *taskRepository) UpdateStatus(ctx context.Context, task *models.Task) error {
	task.UpdatedAt = time.Now()
	err := r.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", task.ID).Updates(map[string]interface{}{
		"status":            task.Status,
		"delay_reason":      task.DelayReason,
		"completed_at":      task.CompletedAt,
		"status_changed_at": task.StatusChangedAt,
		"updated_at":        task.UpdatedAt,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update task %d: %w", task.ID, err)
	}
	return nil
}
