package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"service_orders/internal/models"
	"service_orders/internal/repository"

	"github.com/sirupsen/logrus"
)

type CreateTaskInput struct {
	WorkerID    uint      `json:"worker_id"`
	ProjectID   uint      `json:"project_id"`
	DueDate     time.Time `json:"due_date"`
	Description string    `json:"description"`
	DelayReason string    `json:"delay_reason"`
	OrderID     *uint     `json:"order_id"`
}

type TaskService interface {
	CreateTask(ctx context.Context, in CreateTaskInput) (*models.Task, error)
	GetTask(ctx context.Context, id uint) (*models.Task, error)
	ListTasksByOrder(ctx context.Context, orderID uint) ([]models.Task, error)
	ListTasksByWorker(ctx context.Context, workerID uint) ([]models.Task, error)
	UpdateTaskStatus(ctx context.Context, id uint, status models.TaskStatus, delayReason string) (*models.Task, error)
	CancelTask(ctx context.Context, id uint) (*models.Task, error)

	// CancelOrderTasksTx cancels every task of the order that is not cancelled yet.
	CancelOrderTasksTx(ctx context.Context, tx repository.Store, orderID uint) ([]models.Task, error)
}

type taskService struct {
	store repository.Store
	now   func() time.Time
}

func NewTaskService(store repository.Store, opts ...Option) TaskService {
	o := newOptions(opts)
	return &taskService{store: store, now: o.now}
}

func (s *taskService) CreateTask(ctx context.Context, in CreateTaskInput) (*models.Task, error) {
	if in.WorkerID == 0 {
		return nil, models.NewValidationError("worker_id", "is required")
	}
	if in.ProjectID == 0 {
		return nil, models.NewValidationError("project_id", "is required")
	}
	if in.DueDate.IsZero() {
		return nil, models.NewValidationError("due_date", "is required")
	}

	now := s.now()
	due := models.DateIn(in.DueDate, now.Location())
	reason := strings.TrimSpace(in.DelayReason)
	task := &models.Task{
		WorkerID:        in.WorkerID,
		ProjectID:       in.ProjectID,
		OrderID:         in.OrderID,
		DueDate:         due,
		Description:     in.Description,
		Status:          models.TaskPending,
		StatusChangedAt: now,
	}
	if due.Before(models.StartOfDay(now)) {
		if reason == "" {
			return nil, models.NewValidationError("delay_reason", "required when the due date is in the past")
		}
		task.Status = models.TaskDelayed
		task.DelayReason = reason
	}

	err := s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		if _, err := tx.Workers().GetByID(ctx, in.WorkerID); err != nil {
			return err
		}
		project, err := tx.Workers().GetProject(ctx, in.ProjectID)
		if err != nil {
			return err
		}
		if project.WorkerID != in.WorkerID {
			return models.NewValidationError("project_id", "project %d does not belong to worker %d", project.ID, in.WorkerID)
		}
		task.Amount = project.FixedPrice

		if in.OrderID != nil {
			// Locked so a concurrent cancellation cannot miss this task.
			order, err := tx.Orders().LockByID(ctx, *in.OrderID)
			if err != nil {
				return err
			}
			if !order.Status.IsOpen() {
				return models.NewValidationError("order_id", "order %d is %s", order.ID, order.Status)
			}
		}
		return tx.Tasks().Create(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"task_id": task.ID, "worker_id": task.WorkerID, "status": task.Status}).Info("task created")
	return task, nil
}

func (s *taskService) GetTask(ctx context.Context, id uint) (*models.Task, error) {
	return s.store.Tasks().GetByID(ctx, id)
}

func (s *taskService) ListTasksByOrder(ctx context.Context, orderID uint) ([]models.Task, error) {
	if _, err := s.store.Orders().GetByID(ctx, orderID); err != nil {
		return nil, err
	}
	return s.store.Tasks().GetByOrderID(ctx, orderID)
}

func (s *taskService) ListTasksByWorker(ctx context.Context, workerID uint) ([]models.Task, error) {
	return s.store.Tasks().GetByWorkerID(ctx, workerID)
}

func (s *taskService) UpdateTaskStatus(ctx context.Context, id uint, status models.TaskStatus, delayReason string) (*models.Task, error) {
	var task *models.Task
	err := s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		var err error
		task, err = tx.Tasks().LockByID(ctx, id)
		if err != nil {
			return err
		}
		from := task.Status
		if err := task.Transition(status, delayReason, s.now()); err != nil {
			return err
		}
		if err := tx.Tasks().UpdateStatus(ctx, task); err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{"task_id": id, "from": from, "to": task.Status}).Info("task status changed")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *taskService) CancelTask(ctx context.Context, id uint) (*models.Task, error) {
	task, err := s.store.Tasks().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status == models.TaskCancelled {
		return task, nil
	}
	task, err = s.UpdateTaskStatus(ctx, id, models.TaskCancelled, "")
	if err != nil {
		var transition *models.InvalidTransitionError
		// Lost a race with another cancellation.
		if errors.As(err, &transition) && transition.From == string(models.TaskCancelled) {
			return s.store.Tasks().GetByID(ctx, id)
		}
		return nil, err
	}
	return task, nil
}

func (s *taskService) CancelOrderTasksTx(ctx context.Context, tx repository.Store, orderID uint) ([]models.Task, error) {
	tasks, err := tx.Tasks().LockByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var cancelled []models.Task
	for i := range tasks {
		task := &tasks[i]
		if task.Status == models.TaskCancelled {
			continue
		}
		if err := task.Transition(models.TaskCancelled, "", now); err != nil {
			return nil, err
		}
		if err := tx.Tasks().UpdateStatus(ctx, task); err != nil {
			return nil, err
		}
		cancelled = append(cancelled, *task)
	}
	return cancelled, nil
}
