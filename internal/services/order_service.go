package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"service_orders/internal/models"
	"service_orders/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type ServiceLineInput struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

type CustomFieldInput struct {
	FieldName  string `json:"field_name"`
	FieldValue string `json:"field_value"`
}

type CreateOrderInput struct {
	ClientID     uint               `json:"client_id"`
	Description  string             `json:"description"`
	DueDate      *time.Time         `json:"due_date"`
	Services     []ServiceLineInput `json:"services"`
	CustomFields []CustomFieldInput `json:"custom_fields"`
}

type WorkerAssignment struct {
	WorkerID        uint       `json:"worker_id"`
	ProjectID       uint       `json:"project_id"`
	TaskDescription string     `json:"task_description"`
	StartDate       *time.Time `json:"start_date"`
	EndDate         *time.Time `json:"end_date"`
}

type CreateSalesOrderInput struct {
	ClientID    uint            `json:"client_id"`
	Description string          `json:"description"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type OrderService interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, id uint) (*models.Order, error)
	SetOrderStatus(ctx context.Context, id uint, status models.OrderStatus) (*models.Order, error)
	AddWorkersToOrder(ctx context.Context, id uint, assignments []WorkerAssignment) ([]models.OrderWorker, error)
	UpdateServiceLines(ctx context.Context, id uint, lines []ServiceLineInput) (*models.Order, error)

	CreateSalesOrder(ctx context.Context, in CreateSalesOrderInput) (*models.SalesOrder, error)
	GetSalesOrder(ctx context.Context, id uint) (*models.SalesOrder, error)

	// CancelOrderTx cancels an order the caller has already locked inside tx.
	CancelOrderTx(ctx context.Context, tx repository.Store, order *models.Order, reason string) error
	CancelSalesOrderTx(ctx context.Context, tx repository.Store, order *models.SalesOrder, reason string) error
}

type orderService struct {
	store repository.Store
	now   func() time.Time
}

func NewOrderService(store repository.Store, opts ...Option) OrderService {
	o := newOptions(opts)
	return &orderService{store: store, now: o.now}
}

func newOrderNumber(prefix string) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return prefix + strings.ToUpper(id[:8])
}

func buildServiceLines(in []ServiceLineInput) ([]models.OrderServiceLine, error) {
	lines := make([]models.OrderServiceLine, 0, len(in))
	for i, l := range in {
		name := strings.TrimSpace(l.Name)
		field := fmt.Sprintf("services[%d]", i)
		if name == "" {
			return nil, models.NewValidationError(field, "name is required")
		}
		if l.Quantity <= 0 {
			return nil, models.NewValidationError(field, "quantity must be greater than zero")
		}
		if l.UnitCost.IsNegative() {
			return nil, models.NewValidationError(field, "unit cost must not be negative")
		}
		if !l.UnitCost.Equal(l.UnitCost.Round(models.CurrencyPlaces)) {
			return nil, &models.InvalidAmountError{Amount: l.UnitCost.String(), Reason: "more than two decimal places"}
		}
		lines = append(lines, models.OrderServiceLine{
			Name:     name,
			Quantity: l.Quantity,
			UnitCost: l.UnitCost,
			Cost:     l.UnitCost.Mul(decimal.NewFromInt(int64(l.Quantity))),
		})
	}
	return lines, nil
}

func (s *orderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	if in.ClientID == 0 {
		return nil, models.NewValidationError("client_id", "is required")
	}
	lines, err := buildServiceLines(in.Services)
	if err != nil {
		return nil, err
	}
	fields := make([]models.OrderCustomField, 0, len(in.CustomFields))
	for i, f := range in.CustomFields {
		if strings.TrimSpace(f.FieldName) == "" {
			return nil, models.NewValidationError(fmt.Sprintf("custom_fields[%d]", i), "field name is required")
		}
		fields = append(fields, models.OrderCustomField{FieldName: strings.TrimSpace(f.FieldName), FieldValue: f.FieldValue})
	}

	order := &models.Order{
		OrderNumber:  newOrderNumber("SO-"),
		ClientID:     in.ClientID,
		Description:  in.Description,
		DueDate:      in.DueDate,
		Status:       models.OrderPending,
		Balance:      models.NewBalance(models.ServiceTotal(lines)),
		Services:     lines,
		CustomFields: fields,
	}

	err = s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		if _, err := tx.Clients().GetByID(ctx, in.ClientID); err != nil {
			return err
		}
		return tx.Orders().Create(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"total":        order.TotalAmount.StringFixed(2),
	}).Info("order created")
	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	return s.store.Orders().GetByID(ctx, id)
}

func (s *orderService) SetOrderStatus(ctx context.Context, id uint, status models.OrderStatus) (*models.Order, error) {
	var order *models.Order
	err := s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		var err error
		order, err = tx.Orders().LockByID(ctx, id)
		if err != nil {
			return err
		}
		if order.Status == status {
			return nil
		}
		if err := order.CheckStatusChange(status); err != nil {
			return err
		}
		from := order.Status
		order.Status = status
		if err := tx.Orders().UpdateStatus(ctx, order); err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{"order_id": id, "from": from, "to": status}).Info("order status changed")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *orderService) AddWorkersToOrder(ctx context.Context, id uint, assignments []WorkerAssignment) ([]models.OrderWorker, error) {
	if len(assignments) == 0 {
		return nil, models.NewValidationError("workers", "at least one worker is required")
	}
	seen := make(map[uint]bool, len(assignments))
	for _, a := range assignments {
		if a.WorkerID == 0 || a.ProjectID == 0 {
			return nil, models.NewValidationError("workers", "worker_id and project_id are required")
		}
		if seen[a.WorkerID] {
			return nil, models.NewValidationError("workers", "worker %d appears more than once", a.WorkerID)
		}
		if a.StartDate != nil && a.EndDate != nil && a.EndDate.Before(*a.StartDate) {
			return nil, models.NewValidationError("workers", "end date of worker %d is before its start date", a.WorkerID)
		}
		seen[a.WorkerID] = true
	}

	var rows []models.OrderWorker
	err := s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		order, err := tx.Orders().LockByID(ctx, id)
		if err != nil {
			return err
		}
		if !order.Status.IsOpen() {
			return models.NewValidationError("order", "cannot assign workers to a %s order", order.Status)
		}
		existing, err := tx.Orders().ListWorkers(ctx, id)
		if err != nil {
			return err
		}
		for _, w := range existing {
			if seen[w.WorkerID] {
				return models.NewValidationError("workers", "worker %d is already assigned to order %d", w.WorkerID, id)
			}
		}
		for _, a := range assignments {
			if _, err := tx.Workers().GetByID(ctx, a.WorkerID); err != nil {
				return err
			}
			project, err := tx.Workers().GetProject(ctx, a.ProjectID)
			if err != nil {
				return err
			}
			if project.WorkerID != a.WorkerID {
				return models.NewValidationError("workers", "project %d does not belong to worker %d", a.ProjectID, a.WorkerID)
			}
			rows = append(rows, models.OrderWorker{
				OrderID:         id,
				WorkerID:        a.WorkerID,
				ProjectID:       a.ProjectID,
				Status:          models.WorkerAssigned,
				TaskDescription: a.TaskDescription,
				StartDate:       a.StartDate,
				EndDate:         a.EndDate,
			})
		}
		return tx.Orders().AddWorkers(ctx, rows)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"order_id": id, "workers": len(rows)}).Info("workers assigned")
	return rows, nil
}

func (s *orderService) UpdateServiceLines(ctx context.Context, id uint, in []ServiceLineInput) (*models.Order, error) {
	lines, err := buildServiceLines(in)
	if err != nil {
		return nil, err
	}

	err = s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		order, err := tx.Orders().LockByID(ctx, id)
		if err != nil {
			return err
		}
		if !order.Status.IsOpen() {
			return models.NewValidationError("services", "cannot change services of a %s order", order.Status)
		}
		paid, err := tx.Payments().SumActive(ctx, models.ReferenceServiceOrder, id)
		if err != nil {
			return err
		}
		expected := order.OutstandingBalance
		if err := order.Balance.Rebase(models.ServiceTotal(lines), paid); err != nil {
			return err
		}
		if err := tx.Orders().ReplaceServiceLines(ctx, id, lines); err != nil {
			return err
		}
		return tx.Orders().UpdateBalance(ctx, order, expected)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"order_id": id, "lines": len(lines)}).Info("service lines replaced")
	return s.store.Orders().GetByID(ctx, id)
}

func (s *orderService) CreateSalesOrder(ctx context.Context, in CreateSalesOrderInput) (*models.SalesOrder, error) {
	if in.ClientID == 0 {
		return nil, models.NewValidationError("client_id", "is required")
	}
	if in.TotalAmount.IsNegative() {
		return nil, models.NewValidationError("total_amount", "must not be negative")
	}
	if !in.TotalAmount.Equal(in.TotalAmount.Round(models.CurrencyPlaces)) {
		return nil, &models.InvalidAmountError{Amount: in.TotalAmount.String(), Reason: "more than two decimal places"}
	}

	order := &models.SalesOrder{
		OrderNumber: newOrderNumber("SL-"),
		ClientID:    in.ClientID,
		Description: in.Description,
		Status:      models.SalesPending,
		Balance:     models.NewBalance(in.TotalAmount),
	}
	err := s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		if _, err := tx.Clients().GetByID(ctx, in.ClientID); err != nil {
			return err
		}
		return tx.SalesOrders().Create(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"sales_order_id": order.ID, "order_number": order.OrderNumber}).Info("sales order created")
	return order, nil
}

func (s *orderService) GetSalesOrder(ctx context.Context, id uint) (*models.SalesOrder, error) {
	return s.store.SalesOrders().GetByID(ctx, id)
}

func (s *orderService) CancelOrderTx(ctx context.Context, tx repository.Store, order *models.Order, reason string) error {
	if err := order.Cancel(strings.TrimSpace(reason), s.now()); err != nil {
		return err
	}
	return tx.Orders().UpdateStatus(ctx, order)
}

func (s *orderService) CancelSalesOrderTx(ctx context.Context, tx repository.Store, order *models.SalesOrder, reason string) error {
	if err := order.Cancel(strings.TrimSpace(reason), s.now()); err != nil {
		return err
	}
	return tx.SalesOrders().UpdateStatus(ctx, order)
}
