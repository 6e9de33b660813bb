package services

import (
	"context"
	"strings"

	"service_orders/internal/models"
	"service_orders/internal/repository"

	"github.com/sirupsen/logrus"
)

// OrderCancellation is the outcome of cancelling a service order.
type OrderCancellation struct {
	Order             *models.Order    `json:"order"`
	CancelledTasks    []models.Task    `json:"cancelled_tasks"`
	CancelledPayments []models.Payment `json:"cancelled_payments"`
}

type SalesOrderCancellation struct {
	SalesOrder        *models.SalesOrder `json:"sales_order"`
	CancelledPayments []models.Payment   `json:"cancelled_payments"`
}

// Coordinator runs the operations that touch orders, tasks and payments together.
// Each operation is one transaction; statistics and notifications follow the commit.
type Coordinator interface {
	SetOrderStatus(ctx context.Context, orderID uint, status models.OrderStatus) (*models.Order, error)
	CancelOrder(ctx context.Context, orderID uint, reason string, cascadeToTasks bool, cancelledBy string) (*OrderCancellation, error)
	CancelSalesOrder(ctx context.Context, salesOrderID uint, reason, cancelledBy string) (*SalesOrderCancellation, error)
	RecordPayment(ctx context.Context, in RecordPaymentInput) (*PaymentResult, error)
	CancelPayment(ctx context.Context, paymentID uint, reason, cancelledBy string) (*PaymentResult, error)
	AuditOrder(ctx context.Context, orderID uint) (*models.BalanceAudit, error)
}

type coordinator struct {
	store    repository.Store
	tasks    TaskService
	orders   OrderService
	ledger   PaymentLedger
	stats    StatsService
	notifier NotificationService
}

func NewCoordinator(
	store repository.Store,
	tasks TaskService,
	orders OrderService,
	ledger PaymentLedger,
	stats StatsService,
	notifier NotificationService,
) Coordinator {
	return &coordinator{
		store:    store,
		tasks:    tasks,
		orders:   orders,
		ledger:   ledger,
		stats:    stats,
		notifier: notifier,
	}
}

func (c *coordinator) SetOrderStatus(ctx context.Context, orderID uint, status models.OrderStatus) (*models.Order, error) {
	before, err := c.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order, err := c.orders.SetOrderStatus(ctx, orderID, status)
	if err != nil {
		return nil, err
	}
	if status == models.OrderClosed && before.Status != models.OrderClosed {
		c.sideEffect("order closed", func() error { return c.notifier.OrderClosed(ctx, order) })
	}
	return order, nil
}

func (c *coordinator) CancelOrder(ctx context.Context, orderID uint, reason string, cascadeToTasks bool, cancelledBy string) (*OrderCancellation, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &models.MissingReasonError{Action: "cancel an order"}
	}

	const op = "cancel order"
	result := &OrderCancellation{}
	err := c.store.WithinTransaction(ctx, func(tx repository.Store) error {
		if err := step(op, "lock order", func() error {
			var err error
			result.Order, err = tx.Orders().LockByID(ctx, orderID)
			return err
		}); err != nil {
			return err
		}
		if err := step(op, "update order status", func() error {
			return c.orders.CancelOrderTx(ctx, tx, result.Order, reason)
		}); err != nil {
			return err
		}
		if cascadeToTasks {
			if err := step(op, "cancel tasks", func() error {
				var err error
				result.CancelledTasks, err = c.tasks.CancelOrderTasksTx(ctx, tx, orderID)
				return err
			}); err != nil {
				return err
			}
		}
		return step(op, "cancel payments", func() error {
			var err error
			result.CancelledPayments, err = c.ledger.VoidPaymentsTx(ctx, tx,
				models.ReferenceServiceOrder, orderID, "order cancelled: "+reason, cancelledBy)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"order_id":           orderID,
		"cancelled_tasks":    len(result.CancelledTasks),
		"cancelled_payments": len(result.CancelledPayments),
	}).Info("order cancelled")
	if len(result.CancelledPayments) > 0 {
		c.stats.Invalidate(ctx)
	}
	c.sideEffect("order cancelled", func() error { return c.notifier.OrderCancelled(ctx, result.Order) })
	return result, nil
}

func (c *coordinator) CancelSalesOrder(ctx context.Context, salesOrderID uint, reason, cancelledBy string) (*SalesOrderCancellation, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &models.MissingReasonError{Action: "cancel a sales order"}
	}

	const op = "cancel sales order"
	result := &SalesOrderCancellation{}
	err := c.store.WithinTransaction(ctx, func(tx repository.Store) error {
		if err := step(op, "lock sales order", func() error {
			var err error
			result.SalesOrder, err = tx.SalesOrders().LockByID(ctx, salesOrderID)
			return err
		}); err != nil {
			return err
		}
		if err := step(op, "update sales order status", func() error {
			return c.orders.CancelSalesOrderTx(ctx, tx, result.SalesOrder, reason)
		}); err != nil {
			return err
		}
		return step(op, "cancel payments", func() error {
			var err error
			result.CancelledPayments, err = c.ledger.VoidPaymentsTx(ctx, tx,
				models.ReferenceSalesOrder, salesOrderID, "sales order cancelled: "+reason, cancelledBy)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"sales_order_id":     salesOrderID,
		"cancelled_payments": len(result.CancelledPayments),
	}).Info("sales order cancelled")
	if len(result.CancelledPayments) > 0 {
		c.stats.Invalidate(ctx)
	}
	c.sideEffect("sales order cancelled", func() error { return c.notifier.SalesOrderCancelled(ctx, result.SalesOrder) })
	return result, nil
}

func (c *coordinator) RecordPayment(ctx context.Context, in RecordPaymentInput) (*PaymentResult, error) {
	var result *PaymentResult
	err := c.store.WithinTransaction(ctx, func(tx repository.Store) error {
		var err error
		result, err = c.ledger.RecordPaymentTx(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.stats.Invalidate(ctx)
	c.sideEffect("payment recorded", func() error { return c.notifier.PaymentRecorded(ctx, result) })
	return result, nil
}

func (c *coordinator) CancelPayment(ctx context.Context, paymentID uint, reason, cancelledBy string) (*PaymentResult, error) {
	var result *PaymentResult
	err := c.store.WithinTransaction(ctx, func(tx repository.Store) error {
		var err error
		result, err = c.ledger.CancelPaymentTx(ctx, tx, paymentID, reason, cancelledBy)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.stats.Invalidate(ctx)
	c.sideEffect("payment cancelled", func() error { return c.notifier.PaymentCancelled(ctx, result) })
	return result, nil
}

func (c *coordinator) AuditOrder(ctx context.Context, orderID uint) (*models.BalanceAudit, error) {
	order, err := c.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	paid, err := c.store.Payments().SumActive(ctx, models.ReferenceServiceOrder, orderID)
	if err != nil {
		return nil, err
	}

	audit := &models.BalanceAudit{
		ReferenceType: models.ReferenceServiceOrder,
		ReferenceID:   orderID,
		TotalAmount:   order.TotalAmount,
		ActivePaid:    paid,
		Stored:        order.OutstandingBalance,
		Expected:      order.TotalAmount.Sub(paid),
		Void:          order.PaymentStatus == models.PaymentVoid,
	}
	audit.Consistent = audit.Void || audit.Stored.Equal(audit.Expected)
	if !audit.Consistent {
		logrus.WithFields(logrus.Fields{
			"order_id": orderID,
			"stored":   audit.Stored.StringFixed(2),
			"expected": audit.Expected.StringFixed(2),
		}).Warn("order balance drift detected")
	}
	return audit, nil
}

// sideEffect runs a post-commit action whose failure must not fail the operation.
func (c *coordinator) sideEffect(name string, fn func() error) {
	if err := fn(); err != nil {
		logrus.WithError(err).WithField("event", name).Warn("post-commit side effect failed")
	}
}
