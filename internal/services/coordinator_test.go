package services_test

import (
	"errors"
	"testing"

	"service_orders/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelOrderCascade(t *testing.T) {
	f := newFixture(t)
	order := f.newOrder(t, "100")
	open := f.newTask(t, &order.ID)
	done := f.newTask(t, &order.ID)
	_, err := f.tasks.UpdateTaskStatus(f.ctx, done.ID, models.TaskCompleted, "")
	require.NoError(t, err)
	unrelated := f.newTask(t, nil)
	payment := f.pay(t, order.ID, "40", "cash")

	res, err := f.coord.CancelOrder(f.ctx, order.ID, "client cancelled", true, "ops")
	require.NoError(t, err)

	stored := f.order(t, order.ID)
	assert.Equal(t, models.OrderCancelled, stored.Status)
	assert.Equal(t, "client cancelled", stored.CancellationReason)
	require.NotNil(t, stored.CancelledAt)
	assert.Equal(t, testNow, *stored.CancelledAt)
	assert.Equal(t, models.PaymentVoid, stored.PaymentStatus)
	assert.True(t, dec("60").Equal(stored.OutstandingBalance), "balance is not restored")

	assert.Len(t, res.CancelledTasks, 2)
	for _, id := range []uint{open.ID, done.ID} {
		task, _ := f.tasks.GetTask(f.ctx, id)
		assert.Equal(t, models.TaskCancelled, task.Status)
	}
	other, _ := f.tasks.GetTask(f.ctx, unrelated.ID)
	assert.Equal(t, models.TaskPending, other.Status)

	p, _ := f.ledger.GetPayment(f.ctx, payment.Payment.ID)
	assert.Equal(t, models.PaymentCancelled, p.Status)
	assert.Equal(t, "ops", p.CancelledBy)
	assert.Contains(t, p.CancellationReason, "client cancelled")
}

func TestCancelOrderWithoutCascadeKeepsTasks(t *testing.T) {
	f := newFixture(t)
	order := f.newOrder(t, "100")
	task := f.newTask(t, &order.ID)

	res, err := f.coord.CancelOrder(f.ctx, order.ID, "merged", false, "")

	require.NoError(t, err)
	assert.Empty(t, res.CancelledTasks)
	stored, _ := f.tasks.GetTask(f.ctx, task.ID)
	assert.Equal(t, models.TaskPending, stored.Status)
}

func TestCancelOrderRules(t *testing.T) {
	f := newFixture(t)
	order := f.newOrder(t, "100")

	_, err := f.coord.CancelOrder(f.ctx, order.ID, "", true, "")
	requireErrorAs[*models.MissingReasonError](t, err)

	_, err = f.coord.CancelOrder(f.ctx, 5150, "gone", true, "")
	requireErrorAs[*models.NotFoundError](t, err)

	_, err = f.coord.CancelOrder(f.ctx, order.ID, "first", true, "")
	require.NoError(t, err)
	_, err = f.coord.CancelOrder(f.ctx, order.ID, "second", true, "")
	requireErrorAs[*models.InvalidTransitionError](t, err)
	assert.Equal(t, "first", f.order(t, order.ID).CancellationReason)
}

func TestCancelOrderRollsBackOnFailure(t *testing.T) {
	cases := map[string]string{
		"tasks.UpdateStatus":  "cancel tasks",
		"payments.Cancel":     "cancel payments",
		"orders.UpdateStatus": "update order status",
	}
	for op, failedStep := range cases {
		t.Run(op, func(t *testing.T) {
			f := newFixture(t)
			order := f.newOrder(t, "100")
			task := f.newTask(t, &order.ID)
			payment := f.pay(t, order.ID, "40", "cash")
			f.store.fail[op] = errors.New("storage unavailable")

			_, err := f.coord.CancelOrder(f.ctx, order.ID, "client cancelled", true, "ops")

			e := requireErrorAs[*models.ReconciliationError](t, err)
			assert.Equal(t, failedStep, e.Step)
			assert.EqualError(t, errors.Unwrap(err), "storage unavailable")

			stored := f.order(t, order.ID)
			assert.Equal(t, models.OrderPending, stored.Status)
			assert.Equal(t, models.PaymentPartiallyPaid, stored.PaymentStatus)
			storedTask, _ := f.tasks.GetTask(f.ctx, task.ID)
			assert.Equal(t, models.TaskPending, storedTask.Status)
			p, _ := f.ledger.GetPayment(f.ctx, payment.Payment.ID)
			assert.Equal(t, models.PaymentActive, p.Status)
			assert.Empty(t, f.sender.sent[1:], "no notification after a rollback")
		})
	}
}

func TestNotificationsFollowCommit(t *testing.T) {
	f := newFixture(t)
	order := f.newOrder(t, "100")

	f.pay(t, order.ID, "100", "cash")
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "081100", f.sender.sent[0].Phone)
	assert.Contains(t, f.sender.sent[0].Message, "100.00")

	_, err := f.coord.SetOrderStatus(f.ctx, order.ID, models.OrderClosed)
	require.NoError(t, err)
	require.Len(t, f.sender.sent, 2)
	assert.Contains(t, f.sender.sent[1].Message, order.OrderNumber)

	// Closing an already closed order is a no-op and sends nothing.
	_, err = f.coord.SetOrderStatus(f.ctx, order.ID, models.OrderClosed)
	require.NoError(t, err)
	assert.Len(t, f.sender.sent, 2)
}

func TestNotificationFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	order := f.newOrder(t, "100")
	f.sender.err = errors.New("gateway down")

	res := f.pay(t, order.ID, "10", "cash")

	assert.Equal(t, models.PaymentActive, res.Payment.Status)
	assert.True(t, dec("90").Equal(f.order(t, order.ID).OutstandingBalance))
}

func TestAuditOrder(t *testing.T) {
	f := newFixture(t)
	order := f.newOrder(t, "100")
	f.pay(t, order.ID, "30", "cash")

	audit, err := f.coord.AuditOrder(f.ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, audit.Consistent)
	assert.True(t, dec("30").Equal(audit.ActivePaid))
	assert.True(t, dec("70").Equal(audit.Expected))

	row := f.store.data.orders[order.ID]
	row.OutstandingBalance = dec("75")
	f.store.data.orders[order.ID] = row

	audit, err = f.coord.AuditOrder(f.ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, audit.Consistent)
	assert.True(t, dec("75").Equal(audit.Stored))

	_, err = f.coord.CancelOrder(f.ctx, order.ID, "void it", false, "")
	require.NoError(t, err)
	audit, err = f.coord.AuditOrder(f.ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, audit.Void)
	assert.True(t, audit.Consistent)
}
