package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"service_orders/internal/models"
	"service_orders/internal/services"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

type sentMessage struct {
	Phone   string
	Message string
}

type fakeSender struct {
	sent []sentMessage
	err  error
}

func (f *fakeSender) SendTextMessage(ctx context.Context, phone, message string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{Phone: phone, Message: message})
	return nil
}

type fakeCache struct {
	entries       map[string][]byte
	invalidations int
}

func newFakeCache() *fakeCache { return &fakeCache{entries: map[string][]byte{}} }

func (c *fakeCache) Get(ctx context.Context, name string, dest interface{}) (bool, error) {
	raw, ok := c.entries[name]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *fakeCache) Set(ctx context.Context, name string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[name] = raw
	return nil
}

func (c *fakeCache) Invalidate(ctx context.Context) error {
	c.invalidations++
	c.entries = map[string][]byte{}
	return nil
}

type fixture struct {
	ctx     context.Context
	store   *memStore
	cache   *fakeCache
	sender  *fakeSender
	tasks   services.TaskService
	orders  services.OrderService
	ledger  services.PaymentLedger
	stats   services.StatsService
	coord   services.Coordinator
	client  models.Client
	worker  models.Worker
	project models.WorkerProject
}

func newFixture(t *testing.T) *fixture { return newFixtureAt(t, testNow) }

// newFixtureAt builds a fixture whose services see now as the current time.
func newFixtureAt(t *testing.T, now time.Time) *fixture {
	t.Helper()
	ctx := context.Background()
	store := newMemStore()
	clock := services.WithClock(func() time.Time { return now })

	f := &fixture{
		ctx:    ctx,
		store:  store,
		cache:  newFakeCache(),
		sender: &fakeSender{},
		tasks:  services.NewTaskService(store, clock),
		orders: services.NewOrderService(store, clock),
		ledger: services.NewPaymentLedger(store, clock),
	}
	f.stats = services.NewStatsService(store, f.cache)
	f.coord = services.NewCoordinator(store, f.tasks, f.orders, f.ledger, f.stats,
		services.NewNotificationService(store.Clients(), f.sender))

	f.client = models.Client{Name: "Acme", Phone: "081100"}
	require.NoError(t, store.Clients().Create(ctx, &f.client))
	f.worker = models.Worker{Name: "Budi", IsActive: true}
	require.NoError(t, store.Workers().Create(ctx, &f.worker))
	f.project = models.WorkerProject{WorkerID: f.worker.ID, Name: "Wiring", FixedPrice: dec("150")}
	require.NoError(t, store.Workers().CreateProject(ctx, &f.project))
	return f
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// newOrder creates an order with a single service line costing total.
func (f *fixture) newOrder(t *testing.T, total string) *models.Order {
	t.Helper()
	order, err := f.orders.CreateOrder(f.ctx, services.CreateOrderInput{
		ClientID: f.client.ID,
		Services: []services.ServiceLineInput{{Name: "Service", Quantity: 1, UnitCost: dec(total)}},
	})
	require.NoError(t, err)
	return order
}

func (f *fixture) pay(t *testing.T, orderID uint, amount, method string) *services.PaymentResult {
	t.Helper()
	res, err := f.coord.RecordPayment(f.ctx, services.RecordPaymentInput{
		ReferenceType: models.ReferenceServiceOrder,
		ReferenceID:   orderID,
		Amount:        amount,
		PaymentMethod: method,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) order(t *testing.T, id uint) *models.Order {
	t.Helper()
	order, err := f.store.Orders().GetByID(f.ctx, id)
	require.NoError(t, err)
	return order
}

func (f *fixture) newTask(t *testing.T, orderID *uint) *models.Task {
	t.Helper()
	task, err := f.tasks.CreateTask(f.ctx, services.CreateTaskInput{
		WorkerID:  f.worker.ID,
		ProjectID: f.project.ID,
		DueDate:   testNow.AddDate(0, 0, 3),
		OrderID:   orderID,
	})
	require.NoError(t, err)
	return task
}

func requireErrorAs[T error](t *testing.T, err error) T {
	t.Helper()
	var target T
	require.Error(t, err)
	require.True(t, errors.As(err, &target), "expected %T, got %T: %v", target, err, err)
	return target
}
