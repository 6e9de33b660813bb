package services_test

import (
	"context"
	"sort"
	"time"

	"service_orders/internal/models"
	"service_orders/internal/repository"

	"github.com/shopspring/decimal"
)

// memData is the full state of the fake store. clone gives a rollback snapshot.
type memData struct {
	nextID       uint
	clients      map[uint]models.Client
	workers      map[uint]models.Worker
	projects     map[uint]models.WorkerProject
	orders       map[uint]models.Order
	lines        map[uint]models.OrderServiceLine
	fields       map[uint]models.OrderCustomField
	orderWorkers map[uint]models.OrderWorker
	sales        map[uint]models.SalesOrder
	tasks        map[uint]models.Task
	payments     map[uint]models.Payment
}

func newMemData() *memData {
	return &memData{
		clients:      map[uint]models.Client{},
		workers:      map[uint]models.Worker{},
		projects:     map[uint]models.WorkerProject{},
		orders:       map[uint]models.Order{},
		lines:        map[uint]models.OrderServiceLine{},
		fields:       map[uint]models.OrderCustomField{},
		orderWorkers: map[uint]models.OrderWorker{},
		sales:        map[uint]models.SalesOrder{},
		tasks:        map[uint]models.Task{},
		payments:     map[uint]models.Payment{},
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d *memData) clone() *memData {
	return &memData{
		nextID:       d.nextID,
		clients:      copyMap(d.clients),
		workers:      copyMap(d.workers),
		projects:     copyMap(d.projects),
		orders:       copyMap(d.orders),
		lines:        copyMap(d.lines),
		fields:       copyMap(d.fields),
		orderWorkers: copyMap(d.orderWorkers),
		sales:        copyMap(d.sales),
		tasks:        copyMap(d.tasks),
		payments:     copyMap(d.payments),
	}
}

func (d *memData) id() uint {
	d.nextID++
	return d.nextID
}

// memStore is a transactional in-memory repository.Store.
// fail injects an error into the named operation; before runs just ahead of it.
type memStore struct {
	data   *memData
	fail   map[string]error
	before map[string]func(d *memData)
}

func newMemStore() *memStore {
	return &memStore{data: newMemData(), fail: map[string]error{}, before: map[string]func(*memData){}}
}

func (s *memStore) enter(op string) error {
	if hook, ok := s.before[op]; ok {
		hook(s.data)
	}
	return s.fail[op]
}

func (s *memStore) Clients() repository.ClientRepository         { return memClients{s} }
func (s *memStore) Workers() repository.WorkerRepository         { return memWorkers{s} }
func (s *memStore) Orders() repository.OrderRepository           { return memOrders{s} }
func (s *memStore) SalesOrders() repository.SalesOrderRepository { return memSales{s} }
func (s *memStore) Tasks() repository.TaskRepository             { return memTasks{s} }
func (s *memStore) Payments() repository.PaymentRepository       { return memPayments{s} }

func (s *memStore) WithinTransaction(ctx context.Context, fn func(tx repository.Store) error) error {
	snapshot := s.data.clone()
	if err := fn(s); err != nil {
		*s.data = *snapshot
		return err
	}
	return nil
}

type memClients struct{ s *memStore }

func (r memClients) Create(ctx context.Context, c *models.Client) error {
	if err := r.s.enter("clients.Create"); err != nil {
		return err
	}
	c.ID = r.s.data.id()
	r.s.data.clients[c.ID] = *c
	return nil
}

func (r memClients) GetByID(ctx context.Context, id uint) (*models.Client, error) {
	c, ok := r.s.data.clients[id]
	if !ok {
		return nil, &models.NotFoundError{Entity: "client", ID: id}
	}
	return &c, nil
}

type memWorkers struct{ s *memStore }

func (r memWorkers) Create(ctx context.Context, w *models.Worker) error {
	w.ID = r.s.data.id()
	r.s.data.workers[w.ID] = *w
	return nil
}

func (r memWorkers) GetByID(ctx context.Context, id uint) (*models.Worker, error) {
	w, ok := r.s.data.workers[id]
	if !ok {
		return nil, &models.NotFoundError{Entity: "worker", ID: id}
	}
	return &w, nil
}

func (r memWorkers) CreateProject(ctx context.Context, p *models.WorkerProject) error {
	p.ID = r.s.data.id()
	r.s.data.projects[p.ID] = *p
	return nil
}

func (r memWorkers) GetProject(ctx context.Context, id uint) (*models.WorkerProject, error) {
	p, ok := r.s.data.projects[id]
	if !ok {
		return nil, &models.NotFoundError{Entity: "project", ID: id}
	}
	return &p, nil
}

type memOrders struct{ s *memStore }

func (r memOrders) Create(ctx context.Context, o *models.Order) error {
	if err := r.s.enter("orders.Create"); err != nil {
		return err
	}
	d := r.s.data
	o.ID = d.id()
	o.CreatedAt, o.UpdatedAt = time.Now(), time.Now()
	for i := range o.Services {
		o.Services[i].ID, o.Services[i].OrderID = d.id(), o.ID
		d.lines[o.Services[i].ID] = o.Services[i]
	}
	for i := range o.CustomFields {
		o.CustomFields[i].ID, o.CustomFields[i].OrderID = d.id(), o.ID
		d.fields[o.CustomFields[i].ID] = o.CustomFields[i]
	}
	row := *o
	row.Services, row.Workers, row.CustomFields = nil, nil, nil
	d.orders[o.ID] = row
	return nil
}

func (r memOrders) GetByID(ctx context.Context, id uint) (*models.Order, error) {
	o, ok := r.s.data.orders[id]
	if !ok {
		return nil, &models.NotFoundError{Entity: "order", ID: id}
	}
	for _, lid := range sortedKeys(r.s.data.lines) {
		if l := r.s.data.lines[lid]; l.OrderID == o.ID {
			o.Services = append(o.Services, l)
		}
	}
	for _, fid := range sortedKeys(r.s.data.fields) {
		if f := r.s.data.fields[fid]; f.OrderID == o.ID {
			o.CustomFields = append(o.CustomFields, f)
		}
	}
	o.Workers, _ = r.ListWorkers(ctx, o.ID)
	return &o, nil
}

func (r memOrders) LockByID(ctx context.Context, id uint) (*models.Order, error) {
	if err := r.s.enter("orders.LockByID"); err != nil {
		return nil, err
	}
	o, ok := r.s.data.orders[id]
	if !ok {
		return nil, &models.NotFoundError{Entity: "order", ID: id}
	}
	return &o, nil
}

func (r memOrders) UpdateStatus(ctx context.Context, o *models.Order) error {
	if err := r.s.enter("orders.UpdateStatus"); err != nil {
		return err
	}
	row := r.s.data.orders[o.ID]
	row.Status, row.PaymentStatus = o.Status, o.PaymentStatus
	row.CancellationReason, row.CancelledAt = o.CancellationReason, o.CancelledAt
	r.s.data.orders[o.ID] = row
	return nil
}

func (r memOrders) UpdateBalance(ctx context.Context, o *models.Order, expected decimal.Decimal) error {
	if err := r.s.enter("orders.UpdateBalance"); err != nil {
		return err
	}
	row := r.s.data.orders[o.ID]
	if !row.OutstandingBalance.Equal(expected) {
		return &models.ConcurrencyConflictError{Entity: "order", ID: o.ID}
	}
	row.Balance = o.Balance
	r.s.data.orders[o.ID] = row
	return nil
}

func (r memOrders) ReplaceServiceLines(ctx context.Context, orderID uint, lines []models.OrderServiceLine) error {
	d := r.s.data
	for id, l := range d.lines {
		if l.OrderID == orderID {
			delete(d.lines, id)
		}
	}
	for i := range lines {
		lines[i].ID, lines[i].OrderID = d.id(), orderID
		d.lines[lines[i].ID] = lines[i]
	}
	return nil
}

func (r memOrders) AddWorkers(ctx context.Context, workers []models.OrderWorker) error {
	for _, w := range workers {
		for _, existing := range r.s.data.orderWorkers {
			if existing.OrderID == w.OrderID && existing.WorkerID == w.WorkerID {
				return models.NewValidationError("workers", "worker already assigned to this order")
			}
		}
	}
	for i := range workers {
		workers[i].ID = r.s.data.id()
		r.s.data.orderWorkers[workers[i].ID] = workers[i]
	}
	return nil
}

func (r memOrders) ListWorkers(ctx context.Context, orderID uint) ([]models.OrderWorker, error) {
	var out []models.OrderWorker
	for _, id := range sortedKeys(r.s.data.orderWorkers) {
		if w := r.s.data.orderWorkers[id]; w.OrderID == orderID {
			out = append(out, w)
		}
	}
	return out, nil
}

type memSales struct{ s *memStore }

func (r memSales) Create(ctx context.Context, o *models.SalesOrder) error {
	o.ID = r.s.data.id()
	r.s.data.sales[o.ID] = *o
	return nil
}

func (r memSales) GetByID(ctx context.Context, id uint) (*models.SalesOrder, error) {
	o, ok := r.s.data.sales[id]
	if !ok {
		return nil, &models.NotFoundError{Entity: "sales order", ID: id}
	}
	return &o, nil
}

func (r memSales) LockByID(ctx context.Context, id uint) (*models.SalesOrder, error) {
	return r.GetByID(ctx, id)
}

func (r memSales) UpdateStatus(ctx context.Context, o *models.SalesOrder) error {
	row := r.s.data.sales[o.ID]
	row.Status, row.PaymentStatus = o.Status, o.PaymentStatus
	row.CancellationReason, row.CancelledAt = o.CancellationReason, o.CancelledAt
	r.s.data.sales[o.ID] = row
	return nil
}

func (r memSales) UpdateBalance(ctx context.Context, o *models.SalesOrder, expected decimal.Decimal) error {
	row := r.s.data.sales[o.ID]
	if !row.OutstandingBalance.Equal(expected) {
		return &models.ConcurrencyConflictError{Entity: "sales order", ID: o.ID}
	}
	row.Balance = o.Balance
	r.s.data.sales[o.ID] = row
	return nil
}

type memTasks struct{ s *memStore }

func (r memTasks) Create(ctx context.Context, t *models.Task) error {
	if err := r.s.enter("tasks.Create"); err != nil {
		return err
	}
	t.ID = r.s.data.id()
	r.s.data.tasks[t.ID] = *t
	return nil
}

func (r memTasks) GetByID(ctx context.Context, id uint) (*models.Task, error) {
	t, ok := r.s.data.tasks[id]
	if !ok {
		return nil, &models.NotFoundError{Entity: "task", ID: id}
	}
	return &t, nil
}

func (r memTasks) LockByID(ctx context.Context, id uint) (*models.Task, error) {
	return r.GetByID(ctx, id)
}

func (r memTasks) GetByOrderID(ctx context.Context, orderID uint) ([]models.Task, error) {
	var out []models.Task
	for _, id := range sortedKeys(r.s.data.tasks) {
		if t := r.s.data.tasks[id]; t.OrderID != nil && *t.OrderID == orderID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r memTasks) LockByOrderID(ctx context.Context, orderID uint) ([]models.Task, error) {
	return r.GetByOrderID(ctx, orderID)
}

func (r memTasks) GetByWorkerID(ctx context.Context, workerID uint) ([]models.Task, error) {
	var out []models.Task
	for _, id := range sortedKeys(r.s.data.tasks) {
		if t := r.s.data.tasks[id]; t.WorkerID == workerID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r memTasks) UpdateStatus(ctx context.Context, t *models.Task) error {
	if err := r.s.enter("tasks.UpdateStatus"); err != nil {
		return err
	}
	r.s.data.tasks[t.ID] = *t
	return nil
}

type memPayments struct{ s *memStore }

func (r memPayments) Create(ctx context.Context, p *models.Payment) error {
	if err := r.s.enter("payments.Create"); err != nil {
		return err
	}
	p.ID = r.s.data.id()
	r.s.data.payments[p.ID] = *p
	return nil
}

func (r memPayments) GetByID(ctx context.Context, id uint) (*models.Payment, error) {
	p, ok := r.s.data.payments[id]
	if !ok {
		return nil, &models.NotFoundError{Entity: "payment", ID: id}
	}
	return &p, nil
}

func (r memPayments) LockByID(ctx context.Context, id uint) (*models.Payment, error) {
	return r.GetByID(ctx, id)
}

func (r memPayments) GetByReference(ctx context.Context, refType models.ReferenceType, refID uint) ([]models.Payment, error) {
	var out []models.Payment
	for _, id := range sortedKeys(r.s.data.payments) {
		if p := r.s.data.payments[id]; p.ReferenceType == refType && p.ReferenceID == refID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r memPayments) LockActiveByReference(ctx context.Context, refType models.ReferenceType, refID uint) ([]models.Payment, error) {
	all, _ := r.GetByReference(ctx, refType, refID)
	var out []models.Payment
	for _, p := range all {
		if p.Status == models.PaymentActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r memPayments) SumActive(ctx context.Context, refType models.ReferenceType, refID uint) (decimal.Decimal, error) {
	active, _ := r.LockActiveByReference(ctx, refType, refID)
	sum := decimal.Zero
	for _, p := range active {
		sum = sum.Add(p.Amount)
	}
	return sum, nil
}

func (r memPayments) Cancel(ctx context.Context, p *models.Payment) error {
	if err := r.s.enter("payments.Cancel"); err != nil {
		return err
	}
	row := r.s.data.payments[p.ID]
	if row.Status != models.PaymentActive {
		return &models.ConcurrencyConflictError{Entity: "payment", ID: p.ID}
	}
	row.Status, row.CancelledAt = p.Status, p.CancelledAt
	row.CancelledBy, row.CancellationReason = p.CancelledBy, p.CancellationReason
	r.s.data.payments[p.ID] = row
	return nil
}

func (r memPayments) counted() []models.Payment {
	d := r.s.data
	var out []models.Payment
	for _, id := range sortedKeys(d.payments) {
		p := d.payments[id]
		if p.Status != models.PaymentActive {
			continue
		}
		if o, ok := d.orders[p.ReferenceID]; ok && p.ReferenceType == models.ReferenceServiceOrder && o.Status == models.OrderCancelled {
			continue
		}
		if o, ok := d.sales[p.ReferenceID]; ok && p.ReferenceType == models.ReferenceSalesOrder && o.Status == models.SalesCancelled {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (r memPayments) AggregateByMethod(ctx context.Context) ([]models.MethodTotal, error) {
	if err := r.s.enter("payments.AggregateByMethod"); err != nil {
		return nil, err
	}
	totals := map[string]*models.MethodTotal{}
	for _, p := range r.counted() {
		t, ok := totals[p.PaymentMethod]
		if !ok {
			t = &models.MethodTotal{PaymentMethod: p.PaymentMethod, Total: decimal.Zero}
			totals[p.PaymentMethod] = t
		}
		t.Count++
		t.Total = t.Total.Add(p.Amount)
	}
	var out []models.MethodTotal
	for _, t := range totals {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentMethod < out[j].PaymentMethod })
	return out, nil
}

func (r memPayments) AggregateByDateRange(ctx context.Context, from, to time.Time) ([]models.DailyTotal, error) {
	start, end := models.DateIn(from, time.UTC), models.DateIn(to, time.UTC).AddDate(0, 0, 1)
	totals := map[string]*models.DailyTotal{}
	for _, p := range r.counted() {
		if p.CreatedAt.Before(start) || !p.CreatedAt.Before(end) {
			continue
		}
		day := p.CreatedAt.UTC().Format("2006-01-02")
		t, ok := totals[day]
		if !ok {
			t = &models.DailyTotal{Day: day, Total: decimal.Zero}
			totals[day] = t
		}
		t.Count++
		t.Total = t.Total.Add(p.Amount)
	}
	var out []models.DailyTotal
	for _, t := range totals {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}

func sortedKeys[V any](m map[uint]V) []uint {
	keys := make([]uint, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
