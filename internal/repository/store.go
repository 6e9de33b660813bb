package repository

import (
	"context"
	"errors"

	"service_orders/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store groups the repositories that share one connection or transaction.
type Store interface {
	Clients() ClientRepository
	Workers() WorkerRepository
	Orders() OrderRepository
	SalesOrders() SalesOrderRepository
	Tasks() TaskRepository
	Payments() PaymentRepository

	// WithinTransaction runs fn against a Store bound to a single transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	WithinTransaction(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Clients() ClientRepository         { return &clientRepository{db: s.db} }
func (s *gormStore) Workers() WorkerRepository         { return &workerRepository{db: s.db} }
func (s *gormStore) Orders() OrderRepository           { return &orderRepository{db: s.db} }
func (s *gormStore) SalesOrders() SalesOrderRepository { return &salesOrderRepository{db: s.db} }
func (s *gormStore) Tasks() TaskRepository             { return &taskRepository{db: s.db} }
func (s *gormStore) Payments() PaymentRepository       { return &paymentRepository{db: s.db} }

func (s *gormStore) WithinTransaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

// forUpdate is the row lock used by every balance-affecting read.
func forUpdate() clause.Locking {
	return clause.Locking{Strength: "UPDATE"}
}

func translate(err error, entity string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.NotFoundError{Entity: entity, ID: id}
	}
	return err
}
