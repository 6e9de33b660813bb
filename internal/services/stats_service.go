package services

import (
	"context"
	"fmt"
	"time"

	"service_orders/internal/models"
	"service_orders/internal/repository"

	"github.com/sirupsen/logrus"
)

// StatsCache stores statistics snapshots. The redis package implements it.
type StatsCache interface {
	Get(ctx context.Context, name string, dest interface{}) (bool, error)
	Set(ctx context.Context, name string, value interface{}) error
	Invalidate(ctx context.Context) error
}

type StatsService interface {
	AggregateByMethod(ctx context.Context) ([]models.MethodTotal, error)
	// AggregateByDateRange totals payments per day, from and to both inclusive.
	AggregateByDateRange(ctx context.Context, from, to time.Time) ([]models.DailyTotal, error)
	// Invalidate drops cached snapshots after a payment changed.
	Invalidate(ctx context.Context)
}

type statsService struct {
	store repository.Store
	cache StatsCache
}

// NewStatsService builds the statistics service. cache may be nil.
func NewStatsService(store repository.Store, cache StatsCache) StatsService {
	return &statsService{store: store, cache: cache}
}

func (s *statsService) AggregateByMethod(ctx context.Context) ([]models.MethodTotal, error) {
	var rows []models.MethodTotal
	if s.cached(ctx, "methods", &rows) {
		return rows, nil
	}
	rows, err := s.store.Payments().AggregateByMethod(ctx)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, "methods", rows)
	return rows, nil
}

func (s *statsService) AggregateByDateRange(ctx context.Context, from, to time.Time) ([]models.DailyTotal, error) {
	if from.IsZero() || to.IsZero() {
		return nil, models.NewValidationError("range", "from and to are required")
	}
	if to.Before(from) {
		return nil, models.NewValidationError("range", "to is before from")
	}
	name := fmt.Sprintf("daily:%s:%s", from.Format("2006-01-02"), to.Format("2006-01-02"))

	var rows []models.DailyTotal
	if s.cached(ctx, name, &rows) {
		return rows, nil
	}
	rows, err := s.store.Payments().AggregateByDateRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, name, rows)
	return rows, nil
}

func (s *statsService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		logrus.WithError(err).Warn("failed to invalidate payment statistics cache")
	}
}

func (s *statsService) cached(ctx context.Context, name string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	ok, err := s.cache.Get(ctx, name, dest)
	if err != nil {
		logrus.WithError(err).WithField("stats", name).Warn("payment statistics cache read failed")
		return false
	}
	return ok
}

func (s *statsService) remember(ctx context.Context, name string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, name, value); err != nil {
		logrus.WithError(err).WithField("stats", name).Warn("payment statistics cache write failed")
	}
}
