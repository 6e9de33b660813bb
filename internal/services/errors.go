package services

import "service_orders/internal/models"

// step runs fn and tags any failure with the step it happened in.
func step(operation, name string, fn func() error) error {
	if err := fn(); err != nil {
		return &models.ReconciliationError{Operation: operation, Step: name, Err: err}
	}
	return nil
}
