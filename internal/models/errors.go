package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidationError reports bad input shape or range.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// InvalidTransitionError reports a state change the entity's transition table forbids.
type InvalidTransitionError struct {
	Entity string
	ID     uint
	From   string
	To     string
	Hint   string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("%s %d cannot move from %s to %s", e.Entity, e.ID, e.From, e.To)
	if e.Hint != "" {
		msg += ": " + e.Hint
	}
	return msg
}

// MissingReasonError reports that an action requires a justification and none was given.
type MissingReasonError struct {
	Action string
}

func (e *MissingReasonError) Error() string {
	return fmt.Sprintf("a reason is required to %s", e.Action)
}

// PaymentRequiredError gates closing an order that is not fully paid.
type PaymentRequiredError struct {
	OrderID       uint
	PaymentStatus PaymentStatus
	Outstanding   decimal.Decimal
}

func (e *PaymentRequiredError) Error() string {
	return fmt.Sprintf("order %d cannot be closed: payment status is %s with %s outstanding",
		e.OrderID, e.PaymentStatus, e.Outstanding.StringFixed(2))
}

// OverpaymentError reports an amount larger than the outstanding balance.
type OverpaymentError struct {
	Amount      decimal.Decimal
	Outstanding decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment of %s exceeds outstanding balance of %s",
		e.Amount.StringFixed(2), e.Outstanding.StringFixed(2))
}

// InvalidAmountError reports a non-positive, non-finite or over-precise amount.
type InvalidAmountError struct {
	Amount string
	Reason string
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount %q: %s", e.Amount, e.Reason)
}

// ConcurrencyConflictError reports that a row changed between read and write.
type ConcurrencyConflictError struct {
	Entity string
	ID     uint
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("%s %d was modified concurrently, retry the operation", e.Entity, e.ID)
}

// ReconciliationError wraps the first failing step of a multi-step operation.
// Nothing of the operation has been committed when it is returned.
type ReconciliationError struct {
	Operation string
	Step      string
	Err       error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("%s failed at step %q: %v", e.Operation, e.Step, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

// NotFoundError reports a missing row.
type NotFoundError struct {
	Entity string
	ID     uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}
