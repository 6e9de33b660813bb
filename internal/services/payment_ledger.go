package services

import (
	"context"
	"strings"
	"time"

	"service_orders/internal/models"
	"service_orders/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type RecordPaymentInput struct {
	ReferenceType    models.ReferenceType `json:"reference_type"`
	ReferenceID      uint                 `json:"reference_id"`
	Amount           string               `json:"amount"`
	PaymentMethod    string               `json:"payment_method"`
	PaymentReference string               `json:"payment_reference"`
}

// PaymentResult is a payment together with the balance it left behind.
type PaymentResult struct {
	Payment  *models.Payment `json:"payment"`
	Balance  models.Balance  `json:"balance"`
	ClientID uint            `json:"-"`
}

type PaymentLedger interface {
	GetPayment(ctx context.Context, id uint) (*models.Payment, error)
	ListPayments(ctx context.Context, refType models.ReferenceType, refID uint) ([]models.Payment, error)

	RecordPaymentTx(ctx context.Context, tx repository.Store, in RecordPaymentInput) (*PaymentResult, error)
	CancelPaymentTx(ctx context.Context, tx repository.Store, id uint, reason, cancelledBy string) (*PaymentResult, error)
	// VoidPaymentsTx cancels every active payment of a cancelled document without restoring its balance.
	VoidPaymentsTx(ctx context.Context, tx repository.Store, refType models.ReferenceType, refID uint, reason, cancelledBy string) ([]models.Payment, error)
}

type paymentLedger struct {
	store repository.Store
	now   func() time.Time
}

func NewPaymentLedger(store repository.Store, opts ...Option) PaymentLedger {
	o := newOptions(opts)
	return &paymentLedger{store: store, now: o.now}
}

// receivable is a locked document that payments can be recorded against.
type receivable struct {
	balance   *models.Balance
	clientID  uint
	cancelled bool
	closed    bool
	save      func(expected decimal.Decimal) error
}

func (l *paymentLedger) lockReceivable(ctx context.Context, tx repository.Store, refType models.ReferenceType, refID uint) (*receivable, error) {
	switch refType {
	case models.ReferenceServiceOrder:
		order, err := tx.Orders().LockByID(ctx, refID)
		if err != nil {
			return nil, err
		}
		return &receivable{
			balance:   &order.Balance,
			clientID:  order.ClientID,
			cancelled: order.Status == models.OrderCancelled,
			closed:    order.Status == models.OrderClosed,
			save: func(expected decimal.Decimal) error {
				return tx.Orders().UpdateBalance(ctx, order, expected)
			},
		}, nil
	case models.ReferenceSalesOrder:
		order, err := tx.SalesOrders().LockByID(ctx, refID)
		if err != nil {
			return nil, err
		}
		return &receivable{
			balance:   &order.Balance,
			clientID:  order.ClientID,
			cancelled: order.Status == models.SalesCancelled,
			save: func(expected decimal.Decimal) error {
				return tx.SalesOrders().UpdateBalance(ctx, order, expected)
			},
		}, nil
	default:
		return nil, models.NewValidationError("reference_type", "unknown reference type %q", refType)
	}
}

func (l *paymentLedger) GetPayment(ctx context.Context, id uint) (*models.Payment, error) {
	return l.store.Payments().GetByID(ctx, id)
}

func (l *paymentLedger) ListPayments(ctx context.Context, refType models.ReferenceType, refID uint) ([]models.Payment, error) {
	if !refType.Valid() {
		return nil, models.NewValidationError("reference_type", "unknown reference type %q", refType)
	}
	return l.store.Payments().GetByReference(ctx, refType, refID)
}

func (l *paymentLedger) RecordPaymentTx(ctx context.Context, tx repository.Store, in RecordPaymentInput) (*PaymentResult, error) {
	if !in.ReferenceType.Valid() {
		return nil, models.NewValidationError("reference_type", "unknown reference type %q", in.ReferenceType)
	}
	amount, err := models.ParseAmount(in.Amount)
	if err != nil {
		return nil, err
	}
	method := strings.TrimSpace(in.PaymentMethod)
	if method == "" {
		return nil, models.NewValidationError("payment_method", "is required")
	}

	ref, err := l.lockReceivable(ctx, tx, in.ReferenceType, in.ReferenceID)
	if err != nil {
		return nil, err
	}
	if ref.cancelled {
		return nil, models.NewValidationError("reference_id", "%s %d is cancelled", in.ReferenceType, in.ReferenceID)
	}

	expected := ref.balance.OutstandingBalance
	if err := ref.balance.Debit(amount); err != nil {
		return nil, err
	}
	payment := &models.Payment{
		ReferenceID:      in.ReferenceID,
		ReferenceType:    in.ReferenceType,
		Amount:           amount,
		PaymentMethod:    method,
		PaymentReference: strings.TrimSpace(in.PaymentReference),
		Status:           models.PaymentActive,
		CreatedAt:        l.now(),
	}
	if err := tx.Payments().Create(ctx, payment); err != nil {
		return nil, err
	}
	if err := ref.save(expected); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"payment_id":     payment.ID,
		"reference_type": payment.ReferenceType,
		"reference_id":   payment.ReferenceID,
		"amount":         amount.StringFixed(2),
		"outstanding":    ref.balance.OutstandingBalance.StringFixed(2),
	}).Info("payment recorded")
	return &PaymentResult{Payment: payment, Balance: *ref.balance, ClientID: ref.clientID}, nil
}

func (l *paymentLedger) CancelPaymentTx(ctx context.Context, tx repository.Store, id uint, reason, cancelledBy string) (*PaymentResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &models.MissingReasonError{Action: "cancel a payment"}
	}

	// The document is locked before the payment, the same order RecordPaymentTx uses.
	current, err := tx.Payments().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ref, err := l.lockReceivable(ctx, tx, current.ReferenceType, current.ReferenceID)
	if err != nil {
		return nil, err
	}
	payment, err := tx.Payments().LockByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := payment.Cancel(reason, strings.TrimSpace(cancelledBy), l.now()); err != nil {
		return nil, err
	}
	if ref.closed {
		return nil, models.NewValidationError("payment", "order %d is closed, its payments cannot be cancelled", payment.ReferenceID)
	}
	if err := tx.Payments().Cancel(ctx, payment); err != nil {
		return nil, err
	}
	if !ref.cancelled {
		expected := ref.balance.OutstandingBalance
		ref.balance.Credit(payment.Amount)
		if err := ref.save(expected); err != nil {
			return nil, err
		}
	}

	logrus.WithFields(logrus.Fields{
		"payment_id":   payment.ID,
		"cancelled_by": payment.CancelledBy,
		"outstanding":  ref.balance.OutstandingBalance.StringFixed(2),
	}).Info("payment cancelled")
	return &PaymentResult{Payment: payment, Balance: *ref.balance, ClientID: ref.clientID}, nil
}

func (l *paymentLedger) VoidPaymentsTx(ctx context.Context, tx repository.Store, refType models.ReferenceType, refID uint, reason, cancelledBy string) ([]models.Payment, error) {
	payments, err := tx.Payments().LockActiveByReference(ctx, refType, refID)
	if err != nil {
		return nil, err
	}
	now := l.now()
	for i := range payments {
		if err := payments[i].Cancel(reason, cancelledBy, now); err != nil {
			return nil, err
		}
		if err := tx.Payments().Cancel(ctx, &payments[i]); err != nil {
			return nil, err
		}
	}
	return payments, nil
}
