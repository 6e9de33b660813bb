package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReferenceType string

const (
	ReferenceServiceOrder ReferenceType = "service_order"
	ReferenceSalesOrder   ReferenceType = "sales_order"
)

func (r ReferenceType) Valid() bool {
	return r == ReferenceServiceOrder || r == ReferenceSalesOrder
}

type PaymentState string

const (
	PaymentActive    PaymentState = "active"
	PaymentCancelled PaymentState = "cancelled"
)

type Payment struct {
	ID                 uint            `json:"id" gorm:"primaryKey"`
	ReferenceID        uint            `json:"reference_id" gorm:"not null;index:idx_payment_reference"`
	ReferenceType      ReferenceType   `json:"reference_type" gorm:"type:varchar(20);not null;index:idx_payment_reference"`
	Amount             decimal.Decimal `json:"amount" gorm:"type:numeric(14,2);not null"`
	PaymentMethod      string          `json:"payment_method" gorm:"not null;index"`
	PaymentReference   string          `json:"payment_reference,omitempty"`
	Status             PaymentState    `json:"status" gorm:"type:varchar(20);not null;default:'active';index"`
	CreatedAt          time.Time       `json:"created_at" gorm:"index"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
	CancelledBy        string          `json:"cancelled_by,omitempty"`
	CancellationReason string          `json:"cancellation_reason,omitempty"`
}

// Cancel marks the payment cancelled. Amount is never touched.
func (p *Payment) Cancel(reason, by string, at time.Time) error {
	if reason == "" {
		return &MissingReasonError{Action: "cancel a payment"}
	}
	if p.Status != PaymentActive {
		return &InvalidTransitionError{Entity: "payment", ID: p.ID, From: string(p.Status), To: string(PaymentCancelled)}
	}
	p.Status = PaymentCancelled
	p.CancelledAt = &at
	p.CancelledBy = by
	p.CancellationReason = reason
	return nil
}

// MethodTotal is one row of the by-method payment statistics.
type MethodTotal struct {
	PaymentMethod string          `json:"payment_method"`
	Count         int64           `json:"count"`
	Total         decimal.Decimal `json:"total"`
}

// DailyTotal is one row of the by-day payment statistics.
type DailyTotal struct {
	Day   string          `json:"day"` // YYYY-MM-DD
	Count int64           `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// BalanceAudit compares a stored balance against its payments.
type BalanceAudit struct {
	ReferenceType ReferenceType   `json:"reference_type"`
	ReferenceID   uint            `json:"reference_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	ActivePaid    decimal.Decimal `json:"active_paid"`
	Stored        decimal.Decimal `json:"stored_balance"`
	Expected      decimal.Decimal `json:"expected_balance"`
	Void          bool            `json:"void"`
	Consistent    bool            `json:"consistent"`
}
