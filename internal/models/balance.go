package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencyPlaces is the number of minor-unit digits accepted for amounts.
const CurrencyPlaces = 2

type PaymentStatus string

const (
	PaymentUnpaid        PaymentStatus = "unpaid"
	PaymentPartiallyPaid PaymentStatus = "partially_paid"
	PaymentPaid          PaymentStatus = "paid"
	PaymentVoid          PaymentStatus = "cancelled"
)

// ParseAmount parses user input into a currency amount.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &InvalidAmountError{Amount: raw, Reason: "not a finite number"}
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateAmount checks that d is a positive amount with at most CurrencyPlaces decimals.
func ValidateAmount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return &InvalidAmountError{Amount: d.String(), Reason: "must be greater than zero"}
	}
	if !d.Equal(d.Round(CurrencyPlaces)) {
		return &InvalidAmountError{Amount: d.String(), Reason: "more than two decimal places"}
	}
	return nil
}

// Balance is the financial state shared by everything a payment can reference.
type Balance struct {
	TotalAmount        decimal.Decimal `json:"total_amount" gorm:"type:numeric(14,2);not null;default:0"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance" gorm:"type:numeric(14,2);not null;default:0"`
	PaymentStatus      PaymentStatus   `json:"payment_status" gorm:"type:varchar(20);not null;default:'unpaid'"`
}

// NewBalance returns an unpaid balance for total.
func NewBalance(total decimal.Decimal) Balance {
	b := Balance{TotalAmount: total, OutstandingBalance: total}
	b.Recompute()
	return b
}

// Recompute derives PaymentStatus from the outstanding balance.
// A void balance stays void.
func (b *Balance) Recompute() {
	if b.PaymentStatus == PaymentVoid {
		return
	}
	switch {
	case b.OutstandingBalance.IsZero():
		b.PaymentStatus = PaymentPaid
	case b.OutstandingBalance.Equal(b.TotalAmount):
		b.PaymentStatus = PaymentUnpaid
	default:
		b.PaymentStatus = PaymentPartiallyPaid
	}
}

// Debit applies a payment of amount.
func (b *Balance) Debit(amount decimal.Decimal) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	if amount.GreaterThan(b.OutstandingBalance) {
		return &OverpaymentError{Amount: amount, Outstanding: b.OutstandingBalance}
	}
	b.OutstandingBalance = b.OutstandingBalance.Sub(amount)
	b.Recompute()
	return nil
}

// Credit restores amount to the balance, never above TotalAmount.
func (b *Balance) Credit(amount decimal.Decimal) {
	b.OutstandingBalance = decimal.Min(b.OutstandingBalance.Add(amount), b.TotalAmount)
	b.Recompute()
}

// Rebase changes the total while keeping what was already paid.
func (b *Balance) Rebase(total, paid decimal.Decimal) error {
	if total.IsNegative() {
		return NewValidationError("total_amount", "must not be negative")
	}
	if paid.GreaterThan(total) {
		return NewValidationError("services", "new total %s is below the %s already paid",
			total.StringFixed(2), paid.StringFixed(2))
	}
	b.TotalAmount = total
	b.OutstandingBalance = total.Sub(paid)
	b.Recompute()
	return nil
}

// Void marks the balance as belonging to a cancelled document.
func (b *Balance) Void() {
	b.PaymentStatus = PaymentVoid
}
