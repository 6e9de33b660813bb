package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID                 uint        `json:"id" gorm:"primaryKey"`
	OrderNumber        string      `json:"order_number" gorm:"unique;not null"`
	ClientID           uint        `json:"client_id" gorm:"not null;index"`
	Description        string      `json:"description" gorm:"type:text"`
	DueDate            *time.Time  `json:"due_date"`
	Status             OrderStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	Balance            `gorm:"embedded"`
	CancellationReason string             `json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time         `json:"cancelled_at,omitempty"`
	Services           []OrderServiceLine `json:"services,omitempty" gorm:"foreignKey:OrderID"`
	Workers            []OrderWorker      `json:"workers,omitempty" gorm:"foreignKey:OrderID"`
	CustomFields       []OrderCustomField `json:"custom_fields,omitempty" gorm:"foreignKey:OrderID"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderInProgress OrderStatus = "in_progress"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
	OrderClosed     OrderStatus = "closed"
)

var orderStatuses = map[OrderStatus]bool{
	OrderPending:    true,
	OrderInProgress: true,
	OrderCompleted:  true,
	OrderCancelled:  true,
	OrderClosed:     true,
}

func (s OrderStatus) Valid() bool { return orderStatuses[s] }

// IsTerminal reports whether no further transition is possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderCancelled || s == OrderClosed
}

// IsOpen reports whether the order still accepts work and payments.
func (s OrderStatus) IsOpen() bool { return s.Valid() && !s.IsTerminal() }

// CheckStatusChange validates moving the order to next through SetStatus.
// Cancellation has its own operation because it cascades.
func (o *Order) CheckStatusChange(next OrderStatus) error {
	if !next.Valid() {
		return NewValidationError("status", "unknown order status %q", next)
	}
	if o.Status.IsTerminal() {
		return &InvalidTransitionError{Entity: "order", ID: o.ID, From: string(o.Status), To: string(next),
			Hint: "order is " + string(o.Status)}
	}
	if next == OrderCancelled {
		return &InvalidTransitionError{Entity: "order", ID: o.ID, From: string(o.Status), To: string(next),
			Hint: "use the cancel operation"}
	}
	if next == OrderClosed && o.PaymentStatus != PaymentPaid {
		return &PaymentRequiredError{OrderID: o.ID, PaymentStatus: o.PaymentStatus, Outstanding: o.OutstandingBalance}
	}
	return nil
}

// Cancel voids the order. The outstanding balance is left untouched.
func (o *Order) Cancel(reason string, at time.Time) error {
	if reason == "" {
		return &MissingReasonError{Action: "cancel an order"}
	}
	if o.Status.IsTerminal() {
		return &InvalidTransitionError{Entity: "order", ID: o.ID, From: string(o.Status), To: string(OrderCancelled),
			Hint: "order is " + string(o.Status)}
	}
	o.Status = OrderCancelled
	o.CancellationReason = reason
	o.CancelledAt = &at
	o.Balance.Void()
	return nil
}

// OrderServiceLine is one billable service on an order.
type OrderServiceLine struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	OrderID   uint            `json:"order_id" gorm:"not null;index"`
	Name      string          `json:"name" gorm:"not null"`
	Quantity  int             `json:"quantity" gorm:"not null"`
	UnitCost  decimal.Decimal `json:"unit_cost" gorm:"type:numeric(14,2);not null"`
	Cost      decimal.Decimal `json:"cost" gorm:"type:numeric(14,2);not null"`
	CreatedAt time.Time       `json:"created_at"`
}

// ServiceTotal sums the cost of lines.
func ServiceTotal(lines []OrderServiceLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Cost)
	}
	return total
}

type OrderCustomField struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	OrderID    uint   `json:"order_id" gorm:"not null;index"`
	FieldName  string `json:"field_name" gorm:"not null"`
	FieldValue string `json:"field_value"`
}

// OrderWorker assigns one worker, at one project rate, to an order.
type OrderWorker struct {
	ID              uint       `json:"id" gorm:"primaryKey"`
	OrderID         uint       `json:"order_id" gorm:"not null;uniqueIndex:idx_order_worker"`
	WorkerID        uint       `json:"worker_id" gorm:"not null;uniqueIndex:idx_order_worker"`
	ProjectID       uint       `json:"project_id" gorm:"not null"`
	Status          string     `json:"status" gorm:"default:'assigned'"`
	TaskDescription string     `json:"task_description"`
	StartDate       *time.Time `json:"start_date"`
	EndDate         *time.Time `json:"end_date"`
	CreatedAt       time.Time  `json:"created_at"`
}

const WorkerAssigned = "assigned"
