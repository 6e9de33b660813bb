package models

import "time"

// SalesOrder is a goods sale that payments can also be recorded against.
type SalesOrder struct {
	ID                 uint             `json:"id" gorm:"primaryKey"`
	OrderNumber        string           `json:"order_number" gorm:"unique;not null"`
	ClientID           uint             `json:"client_id" gorm:"not null;index"`
	Description        string           `json:"description" gorm:"type:text"`
	Status             SalesOrderStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	Balance            `gorm:"embedded"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type SalesOrderStatus string

const (
	SalesPending   SalesOrderStatus = "pending"
	SalesDelivered SalesOrderStatus = "delivered"
	SalesCancelled SalesOrderStatus = "cancelled"
)

func (s *SalesOrder) Cancel(reason string, at time.Time) error {
	if reason == "" {
		return &MissingReasonError{Action: "cancel a sales order"}
	}
	if s.Status == SalesCancelled {
		return &InvalidTransitionError{Entity: "sales order", ID: s.ID, From: string(s.Status), To: string(SalesCancelled)}
	}
	s.Status = SalesCancelled
	s.CancellationReason = reason
	s.CancelledAt = &at
	s.Balance.Void()
	return nil
}
