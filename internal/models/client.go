package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Client struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type Worker struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null"`
	Phone     string    `json:"phone"`
	IsActive  bool      `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
}

// WorkerProject is a rate a worker bills at. Tasks take their amount from FixedPrice.
type WorkerProject struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	WorkerID   uint            `json:"worker_id" gorm:"not null;index"`
	Name       string          `json:"name" gorm:"not null"`
	FixedPrice decimal.Decimal `json:"fixed_price" gorm:"type:numeric(14,2);not null"`
	CreatedAt  time.Time       `json:"created_at"`
}
