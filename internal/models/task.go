package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Task struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	WorkerID        uint            `json:"worker_id" gorm:"not null;index"`
	ProjectID       uint            `json:"project_id" gorm:"not null"`
	OrderID         *uint           `json:"order_id,omitempty" gorm:"index"`
	Amount          decimal.Decimal `json:"amount" gorm:"type:numeric(14,2);not null"`
	DueDate         time.Time       `json:"due_date" gorm:"type:date;not null"`
	Status          TaskStatus      `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	Description     string          `json:"description" gorm:"type:text"`
	DelayReason     string          `json:"delay_reason,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	StatusChangedAt time.Time       `json:"status_changed_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskDelayed    TaskStatus = "delayed"
	TaskCancelled  TaskStatus = "cancelled"
)

var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskPending:    {TaskInProgress, TaskDelayed, TaskCompleted, TaskCancelled},
	TaskInProgress: {TaskDelayed, TaskCompleted, TaskCancelled},
	TaskDelayed:    {TaskDelayed, TaskInProgress, TaskCompleted, TaskCancelled},
	TaskCompleted:  {TaskCancelled},
	TaskCancelled:  nil,
}

func (s TaskStatus) Valid() bool {
	_, ok := taskTransitions[s]
	return ok
}

func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	for _, allowed := range taskTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition moves the task to next, stamping timestamps with now.
// The task is left untouched when an error is returned.
func (t *Task) Transition(next TaskStatus, delayReason string, now time.Time) error {
	if !next.Valid() {
		return NewValidationError("status", "unknown task status %q", next)
	}
	if !t.Status.CanTransitionTo(next) {
		return &InvalidTransitionError{Entity: "task", ID: t.ID, From: string(t.Status), To: string(next)}
	}
	delayReason = strings.TrimSpace(delayReason)
	if next == TaskDelayed {
		if delayReason == "" {
			return &MissingReasonError{Action: "delay a task"}
		}
		t.DelayReason = delayReason
	}
	if next == TaskCompleted {
		t.CompletedAt = &now
	}
	t.Status = next
	t.StatusChangedAt = now
	return nil
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DateIn keeps the calendar date of t and places it at midnight in loc.
func DateIn(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
