package models

import (
	"fmt"
	"time"
)

// TaskStatus is the workflow state of a task.
type TaskStatus string

// ParseTaskStatus validates a status string.
func ParseTaskStatus(s string) (TaskStatus, error) {
	switch TaskStatus(s) {
	case StatusTodo, StatusInProgress, StatusDone:
		return TaskStatus(s), nil
	default:
		return "", fmt.Errorf("invalid task status %q", s)
	}
}

// Account is a user of the board. TelegramID holds the bound chat id, empty when unbound.
type Account struct {
	Username   string    `json:"username"`
	Email      string    `json:"email,omitempty"`
	TelegramID string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// Task is the persisted task entity.
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	DueAt       *time.Time `json:"end_date"`
	Status      TaskStatus `json:"status"`
	Owner       string     `json:"owner"`
	Assignees   []string   `json:"assignees"`
	CreatedAt   time.Time  `json:"created_at"`
}

// HasMember reports whether username owns or is assigned to the task.
func (t *Task) HasMember(username string) bool {
	if t.Owner == username {
		return true
	}
	for _, a := range t.Assignees {
		if a == username {
			return true
		}
	}
	return false
}

// IsAssignee reports whether username is among the assignees.
func (t *Task) IsAssignee(username string) bool {
	for _, a := range t.Assignees {
		if a == username {
			return true
		}
	}
	return false
}
