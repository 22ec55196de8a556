package models

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// TaskSnapshot is an immutable view of a task at one instant.
// Addresses maps owner/assignee identities to their delivery address at capture time;
// identities without a binding have no entry.
type TaskSnapshot struct {
	TaskID      int64             `json:"task_id"`
	Title       string            `json:"title"`
	Status      TaskStatus        `json:"status"`
	Owner       string            `json:"owner"`
	Description *string           `json:"description,omitempty"`
	DueAt       *time.Time        `json:"due_at,omitempty"`
	Assignees   []string          `json:"assignees"`
	Addresses   map[string]string `json:"addresses,omitempty"`
}

// NewSnapshot captures task state. Assignees are copied and sorted; addresses are filtered
// to the task's members.
func NewSnapshot(task *Task, addresses map[string]string) TaskSnapshot {
	assignees := append([]string(nil), task.Assignees...)
	sort.Strings(assignees)

	snap := TaskSnapshot{
		TaskID:    task.ID,
		Title:     task.Title,
		Status:    task.Status,
		Owner:     task.Owner,
		Assignees: assignees,
	}
	if task.Description != nil {
		d := *task.Description
		snap.Description = &d
	}
	if task.DueAt != nil {
		due := task.DueAt.UTC()
		snap.DueAt = &due
	}
	for _, member := range snap.Members() {
		if addr, ok := addresses[member]; ok && addr != "" {
			if snap.Addresses == nil {
				snap.Addresses = make(map[string]string)
			}
			snap.Addresses[member] = addr
		}
	}
	return snap
}

// Members returns the owner followed by the assignees, without duplicates.
func (s TaskSnapshot) Members() []string {
	out := make([]string, 0, len(s.Assignees)+1)
	seen := make(map[string]struct{}, len(s.Assignees)+1)
	for _, id := range append([]string{s.Owner}, s.Assignees...) {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ChangeKind distinguishes the three task mutations.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

var ErrInvalidEvent = errors.New("invalid change event")

// ChangeEvent describes one committed task mutation.
type ChangeEvent struct {
	ID         string        `json:"id"`
	Kind       ChangeKind    `json:"kind"`
	Old        *TaskSnapshot `json:"old,omitempty"`
	New        *TaskSnapshot `json:"new,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// NewCreatedEvent builds a Created event.
func NewCreatedEvent(snap TaskSnapshot) ChangeEvent {
	return ChangeEvent{ID: uuid.NewString(), Kind: ChangeCreated, New: &snap, OccurredAt: time.Now().UTC()}
}

// NewDeletedEvent builds a Deleted event.
func NewDeletedEvent(snap TaskSnapshot) ChangeEvent {
	return ChangeEvent{ID: uuid.NewString(), Kind: ChangeDeleted, Old: &snap, OccurredAt: time.Now().UTC()}
}

// NewUpdatedEvent builds an Updated event; both snapshots must describe the same task.
func NewUpdatedEvent(old, updated TaskSnapshot) (ChangeEvent, error) {
	if old.TaskID != updated.TaskID {
		return ChangeEvent{}, fmt.Errorf("%w: task id %d != %d", ErrInvalidEvent, old.TaskID, updated.TaskID)
	}
	return ChangeEvent{ID: uuid.NewString(), Kind: ChangeUpdated, Old: &old, New: &updated, OccurredAt: time.Now().UTC()}, nil
}

// Validate checks the snapshot arity invariants of the event kind.
func (e ChangeEvent) Validate() error {
	switch e.Kind {
	case ChangeCreated:
		if e.New == nil || e.Old != nil {
			return fmt.Errorf("%w: created needs exactly a new snapshot", ErrInvalidEvent)
		}
	case ChangeDeleted:
		if e.Old == nil || e.New != nil {
			return fmt.Errorf("%w: deleted needs exactly an old snapshot", ErrInvalidEvent)
		}
	case ChangeUpdated:
		if e.Old == nil || e.New == nil {
			return fmt.Errorf("%w: updated needs both snapshots", ErrInvalidEvent)
		}
		if e.Old.TaskID != e.New.TaskID {
			return fmt.Errorf("%w: task id %d != %d", ErrInvalidEvent, e.Old.TaskID, e.New.TaskID)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, e.Kind)
	}
	return nil
}

// TaskID returns the id of the task the event is about.
func (e ChangeEvent) TaskID() int64 {
	if e.New != nil {
		return e.New.TaskID
	}
	if e.Old != nil {
		return e.Old.TaskID
	}
	return 0
}
