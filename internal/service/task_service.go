package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskboard/internal/database"
	"taskboard/internal/domain"
	"taskboard/internal/models"

	"github.com/rs/zerolog"
)

// CreateTaskInput holds the fields accepted when creating a task.
type CreateTaskInput struct {
	Title       string
	Description *string
	DueAt       *time.Time
	Status      models.TaskStatus
	Assignees   []string
}

// UpdateTaskInput holds the fields accepted when updating a task. A nil Title or Status keeps
// the current value; Description, DueAt and Assignees always replace it.
type UpdateTaskInput struct {
	Title       *string
	Status      *models.TaskStatus
	Description *string
	DueAt       *time.Time
	Assignees   []string
}

// TaskService is the mutation path of the board. Every successful mutation is reported to
// the change listener after it is committed. Snapshot addresses come from bindings, the
// same store the poller writes to.
type TaskService struct {
	repo     domain.TaskRepository
	bindings domain.BindingStore
	listener domain.ChangeListener
	logger   *zerolog.Logger
}

func NewTaskService(repo domain.TaskRepository, bindings domain.BindingStore, listener domain.ChangeListener, logger *zerolog.Logger) *TaskService {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &TaskService{repo: repo, bindings: bindings, listener: listener, logger: logger}
}

func (s *TaskService) CreateTask(ctx context.Context, actor string, in CreateTaskInput) (*models.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	status := in.Status
	if status == "" {
		status = models.StatusTodo
	}
	if _, err := models.ParseTaskStatus(string(status)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.repo.EnsureAccount(ctx, actor); err != nil {
		return nil, err
	}

	assignees, err := s.repo.FilterExistingAccounts(ctx, in.Assignees)
	if err != nil {
		return nil, err
	}

	task := &models.Task{
		Title:       title,
		Description: in.Description,
		DueAt:       utcPtr(in.DueAt),
		Status:      status,
		Owner:       actor,
		Assignees:   assignees,
	}
	if err := s.repo.CreateTask(ctx, task); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("task_id", task.ID).Str("owner", actor).Msg("task created")
	s.publish(ctx, models.NewCreatedEvent(s.snapshot(ctx, task)))
	return task, nil
}

// UpdateTask applies in to the task; the owner and assignees may update.
func (s *TaskService) UpdateTask(ctx context.Context, actor string, id int64, in UpdateTaskInput) (*models.Task, error) {
	current, err := s.getTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.HasMember(actor) {
		return nil, ErrForbidden
	}
	old := s.snapshot(ctx, current)

	next := *current
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title must not be empty", ErrInvalidInput)
		}
		next.Title = title
	}
	if in.Status != nil {
		if _, err := models.ParseTaskStatus(string(*in.Status)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		next.Status = *in.Status
	}
	next.Description = in.Description
	next.DueAt = utcPtr(in.DueAt)
	next.Assignees, err = s.repo.FilterExistingAccounts(ctx, in.Assignees)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateTask(ctx, &next); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}

	s.logger.Info().Int64("task_id", id).Str("actor", actor).Msg("task updated")
	ev, err := models.NewUpdatedEvent(old, s.snapshot(ctx, &next))
	if err != nil {
		s.logger.Error().Err(err).Int64("task_id", id).Msg("failed to build change event")
		return &next, nil
	}
	s.publish(ctx, ev)
	return &next, nil
}

// DeleteTask removes the task; only the owner may delete.
func (s *TaskService) DeleteTask(ctx context.Context, actor string, id int64) error {
	task, err := s.getTask(ctx, id)
	if err != nil {
		return err
	}
	if task.Owner != actor {
		return ErrForbidden
	}
	snap := s.snapshot(ctx, task)

	if err := s.repo.DeleteTask(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrTaskNotFound
		}
		return err
	}

	s.logger.Info().Int64("task_id", id).Str("owner", actor).Msg("task deleted")
	s.publish(ctx, models.NewDeletedEvent(snap))
	return nil
}

// GetTask returns the task if actor is a member of it.
func (s *TaskService) GetTask(ctx context.Context, actor string, id int64) (*models.Task, error) {
	task, err := s.getTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if !task.HasMember(actor) {
		return nil, ErrForbidden
	}
	return task, nil
}

// ListTasks returns the tasks actor owns or is assigned to.
func (s *TaskService) ListTasks(ctx context.Context, actor string) ([]*models.Task, error) {
	return s.repo.GetTasksByMember(ctx, actor)
}

func (s *TaskService) getTask(ctx context.Context, id int64) (*models.Task, error) {
	task, err := s.repo.GetTask(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrTaskNotFound
	}
	return task, err
}

// snapshot captures the task together with the chat addresses its members have bound. A
// member whose lookup fails is left out and resolved again at delivery time.
func (s *TaskService) snapshot(ctx context.Context, task *models.Task) models.TaskSnapshot {
	if s.bindings == nil {
		return models.NewSnapshot(task, nil)
	}
	addrs := make(map[string]string)
	for _, member := range append([]string{task.Owner}, task.Assignees...) {
		if _, seen := addrs[member]; seen {
			continue
		}
		addr, ok, err := s.bindings.GetBinding(ctx, member)
		if err != nil {
			s.logger.Warn().Err(err).Int64("task_id", task.ID).Str("identity", member).Msg("failed to load member address")
			continue
		}
		if ok && addr != "" {
			addrs[member] = addr
		}
	}
	return models.NewSnapshot(task, addrs)
}

func (s *TaskService) publish(ctx context.Context, ev models.ChangeEvent) {
	if s.listener == nil {
		return
	}
	s.listener.OnTaskChanged(ctx, ev)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
