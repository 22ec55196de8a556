package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"taskboard/internal/models"
)

// CreateTask inserts the task and its assignees in one transaction and sets task.ID.
func (db *DB) CreateTask(ctx context.Context, task *models.Task) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	return db.withTx(ctx, func(tx *sql.Tx) error {
		query := `INSERT INTO tasks (title, description, due_at, status, owner, created_at) VALUES (?, ?, ?, ?, ?, ?)`
		result, err := tx.ExecContext(ctx, query,
			task.Title,
			nullString(task.Description),
			nullTime(task.DueAt),
			string(task.Status),
			task.Owner,
			task.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		task.ID = id

		return replaceAssignees(ctx, tx, task.ID, task.Assignees)
	})
}

func (db *DB) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	query := `SELECT id, title, description, due_at, status, owner, created_at FROM tasks WHERE id = ?`
	task, err := scanTask(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	assignees, err := db.getAssignees(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	task.Assignees = assignees[id]
	return task, nil
}

// UpdateTask overwrites the mutable fields and the assignee set.
func (db *DB) UpdateTask(ctx context.Context, task *models.Task) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		query := `UPDATE tasks SET title = ?, description = ?, due_at = ?, status = ? WHERE id = ?`
		result, err := tx.ExecContext(ctx, query,
			task.Title,
			nullString(task.Description),
			nullTime(task.DueAt),
			string(task.Status),
			task.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return fmt.Errorf("task %d: %w", task.ID, ErrNotFound)
		}
		return replaceAssignees(ctx, tx, task.ID, task.Assignees)
	})
}

func (db *DB) DeleteTask(ctx context.Context, id int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM task_assignees WHERE task_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete assignees: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete task: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return fmt.Errorf("task %d: %w", id, ErrNotFound)
		}
		return nil
	})
}

// GetTasksByMember returns tasks owned by or assigned to username, ordered by id.
func (db *DB) GetTasksByMember(ctx context.Context, username string) ([]*models.Task, error) {
	query := `SELECT id, title, description, due_at, status, owner, created_at FROM tasks
              WHERE owner = ? OR id IN (SELECT task_id FROM task_assignees WHERE username = ?)
              ORDER BY id`
	rows, err := db.QueryContext(ctx, query, username, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get tasks: %w", err)
	}

	var (
		tasks []*models.Task
		ids   []int64
	)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
		ids = append(ids, task.ID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// release the connection before the assignee query
	rows.Close()

	assignees, err := db.getAssignees(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, task := range tasks {
		task.Assignees = assignees[task.ID]
	}
	return tasks, nil
}

func (db *DB) getAssignees(ctx context.Context, taskIDs []int64) (map[int64][]string, error) {
	out := make(map[int64][]string, len(taskIDs))
	if len(taskIDs) == 0 {
		return out, nil
	}
	args := make([]interface{}, len(taskIDs))
	for i, id := range taskIDs {
		args[i] = id
	}
	query := `SELECT task_id, username FROM task_assignees WHERE task_id IN (` + placeholders(len(taskIDs)) + `) ORDER BY username`
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignees: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan assignee: %w", err)
		}
		out[id] = append(out[id], name)
	}
	return out, rows.Err()
}

func replaceAssignees(ctx context.Context, tx *sql.Tx, taskID int64, assignees []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_assignees WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("failed to clear assignees: %w", err)
	}
	for _, name := range assignees {
		_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO task_assignees (task_id, username) VALUES (?, ?)`, taskID, name)
		if err != nil {
			return fmt.Errorf("failed to add assignee %s: %w", name, err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		task        models.Task
		description sql.NullString
		dueAt       sql.NullTime
		status      string
	)
	if err := row.Scan(&task.ID, &task.Title, &description, &dueAt, &status, &task.Owner, &task.CreatedAt); err != nil {
		return nil, err
	}
	task.Status = models.TaskStatus(status)
	if description.Valid {
		d := description.String
		task.Description = &d
	}
	if dueAt.Valid {
		due := dueAt.Time.UTC()
		task.DueAt = &due
	}
	return &task, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
