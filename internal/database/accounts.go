package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"taskboard/internal/models"
)

// EnsureAccount creates the account if it does not exist yet.
func (db *DB) EnsureAccount(ctx context.Context, username string) error {
	query := `INSERT INTO accounts (username, created_at) VALUES (?, ?) ON CONFLICT(username) DO NOTHING`
	if _, err := db.ExecContext(ctx, query, username, time.Now()); err != nil {
		return fmt.Errorf("failed to ensure account: %w", err)
	}
	return nil
}

func (db *DB) GetAccount(ctx context.Context, username string) (*models.Account, error) {
	query := `SELECT username, email, telegram_id, created_at FROM accounts WHERE username = ?`

	var (
		account    models.Account
		telegramID sql.NullString
	)
	err := db.QueryRowContext(ctx, query, username).Scan(&account.Username, &account.Email, &telegramID, &account.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	account.TelegramID = telegramID.String
	return &account, nil
}

// FilterExistingAccounts returns the subset of usernames that have accounts, sorted.
func (db *DB) FilterExistingAccounts(ctx context.Context, usernames []string) ([]string, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	query := `SELECT username FROM accounts WHERE username IN (` + placeholders(len(usernames)) + `) ORDER BY username`
	rows, err := db.QueryContext(ctx, query, toArgs(usernames)...)
	if err != nil {
		return nil, fmt.Errorf("failed to filter accounts: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// GetBinding implements the durable binding store on top of accounts.telegram_id.
func (db *DB) GetBinding(ctx context.Context, identity string) (string, bool, error) {
	var addr sql.NullString
	err := db.QueryRowContext(ctx, `SELECT telegram_id FROM accounts WHERE username = ?`, identity).Scan(&addr)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get binding: %w", err)
	}
	if !addr.Valid || addr.String == "" {
		return "", false, nil
	}
	return addr.String, true, nil
}

func (db *DB) SetBinding(ctx context.Context, identity, address string) error {
	query := `INSERT INTO accounts (username, telegram_id, created_at) VALUES (?, ?, ?)
              ON CONFLICT(username) DO UPDATE SET telegram_id = excluded.telegram_id`
	if _, err := db.ExecContext(ctx, query, identity, address, time.Now()); err != nil {
		return fmt.Errorf("failed to set binding: %w", err)
	}
	return nil
}
