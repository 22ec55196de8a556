package domain

import (
	"context"

	"taskboard/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BindingStore maps internal identities to Telegram chat addresses.
type BindingStore interface {
	GetBinding(ctx context.Context, identity string) (string, bool, error)
	SetBinding(ctx context.Context, identity, address string) error
}

// CursorStore persists the getUpdates cursor between process restarts.
type CursorStore interface {
	LoadCursor(ctx context.Context) (int, bool, error)
	StoreCursor(ctx context.Context, cursor int) error
}

// HandshakeVerifier resolves a one-time handshake token to an identity.
type HandshakeVerifier interface {
	VerifyHandshakeToken(ctx context.Context, token string) (string, bool)
}

// ChangeListener receives committed task mutations.
type ChangeListener interface {
	OnTaskChanged(ctx context.Context, event models.ChangeEvent)
}

// Sender delivers one text notification to one address.
type Sender interface {
	Send(ctx context.Context, address, text string) error
}

// TelegramClient is the subset of tgbotapi.BotAPI used by the gateway.
type TelegramClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// TaskRepository is the persistence collaborator of the task service.
type TaskRepository interface {
	EnsureAccount(ctx context.Context, username string) error
	GetAccount(ctx context.Context, username string) (*models.Account, error)
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id int64) (*models.Task, error)
	UpdateTask(ctx context.Context, task *models.Task) error
	DeleteTask(ctx context.Context, id int64) error
	GetTasksByMember(ctx context.Context, username string) ([]*models.Task, error)
	FilterExistingAccounts(ctx context.Context, usernames []string) ([]string, error)
}
