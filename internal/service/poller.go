package service

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"taskboard/internal/domain"
	"taskboard/internal/metrics"
	"taskboard/internal/models"
	"taskboard/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const welcomeTemplate = "🎉 Welcome to Taskboard!\n\n" +
	"Your account (<code>@%s</code>) has been successfully connected. " +
	"You'll now receive task updates here."

// PollerConfig tunes the inbound loop.
type PollerConfig struct {
	Interval time.Duration
	// Timeout is the long-poll hint passed to getUpdates, in seconds.
	Timeout int
	Retry   worker.RetryPolicy
}

// Poller is the inbound half of the delivery gateway: it long-polls getUpdates and binds
// chats to identities when a user sends a valid handshake key.
type Poller struct {
	bot         domain.TelegramClient
	verifier    domain.HandshakeVerifier
	bindings    domain.BindingStore
	sender      domain.Sender
	cursor      *Cursor
	cursorStore domain.CursorStore
	cfg         PollerConfig
	logger      *zerolog.Logger
}

func NewPoller(
	bot domain.TelegramClient,
	verifier domain.HandshakeVerifier,
	bindings domain.BindingStore,
	sender domain.Sender,
	cfg PollerConfig,
	logger *zerolog.Logger,
) *Poller {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	if cfg.Interval <= 0 {
		cfg.Interval = models.DefaultPollInterval * time.Second
	}
	if cfg.Timeout < 0 {
		cfg.Timeout = 0
	}
	if cfg.Retry.InitialDelay <= 0 {
		cfg.Retry = worker.RetryPolicy{InitialDelay: cfg.Interval, BackoffFactor: 1}
	}
	return &Poller{
		bot:      bot,
		verifier: verifier,
		bindings: bindings,
		sender:   sender,
		cursor:   NewCursor(models.NoCursor),
		cfg:      cfg,
		logger:   logger,
	}
}

// WithCursorStore makes the poller load the cursor on start and store it after each batch.
func (p *Poller) WithCursorStore(store domain.CursorStore) *Poller {
	p.cursorStore = store
	return p
}

// Cursor exposes the poller's cursor.
func (p *Poller) Cursor() *Cursor {
	return p.cursor
}

// Run polls until ctx is cancelled. Transport failures are logged and retried after the
// retry policy delay; they never end the loop.
func (p *Poller) Run(ctx context.Context) {
	p.loadCursor(ctx)
	p.logger.Info().Int("offset", p.cursor.Offset()).Msg("telegram poller started")

	failures := 0
	for {
		delay := p.cfg.Interval
		if err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
			failures++
			delay = p.cfg.Retry.NextDelay(failures)
			metrics.IncPollError()
			p.logger.Error().Err(err).Int("failures", failures).Dur("retry_in", delay).Msg("telegram poll failed")
		} else {
			failures = 0
		}

		if !worker.Wait(ctx, delay) {
			p.storeCursor(context.WithoutCancel(ctx))
			p.logger.Info().Int("cursor", p.cursor.Value()).Msg("telegram poller stopped")
			return
		}
	}
}

// PollOnce performs a single getUpdates round trip and processes the returned batch.
func (p *Poller) PollOnce(ctx context.Context) error {
	offset := p.cursor.Offset()
	updates, err := p.fetch(ctx, offset)
	if err != nil {
		return &PollError{Offset: offset, Err: err}
	}

	for i := range updates {
		p.handle(ctx, &updates[i])
	}
	if len(updates) > 0 && p.cursor.Value() >= offset {
		p.storeCursor(ctx)
	}
	return nil
}

type fetchResult struct {
	updates []tgbotapi.Update
	err     error
}

// fetch runs the blocking long poll in its own goroutine so cancellation does not have to
// wait for the server-side timeout.
func (p *Poller) fetch(ctx context.Context, offset int) ([]tgbotapi.Update, error) {
	cfg := tgbotapi.NewUpdate(offset)
	cfg.Timeout = p.cfg.Timeout
	cfg.AllowedUpdates = []string{"message"}

	done := make(chan fetchResult, 1)
	go func() {
		updates, err := p.bot.GetUpdates(cfg)
		done <- fetchResult{updates: updates, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.updates, res.err
	}
}

func (p *Poller) handle(ctx context.Context, update *tgbotapi.Update) {
	p.cursor.Advance(update.UpdateID)

	msg := update.Message
	if msg == nil || msg.Chat == nil || strings.TrimSpace(msg.Text) == "" {
		p.logger.Debug().Int("update_id", update.UpdateID).Msg("skipping update without text")
		return
	}

	token := lastWord(msg.Text)
	identity, ok := p.verifier.VerifyHandshakeToken(ctx, token)
	if !ok {
		p.logger.Debug().Int("update_id", update.UpdateID).Msg("skipping message without valid handshake key")
		return
	}

	address := strconv.FormatInt(msg.Chat.ID, 10)
	if err := p.bindings.SetBinding(ctx, identity, address); err != nil {
		p.logger.Error().Err(err).Str("identity", identity).Msg("failed to save chat binding")
		return
	}
	metrics.IncBinding()
	p.logger.Info().Str("identity", identity).Int64("chat_id", msg.Chat.ID).Msg("chat bound")

	if err := p.sender.Send(ctx, address, fmt.Sprintf(welcomeTemplate, html.EscapeString(identity))); err != nil {
		p.logger.Error().Err(err).Str("identity", identity).Msg("failed to send handshake confirmation")
	}
}

func (p *Poller) loadCursor(ctx context.Context) {
	if p.cursorStore == nil {
		return
	}
	v, ok, err := p.cursorStore.LoadCursor(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Msg("failed to load telegram cursor, starting from the beginning")
		return
	}
	if ok {
		p.cursor.Advance(v)
	}
}

func (p *Poller) storeCursor(ctx context.Context) {
	if p.cursorStore == nil {
		return
	}
	if err := p.cursorStore.StoreCursor(ctx, p.cursor.Value()); err != nil {
		p.logger.Warn().Err(err).Msg("failed to store telegram cursor")
	}
}

func lastWord(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
