package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"taskboard/internal/domain"
	"taskboard/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// TelegramService is the outbound half of the delivery gateway.
type TelegramService struct {
	bot     domain.TelegramClient
	limiter *rate.Limiter
	logger  *zerolog.Logger
}

// NewTelegramService wraps bot. sendRate caps outbound messages per second; zero or less
// disables the limit.
func NewTelegramService(bot domain.TelegramClient, sendRate float64, logger *zerolog.Logger) *TelegramService {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	limit := rate.Inf
	burst := 1
	if sendRate > 0 {
		limit = rate.Limit(sendRate)
		burst = max(1, int(sendRate))
	}
	return &TelegramService{
		bot:     bot,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// Send delivers text to the chat identified by address using HTML parse mode with link
// previews disabled.
func (s *TelegramService) Send(ctx context.Context, address, text string) error {
	if s.bot == nil {
		return &DeliveryError{Address: address, Err: errors.New("telegram bot is not configured")}
	}
	chatID, err := strconv.ParseInt(address, 10, 64)
	if err != nil {
		return &DeliveryError{Address: address, Err: fmt.Errorf("invalid chat id: %w", err)}
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return &DeliveryError{Address: address, Err: err}
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = models.ParseModeHTML
	msg.DisableWebPagePreview = true

	if _, err := s.bot.Send(msg); err != nil {
		return &DeliveryError{Address: address, Err: err}
	}
	s.logger.Debug().Int64("chat_id", chatID).Msg("message sent")
	return nil
}
