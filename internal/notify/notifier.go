package notify

import (
	"context"

	"taskboard/internal/domain"
	"taskboard/internal/logging"
	"taskboard/internal/metrics"
	"taskboard/internal/models"

	"github.com/rs/zerolog"
)

// Notifier turns one change event into outbound messages.
type Notifier struct {
	resolver *Resolver
	sender   domain.Sender
	logger   *zerolog.Logger
}

func NewNotifier(resolver *Resolver, sender domain.Sender, logger *zerolog.Logger) *Notifier {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &Notifier{resolver: resolver, sender: sender, logger: logger}
}

// Handle classifies the event and sends the summary to every resolved address. Delivery
// errors are logged per address and never stop the remaining sends. It returns the number
// of successful sends.
func (n *Notifier) Handle(ctx context.Context, event models.ChangeEvent) int {
	log := logging.ForEvent(n.logger, event)
	summary, important := Classify(event)
	if event.Kind == models.ChangeUpdated && !important {
		metrics.IncSkipped("unimportant")
		log.Debug().Msg("skipping unimportant update")
		return 0
	}

	recipients := n.resolver.Resolve(ctx, event)
	if len(recipients) == 0 {
		metrics.IncSkipped("no_recipients")
		log.Debug().Msg("no bound recipients")
		return 0
	}

	sent := 0
	for _, addr := range recipients {
		if err := n.sender.Send(ctx, addr, summary); err != nil {
			metrics.IncDelivery(false)
			log.Error().Err(err).
				Str("address", addr).
				Msg("notification delivery failed")
			continue
		}
		metrics.IncDelivery(true)
		sent++
	}

	log.Info().
		Int("recipients", len(recipients)).
		Int("sent", sent).
		Msg("notification processed")
	return sent
}
