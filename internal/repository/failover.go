package repository

import (
	"context"
	"sync/atomic"
	"time"

	"taskboard/internal/domain"

	"github.com/rs/zerolog"
)

const failoverRetryAfter = time.Minute

// FailoverBindingStore reads and writes the primary store and switches to the fallback
// while the primary is failing. Writes made during an outage only live in the fallback.
type FailoverBindingStore struct {
	primary   domain.BindingStore
	fallback  domain.BindingStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
	now       func() time.Time
}

func NewFailoverBindingStore(primary, fallback domain.BindingStore, logger *zerolog.Logger) *FailoverBindingStore {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &FailoverBindingStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

func (r *FailoverBindingStore) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary binding store failed, falling back to secondary store")
	}
	r.lastCheck.Store(r.now().UnixNano())
}

// primaryUsable reports whether the primary should be tried: it is up, or the retry window passed.
func (r *FailoverBindingStore) primaryUsable() bool {
	if !r.isDown.Load() {
		return true
	}
	return r.now().Sub(time.Unix(0, r.lastCheck.Load())) > failoverRetryAfter
}

func (r *FailoverBindingStore) recovered() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("Primary binding store recovered")
	}
}

func (r *FailoverBindingStore) GetBinding(ctx context.Context, identity string) (string, bool, error) {
	if r.primaryUsable() {
		addr, ok, err := r.primary.GetBinding(ctx, identity)
		if err == nil {
			r.recovered()
			if ok {
				return addr, true, nil
			}
			// bindings written during an outage are only in the fallback
			return r.fallback.GetBinding(ctx, identity)
		}
		r.markDown(err)
	}
	return r.fallback.GetBinding(ctx, identity)
}

func (r *FailoverBindingStore) SetBinding(ctx context.Context, identity, address string) error {
	if r.primaryUsable() {
		err := r.primary.SetBinding(ctx, identity, address)
		if err == nil {
			r.recovered()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SetBinding(ctx, identity, address)
}

// Degraded reports whether the store is currently serving from the fallback.
func (r *FailoverBindingStore) Degraded() bool {
	return r.isDown.Load()
}
