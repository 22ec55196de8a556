package notify

import (
	"context"
	"slices"

	"taskboard/internal/domain"
	"taskboard/internal/models"

	"github.com/rs/zerolog"
)

// Resolver maps an event to the set of chat addresses that should hear about it.
type Resolver struct {
	bindings domain.BindingStore
	logger   *zerolog.Logger
}

// NewResolver builds a resolver; bindings may be nil when snapshots always carry addresses.
func NewResolver(bindings domain.BindingStore, logger *zerolog.Logger) *Resolver {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &Resolver{bindings: bindings, logger: logger}
}

// Resolve returns the sorted, duplicate-free addresses of the event's members. Updated
// events cover members of both snapshots so people removed from a task are still told.
// Lookup failures are logged and the identity is treated as unbound.
func (r *Resolver) Resolve(ctx context.Context, event models.ChangeEvent) []string {
	var snaps []*models.TaskSnapshot
	switch event.Kind {
	case models.ChangeCreated:
		snaps = append(snaps, event.New)
	case models.ChangeDeleted:
		snaps = append(snaps, event.Old)
	case models.ChangeUpdated:
		snaps = append(snaps, event.Old, event.New)
	}

	seen := make(map[string]bool)
	var addrs []string
	for _, snap := range snaps {
		if snap == nil {
			continue
		}
		for _, identity := range snap.Members() {
			addr, ok := r.lookup(ctx, snap, identity)
			if !ok || addr == "" || seen[addr] {
				continue
			}
			seen[addr] = true
			addrs = append(addrs, addr)
		}
	}
	slices.Sort(addrs)
	return addrs
}

func (r *Resolver) lookup(ctx context.Context, snap *models.TaskSnapshot, identity string) (string, bool) {
	if addr, ok := snap.Addresses[identity]; ok && addr != "" {
		return addr, true
	}
	if r.bindings == nil {
		return "", false
	}
	addr, ok, err := r.bindings.GetBinding(ctx, identity)
	if err != nil {
		r.logger.Warn().Err(err).Str("identity", identity).Msg("binding lookup failed")
		return "", false
	}
	return addr, ok
}
