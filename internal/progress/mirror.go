package progress

import (
	"context"
	"log/slog"
)

// Mirrored pairs the remote row store with the local cache: writes go to
// both so progress survives offline, reads prefer the remote and fall
// back to the cache when it is unreachable.
type Mirrored struct {
	primary Store
	cache   Store
	logger  *slog.Logger
}

// NewMirrored creates a mirrored store.
func NewMirrored(primary, cache Store, logger *slog.Logger) *Mirrored {
	return &Mirrored{primary: primary, cache: cache, logger: logger}
}

// WriteProgress writes to the cache first, then the remote. A cache
// failure is logged and ignored; the remote result decides success so the
// manager's retry loop still applies to the row store.
func (m *Mirrored) WriteProgress(ctx context.Context, snap Snapshot) error {
	if err := m.cache.WriteProgress(ctx, snap); err != nil {
		m.logger.Debug("local progress cache write failed",
			"item_id", snap.ItemID, "error", err)
	}
	return m.primary.WriteProgress(ctx, snap)
}

// ReadProgress reads from the remote, falling back to the cache.
func (m *Mirrored) ReadProgress(ctx context.Context, userID, itemID string) (*Snapshot, error) {
	snap, err := m.primary.ReadProgress(ctx, userID, itemID)
	if err == nil {
		return snap, nil
	}
	m.logger.Debug("remote progress read failed, using local cache",
		"item_id", itemID, "error", err)
	return m.cache.ReadProgress(ctx, userID, itemID)
}

var _ Store = (*Mirrored)(nil)
