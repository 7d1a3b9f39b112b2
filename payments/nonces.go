package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const DefaultNonceRetention = 24 * time.Hour

type NonceStore interface {
	Insert(ctx context.Context, projectID, nonce string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ReplayGuard reserves single-use nonces per project. The store's uniqueness
// constraint decides; there is no check-then-insert.
type ReplayGuard struct {
	store     NonceStore
	retention time.Duration
	now       func() time.Time
}

func NewReplayGuard(store NonceStore, retention time.Duration) *ReplayGuard {
	if retention <= 0 {
		retention = DefaultNonceRetention
	}
	return &ReplayGuard{store: store, retention: retention, now: time.Now}
}

// Reserve consumes nonce for projectID. A reused nonce yields an error that
// matches both ErrReplayDetected and ErrDuplicate.
func (g *ReplayGuard) Reserve(ctx context.Context, projectID, nonce string) error {
	err := g.store.Insert(ctx, projectID, nonce)
	if errors.Is(err, ErrDuplicate) {
		return fmt.Errorf("%w: %w", ErrReplayDetected, err)
	}
	if err != nil {
		return fmt.Errorf("storing nonce: %w", err)
	}
	return nil
}

// Purge deletes nonces that are past the retention window.
func (g *ReplayGuard) Purge(ctx context.Context) (int64, error) {
	return g.store.DeleteOlderThan(ctx, g.now().Add(-g.retention))
}

// RunPurger calls Purge every interval until ctx is cancelled.
func (g *ReplayGuard) RunPurger(ctx context.Context, interval time.Duration) {
	logger := zerolog.Ctx(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := g.Purge(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("nonce purge failed")
				continue
			}
			logger.Info().Int64("deleted", n).Msg("purged expired nonces")
		}
	}
}
