package payments

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultRetryInterval    = time.Minute
	DefaultRetryMaxAttempts = 5
	DefaultRetryCapacity    = 1000
)

// RetryItem is a webhook delivery that failed at least once.
// Attempts counts failed deliveries so far.
type RetryItem struct {
	URL       string
	Payload   []byte
	ProjectID string
	Attempts  int
}

type RetryOptions struct {
	Interval    time.Duration
	MaxAttempts int
	Capacity    int
}

// RetryQueue redelivers failed webhooks on a fixed interval. Items are dropped
// once their failed deliveries exceed MaxAttempts; nothing is persisted.
type RetryQueue struct {
	deliverer Deliverer
	opts      RetryOptions

	mu    sync.Mutex
	items []*RetryItem

	sweeping atomic.Bool
}

func NewRetryQueue(deliverer Deliverer, opts RetryOptions) *RetryQueue {
	if opts.Interval <= 0 {
		opts.Interval = DefaultRetryInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultRetryMaxAttempts
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultRetryCapacity
	}
	return &RetryQueue{deliverer: deliverer, opts: opts}
}

// Enqueue adds item to the queue. It fails with ErrQueueFull at capacity.
func (q *RetryQueue) Enqueue(item RetryItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.opts.Capacity {
		return ErrQueueFull
	}
	q.items = append(q.items, &item)
	return nil
}

func (q *RetryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Items returns a copy of the queued items.
func (q *RetryQueue) Items() []RetryItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]RetryItem, 0, len(q.items))
	for _, item := range q.items {
		out = append(out, *item)
	}
	return out
}

// Sweep attempts every queued item once. It returns false without doing
// anything if another sweep is still running.
func (q *RetryQueue) Sweep(ctx context.Context) bool {
	if !q.sweeping.CompareAndSwap(false, true) {
		zerolog.Ctx(ctx).Debug().Msg("retry sweep still running, skipping")
		return false
	}
	defer q.sweeping.Store(false)

	q.mu.Lock()
	pending := make([]*RetryItem, len(q.items))
	copy(pending, q.items)
	q.mu.Unlock()

	finished := make(map[*RetryItem]struct{}, len(pending))
	for _, item := range pending {
		if ctx.Err() != nil {
			break
		}

		err := q.deliverer.Deliver(ctx, item.URL, item.ProjectID, item.Payload)
		if err == nil {
			finished[item] = struct{}{}
			continue
		}

		q.mu.Lock()
		item.Attempts++
		attempts := item.Attempts
		q.mu.Unlock()

		logger := zerolog.Ctx(ctx).With().
			Str("project_id", item.ProjectID).
			Int("attempts", attempts).
			Logger()
		if attempts > q.opts.MaxAttempts {
			finished[item] = struct{}{}
			logger.Warn().Err(err).Msg("webhook delivery dropped after max attempts")
			continue
		}
		logger.Debug().Err(err).Msg("webhook redelivery failed")
	}

	if len(finished) == 0 {
		return true
	}

	q.mu.Lock()
	kept := q.items[:0]
	for _, item := range q.items {
		if _, ok := finished[item]; !ok {
			kept = append(kept, item)
		}
	}
	// clear the tail so dropped items can be collected
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = nil
	}
	q.items = kept
	q.mu.Unlock()
	return true
}

// Run sweeps every interval until ctx is cancelled. Ticks that fire while a
// sweep is in progress are dropped by the ticker.
func (q *RetryQueue) Run(ctx context.Context) {
	ticker := time.NewTicker(q.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.Sweep(ctx)
		}
	}
}
