// Package notify delivers transient shopper-facing messages ("added to
// cart", "order placed") to the session that triggered them.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pr-poehali-dev/zdrav-project/internal/domain"
)

// Notifier accepts a notification for a session.
type Notifier interface {
	Notify(ctx context.Context, sessionID string, n domain.Notification)
}

// DefaultInboxLimit caps how many undelivered notifications a session keeps.
const DefaultInboxLimit = 20

type queue struct {
	items   []domain.Notification
	updated time.Time
}

// Inbox queues notifications per session until the next page render or
// API poll drains them. When a queue is full the oldest entry is dropped.
// Queues untouched for longer than the TTL belong to sessions that have
// expired and are removed by Sweep.
type Inbox struct {
	mu      sync.Mutex
	queues  map[string]*queue
	limit   int
	ttl     time.Duration
	logger  *slog.Logger
	nowFunc func() time.Time
}

// NewInbox creates an empty inbox. A non-positive limit uses DefaultInboxLimit.
// A non-positive ttl disables sweeping.
func NewInbox(limit int, ttl time.Duration, logger *slog.Logger) *Inbox {
	if limit <= 0 {
		limit = DefaultInboxLimit
	}
	return &Inbox{
		queues:  make(map[string]*queue),
		limit:   limit,
		ttl:     ttl,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// Notify appends n to the session's queue.
func (b *Inbox) Notify(ctx context.Context, sessionID string, n domain.Notification) {
	b.mu.Lock()
	q, ok := b.queues[sessionID]
	if !ok {
		q = &queue{}
		b.queues[sessionID] = q
	}
	q.items = append(q.items, n)
	if len(q.items) > b.limit {
		q.items = q.items[len(q.items)-b.limit:]
	}
	q.updated = b.nowFunc()
	b.mu.Unlock()

	b.logger.DebugContext(ctx, "notification queued",
		slog.String("session_id", sessionID),
		slog.String("kind", string(n.Kind)),
		slog.String("message", n.Message),
	)
}

// Drain returns and forgets the session's pending notifications, oldest first.
func (b *Inbox) Drain(sessionID string) []domain.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[sessionID]
	if !ok {
		return nil
	}
	delete(b.queues, sessionID)
	return q.items
}

// Sweep drops every queue not written to within the TTL and returns how
// many were removed.
func (b *Inbox) Sweep() int {
	if b.ttl <= 0 {
		return 0
	}
	cutoff := b.nowFunc().Add(-b.ttl)

	b.mu.Lock()
	defer b.mu.Unlock()

	var n int
	for id, q := range b.queues {
		if q.updated.Before(cutoff) {
			delete(b.queues, id)
			n++
		}
	}
	return n
}

// RunJanitor sweeps stale queues every interval until ctx is done.
func (b *Inbox) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := b.Sweep(); n > 0 {
				b.logger.Debug("stale notification queues evicted", slog.Int("count", n))
			}
		}
	}
}

// Mailbox is a Notifier whose queued notifications can be collected.
type Mailbox interface {
	Notifier
	Drain(sessionID string) []domain.Notification
}
