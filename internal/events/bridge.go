package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// DefaultMaxSubscribers bounds the number of concurrent subscriptions so a
// leaked Subscribe (missing unsubscribe call) surfaces as an error instead
// of unbounded growth.
const DefaultMaxSubscribers = 100

// subscriberBuffer is the per-subscriber channel capacity. A subscriber
// that falls this far behind starts losing events.
const subscriberBuffer = 16

// ErrTooManySubscribers is returned by Subscribe when the subscriber limit
// has been reached.
var ErrTooManySubscribers = errors.New("too many event subscribers")

// Bridge fans job lifecycle events out to in-process subscribers and
// forwards terminal events to the configured Notifier. It implements
// Publisher.
type Bridge struct {
	mu             sync.RWMutex
	subscribers    map[int]chan JobEvent
	nextID         int
	maxSubscribers int

	notifier Notifier
	logger   *slog.Logger
}

// NewBridge creates a Bridge with the given notifier and subscriber limit.
// A nil notifier disables outbound notification; maxSubscribers <= 0 uses
// DefaultMaxSubscribers.
func NewBridge(notifier Notifier, maxSubscribers int, logger *slog.Logger) *Bridge {
	if maxSubscribers <= 0 {
		maxSubscribers = DefaultMaxSubscribers
	}

	return &Bridge{
		subscribers:    make(map[int]chan JobEvent),
		maxSubscribers: maxSubscribers,
		notifier:       notifier,
		logger:         logger.With("component", "event_bridge"),
	}
}

// Subscribe registers a new subscriber and returns its event channel along
// with an unsubscribe function. The channel is closed on unsubscribe.
// Returns ErrTooManySubscribers when the limit is reached.
func (b *Bridge) Subscribe() (<-chan JobEvent, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.subscribers) >= b.maxSubscribers {
		return nil, nil, ErrTooManySubscribers
	}

	id := b.nextID
	b.nextID++

	ch := make(chan JobEvent, subscriberBuffer)
	b.subscribers[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(sub)
		}
	}

	return ch, unsubscribe, nil
}

// SubscriberCount returns the number of active subscriptions.
func (b *Bridge) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Publish delivers the event to every subscriber without blocking; a
// subscriber whose buffer is full loses the event. Terminal events are
// additionally handed to the notifier on a separate goroutine so webhook
// latency never delays the queue.
func (b *Bridge) Publish(ctx context.Context, event JobEvent) {
	if !event.Kind.Valid() {
		b.logger.Error("dropping event with unknown kind",
			"kind", string(event.Kind),
			"job_id", event.JobID)
		return
	}

	b.mu.RLock()
	for id, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			b.logger.Warn("subscriber too slow, dropping event",
				"subscriber_id", id,
				"kind", string(event.Kind),
				"job_id", event.JobID)
		}
	}
	b.mu.RUnlock()

	if event.Kind.Terminal() && b.notifier != nil {
		go b.notify(event)
	}
}

// notify performs a single best-effort notification. Failures are logged
// and never retried; webhook delivery does not affect job state.
func (b *Bridge) notify(event JobEvent) {
	if err := b.notifier.Notify(context.Background(), event); err != nil {
		b.logger.Error("webhook notification failed",
			"kind", string(event.Kind),
			"job_id", event.JobID,
			"error", err)
	}
}
