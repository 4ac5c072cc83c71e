package events

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/vmunix/andrate/internal/metrics"
)

type subscription struct {
	ch    chan Event
	types []string // empty matches every type
}

func (s subscription) wants(eventType string) bool {
	return len(s.types) == 0 || slices.Contains(s.types, eventType)
}

// Bus delivers published events to subscribers and, with an EventLog
// attached, records them first. Publishers never wait on a slow subscriber:
// a full buffer drops the delivery and counts it.
type Bus struct {
	mu      sync.RWMutex
	subs    []subscription
	closed  bool
	log     *EventLog
	logger  *slog.Logger
	dropped atomic.Int64
}

// NewBus returns a bus. A nil log disables persistence.
func NewBus(log *EventLog, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{log: log, logger: logger.With("component", "events")}
}

// Publish records e and hands it to every interested subscriber. A failed
// append is logged and delivery goes ahead.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	if b.isClosed() {
		return nil
	}
	if b.log != nil {
		if _, err := b.log.Append(ctx, e); err != nil {
			b.logger.Error("append to event log failed", "type", e.EventType(), "error", err)
		}
	}
	metrics.EventsPublished.WithLabelValues(e.EventType()).Inc()

	// Subscriber channels are closed only with the write lock held.
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	for _, sub := range b.subs {
		if !sub.wants(e.EventType()) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			b.dropped.Add(1)
			metrics.EventsDropped.WithLabelValues(e.EventType()).Inc()
			b.logger.Warn("subscriber full, event dropped",
				"type", e.EventType(),
				"entity_type", e.EntityType(),
				"entity_id", e.EntityID())
		}
	}
	return nil
}

func (b *Bus) isClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

// Subscribe returns a buffered channel receiving events of the given types,
// or of every type when none are named. On a closed bus the channel comes
// back already closed.
func (b *Bus) Subscribe(buffer int, types ...string) <-chan Event {
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, subscription{ch: ch, types: slices.Clone(types)})
	return ch
}

// Unsubscribe detaches and closes ch. Unknown channels are ignored.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := slices.IndexFunc(b.subs, func(s subscription) bool { return s.ch == ch })
	if i < 0 {
		return
	}
	close(b.subs[i].ch)
	b.subs = slices.Delete(b.subs, i, i+1)
}

// Dropped counts deliveries skipped because a subscriber was full.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Close stops delivery and closes every subscriber channel. Later publishes
// are no-ops.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.ch)
	}
	b.subs = nil
	return nil
}
