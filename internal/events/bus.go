package events

import (
	"sync"
	"time"

	"connectord/internal/api"
	"connectord/pkg/logging"
)

// DefaultSubscriberBuffer is the per-subscriber channel capacity used when
// a subscriber does not ask for a specific one.
const DefaultSubscriberBuffer = 64

// LifecycleEvent records one state transition of a connector instance. It
// is ephemeral: delivered at-most-once per subscriber, never persisted.
// Subscribers that fall behind reconcile by polling instance state.
type LifecycleEvent struct {
	InstanceID string             `json:"instance_id"`
	OldState   api.ConnectorState `json:"old_state"`
	NewState   api.ConnectorState `json:"new_state"`
	Reason     string             `json:"reason,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
}

// Subscription is one subscriber's bounded view of the event stream.
type Subscription struct {
	id int64
	ch chan LifecycleEvent
}

// Events returns the subscriber's receive channel. It is closed when the
// subscription is cancelled.
func (s *Subscription) Events() <-chan LifecycleEvent {
	return s.ch
}

// Bus is an in-process publish/subscribe fan-out of lifecycle events.
// Publish never blocks: each subscriber has a bounded buffer, and when a
// buffer is full the oldest pending event is dropped to make room, so a
// slow consumer can never stall the state machine.
//
// Ordering per instance is preserved because the lifecycle manager
// serializes transitions per instance; the bus itself delivers in publish
// order.
type Bus struct {
	mu     sync.Mutex
	nextID int64
	subs   map[int64]*Subscription
}

// NewBus creates an event bus with no subscribers.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[int64]*Subscription),
	}
}

// Subscribe registers a new subscriber with the given buffer capacity.
// A non-positive buffer falls back to DefaultSubscriberBuffer.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{
		id: b.nextID,
		ch: make(chan LifecycleEvent, buffer),
	}
	b.subs[sub.id] = sub
	return sub
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subs[sub.id]; !exists {
		return
	}
	delete(b.subs, sub.id)
	close(sub.ch)
}

// Publish delivers the event to every subscriber without blocking. The
// channel operations happen under the bus lock, which also guarantees no
// send races a concurrent Unsubscribe close.
func (b *Bus) Publish(event LifecycleEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		select {
		case sub.ch <- event:
			continue
		default:
		}

		// Buffer full: drop the oldest pending event, then enqueue.
		select {
		case dropped := <-sub.ch:
			logging.Debug("EventBus", "Subscriber %d overflow, dropped event for instance %s", sub.id, dropped.InstanceID)
		default:
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
