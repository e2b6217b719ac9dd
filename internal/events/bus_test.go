package events

import (
	"fmt"
	"testing"
	"time"

	"connectord/internal/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe(8)
	b := bus.Subscribe(8)
	defer bus.Unsubscribe(a)
	defer bus.Unsubscribe(b)

	bus.Publish(LifecycleEvent{
		InstanceID: "inst-1",
		OldState:   api.StateConfigured,
		NewState:   api.StateStarting,
	})

	for _, sub := range []*Subscription{a, b} {
		select {
		case ev := <-sub.Events():
			assert.Equal(t, "inst-1", ev.InstanceID)
			assert.Equal(t, api.StateStarting, ev.NewState)
			assert.False(t, ev.Timestamp.IsZero(), "publish should stamp the event")
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestSlowSubscriberDropsOldest(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(2)
	defer bus.Unsubscribe(sub)

	for i := 0; i < 5; i++ {
		bus.Publish(LifecycleEvent{InstanceID: fmt.Sprintf("inst-%d", i)})
	}

	// Capacity 2, five publishes: the two newest survive.
	first := <-sub.Events()
	second := <-sub.Events()
	assert.Equal(t, "inst-3", first.InstanceID)
	assert.Equal(t, "inst-4", second.InstanceID)

	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected extra event %v", ev)
	default:
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(1)
	defer bus.Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		// Nobody reads sub; publishing must still return promptly.
		for i := 0; i < 1000; i++ {
			bus.Publish(LifecycleEvent{InstanceID: "noisy"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestPerInstanceOrderingPreserved(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(16)
	defer bus.Unsubscribe(sub)

	states := []api.ConnectorState{api.StateStarting, api.StateRunning, api.StateStopping, api.StateStopped}
	for i, s := range states {
		old := api.StateConfigured
		if i > 0 {
			old = states[i-1]
		}
		bus.Publish(LifecycleEvent{InstanceID: "inst-1", OldState: old, NewState: s})
	}

	for _, want := range states {
		ev := <-sub.Events()
		assert.Equal(t, want, ev.NewState)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(4)
	bus.Unsubscribe(sub)

	_, open := <-sub.Events()
	assert.False(t, open)
	assert.Equal(t, 0, bus.SubscriberCount())

	// Double unsubscribe is safe.
	bus.Unsubscribe(sub)

	// Publishing after unsubscribe must not panic.
	bus.Publish(LifecycleEvent{InstanceID: "inst-1"})
}

func TestConcurrentPublishAndUnsubscribe(t *testing.T) {
	bus := NewBus()

	subs := make([]*Subscription, 10)
	for i := range subs {
		subs[i] = bus.Subscribe(4)
	}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			bus.Publish(LifecycleEvent{InstanceID: "inst"})
		}
		close(done)
	}()

	for _, sub := range subs {
		bus.Unsubscribe(sub)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publisher deadlocked against unsubscribe")
	}
	require.Equal(t, 0, bus.SubscriberCount())
}
