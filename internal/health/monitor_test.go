package health

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAlive struct {
	mu    sync.Mutex
	alive map[int]bool
}

func newFakeAlive() *fakeAlive {
	return &fakeAlive{alive: make(map[int]bool)}
}

func (f *fakeAlive) IsAlive(pid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive[pid]
}

func (f *fakeAlive) set(pid int, alive bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alive[pid] = alive
}

type fakeHeartbeats struct {
	mu    sync.Mutex
	beats map[string]time.Time
}

func newFakeHeartbeats() *fakeHeartbeats {
	return &fakeHeartbeats{beats: make(map[string]time.Time)}
}

func (f *fakeHeartbeats) LastHeartbeat(ctx context.Context, instanceID string) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.beats[instanceID]; ok {
		return &t, nil
	}
	return nil, nil
}

func (f *fakeHeartbeats) set(instanceID string, t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beats[instanceID] = t
}

type recordingSink struct {
	mu        sync.Mutex
	failures  map[string]string
	successes map[string]int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		failures:  make(map[string]string),
		successes: make(map[string]int),
	}
}

func (r *recordingSink) OnHealthFailure(instanceID, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[instanceID] = reason
}

func (r *recordingSink) OnHealthSuccess(instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes[instanceID]++
}

func (r *recordingSink) failure(instanceID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reason, ok := r.failures[instanceID]
	return reason, ok
}

func (r *recordingSink) successCount(instanceID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.successes[instanceID]
}

func testOptions() Options {
	return Options{Interval: 20 * time.Millisecond, Staleness: time.Minute}
}

func TestFirstCheckRunsImmediately(t *testing.T) {
	alive := newFakeAlive()
	alive.set(100, true)
	beats := newFakeHeartbeats()
	beats.set("inst-1", time.Now())
	sink := newRecordingSink()

	m := NewMonitor(testOptions(), alive, beats, sink)
	defer m.Stop()

	m.Watch("inst-1", 100)

	assert.Eventually(t, func() bool { return sink.successCount("inst-1") >= 1 },
		time.Second, 5*time.Millisecond, "first check should not wait for the first tick")
}

func TestDeadProcessReportsFailure(t *testing.T) {
	alive := newFakeAlive()
	alive.set(100, true)
	beats := newFakeHeartbeats()
	beats.set("inst-1", time.Now())
	sink := newRecordingSink()

	m := NewMonitor(testOptions(), alive, beats, sink)
	defer m.Stop()

	m.Watch("inst-1", 100)
	require.Eventually(t, func() bool { return sink.successCount("inst-1") >= 1 }, time.Second, 5*time.Millisecond)

	alive.set(100, false)

	assert.Eventually(t, func() bool {
		reason, ok := sink.failure("inst-1")
		return ok && reason == ReasonProcessExited
	}, time.Second, 5*time.Millisecond)
}

func TestStaleHeartbeatReportsTimeout(t *testing.T) {
	alive := newFakeAlive()
	alive.set(100, true)
	beats := newFakeHeartbeats()
	beats.set("inst-1", time.Now().Add(-time.Hour))
	sink := newRecordingSink()

	m := NewMonitor(testOptions(), alive, beats, sink)
	defer m.Stop()

	m.Watch("inst-1", 100)

	assert.Eventually(t, func() bool {
		reason, ok := sink.failure("inst-1")
		return ok && reason == ReasonHeartbeatTimeout
	}, time.Second, 5*time.Millisecond)
}

func TestNilHeartbeatIsNotStale(t *testing.T) {
	alive := newFakeAlive()
	alive.set(100, true)
	sink := newRecordingSink()

	m := NewMonitor(testOptions(), alive, newFakeHeartbeats(), sink)
	defer m.Stop()

	m.Watch("inst-1", 100)

	assert.Eventually(t, func() bool { return sink.successCount("inst-1") >= 2 }, time.Second, 5*time.Millisecond)
	_, failed := sink.failure("inst-1")
	assert.False(t, failed, "an instance that has not pushed yet must not be marked hung")
}

func TestUnwatchStopsChecking(t *testing.T) {
	alive := newFakeAlive()
	alive.set(100, true)
	beats := newFakeHeartbeats()
	beats.set("inst-1", time.Now())
	sink := newRecordingSink()

	m := NewMonitor(testOptions(), alive, beats, sink)
	defer m.Stop()

	m.Watch("inst-1", 100)
	require.Eventually(t, func() bool { return sink.successCount("inst-1") >= 1 }, time.Second, 5*time.Millisecond)

	m.Unwatch("inst-1")
	assert.False(t, m.Watched("inst-1"))

	// Killing the process after Unwatch must not produce a failure report.
	alive.set(100, false)
	before, _ := sink.failure("inst-1")
	time.Sleep(5 * testOptions().Interval)
	after, _ := sink.failure("inst-1")
	assert.Equal(t, before, after)
}

func TestFailureStopsLoop(t *testing.T) {
	alive := newFakeAlive()
	sink := newRecordingSink()

	m := NewMonitor(testOptions(), alive, newFakeHeartbeats(), sink)
	defer m.Stop()

	m.Watch("inst-1", 100) // pid never alive

	require.Eventually(t, func() bool {
		_, ok := sink.failure("inst-1")
		return ok
	}, time.Second, 5*time.Millisecond)

	// Only one failure report per watch.
	assert.Equal(t, 0, sink.successCount("inst-1"))
}

func TestIndependentInstances(t *testing.T) {
	alive := newFakeAlive()
	alive.set(1, true)
	alive.set(2, false)
	beats := newFakeHeartbeats()
	beats.set("healthy", time.Now())
	sink := newRecordingSink()

	m := NewMonitor(testOptions(), alive, beats, sink)
	defer m.Stop()

	m.Watch("healthy", 1)
	m.Watch("dead", 2)

	assert.Eventually(t, func() bool {
		reason, ok := sink.failure("dead")
		return ok && reason == ReasonProcessExited
	}, time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool { return sink.successCount("healthy") >= 2 }, time.Second, 5*time.Millisecond)
	_, failed := sink.failure("healthy")
	assert.False(t, failed, "failure of one instance must not leak into another")
}
