package health

import (
	"context"
	"sync"
	"time"

	"connectord/pkg/logging"
)

// Failure reasons reported to the sink. These end up verbatim in the
// instance's error_message.
const (
	ReasonProcessExited    = "process exited unexpectedly"
	ReasonHeartbeatTimeout = "heartbeat timeout"
)

// AliveChecker answers whether a pid currently exists. Implemented by the
// process supervisor.
type AliveChecker interface {
	IsAlive(pid int) bool
}

// HeartbeatSource reports when an instance last demonstrated liveness. The
// signal is pluggable: the default implementation reads the store's
// last_heartbeat, which both ingestion pushes and explicit pings refresh.
type HeartbeatSource interface {
	LastHeartbeat(ctx context.Context, instanceID string) (*time.Time, error)
}

// Sink receives health verdicts. The lifecycle manager implements it and
// performs the resulting state transitions under its per-instance locks;
// the monitor itself holds no instance state.
type Sink interface {
	// OnHealthFailure is called once when a watched instance fails a check.
	// The monitor stops watching the instance after reporting.
	OnHealthFailure(instanceID string, reason string)

	// OnHealthSuccess is called after every passing check.
	OnHealthSuccess(instanceID string)
}

// Options configures check cadence and heartbeat staleness.
type Options struct {
	// Interval between checks for each watched instance.
	Interval time.Duration

	// Staleness is how old a heartbeat may be before the instance is
	// considered hung.
	Staleness time.Duration
}

// Monitor polls process liveness and heartbeat freshness for running
// instances. Each watched instance gets its own goroutine and ticker, so N
// instances never serialize on each other, and no lock is held while a
// check runs.
type Monitor struct {
	opts       Options
	alive      AliveChecker
	heartbeats HeartbeatSource
	sink       Sink

	mu       sync.Mutex
	watchers map[string]context.CancelFunc
	wg       sync.WaitGroup
}

// NewMonitor creates a monitor. Watch must be called per instance.
func NewMonitor(opts Options, alive AliveChecker, heartbeats HeartbeatSource, sink Sink) *Monitor {
	return &Monitor{
		opts:       opts,
		alive:      alive,
		heartbeats: heartbeats,
		sink:       sink,
		watchers:   make(map[string]context.CancelFunc),
	}
}

// Watch starts health checking for an instance. The first check runs
// immediately, which is what promotes a freshly spawned instance out of
// STARTING. Watching an already-watched instance restarts its loop with the
// new pid.
func (m *Monitor) Watch(instanceID string, pid int) {
	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	if prev, exists := m.watchers[instanceID]; exists {
		prev()
	}
	m.watchers[instanceID] = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(ctx, instanceID, pid)
	logging.Debug("HealthMonitor", "Watching instance %s (pid %d)", instanceID, pid)
}

// Unwatch stops health checking for an instance. Safe to call for
// instances that are not watched.
func (m *Monitor) Unwatch(instanceID string) {
	m.mu.Lock()
	cancel, exists := m.watchers[instanceID]
	if exists {
		delete(m.watchers, instanceID)
	}
	m.mu.Unlock()

	if exists {
		cancel()
		logging.Debug("HealthMonitor", "Stopped watching instance %s", instanceID)
	}
}

// Watched returns whether the instance is currently being checked.
func (m *Monitor) Watched(instanceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.watchers[instanceID]
	return exists
}

// Stop cancels all watchers and waits for their loops to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	for id, cancel := range m.watchers {
		cancel()
		delete(m.watchers, id)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Monitor) run(ctx context.Context, instanceID string, pid int) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	for {
		if ok := m.check(ctx, instanceID, pid); !ok {
			// The failure was reported; this instance's loop is done. The
			// manager removes the watcher entry via Unwatch.
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// check performs one liveness check and reports the verdict. Returns false
// when the instance failed and the loop should stop.
func (m *Monitor) check(ctx context.Context, instanceID string, pid int) bool {
	if !m.alive.IsAlive(pid) {
		m.sink.OnHealthFailure(instanceID, ReasonProcessExited)
		return false
	}

	heartbeat, err := m.heartbeats.LastHeartbeat(ctx, instanceID)
	if err != nil {
		// A store hiccup is not evidence the connector is unhealthy.
		logging.Warn("HealthMonitor", "Failed to read heartbeat for %s: %v", instanceID, err)
		return true
	}
	if heartbeat != nil && time.Since(*heartbeat) > m.opts.Staleness {
		// Alive but hung. Report it; killing a live process is an operator
		// decision, never the monitor's.
		m.sink.OnHealthFailure(instanceID, ReasonHeartbeatTimeout)
		return false
	}

	m.sink.OnHealthSuccess(instanceID)
	return true
}
