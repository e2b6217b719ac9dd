package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"connectord/internal/api"
	"connectord/internal/events"
	"connectord/internal/health"
	"connectord/internal/store"
	"connectord/internal/supervisor"
	"connectord/pkg/logging"
)

// ErrShuttingDown rejects operations that arrive after ShutdownAll has
// begun. New starts during shutdown would leave orphaned processes.
var ErrShuttingDown = errors.New("daemon shutdown in progress")

// batchStartConcurrency bounds how many spawns a batch start runs at once.
const batchStartConcurrency = 8

// ProcessSupervisor is the slice of the supervisor the manager drives.
// Kept narrow so tests can substitute a fake.
type ProcessSupervisor interface {
	Start(ctx context.Context, instanceID string, spec supervisor.StartSpec) (int, error)
	Stop(ctx context.Context, instanceID string, graceful bool, timeout time.Duration) (bool, error)
	Adopt(instanceID string, pid int)
	Signal(instanceID string, sig os.Signal) error
	Pid(instanceID string) (int, bool)
	Release(instanceID string)
	IsAlive(pid int) bool
}

// TypeSource provides connector type manifests. Satisfied by
// catalog.Catalog.
type TypeSource interface {
	Discover() []api.ConnectorType
	Get(typeID string) (*api.ConnectorType, bool)
	List() []api.ConnectorType
}

// Options tunes the manager's timing behavior.
type Options struct {
	// HealthInterval is the per-instance health check cadence.
	HealthInterval time.Duration

	// HeartbeatStaleness is how long a running instance may go without
	// pushing data or a liveness ping before it is marked hung.
	HeartbeatStaleness time.Duration

	// GracefulStopTimeout bounds the graceful phase of a stop before
	// escalation to a forced kill.
	GracefulStopTimeout time.Duration

	// ShutdownDeadline bounds ShutdownAll overall.
	ShutdownDeadline time.Duration

	// DaemonBaseURL is handed to connector processes so they can fetch
	// their config and push ingested data back.
	DaemonBaseURL string
}

func (o *Options) applyDefaults() {
	if o.HealthInterval <= 0 {
		o.HealthInterval = 10 * time.Second
	}
	if o.HeartbeatStaleness <= 0 {
		o.HeartbeatStaleness = 5 * time.Minute
	}
	if o.GracefulStopTimeout <= 0 {
		o.GracefulStopTimeout = 10 * time.Second
	}
	if o.ShutdownDeadline <= 0 {
		o.ShutdownDeadline = 30 * time.Second
	}
}

// Manager composes the catalog, store, supervisor, health monitor and
// event bus into the connector lifecycle facade. All state mutation for a
// given instance is serialized through its entry in the lock table;
// operations on different instances proceed in parallel.
type Manager struct {
	opts    Options
	types   TypeSource
	store   store.Store
	sup     ProcessSupervisor
	monitor *health.Monitor
	bus     *events.Bus
	router  *ConfigRouter

	// locks holds one mutex per instance ID, created on first use and
	// removed on delete.
	locks sync.Map

	// createMu serializes instance-limit checks across concurrent creates
	// of the same type.
	createMu sync.Mutex

	shuttingDown atomic.Bool
}

// NewManager wires the lifecycle manager. The manager registers itself as
// the health monitor's sink and heartbeat source.
func NewManager(opts Options, types TypeSource, st store.Store, sup ProcessSupervisor, bus *events.Bus) *Manager {
	opts.applyDefaults()
	m := &Manager{
		opts:  opts,
		types: types,
		store: st,
		sup:   sup,
		bus:   bus,
	}
	m.monitor = health.NewMonitor(health.Options{
		Interval:  opts.HealthInterval,
		Staleness: opts.HeartbeatStaleness,
	}, sup, m, m)
	m.router = NewConfigRouter(types, st, &signalNotifier{sup: sup})
	return m
}

// Close stops all health check workers. Call after ShutdownAll.
func (m *Manager) Close() {
	m.monitor.Stop()
}

func (m *Manager) lockFor(instanceID string) *sync.Mutex {
	mu, _ := m.locks.LoadOrStore(instanceID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (m *Manager) publish(instanceID string, oldState, newState api.ConnectorState, reason string) {
	m.bus.Publish(events.LifecycleEvent{
		InstanceID: instanceID,
		OldState:   oldState,
		NewState:   newState,
		Reason:     reason,
	})
}

// DiscoverConnectors re-scans the type catalog and returns the installable
// connector types.
func (m *Manager) DiscoverConnectors() []api.ConnectorType {
	return m.types.Discover()
}

// ListConnectorTypes returns the currently loaded connector types without
// re-scanning.
func (m *Manager) ListConnectorTypes() []api.ConnectorType {
	return m.types.List()
}

// CreateInstance validates the type, enforces instance limits, resolves an
// optional template and persists a new instance in the configured state.
// With autoStart set the instance is started immediately; a failed
// auto-start leaves the instance in error rather than failing the create.
func (m *Manager) CreateInstance(ctx context.Context, typeID, displayName string, config map[string]interface{}, autoStart bool, templateID string) (*api.ConnectorInstance, error) {
	ct, ok := m.types.Get(typeID)
	if !ok {
		return nil, api.NewInvalidTypeError(typeID)
	}

	cfg := config
	if templateID != "" {
		tpl := findTemplate(ct, templateID)
		if tpl == nil {
			return nil, api.NewConfigValidationError("type %s has no template %q", typeID, templateID)
		}
		cfg = mergeConfig(tpl.Config, config)
		if displayName == "" {
			displayName = tpl.DisplayName
		}
	}
	if cfg == nil {
		cfg = map[string]interface{}{}
	}
	if displayName == "" {
		displayName = ct.DisplayName
	}
	if displayName == "" {
		displayName = ct.Name
	}

	inst := &api.ConnectorInstance{
		InstanceID:  uuid.NewString(),
		TypeID:      typeID,
		DisplayName: displayName,
		Config:      cfg,
		Enabled:     true,
		AutoStart:   autoStart,
		State:       api.StateConfigured,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	// The limit check and the create must be atomic with respect to other
	// creates, or two concurrent creates of a single-instance type both
	// pass the check.
	m.createMu.Lock()
	existing, err := m.store.List(ctx, store.Filter{TypeID: typeID})
	if err != nil {
		m.createMu.Unlock()
		return nil, err
	}
	limit := instanceLimit(ct)
	if limit > 0 && len(existing) >= limit {
		m.createMu.Unlock()
		return nil, api.NewInstanceLimitExceededError(typeID, limit)
	}
	if err := m.store.Create(ctx, inst); err != nil {
		m.createMu.Unlock()
		return nil, err
	}
	m.createMu.Unlock()

	logging.Info("Lifecycle", "created instance %s of type %s", inst.InstanceID, typeID)
	m.publish(inst.InstanceID, "", api.StateConfigured, "instance created")

	if autoStart {
		started, err := m.StartInstance(ctx, inst.InstanceID)
		if err != nil {
			logging.Error("Lifecycle", err, "auto-start of instance %s failed", inst.InstanceID)
			if started == nil {
				started, _ = m.GetInstance(ctx, inst.InstanceID)
			}
			if started != nil {
				return started, nil
			}
			return inst, nil
		}
		return started, nil
	}
	return inst, nil
}

func findTemplate(ct *api.ConnectorType, templateID string) *api.InstanceTemplate {
	for i := range ct.InstanceTemplates {
		if ct.InstanceTemplates[i].TemplateID == templateID {
			return &ct.InstanceTemplates[i]
		}
	}
	return nil
}

// mergeConfig overlays explicit config on top of template defaults.
func mergeConfig(base, overlay map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

func instanceLimit(ct *api.ConnectorType) int {
	if !ct.SupportsMultipleInstances {
		return 1
	}
	return ct.MaxInstancesPerUser
}

// StartInstance spawns the instance's process and moves it to starting.
// The promotion to running happens on the first successful health check.
func (m *Manager) StartInstance(ctx context.Context, instanceID string) (*api.ConnectorInstance, error) {
	if m.shuttingDown.Load() {
		return nil, ErrShuttingDown
	}
	mu := m.lockFor(instanceID)
	mu.Lock()
	defer mu.Unlock()
	return m.startLocked(ctx, instanceID)
}

func (m *Manager) startLocked(ctx context.Context, instanceID string) (*api.ConnectorInstance, error) {
	// Re-checked under the instance lock: together with the shutdown
	// sweep, this makes a start racing ShutdownAll deterministic.
	if m.shuttingDown.Load() {
		return nil, ErrShuttingDown
	}
	inst, err := m.store.Get(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if err := checkStart(inst); err != nil {
		return nil, err
	}
	ct, ok := m.types.Get(inst.TypeID)
	if !ok {
		return nil, api.NewInvalidTypeError(inst.TypeID)
	}

	old := inst.State
	pid, err := m.sup.Start(ctx, instanceID, m.startSpec(ct, inst))
	if err != nil {
		updated, uerr := m.store.Update(ctx, instanceID, func(i *api.ConnectorInstance) error {
			i.State = api.StateError
			i.ProcessID = nil
			i.ErrorMessage = err.Error()
			return nil
		})
		if uerr != nil {
			logging.Error("Lifecycle", uerr, "failed to record spawn failure for instance %s", instanceID)
			return nil, err
		}
		logging.Error("Lifecycle", err, "spawn failed for instance %s", instanceID)
		m.publish(instanceID, old, api.StateError, err.Error())
		return updated, err
	}

	updated, err := m.store.Update(ctx, instanceID, func(i *api.ConnectorInstance) error {
		i.State = api.StateStarting
		i.ProcessID = &pid
		i.ErrorMessage = ""
		return nil
	})
	if err != nil {
		// Persistence failed after the process came up. Kill it rather
		// than leak an untracked child.
		m.sup.Stop(ctx, instanceID, false, 0)
		m.sup.Release(instanceID)
		return nil, err
	}

	logging.Info("Lifecycle", "instance %s starting with pid %d", instanceID, pid)
	m.publish(instanceID, old, api.StateStarting, "")
	m.monitor.Watch(instanceID, pid)
	return updated, nil
}

// startSpec builds the process launch description, handing the child the
// endpoints it needs to fetch config and push data back.
func (m *Manager) startSpec(ct *api.ConnectorType, inst *api.ConnectorInstance) supervisor.StartSpec {
	env := make(map[string]string, len(ct.EntryPoint.Env)+4)
	for k, v := range ct.EntryPoint.Env {
		env[k] = v
	}
	env["CONNECTORD_INSTANCE_ID"] = inst.InstanceID
	if m.opts.DaemonBaseURL != "" {
		env["CONNECTORD_DAEMON_URL"] = m.opts.DaemonBaseURL
		env["CONNECTORD_CONFIG_URL"] = fmt.Sprintf("%s/api/v1/instances/%s/config", m.opts.DaemonBaseURL, inst.InstanceID)
		env["CONNECTORD_INGEST_URL"] = fmt.Sprintf("%s/api/v1/instances/%s/ingest", m.opts.DaemonBaseURL, inst.InstanceID)
	}
	return supervisor.StartSpec{
		Executable: ct.EntryPoint.Executable,
		Args:       ct.EntryPoint.Args,
		Env:        env,
	}
}

// StopInstance terminates the instance's process. Graceful first with
// automatic escalation after the configured timeout; force skips the
// graceful phase. Stopping an instance with no process is a no-op success.
func (m *Manager) StopInstance(ctx context.Context, instanceID string, force bool) (*api.ConnectorInstance, error) {
	mu := m.lockFor(instanceID)
	mu.Lock()
	defer mu.Unlock()
	return m.stopLocked(ctx, instanceID, force)
}

func (m *Manager) stopLocked(ctx context.Context, instanceID string, force bool) (*api.ConnectorInstance, error) {
	inst, err := m.store.Get(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	switch classifyStop(inst.State) {
	case stopNoop:
		return inst, nil
	case stopLeftover:
		// A heartbeat timeout leaves the hung process alive. Stopping an
		// errored instance kills it if the supervisor still tracks one.
		if _, tracked := m.sup.Pid(instanceID); !tracked {
			return inst, nil
		}
	}

	m.monitor.Unwatch(instanceID)
	old := inst.State

	stopping, err := m.store.Update(ctx, instanceID, func(i *api.ConnectorInstance) error {
		i.State = api.StateStopping
		if i.ProcessID == nil {
			if pid, ok := m.sup.Pid(instanceID); ok {
				i.ProcessID = &pid
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.publish(instanceID, old, api.StateStopping, "")

	exited, stopErr := m.sup.Stop(ctx, instanceID, !force, m.opts.GracefulStopTimeout)
	m.sup.Release(instanceID)
	if stopErr != nil {
		logging.Warn("Lifecycle", "stop of instance %s reported: %v", instanceID, stopErr)
	}
	if !exited {
		logging.Warn("Lifecycle", "process for instance %s did not exit", instanceID)
	}

	stopped, err := m.store.Update(ctx, instanceID, func(i *api.ConnectorInstance) error {
		i.State = api.StateStopped
		i.ProcessID = nil
		i.ErrorMessage = ""
		return nil
	})
	if err != nil {
		return stopping, err
	}
	logging.Info("Lifecycle", "instance %s stopped", instanceID)
	m.publish(instanceID, api.StateStopping, api.StateStopped, "")
	return stopped, nil
}

// RestartInstance stops then starts the instance, holding its lock across
// both so no other operation interleaves. The first failure wins.
func (m *Manager) RestartInstance(ctx context.Context, instanceID string) (*api.ConnectorInstance, error) {
	if m.shuttingDown.Load() {
		return nil, ErrShuttingDown
	}
	mu := m.lockFor(instanceID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := m.stopLocked(ctx, instanceID, false); err != nil {
		return nil, err
	}
	return m.startLocked(ctx, instanceID)
}

// DeleteInstance removes the instance record. A live instance is rejected
// with StillRunning unless force, which stops it first.
func (m *Manager) DeleteInstance(ctx context.Context, instanceID string, force bool) (bool, error) {
	mu := m.lockFor(instanceID)
	mu.Lock()
	defer mu.Unlock()

	inst, err := m.store.Get(ctx, instanceID)
	if err != nil {
		return false, err
	}
	wasRunning := inst.State.IsActive()
	if wasRunning && !force {
		return false, api.NewStillRunningError(instanceID, inst.State)
	}
	if wasRunning {
		if _, err := m.stopLocked(ctx, instanceID, true); err != nil {
			return wasRunning, err
		}
	}

	m.monitor.Unwatch(instanceID)
	m.sup.Release(instanceID)
	if err := m.store.Delete(ctx, instanceID); err != nil {
		return wasRunning, err
	}
	m.locks.Delete(instanceID)
	logging.Info("Lifecycle", "deleted instance %s", instanceID)
	return wasRunning, nil
}

// UpdateConfig persists new configuration and routes it to the running
// process when the type supports hot reload.
func (m *Manager) UpdateConfig(ctx context.Context, instanceID string, config map[string]interface{}) (api.ConfigUpdateResult, error) {
	mu := m.lockFor(instanceID)
	mu.Lock()
	defer mu.Unlock()
	return m.router.Apply(ctx, instanceID, config)
}

// GetInstance returns the instance by ID.
func (m *Manager) GetInstance(ctx context.Context, instanceID string) (*api.ConnectorInstance, error) {
	return m.store.Get(ctx, instanceID)
}

// ListInstances returns instances matching the filter.
func (m *Manager) ListInstances(ctx context.Context, filter store.Filter) ([]*api.ConnectorInstance, error) {
	return m.store.List(ctx, filter)
}

// ListRunningInstances returns instances currently in the running state.
func (m *Manager) ListRunningInstances(ctx context.Context) ([]*api.ConnectorInstance, error) {
	return m.store.List(ctx, store.Filter{State: api.StateRunning})
}

// GetAllStates aggregates the state distribution over all instances.
func (m *Manager) GetAllStates(ctx context.Context) (*api.StateSummary, error) {
	instances, err := m.store.List(ctx, store.Filter{})
	if err != nil {
		return nil, err
	}
	summary := &api.StateSummary{
		Total:             len(instances),
		StateDistribution: make(map[api.ConnectorState]int),
	}
	for _, inst := range instances {
		summary.StateDistribution[inst.State]++
		if inst.State == api.StateRunning {
			summary.Running++
		}
	}
	return summary, nil
}

// BatchStart starts the given instances concurrently and reports a per-ID
// result. One failure never aborts the others.
func (m *Manager) BatchStart(ctx context.Context, instanceIDs []string) map[string]error {
	results := make(map[string]error, len(instanceIDs))
	var resultsMu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchStartConcurrency)
	for _, id := range instanceIDs {
		id := id
		g.Go(func() error {
			_, err := m.StartInstance(ctx, id)
			resultsMu.Lock()
			results[id] = err
			resultsMu.Unlock()
			return nil
		})
	}
	g.Wait()
	return results
}

// ShutdownAll stops every active instance concurrently, bounded by the
// shutdown deadline. Once called, new starts are rejected.
func (m *Manager) ShutdownAll(ctx context.Context) error {
	m.shuttingDown.Store(true)

	instances, err := m.store.List(ctx, store.Filter{})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.ShutdownDeadline)
	defer cancel()

	var g errgroup.Group
	for _, inst := range instances {
		if !inst.State.IsActive() {
			continue
		}
		id := inst.InstanceID
		g.Go(func() error {
			if _, err := m.StopInstance(ctx, id, false); err != nil {
				logging.Error("Lifecycle", err, "shutdown stop of instance %s failed", id)
			}
			return nil
		})
	}
	g.Wait()

	// A start that passed the shutdown check before the flag was set may
	// have landed after the snapshot above. Sweep every instance under
	// its lock; stops are no-ops for anything inactive, and any in-flight
	// start either committed before the sweep takes the lock (and is
	// stopped here) or sees the flag and is rejected.
	instances, err = m.store.List(ctx, store.Filter{})
	if err != nil {
		return err
	}
	for _, inst := range instances {
		if _, err := m.StopInstance(ctx, inst.InstanceID, true); err != nil {
			logging.Error("Lifecycle", err, "shutdown sweep of instance %s failed", inst.InstanceID)
		}
	}
	logging.Info("Lifecycle", "all instances stopped")
	return nil
}

// Reconcile runs at daemon startup. Pids recorded in the store belong to a
// previous daemon run and are stale until proven alive: a live pid is
// re-adopted and watched, a dead one moves the instance to error.
func (m *Manager) Reconcile(ctx context.Context) error {
	instances, err := m.store.List(ctx, store.Filter{})
	if err != nil {
		return err
	}

	for _, inst := range instances {
		if !inst.State.IsActive() && inst.ProcessID == nil {
			continue
		}
		id := inst.InstanceID
		mu := m.lockFor(id)
		mu.Lock()

		old := inst.State
		if inst.ProcessID != nil && m.sup.IsAlive(*inst.ProcessID) {
			pid := *inst.ProcessID
			m.sup.Adopt(id, pid)
			_, err := m.store.Update(ctx, id, func(i *api.ConnectorInstance) error {
				i.State = api.StateRunning
				now := time.Now()
				i.LastHeartbeat = &now
				i.ErrorMessage = ""
				return nil
			})
			mu.Unlock()
			if err != nil {
				return err
			}
			logging.Info("Lifecycle", "re-adopted instance %s with pid %d", id, pid)
			if old != api.StateRunning {
				m.publish(id, old, api.StateRunning, "process re-adopted after daemon restart")
			}
			m.monitor.Watch(id, pid)
			continue
		}

		_, err := m.store.Update(ctx, id, func(i *api.ConnectorInstance) error {
			i.State = api.StateError
			i.ProcessID = nil
			i.ErrorMessage = "process lost during daemon restart"
			return nil
		})
		mu.Unlock()
		if err != nil {
			return err
		}
		logging.Warn("Lifecycle", "instance %s lost its process across daemon restart", id)
		m.publish(id, old, api.StateError, "process lost during daemon restart")
	}
	return nil
}

// AutoStart starts every enabled instance flagged for automatic start.
// Failures are recorded on the instance and logged, never fatal.
func (m *Manager) AutoStart(ctx context.Context) {
	instances, err := m.store.List(ctx, store.Filter{})
	if err != nil {
		logging.Error("Lifecycle", err, "auto-start listing failed")
		return
	}
	for _, inst := range instances {
		if !inst.Enabled || !inst.AutoStart || !startableStates[inst.State] {
			continue
		}
		if _, err := m.StartInstance(ctx, inst.InstanceID); err != nil {
			logging.Error("Lifecycle", err, "auto-start of instance %s failed", inst.InstanceID)
		}
	}
}

// RecordIngest credits pushed data to the instance and refreshes its
// heartbeat. Deliberately does not take the lifecycle lock; ingest must
// not stall behind a slow graceful stop.
func (m *Manager) RecordIngest(ctx context.Context, instanceID string, count int64) (*api.ConnectorInstance, error) {
	if count < 0 {
		return nil, api.NewConfigValidationError("ingest count must be non-negative, got %d", count)
	}
	return m.store.Update(ctx, instanceID, func(i *api.ConnectorInstance) error {
		i.DataCount += count
		now := time.Now()
		i.LastHeartbeat = &now
		return nil
	})
}

// RecordHeartbeat refreshes the instance's liveness timestamp on an
// explicit ping.
func (m *Manager) RecordHeartbeat(ctx context.Context, instanceID string) error {
	_, err := m.store.Update(ctx, instanceID, func(i *api.ConnectorInstance) error {
		now := time.Now()
		i.LastHeartbeat = &now
		return nil
	})
	return err
}

// ResourceUsage exposes best-effort process stats for a running instance.
func (m *Manager) ResourceUsage(ctx context.Context, instanceID string) (supervisor.Usage, bool) {
	inst, err := m.store.Get(ctx, instanceID)
	if err != nil || inst.ProcessID == nil {
		return supervisor.Usage{}, false
	}
	real, ok := m.sup.(*supervisor.Supervisor)
	if !ok {
		return supervisor.Usage{}, false
	}
	return real.ResourceUsage(*inst.ProcessID)
}

// LastHeartbeat implements health.HeartbeatSource from the store record.
func (m *Manager) LastHeartbeat(ctx context.Context, instanceID string) (*time.Time, error) {
	inst, err := m.store.Get(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	return inst.LastHeartbeat, nil
}

// OnHealthSuccess implements health.Sink. The first successful check
// promotes a starting instance to running and sets its heartbeat baseline;
// subsequent successes leave the connector-pushed heartbeat alone.
func (m *Manager) OnHealthSuccess(instanceID string) {
	mu := m.lockFor(instanceID)
	mu.Lock()
	defer mu.Unlock()

	ctx := context.Background()
	inst, err := m.store.Get(ctx, instanceID)
	if err != nil || inst.State != api.StateStarting {
		return
	}
	_, err = m.store.Update(ctx, instanceID, func(i *api.ConnectorInstance) error {
		if i.State != api.StateStarting {
			return nil
		}
		i.State = api.StateRunning
		now := time.Now()
		i.LastHeartbeat = &now
		return nil
	})
	if err != nil {
		logging.Error("Lifecycle", err, "failed to promote instance %s to running", instanceID)
		return
	}
	logging.Info("Lifecycle", "instance %s is running", instanceID)
	m.publish(instanceID, api.StateStarting, api.StateRunning, "")
}

// OnHealthFailure implements health.Sink. A dead process releases its
// supervisor handle; a hung-but-alive process keeps it so an operator can
// still force-stop it.
func (m *Manager) OnHealthFailure(instanceID, reason string) {
	mu := m.lockFor(instanceID)
	mu.Lock()
	defer mu.Unlock()

	ctx := context.Background()
	inst, err := m.store.Get(ctx, instanceID)
	if err != nil {
		logging.Error("Health", err, "health failure for unknown instance %s", instanceID)
		return
	}
	if !inst.State.IsActive() {
		// A stop or delete won the race; the failure is moot.
		return
	}

	old := inst.State
	if reason == health.ReasonProcessExited {
		m.sup.Release(instanceID)
	}
	_, err = m.store.Update(ctx, instanceID, func(i *api.ConnectorInstance) error {
		i.State = api.StateError
		i.ProcessID = nil
		i.ErrorMessage = reason
		return nil
	})
	if err != nil {
		logging.Error("Lifecycle", err, "failed to record health failure for instance %s", instanceID)
		return
	}
	logging.Warn("Lifecycle", "instance %s unhealthy: %s", instanceID, reason)
	m.publish(instanceID, old, api.StateError, reason)
}
