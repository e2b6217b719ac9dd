package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"connectord/internal/api"
	"connectord/pkg/logging"
)

// alivePollInterval is how often an adopted process is re-checked while
// waiting for it to exit. Spawned processes are waited on directly.
const alivePollInterval = 100 * time.Millisecond

// StartSpec describes the process to launch for a connector instance.
type StartSpec struct {
	Executable string
	Args       []string
	Env        map[string]string
}

// handle tracks one supervised OS process. For spawned processes the done
// channel closes when Wait returns; adopted processes (pids recovered from
// a previous daemon run) are not our children, so liveness is polled.
type handle struct {
	pid     int
	cmd     *exec.Cmd
	done    chan struct{}
	logFile *os.File
}

func (h *handle) adopted() bool {
	return h.cmd == nil
}

// Supervisor owns OS process spawn, termination and liveness for connector
// instances. It holds no lifecycle state; the manager decides what to do
// with process-level facts.
type Supervisor struct {
	mu      sync.Mutex
	logDir  string
	handles map[string]*handle
}

// New creates a supervisor writing per-instance process output under
// logDir. An empty logDir discards connector output.
func New(logDir string) *Supervisor {
	return &Supervisor{
		logDir:  logDir,
		handles: make(map[string]*handle),
	}
}

// Start launches the connector binary as a child process in its own process
// group and captures the pid immediately. A spawn failure is fatal to this
// attempt and is never retried here.
func (s *Supervisor) Start(ctx context.Context, instanceID string, spec StartSpec) (int, error) {
	s.mu.Lock()
	if _, exists := s.handles[instanceID]; exists {
		s.mu.Unlock()
		return 0, fmt.Errorf("instance %s already has a supervised process", instanceID)
	}
	s.mu.Unlock()

	cmd := exec.Command(spec.Executable, spec.Args...)
	cmd.Env = append(os.Environ(), flattenEnv(spec.Env)...)
	configureProcAttr(cmd)

	var logFile *os.File
	if s.logDir != "" {
		if err := os.MkdirAll(s.logDir, 0755); err != nil {
			return 0, api.NewSpawnFailedError(instanceID, err)
		}
		var err error
		logFile, err = os.OpenFile(filepath.Join(s.logDir, instanceID+".log"),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return 0, api.NewSpawnFailedError(instanceID, err)
		}
		cmd.Stdout = logFile
		cmd.Stderr = logFile
	}

	if err := cmd.Start(); err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return 0, api.NewSpawnFailedError(instanceID, err)
	}

	h := &handle{
		pid:     cmd.Process.Pid,
		cmd:     cmd,
		done:    make(chan struct{}),
		logFile: logFile,
	}

	s.mu.Lock()
	s.handles[instanceID] = h
	s.mu.Unlock()

	// Reap the child so it never lingers as a zombie.
	go func() {
		err := cmd.Wait()
		if err != nil {
			logging.Debug("Supervisor", "Process %d for instance %s exited: %v", h.pid, instanceID, err)
		}
		close(h.done)
	}()

	logging.Info("Supervisor", "Spawned process %d for instance %s (%s)", h.pid, instanceID, spec.Executable)
	return h.pid, nil
}

// Adopt registers a pre-existing pid, recovered from persisted state, for
// supervision. Adopted processes are not children of this daemon: stopping
// them degrades to signalling and polling.
func (s *Supervisor) Adopt(instanceID string, pid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles[instanceID] = &handle{pid: pid}
	logging.Info("Supervisor", "Adopted process %d for instance %s", pid, instanceID)
}

// Stop terminates the supervised process for the instance. A graceful stop
// sends SIGTERM to the process group and waits up to timeout before
// escalating to SIGKILL; graceful=false kills immediately. Returns whether
// the process ultimately exited.
func (s *Supervisor) Stop(ctx context.Context, instanceID string, graceful bool, timeout time.Duration) (bool, error) {
	s.mu.Lock()
	h, exists := s.handles[instanceID]
	s.mu.Unlock()
	if !exists {
		return true, nil
	}
	defer s.Release(instanceID)

	if !s.IsAlive(h.pid) {
		return true, nil
	}

	if graceful {
		if err := terminateProcess(h.pid); err != nil {
			logging.Debug("Supervisor", "SIGTERM to %d failed: %v", h.pid, err)
		}
		if s.waitExit(ctx, h, timeout) {
			logging.Info("Supervisor", "Process %d for instance %s exited gracefully", h.pid, instanceID)
			return true, nil
		}
		logging.Warn("Supervisor", "Graceful stop of instance %s timed out, escalating to kill", instanceID)
	}

	if err := killProcess(h.pid); err != nil {
		logging.Debug("Supervisor", "SIGKILL to %d failed: %v", h.pid, err)
	}
	if s.waitExit(ctx, h, timeout) {
		return true, nil
	}
	return false, fmt.Errorf("process %d for instance %s did not exit after kill", h.pid, instanceID)
}

// waitExit waits up to timeout for the handle's process to exit.
func (s *Supervisor) waitExit(ctx context.Context, h *handle, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	if !h.adopted() {
		select {
		case <-h.done:
			return true
		case <-deadline.C:
			return false
		case <-ctx.Done():
			return false
		}
	}

	// Not our child, so there is nothing to wait on. Poll.
	poll := time.NewTicker(alivePollInterval)
	defer poll.Stop()
	for {
		if !s.IsAlive(h.pid) {
			return true
		}
		select {
		case <-poll.C:
		case <-deadline.C:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

// Signal delivers a signal to the instance's process. Used for hot config
// reload notifications.
func (s *Supervisor) Signal(instanceID string, sig os.Signal) error {
	s.mu.Lock()
	h, exists := s.handles[instanceID]
	s.mu.Unlock()
	if !exists {
		return fmt.Errorf("instance %s has no supervised process", instanceID)
	}
	return signalProcess(h.pid, sig)
}

// Pid returns the supervised pid for the instance, if any.
func (s *Supervisor) Pid(instanceID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, exists := s.handles[instanceID]
	if !exists {
		return 0, false
	}
	return h.pid, true
}

// Release drops the handle for an instance without touching the process.
func (s *Supervisor) Release(instanceID string) {
	s.mu.Lock()
	h, exists := s.handles[instanceID]
	delete(s.handles, instanceID)
	s.mu.Unlock()

	if exists && h.logFile != nil {
		h.logFile.Close()
	}
}

// SupervisedInstances returns the instance IDs with a live handle, sorted.
func (s *Supervisor) SupervisedInstances() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.handles))
	for id := range s.handles {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func flattenEnv(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(env))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
