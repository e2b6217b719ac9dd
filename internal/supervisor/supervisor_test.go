//go:build !windows

package supervisor

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"connectord/internal/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartAndGracefulStop(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	pid, err := s.Start(ctx, "inst-1", StartSpec{Executable: "/bin/sleep", Args: []string{"30"}})
	require.NoError(t, err)
	require.Greater(t, pid, 0)
	assert.True(t, s.IsAlive(pid))

	exited, err := s.Stop(ctx, "inst-1", true, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, exited)

	// The pid may be recycled in theory, but practically it is gone.
	assert.Eventually(t, func() bool { return !s.IsAlive(pid) }, 2*time.Second, 50*time.Millisecond)
}

func TestStartSpawnFailure(t *testing.T) {
	s := New("")
	_, err := s.Start(context.Background(), "inst-1", StartSpec{Executable: "/nonexistent/binary"})
	require.Error(t, err)
	assert.True(t, api.IsSpawnFailed(err))

	// A failed spawn must not leave a handle behind.
	assert.Empty(t, s.SupervisedInstances())
}

func TestStartRejectsDuplicateInstance(t *testing.T) {
	s := New("")
	ctx := context.Background()

	_, err := s.Start(ctx, "inst-1", StartSpec{Executable: "/bin/sleep", Args: []string{"30"}})
	require.NoError(t, err)
	defer s.Stop(ctx, "inst-1", false, time.Second)

	_, err = s.Start(ctx, "inst-1", StartSpec{Executable: "/bin/sleep", Args: []string{"30"}})
	assert.Error(t, err)
}

func TestForceStopEscalation(t *testing.T) {
	s := New("")
	ctx := context.Background()

	// A process that ignores SIGTERM forces the escalation path.
	pid, err := s.Start(ctx, "stubborn", StartSpec{
		Executable: "/bin/sh",
		Args:       []string{"-c", `trap "" TERM; while :; do sleep 0.1; done`},
	})
	require.NoError(t, err)

	start := time.Now()
	exited, err := s.Stop(ctx, "stubborn", true, 500*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, exited, "escalation to SIGKILL must terminate the process")
	assert.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond, "graceful phase should run its full timeout first")

	assert.Eventually(t, func() bool { return !s.IsAlive(pid) }, 2*time.Second, 50*time.Millisecond)
}

func TestImmediateForceStop(t *testing.T) {
	s := New("")
	ctx := context.Background()

	_, err := s.Start(ctx, "inst-1", StartSpec{
		Executable: "/bin/sh",
		Args:       []string{"-c", `trap "" TERM; while :; do sleep 0.1; done`},
	})
	require.NoError(t, err)

	start := time.Now()
	exited, err := s.Stop(ctx, "inst-1", false, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, exited)
	assert.Less(t, time.Since(start), 2*time.Second, "graceful=false must not wait out a graceful phase")
}

func TestStopUnknownInstanceIsNoop(t *testing.T) {
	s := New("")
	exited, err := s.Stop(context.Background(), "ghost", true, time.Second)
	require.NoError(t, err)
	assert.True(t, exited)
}

func TestAdoptAndStop(t *testing.T) {
	s := New("")
	ctx := context.Background()

	pid, err := s.Start(ctx, "orig", StartSpec{Executable: "/bin/sleep", Args: []string{"30"}})
	require.NoError(t, err)

	// Simulate a daemon restart: forget the child handle, then adopt the
	// still-running pid.
	s.Release("orig")
	s.Adopt("recovered", pid)

	got, ok := s.Pid("recovered")
	require.True(t, ok)
	assert.Equal(t, pid, got)

	exited, err := s.Stop(ctx, "recovered", true, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, exited)
}

func TestSignalDelivery(t *testing.T) {
	s := New("")
	ctx := context.Background()

	_, err := s.Start(ctx, "inst-1", StartSpec{Executable: "/bin/sleep", Args: []string{"30"}})
	require.NoError(t, err)
	defer s.Stop(ctx, "inst-1", false, time.Second)

	assert.NoError(t, s.Signal("inst-1", syscall.SIGHUP))
	assert.Error(t, s.Signal("ghost", syscall.SIGHUP))
}

func TestEnvPassedToChild(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	ctx := context.Background()

	_, err := s.Start(ctx, "envy", StartSpec{
		Executable: "/bin/sh",
		Args:       []string{"-c", "echo $CONNECTORD_INSTANCE_ID"},
		Env:        map[string]string{"CONNECTORD_INSTANCE_ID": "envy"},
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(dir + "/envy.log")
		return err == nil && string(data) == "envy\n"
	}, 3*time.Second, 50*time.Millisecond)
}

func TestIsAliveNonexistentPid(t *testing.T) {
	s := New("")
	assert.False(t, s.IsAlive(0))
	assert.False(t, s.IsAlive(-1))
	assert.True(t, s.IsAlive(os.Getpid()))
}

func TestResourceUsageSelf(t *testing.T) {
	s := New("")
	usage, ok := s.ResourceUsage(os.Getpid())
	if !ok {
		t.Skip("procfs not available on this system")
	}
	assert.Greater(t, usage.MemoryBytes, 0)
	assert.Greater(t, usage.ThreadCount, 0)
}

func TestResourceUsageUnavailable(t *testing.T) {
	s := New("")
	_, ok := s.ResourceUsage(99999999)
	assert.False(t, ok)
}
