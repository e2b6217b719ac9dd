//go:build !windows

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"connectord/internal/api"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func writeTestEnvironment(t *testing.T, port int) string {
	t.Helper()
	dir := t.TempDir()

	cfg := fmt.Sprintf(`
listen_addr: 127.0.0.1:%d
lifecycle:
  health_interval: 50ms
  heartbeat_staleness: 1h
  graceful_stop_timeout: 2s
  shutdown_deadline: 5s
`, port)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(cfg), 0644))

	manifest := `
type_id: sleeper
name: sleeper
version: 1.0.0
supports_multiple_instances: true
entry_point:
  executable: /bin/sleep
  args: ["300"]
`
	catalogDir := filepath.Join(dir, "connectors")
	require.NoError(t, os.MkdirAll(catalogDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(catalogDir, "sleeper.yaml"), []byte(manifest), 0644))
	return dir
}

func TestApplicationEndToEnd(t *testing.T) {
	port := freePort(t)
	dir := writeTestEnvironment(t, port)

	application, err := NewApplication(&Config{Silent: true, ConfigPath: dir})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() {
		runDone <- application.Run(ctx)
	}()

	base := fmt.Sprintf("http://127.0.0.1:%d/api/v1", port)
	client := &http.Client{Timeout: 2 * time.Second}

	// Wait for the HTTP server to come up.
	require.Eventually(t, func() bool {
		resp, err := client.Get(base + "/connectors")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	// The catalog manifest was discovered.
	resp, err := client.Get(base + "/connectors")
	require.NoError(t, err)
	var types []api.ConnectorType
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&types))
	resp.Body.Close()
	require.Len(t, types, 1)
	assert.Equal(t, "sleeper", types[0].TypeID)

	// Create and start an instance backed by a real process.
	body, _ := json.Marshal(map[string]interface{}{
		"type_id":      "sleeper",
		"display_name": "test sleeper",
	})
	resp, err = client.Post(base+"/instances", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var inst api.ConnectorInstance
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&inst))
	resp.Body.Close()

	resp, err = client.Post(base+"/instances/"+inst.InstanceID+"/start", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	require.Eventually(t, func() bool {
		resp, err := client.Get(base + "/instances/" + inst.InstanceID)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var got api.ConnectorInstance
		if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
			return false
		}
		return got.State == api.StateRunning && got.ProcessID != nil
	}, 5*time.Second, 50*time.Millisecond, "instance never reached running")

	// Shut down over the API; the daemon stops the instance and exits.
	resp, err = client.Post(base+"/shutdown", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	select {
	case err := <-runDone:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not exit after shutdown request")
	}
}

func TestNewApplicationBadConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("listen_addr: [oops"), 0644))

	_, err := NewApplication(&Config{Silent: true, ConfigPath: dir})
	assert.Error(t, err)
}
