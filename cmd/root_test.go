package cmd

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGetVersion(t *testing.T) {
	SetVersion("1.2.3")
	assert.Equal(t, "1.2.3", GetVersion())
}

func TestVersionCommandOutput(t *testing.T) {
	SetVersion("9.9.9")
	cmd := newVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "connectord version 9.9.9\n", out.String())
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"serve", "list", "connectors", "create", "start", "stop", "restart", "delete", "events", "status", "shutdown", "version"}
	registered := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		registered[c.Name()] = true
	}
	for _, name := range want {
		assert.True(t, registered[name], "command %q not registered", name)
	}
}

func TestAPIClientSurfacesErrorMessages(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error": "cannot start instance x in state running"}`))
	}))
	defer ts.Close()

	old := endpoint
	endpoint = ts.URL
	defer func() { endpoint = old }()

	err := newAPIClient().post("/instances/x/start", nil, nil)
	require.Error(t, err)
	assert.Equal(t, "cannot start instance x in state running", err.Error())
}

func TestAPIClientDecodesResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"total": 3, "running": 1}`))
	}))
	defer ts.Close()

	old := endpoint
	endpoint = ts.URL
	defer func() { endpoint = old }()

	var out struct {
		Total   int `json:"total"`
		Running int `json:"running"`
	}
	require.NoError(t, newAPIClient().get("/states", &out))
	assert.Equal(t, 3, out.Total)
	assert.Equal(t, 1, out.Running)
}
