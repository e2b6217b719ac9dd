package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"connectord/internal/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

const validManifest = `
type_id: filesystem
name: filesystem
display_name: File Watcher
description: Watches directories for changes
category: files
version: 1.2.0
author: connectord
supports_multiple_instances: true
max_instances_per_user: 5
hot_config_reload: true
entry_point:
  executable: /usr/libexec/connectord/filesystem
  args: ["--mode", "watch"]
config_schema:
  type: object
instance_templates:
  - template_id: home
    display_name: Home directory
    config:
      path: ~
`

func TestDiscoverLoadsValidManifests(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "filesystem.yaml", validManifest)

	c := New(dir)
	types := c.Discover()

	require.Len(t, types, 1)
	ct := types[0]
	assert.Equal(t, "filesystem", ct.TypeID)
	assert.Equal(t, "1.2.0", ct.Version)
	assert.True(t, ct.SupportsMultipleInstances)
	assert.True(t, ct.HotConfigReload)
	assert.Equal(t, 5, ct.MaxInstancesPerUser)
	assert.Equal(t, "/usr/libexec/connectord/filesystem", ct.EntryPoint.Executable)
	assert.Equal(t, []string{"--mode", "watch"}, ct.EntryPoint.Args)
	require.Len(t, ct.InstanceTemplates, 1)
	assert.Equal(t, "home", ct.InstanceTemplates[0].TemplateID)
}

func TestDiscoverSkipsMalformedManifests(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "good.yaml", validManifest)
	writeManifest(t, dir, "invalid-yaml.yaml", "{{{not yaml")
	writeManifest(t, dir, "missing-fields.yaml", "type_id: clipboard\nname: clipboard\n")
	writeManifest(t, dir, "notes.txt", "not a manifest")

	c := New(dir)
	types := c.Discover()

	// One bad entry must never fail discovery wholesale.
	require.Len(t, types, 1)
	assert.Equal(t, "filesystem", types[0].TypeID)
}

func TestDiscoverIgnoresUnknownFields(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "t.yaml", `
type_id: clipboard
name: clipboard
version: 0.1.0
entry_point:
  executable: /bin/true
some_future_field: whatever
`)

	c := New(dir)
	types := c.Discover()
	require.Len(t, types, 1)
	assert.Equal(t, "clipboard", types[0].TypeID)
}

func TestDiscoverMissingDirectory(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Empty(t, c.Discover())
}

func TestDiscoverReplacesWholesale(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "filesystem.yaml", validManifest)

	c := New(dir)
	c.Discover()
	_, ok := c.Get("filesystem")
	require.True(t, ok)

	require.NoError(t, os.Remove(filepath.Join(dir, "filesystem.yaml")))
	c.Discover()

	_, ok = c.Get("filesystem")
	assert.False(t, ok, "removed manifest should disappear on re-discovery")
}

func TestGetUnknownType(t *testing.T) {
	c := New(t.TempDir())
	c.Discover()

	got, ok := c.Get("nope")
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestValidateType(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*api.ConnectorType)
		wantErr string
	}{
		{"missing type_id", func(t *api.ConnectorType) { t.TypeID = "" }, "type_id is required"},
		{"missing name", func(t *api.ConnectorType) { t.Name = "" }, "name is required"},
		{"missing version", func(t *api.ConnectorType) { t.Version = "" }, "version is required"},
		{"missing executable", func(t *api.ConnectorType) { t.EntryPoint.Executable = "" }, "entry_point.executable is required"},
		{"negative limit", func(t *api.ConnectorType) { t.MaxInstancesPerUser = -1 }, "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct := &api.ConnectorType{
				TypeID:     "x",
				Name:       "x",
				Version:    "1.0.0",
				EntryPoint: api.EntryPoint{Executable: "/bin/true"},
			}
			tt.mutate(ct)
			err := validateType(ct)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
