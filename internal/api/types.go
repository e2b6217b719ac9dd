package api

import (
	"time"
)

// ConnectorState represents the lifecycle state of a connector instance.
// It is the single source of truth for "is this thing running".
type ConnectorState string

const (
	// StateConfigured is the initial persisted state of a freshly created
	// instance. No process exists for it.
	StateConfigured ConnectorState = "configured"

	// StateStarting means a process has been spawned but has not yet passed
	// its first health check.
	StateStarting ConnectorState = "starting"

	// StateRunning means the process is alive and healthy.
	StateRunning ConnectorState = "running"

	// StateStopping means a stop has been requested and termination is in
	// progress.
	StateStopping ConnectorState = "stopping"

	// StateStopped is the target of a clean stop.
	StateStopped ConnectorState = "stopped"

	// StateError means a start attempt failed, the process exited
	// unexpectedly, or the instance stopped reporting heartbeats.
	StateError ConnectorState = "error"
)

// IsActive reports whether the state implies a live OS process. The
// ProcessID invariant follows from this: an instance carries a pid exactly
// when its state is active.
func (s ConnectorState) IsActive() bool {
	return s == StateStarting || s == StateRunning || s == StateStopping
}

// EntryPoint describes how to launch a connector type's binary.
type EntryPoint struct {
	Executable string            `yaml:"executable" json:"executable"`
	Args       []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env        map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

// InstanceTemplate is a named preset configuration shipped with a connector
// type. The config document is opaque to the core.
type InstanceTemplate struct {
	TemplateID  string                 `yaml:"template_id" json:"template_id"`
	DisplayName string                 `yaml:"display_name,omitempty" json:"display_name,omitempty"`
	Config      map[string]interface{} `yaml:"config,omitempty" json:"config,omitempty"`
}

// ConnectorType is a connector type manifest loaded from the catalog
// directory. Types are immutable once loaded; re-discovery replaces the
// whole set.
type ConnectorType struct {
	TypeID      string `yaml:"type_id" json:"type_id"`
	Name        string `yaml:"name" json:"name"`
	DisplayName string `yaml:"display_name,omitempty" json:"display_name,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Category    string `yaml:"category,omitempty" json:"category,omitempty"`
	Version     string `yaml:"version" json:"version"`
	Author      string `yaml:"author,omitempty" json:"author,omitempty"`

	SupportsMultipleInstances bool `yaml:"supports_multiple_instances,omitempty" json:"supports_multiple_instances"`
	MaxInstancesPerUser       int  `yaml:"max_instances_per_user,omitempty" json:"max_instances_per_user,omitempty"`

	// HotConfigReload declares whether a running instance of this type can
	// apply a configuration change without a restart.
	HotConfigReload bool `yaml:"hot_config_reload,omitempty" json:"hot_config_reload"`

	EntryPoint EntryPoint `yaml:"entry_point" json:"entry_point"`

	// ConfigSchema and InstanceTemplates are passed through to callers, not
	// interpreted by the core.
	ConfigSchema      map[string]interface{} `yaml:"config_schema,omitempty" json:"config_schema,omitempty"`
	InstanceTemplates []InstanceTemplate     `yaml:"instance_templates,omitempty" json:"instance_templates,omitempty"`
}

// ConnectorInstance is a configured, persisted occurrence of a connector
// type with its own lifecycle state. Mutated only by the lifecycle manager
// and health monitor under single-writer-per-instance discipline.
type ConnectorInstance struct {
	InstanceID  string                 `yaml:"instance_id" json:"instance_id"`
	TypeID      string                 `yaml:"type_id" json:"type_id"`
	DisplayName string                 `yaml:"display_name" json:"display_name"`
	Config      map[string]interface{} `yaml:"config,omitempty" json:"config,omitempty"`

	Enabled   bool `yaml:"enabled" json:"enabled"`
	AutoStart bool `yaml:"auto_start" json:"auto_start"`

	State         ConnectorState `yaml:"state" json:"state"`
	ProcessID     *int           `yaml:"process_id,omitempty" json:"process_id,omitempty"`
	LastHeartbeat *time.Time     `yaml:"last_heartbeat,omitempty" json:"last_heartbeat,omitempty"`
	ErrorMessage  string         `yaml:"error_message,omitempty" json:"error_message,omitempty"`

	// DataCount is a monotonic counter incremented by ingestion pushes. It
	// survives restarts and is never reset by the core.
	DataCount int64 `yaml:"data_count" json:"data_count"`

	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at" json:"updated_at"`
}

// Clone returns a deep enough copy for safe hand-off across goroutines.
// Config values are shared; callers treat the config document as read-only.
func (ci *ConnectorInstance) Clone() *ConnectorInstance {
	out := *ci
	if ci.ProcessID != nil {
		pid := *ci.ProcessID
		out.ProcessID = &pid
	}
	if ci.LastHeartbeat != nil {
		hb := *ci.LastHeartbeat
		out.LastHeartbeat = &hb
	}
	if ci.Config != nil {
		cfg := make(map[string]interface{}, len(ci.Config))
		for k, v := range ci.Config {
			cfg[k] = v
		}
		out.Config = cfg
	}
	return &out
}

// StateSummary aggregates the state distribution over all instances.
type StateSummary struct {
	Total             int                    `json:"total"`
	Running           int                    `json:"running"`
	StateDistribution map[ConnectorState]int `json:"state_distribution"`
}

// ConfigUpdateResult reports how a configuration change was routed.
type ConfigUpdateResult struct {
	HotReloadApplied bool `json:"hot_reload_applied"`
	RequiresRestart  bool `json:"requires_restart"`
}
