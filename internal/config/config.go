package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"connectord/pkg/logging"
)

const (
	userConfigDir  = ".config/connectord"
	configFileName = "config.yaml"
)

// Config is the top-level daemon configuration.
type Config struct {
	// ListenAddr is the host:port the HTTP API binds to.
	ListenAddr string `yaml:"listen_addr,omitempty"`

	// BaseURL is the address connector processes use to reach the daemon.
	// Defaults to http://<listen_addr>.
	BaseURL string `yaml:"base_url,omitempty"`

	// CatalogDir holds connector type manifests.
	CatalogDir string `yaml:"catalog_dir,omitempty"`

	// StateDir holds persisted instance records.
	StateDir string `yaml:"state_dir,omitempty"`

	// LogDir receives per-instance connector process output.
	LogDir string `yaml:"log_dir,omitempty"`

	Lifecycle LifecycleConfig `yaml:"lifecycle,omitempty"`

	// EventBufferSize is the per-subscriber event channel capacity.
	EventBufferSize int `yaml:"event_buffer_size,omitempty"`
}

// LifecycleConfig tunes health checking and stop/shutdown timing.
type LifecycleConfig struct {
	HealthInterval      time.Duration `yaml:"health_interval,omitempty"`
	HeartbeatStaleness  time.Duration `yaml:"heartbeat_staleness,omitempty"`
	GracefulStopTimeout time.Duration `yaml:"graceful_stop_timeout,omitempty"`
	ShutdownDeadline    time.Duration `yaml:"shutdown_deadline,omitempty"`
}

// GetDefaultConfigPathOrPanic returns the per-user configuration directory.
func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}
	return filepath.Join(homeDir, userConfigDir)
}

// GetDefaultConfig returns the configuration used when no config.yaml
// exists, rooted at configPath.
func GetDefaultConfig(configPath string) Config {
	return Config{
		ListenAddr:      "localhost:7432",
		CatalogDir:      filepath.Join(configPath, "connectors"),
		StateDir:        filepath.Join(configPath, "instances"),
		LogDir:          filepath.Join(configPath, "logs"),
		EventBufferSize: 64,
		Lifecycle: LifecycleConfig{
			HealthInterval:      10 * time.Second,
			HeartbeatStaleness:  5 * time.Minute,
			GracefulStopTimeout: 10 * time.Second,
			ShutdownDeadline:    30 * time.Second,
		},
	}
}

// LoadConfig loads config.yaml from the given directory, layered over the
// defaults. A missing file is not an error; a malformed one is.
func LoadConfig(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig(configPath)

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
			config.BaseURL = "http://" + config.ListenAddr
			return config, nil
		}
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://" + config.ListenAddr
	}
	logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	return config, nil
}

// EnsureDirectories creates the directories the daemon writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.CatalogDir, c.StateDir, c.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
