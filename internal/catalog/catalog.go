package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"connectord/internal/api"
	"connectord/pkg/logging"

	"gopkg.in/yaml.v3"
)

// Catalog loads and serves connector type manifests from a directory.
// Discovery replaces the loaded set wholesale; individual types are never
// mutated in place. Unknown manifest fields are ignored.
type Catalog struct {
	mu    sync.RWMutex
	dir   string
	types map[string]*api.ConnectorType
}

// New creates a catalog rooted at the given manifest directory. The
// directory does not need to exist yet; discovery of a missing directory
// yields an empty catalog.
func New(dir string) *Catalog {
	return &Catalog{
		dir:   dir,
		types: make(map[string]*api.ConnectorType),
	}
}

// Discover scans the catalog directory for type manifests and replaces the
// loaded set. Malformed manifests are logged and skipped; discovery never
// fails wholesale because of one bad entry.
func (c *Catalog) Discover() []api.ConnectorType {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn("Catalog", "Failed to read catalog directory %s: %v", c.dir, err)
		}
		c.replace(nil)
		return nil
	}

	var discovered []*api.ConnectorType
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(c.dir, entry.Name())
		connectorType, err := loadManifest(path)
		if err != nil {
			logging.Warn("Catalog", "Skipping manifest %s: %v", path, err)
			continue
		}
		discovered = append(discovered, connectorType)
	}

	c.replace(discovered)

	logging.Info("Catalog", "Discovered %d connector types in %s", len(discovered), c.dir)
	return c.List()
}

// Get returns the connector type with the given ID, if loaded.
func (c *Catalog) Get(typeID string) (*api.ConnectorType, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.types[typeID]
	return t, ok
}

// List returns all loaded connector types sorted by type ID.
func (c *Catalog) List() []api.ConnectorType {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]api.ConnectorType, 0, len(c.types))
	for _, t := range c.types {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TypeID < out[j].TypeID })
	return out
}

func (c *Catalog) replace(types []*api.ConnectorType) {
	next := make(map[string]*api.ConnectorType, len(types))
	for _, t := range types {
		if existing, dup := next[t.TypeID]; dup {
			logging.Warn("Catalog", "Duplicate type_id %s (keeping %s)", t.TypeID, existing.Name)
			continue
		}
		next[t.TypeID] = t
	}

	c.mu.Lock()
	c.types = next
	c.mu.Unlock()
}

// loadManifest reads and validates a single manifest file against the
// minimal required-field set.
func loadManifest(path string) (*api.ConnectorType, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var connectorType api.ConnectorType
	if err := yaml.Unmarshal(data, &connectorType); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if err := validateType(&connectorType); err != nil {
		return nil, err
	}

	return &connectorType, nil
}

func validateType(t *api.ConnectorType) error {
	if t.TypeID == "" {
		return fmt.Errorf("type_id is required")
	}
	if t.Name == "" {
		return fmt.Errorf("name is required for type %s", t.TypeID)
	}
	if t.Version == "" {
		return fmt.Errorf("version is required for type %s", t.TypeID)
	}
	if t.EntryPoint.Executable == "" {
		return fmt.Errorf("entry_point.executable is required for type %s", t.TypeID)
	}
	if t.MaxInstancesPerUser < 0 {
		return fmt.Errorf("max_instances_per_user must not be negative for type %s", t.TypeID)
	}
	for _, tpl := range t.InstanceTemplates {
		if tpl.TemplateID == "" {
			return fmt.Errorf("instance template without template_id in type %s", t.TypeID)
		}
	}
	return nil
}
