package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"connectord/internal/api"
	"connectord/pkg/logging"

	"gopkg.in/yaml.v3"
)

// FileStore persists one YAML file per instance under a state directory and
// keeps an in-memory index for reads. Writes go through a temp file and
// rename so a crash never leaves a torn record on disk.
type FileStore struct {
	mu        sync.RWMutex
	dir       string
	instances map[string]*api.ConnectorInstance
}

// NewFileStore creates the state directory if needed and loads any
// persisted instance records into the index. Records that fail to parse are
// logged and skipped rather than blocking daemon startup.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, api.NewStoreUnavailableError("init", err)
	}

	fs := &FileStore{
		dir:       dir,
		instances: make(map[string]*api.ConnectorInstance),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, api.NewStoreUnavailableError("init", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logging.Warn("FileStore", "Failed to read %s: %v", path, err)
			continue
		}
		var instance api.ConnectorInstance
		if err := yaml.Unmarshal(data, &instance); err != nil {
			logging.Warn("FileStore", "Skipping unparseable record %s: %v", path, err)
			continue
		}
		if instance.InstanceID == "" {
			logging.Warn("FileStore", "Skipping record %s without instance_id", path)
			continue
		}
		fs.instances[instance.InstanceID] = &instance
	}

	logging.Info("FileStore", "Loaded %d instance records from %s", len(fs.instances), dir)
	return fs, nil
}

// Create persists a new instance.
func (fs *FileStore) Create(ctx context.Context, instance *api.ConnectorInstance) error {
	if instance.InstanceID == "" {
		return api.NewStoreUnavailableError("create", fmt.Errorf("instance_id cannot be empty"))
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, exists := fs.instances[instance.InstanceID]; exists {
		return api.NewStoreUnavailableError("create", fmt.Errorf("instance %s already exists", instance.InstanceID))
	}

	record := instance.Clone()
	if err := fs.writeLocked(record); err != nil {
		return err
	}
	fs.instances[record.InstanceID] = record
	return nil
}

// Get returns a copy of the instance with the given ID.
func (fs *FileStore) Get(ctx context.Context, instanceID string) (*api.ConnectorInstance, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	instance, exists := fs.instances[instanceID]
	if !exists {
		return nil, api.NewInstanceNotFoundError(instanceID)
	}
	return instance.Clone(), nil
}

// Update applies mutate under the store lock and persists the result.
func (fs *FileStore) Update(ctx context.Context, instanceID string, mutate func(*api.ConnectorInstance) error) (*api.ConnectorInstance, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	current, exists := fs.instances[instanceID]
	if !exists {
		return nil, api.NewInstanceNotFoundError(instanceID)
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.InstanceID = instanceID // identity is immutable
	next.UpdatedAt = time.Now().UTC()

	if err := fs.writeLocked(next); err != nil {
		return nil, err
	}
	fs.instances[instanceID] = next
	return next.Clone(), nil
}

// Delete removes the instance record from disk and the index.
func (fs *FileStore) Delete(ctx context.Context, instanceID string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, exists := fs.instances[instanceID]; !exists {
		return api.NewInstanceNotFoundError(instanceID)
	}

	path := fs.recordPath(instanceID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return api.NewStoreUnavailableError("delete", err)
	}
	delete(fs.instances, instanceID)
	return nil
}

// List returns instances matching the filter, oldest first.
func (fs *FileStore) List(ctx context.Context, filter Filter) ([]*api.ConnectorInstance, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	var out []*api.ConnectorInstance
	for _, instance := range fs.instances {
		if filter.TypeID != "" && instance.TypeID != filter.TypeID {
			continue
		}
		if filter.State != "" && instance.State != filter.State {
			continue
		}
		out = append(out, instance.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].InstanceID < out[j].InstanceID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (fs *FileStore) recordPath(instanceID string) string {
	return filepath.Join(fs.dir, sanitizeFilename(instanceID)+".yaml")
}

// writeLocked persists a record atomically. Must be called with the store
// lock held.
func (fs *FileStore) writeLocked(instance *api.ConnectorInstance) error {
	data, err := yaml.Marshal(instance)
	if err != nil {
		return api.NewStoreUnavailableError("write", err)
	}

	path := fs.recordPath(instance.InstanceID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return api.NewStoreUnavailableError("write", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return api.NewStoreUnavailableError("write", err)
	}
	return nil
}

// sanitizeFilename keeps instance record filenames safe on every platform.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"..", "_",
	)
	return replacer.Replace(name)
}
