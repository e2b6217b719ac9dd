package lifecycle

import (
	"context"
	"syscall"
	"time"

	"connectord/internal/api"
	"connectord/internal/store"
	"connectord/pkg/logging"
)

// ReloadNotifier tells a running connector process to re-read its
// configuration. The default implementation signals the process group;
// connector types with richer control channels can plug in their own.
type ReloadNotifier interface {
	NotifyReload(instanceID string) error
}

// signalNotifier delivers reload notifications as SIGHUP through the
// process supervisor.
type signalNotifier struct {
	sup ProcessSupervisor
}

func (n *signalNotifier) NotifyReload(instanceID string) error {
	return n.sup.Signal(instanceID, syscall.SIGHUP)
}

// ConfigRouter persists configuration updates and decides whether the
// running process can hot-reload or a restart is advisable. It never
// restarts the process itself.
type ConfigRouter struct {
	types    TypeSource
	store    store.Store
	notifier ReloadNotifier
}

// NewConfigRouter creates a router. The notifier may be nil, in which case
// hot reload is never applied and running instances always report
// requires_restart.
func NewConfigRouter(types TypeSource, st store.Store, notifier ReloadNotifier) *ConfigRouter {
	return &ConfigRouter{
		types:    types,
		store:    st,
		notifier: notifier,
	}
}

// Apply persists newConfig unconditionally, then routes the change. The
// caller holds the instance's lifecycle lock.
func (r *ConfigRouter) Apply(ctx context.Context, instanceID string, newConfig map[string]interface{}) (api.ConfigUpdateResult, error) {
	if newConfig == nil {
		return api.ConfigUpdateResult{}, api.NewConfigValidationError("config must not be null")
	}

	inst, err := r.store.Update(ctx, instanceID, func(i *api.ConnectorInstance) error {
		i.Config = newConfig
		i.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		return api.ConfigUpdateResult{}, err
	}

	if inst.State != api.StateRunning {
		return api.ConfigUpdateResult{}, nil
	}

	ct, ok := r.types.Get(inst.TypeID)
	if !ok || !ct.HotConfigReload || r.notifier == nil {
		return api.ConfigUpdateResult{RequiresRestart: true}, nil
	}

	if err := r.notifier.NotifyReload(instanceID); err != nil {
		logging.Warn("ConfigRouter", "reload notification for instance %s failed, advising restart: %v", instanceID, err)
		return api.ConfigUpdateResult{RequiresRestart: true}, nil
	}

	logging.Info("ConfigRouter", "hot reload applied to instance %s", instanceID)
	return api.ConfigUpdateResult{HotReloadApplied: true}, nil
}
