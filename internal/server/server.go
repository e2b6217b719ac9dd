package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"connectord/internal/api"
	"connectord/internal/events"
	"connectord/internal/store"
	"connectord/internal/supervisor"
	"connectord/pkg/logging"
)

// Orchestrator is the slice of the lifecycle manager the HTTP layer
// drives. Narrow so handler tests can stub it.
type Orchestrator interface {
	DiscoverConnectors() []api.ConnectorType
	CreateInstance(ctx context.Context, typeID, displayName string, config map[string]interface{}, autoStart bool, templateID string) (*api.ConnectorInstance, error)
	StartInstance(ctx context.Context, instanceID string) (*api.ConnectorInstance, error)
	StopInstance(ctx context.Context, instanceID string, force bool) (*api.ConnectorInstance, error)
	RestartInstance(ctx context.Context, instanceID string) (*api.ConnectorInstance, error)
	DeleteInstance(ctx context.Context, instanceID string, force bool) (bool, error)
	UpdateConfig(ctx context.Context, instanceID string, config map[string]interface{}) (api.ConfigUpdateResult, error)
	GetInstance(ctx context.Context, instanceID string) (*api.ConnectorInstance, error)
	ListInstances(ctx context.Context, filter store.Filter) ([]*api.ConnectorInstance, error)
	GetAllStates(ctx context.Context) (*api.StateSummary, error)
	BatchStart(ctx context.Context, instanceIDs []string) map[string]error
	ShutdownAll(ctx context.Context) error
	RecordIngest(ctx context.Context, instanceID string, count int64) (*api.ConnectorInstance, error)
	RecordHeartbeat(ctx context.Context, instanceID string) error
	ResourceUsage(ctx context.Context, instanceID string) (supervisor.Usage, bool)
}

// Options tunes the HTTP server.
type Options struct {
	// EventBufferSize is the per-SSE-subscriber channel capacity.
	EventBufferSize int

	// SSEKeepAlive is the idle interval between heartbeat events on the
	// event stream.
	SSEKeepAlive time.Duration
}

func (o *Options) applyDefaults() {
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = events.DefaultSubscriberBuffer
	}
	if o.SSEKeepAlive <= 0 {
		o.SSEKeepAlive = 15 * time.Second
	}
}

// Server exposes the lifecycle manager over HTTP.
type Server struct {
	opts    Options
	manager Orchestrator
	bus     *events.Bus
	echo    *echo.Echo

	// onShutdown, when set, is invoked after a shutdown request has
	// stopped all instances so the daemon itself can exit.
	onShutdown func()
}

// New creates the HTTP server. onShutdown may be nil.
func New(opts Options, manager Orchestrator, bus *events.Bus, onShutdown func()) *Server {
	opts.applyDefaults()
	s := &Server{
		opts:       opts,
		manager:    manager,
		bus:        bus,
		onShutdown: onShutdown,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	s.register(e)
	s.echo = e
	return s
}

func (s *Server) register(e *echo.Echo) {
	v1 := e.Group("/api/v1")

	v1.GET("/connectors", s.listConnectors)

	v1.POST("/instances", s.createInstance)
	v1.GET("/instances", s.listInstances)
	v1.GET("/instances/:id", s.getInstance)
	v1.DELETE("/instances/:id", s.deleteInstance)
	v1.POST("/instances/:id/start", s.startInstance)
	v1.POST("/instances/:id/stop", s.stopInstance)
	v1.POST("/instances/:id/restart", s.restartInstance)
	v1.PUT("/instances/:id/config", s.updateConfig)
	v1.GET("/instances/:id/config", s.getConfig)
	v1.GET("/instances/:id/usage", s.getUsage)
	v1.POST("/instances/:id/heartbeat", s.heartbeat)
	v1.POST("/instances/batch-start", s.batchStart)

	v1.POST("/ingest/:id", s.ingest)

	v1.GET("/states", s.getStates)
	v1.POST("/shutdown", s.shutdown)
	v1.GET("/events", s.streamEvents)
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start(addr string) error {
	logging.Info("Server", "Listening on %s", addr)
	err := s.echo.Start(addr)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routing tree for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
