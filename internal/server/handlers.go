package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"connectord/internal/api"
	"connectord/internal/lifecycle"
	"connectord/internal/store"
)

type createInstanceRequest struct {
	TypeID      string                 `json:"type_id"`
	DisplayName string                 `json:"display_name"`
	Config      map[string]interface{} `json:"config"`
	AutoStart   bool                   `json:"auto_start"`
	TemplateID  string                 `json:"template_id"`
}

type stopInstanceRequest struct {
	Force bool `json:"force"`
}

type ingestRequest struct {
	Count int64 `json:"count"`
}

type batchStartRequest struct {
	InstanceIDs []string `json:"instance_ids"`
}

type batchStartResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type deleteInstanceResponse struct {
	WasRunning bool `json:"was_running"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps the lifecycle error taxonomy onto HTTP status codes.
func writeError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case api.IsNotFound(err):
		status = http.StatusNotFound
	case api.IsInvalidType(err), api.IsConfigValidation(err):
		status = http.StatusBadRequest
	case api.IsInstanceLimitExceeded(err), api.IsStillRunning(err),
		api.IsInvalidTransition(err), errors.Is(err, lifecycle.ErrShuttingDown):
		status = http.StatusConflict
	}
	return c.JSON(status, errorResponse{Error: err.Error()})
}

func (s *Server) listConnectors(c echo.Context) error {
	return c.JSON(http.StatusOK, s.manager.DiscoverConnectors())
}

func (s *Server) createInstance(c echo.Context) error {
	var req createInstanceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
	}
	inst, err := s.manager.CreateInstance(c.Request().Context(), req.TypeID, req.DisplayName, req.Config, req.AutoStart, req.TemplateID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, inst)
}

func (s *Server) listInstances(c echo.Context) error {
	filter := store.Filter{
		TypeID: c.QueryParam("type_id"),
		State:  api.ConnectorState(c.QueryParam("state")),
	}
	instances, err := s.manager.ListInstances(c.Request().Context(), filter)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, instances)
}

func (s *Server) getInstance(c echo.Context) error {
	inst, err := s.manager.GetInstance(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, inst)
}

func (s *Server) deleteInstance(c echo.Context) error {
	force := c.QueryParam("force") == "true"
	wasRunning, err := s.manager.DeleteInstance(c.Request().Context(), c.Param("id"), force)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, deleteInstanceResponse{WasRunning: wasRunning})
}

func (s *Server) startInstance(c echo.Context) error {
	inst, err := s.manager.StartInstance(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, inst)
}

func (s *Server) stopInstance(c echo.Context) error {
	var req stopInstanceRequest
	if err := c.Bind(&req); err != nil && c.Request().ContentLength > 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
	}
	inst, err := s.manager.StopInstance(c.Request().Context(), c.Param("id"), req.Force)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, inst)
}

func (s *Server) restartInstance(c echo.Context) error {
	inst, err := s.manager.RestartInstance(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, inst)
}

func (s *Server) updateConfig(c echo.Context) error {
	var cfg map[string]interface{}
	if err := c.Bind(&cfg); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
	}
	result, err := s.manager.UpdateConfig(c.Request().Context(), c.Param("id"), cfg)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// getConfig serves the connector process contract: a freshly spawned (or
// reload-notified) connector fetches its configuration from here.
func (s *Server) getConfig(c echo.Context) error {
	inst, err := s.manager.GetInstance(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, inst.Config)
}

func (s *Server) getUsage(c echo.Context) error {
	usage, ok := s.manager.ResourceUsage(c.Request().Context(), c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "no resource usage available"})
	}
	return c.JSON(http.StatusOK, usage)
}

func (s *Server) heartbeat(c echo.Context) error {
	if err := s.manager.RecordHeartbeat(c.Request().Context(), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) ingest(c echo.Context) error {
	req := ingestRequest{Count: 1}
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		}
	}
	inst, err := s.manager.RecordIngest(c.Request().Context(), c.Param("id"), req.Count)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, inst)
}

func (s *Server) batchStart(c echo.Context) error {
	var req batchStartRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
	}
	results := s.manager.BatchStart(c.Request().Context(), req.InstanceIDs)
	out := make(map[string]batchStartResult, len(results))
	for id, err := range results {
		r := batchStartResult{Success: err == nil}
		if err != nil {
			r.Error = err.Error()
		}
		out[id] = r
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) getStates(c echo.Context) error {
	summary, err := s.manager.GetAllStates(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) shutdown(c echo.Context) error {
	if err := s.manager.ShutdownAll(c.Request().Context()); err != nil {
		return writeError(c, err)
	}
	if s.onShutdown != nil {
		go s.onShutdown()
	}
	return c.NoContent(http.StatusAccepted)
}
