package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"connectord/pkg/logging"
)

type connectedEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

type keepAliveEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func writeSSE(w io.Writer, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

// streamEvents serves the lifecycle event stream over SSE. Consumers get
// an initial connected event, state_change events as transitions occur,
// and periodic heartbeat events so a dead connection is detectable. A
// slow consumer misses events rather than stalling the state machine; it
// reconciles by polling instance state.
func (s *Server) streamEvents(c echo.Context) error {
	sub := s.bus.Subscribe(s.opts.EventBufferSize)
	defer s.bus.Unsubscribe(sub)

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeSSE(w, "connected", connectedEvent{Timestamp: time.Now()}); err != nil {
		return err
	}
	w.Flush()

	keepAlive := time.NewTicker(s.opts.SSEKeepAlive)
	defer keepAlive.Stop()

	ctx := c.Request().Context()
	logging.Debug("Server", "Event stream subscriber connected")
	for {
		select {
		case <-ctx.Done():
			logging.Debug("Server", "Event stream subscriber disconnected")
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if err := writeSSE(w, "state_change", ev); err != nil {
				return nil
			}
			w.Flush()
		case <-keepAlive.C:
			if err := writeSSE(w, "heartbeat", keepAliveEvent{Timestamp: time.Now()}); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}
