package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"connectord/internal/api"
	"connectord/internal/events"
)

// eventsInstanceFilter limits output to a single instance.
var eventsInstanceFilter string

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Stream lifecycle events from the daemon",
	Long: `Subscribes to the daemon's event stream and prints state transitions as
they occur, until interrupted. Slow consumers may miss events; the listing
commands always show current state.`,
	Args: cobra.NoArgs,
	RunE: runEvents,
}

func runEvents(cmd *cobra.Command, args []string) error {
	url := strings.TrimRight(endpoint, "/") + "/api/v1/events"
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	// No timeout: the stream stays open until cancelled.
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return fmt.Errorf("cannot reach daemon at %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon returned %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	var eventType string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			eventType = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			handleEvent(eventType, strings.TrimPrefix(line, "data: "))
		}
	}
	return scanner.Err()
}

func handleEvent(eventType, data string) {
	switch eventType {
	case "connected":
		fmt.Println(text.FgGreen.Sprint("Connected to event stream"))
	case "state_change":
		var ev events.LifecycleEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return
		}
		if eventsInstanceFilter != "" && ev.InstanceID != eventsInstanceFilter {
			return
		}
		line := fmt.Sprintf("%s  %s  %s -> %s",
			ev.Timestamp.Format(time.TimeOnly), ev.InstanceID, orNone(ev.OldState), ev.NewState)
		if ev.Reason != "" {
			line += "  (" + ev.Reason + ")"
		}
		if ev.NewState == api.StateError {
			line = text.FgRed.Sprint(line)
		}
		fmt.Println(line)
	}
	// Keep-alive heartbeats are not worth printing.
}

func orNone(state api.ConnectorState) string {
	if state == "" {
		return "(new)"
	}
	return string(state)
}

func init() {
	rootCmd.AddCommand(eventsCmd)

	eventsCmd.Flags().StringVar(&eventsInstanceFilter, "instance", "", "Only show events for this instance")
}
