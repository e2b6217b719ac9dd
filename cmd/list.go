package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"connectord/internal/api"
)

var (
	listTypeFilter  string
	listStateFilter string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List connector instances",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	path := "/instances"
	sep := "?"
	if listTypeFilter != "" {
		path += sep + "type_id=" + listTypeFilter
		sep = "&"
	}
	if listStateFilter != "" {
		path += sep + "state=" + listStateFilter
	}

	var instances []api.ConnectorInstance
	if err := newAPIClient().get(path, &instances); err != nil {
		return err
	}
	if len(instances) == 0 {
		fmt.Println(text.FgYellow.Sprint("No connector instances found"))
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"ID", "TYPE", "NAME", "STATE", "PID", "ITEMS", "LAST HEARTBEAT"})
	for _, inst := range instances {
		pid := "-"
		if inst.ProcessID != nil {
			pid = fmt.Sprintf("%d", *inst.ProcessID)
		}
		heartbeat := "-"
		if inst.LastHeartbeat != nil {
			heartbeat = fmt.Sprintf("%s ago", time.Since(*inst.LastHeartbeat).Round(time.Second))
		}
		t.AppendRow(table.Row{
			inst.InstanceID,
			inst.TypeID,
			inst.DisplayName,
			colorState(inst.State),
			pid,
			inst.DataCount,
			heartbeat,
		})
	}
	t.Render()
	return nil
}

func colorState(state api.ConnectorState) string {
	switch state {
	case api.StateRunning:
		return text.FgGreen.Sprint(state)
	case api.StateStarting, api.StateStopping:
		return text.FgYellow.Sprint(state)
	case api.StateError:
		return text.FgRed.Sprint(state)
	default:
		return string(state)
	}
}

var connectorsCmd = &cobra.Command{
	Use:   "connectors",
	Short: "List installable connector types",
	Args:  cobra.NoArgs,
	RunE:  runConnectors,
}

func runConnectors(cmd *cobra.Command, args []string) error {
	var types []api.ConnectorType
	if err := newAPIClient().get("/connectors", &types); err != nil {
		return err
	}
	if len(types) == 0 {
		fmt.Println(text.FgYellow.Sprint("No connector types discovered"))
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"TYPE", "VERSION", "CATEGORY", "MULTI-INSTANCE", "HOT RELOAD"})
	for _, ct := range types {
		t.AppendRow(table.Row{ct.TypeID, ct.Version, ct.Category, ct.SupportsMultipleInstances, ct.HotConfigReload})
	}
	t.Render()
	return nil
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(connectorsCmd)

	listCmd.Flags().StringVar(&listTypeFilter, "type", "", "Filter by connector type")
	listCmd.Flags().StringVar(&listStateFilter, "state", "", "Filter by lifecycle state")
}
