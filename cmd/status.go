package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"connectord/internal/api"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the aggregate state of all instances",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	var summary api.StateSummary
	if err := newAPIClient().get("/states", &summary); err != nil {
		return err
	}

	fmt.Printf("%d instances, %d running\n", summary.Total, summary.Running)
	if summary.Total == 0 {
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"STATE", "COUNT"})
	for _, state := range []api.ConnectorState{
		api.StateConfigured, api.StateStarting, api.StateRunning,
		api.StateStopping, api.StateStopped, api.StateError,
	} {
		if n := summary.StateDistribution[state]; n > 0 {
			t.AppendRow(table.Row{colorState(state), n})
		}
	}
	t.Render()
	return nil
}

var shutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Stop all instances and shut the daemon down",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newAPIClient().post("/shutdown", nil, nil); err != nil {
			return err
		}
		fmt.Println("Daemon is shutting down")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(shutdownCmd)
}
