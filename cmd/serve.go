package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"connectord/internal/app"
)

// serveDebug enables verbose logging across the daemon.
var serveDebug bool

// serveSilent suppresses all log output. Useful for scripting.
var serveSilent bool

// serveConfigPath overrides the default configuration directory
// (~/.config/connectord).
var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the connectord daemon",
	Long: `Starts the connector daemon: discovers connector types, reconciles
instances persisted by a previous run, auto-starts enabled instances and
serves the HTTP control API.

The daemon runs until interrupted (Ctrl+C / SIGTERM) or until a shutdown
is requested over the API, stopping every running connector on the way
out. Configuration is read from config.yaml in the configuration
directory; missing values fall back to defaults.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	application, err := app.NewApplication(&app.Config{
		Debug:      serveDebug,
		Silent:     serveSilent,
		ConfigPath: serveConfigPath,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize daemon: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	serveCmd.Flags().BoolVar(&serveSilent, "silent", false, "Suppress all log output")
	serveCmd.Flags().StringVar(&serveConfigPath, "config-path", "", "Custom configuration directory path")
}
