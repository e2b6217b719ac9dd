package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// endpoint is the daemon API address used by all client commands.
var endpoint string

// rootCmd represents the base command for the connectord application.
var rootCmd = &cobra.Command{
	Use:   "connectord",
	Short: "Supervise personal data connectors",
	Long: `connectord runs data collector processes ("connectors") as supervised
subprocesses: it discovers installable connector types, creates persisted
instances, starts and stops them, tracks their health and streams
lifecycle events.

Run 'connectord serve' to start the daemon; every other command talks to
a running daemon over its HTTP API.`,
	// SilenceUsage prevents Cobra from printing the usage message on
	// errors the commands already report.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command. Called from main with
// the build-time version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "connectord version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "http://localhost:7432", "Address of the connectord daemon")
	rootCmd.AddCommand(newVersionCmd())
}
