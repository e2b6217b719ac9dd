package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"connectord/internal/api"
)

var (
	createType       string
	createName       string
	createConfigJSON string
	createTemplate   string
	createAutoStart  bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a connector instance",
	Long: `Creates a persisted connector instance of the given type. The instance
starts in the configured state; pass --auto-start to launch it
immediately and on every daemon start.`,
	Example: `  connectord create --type filewatcher --name "Documents" --config '{"path": "~/Documents"}'
  connectord create --type filewatcher --template documents --auto-start`,
	Args: cobra.NoArgs,
	RunE: runCreate,
}

func runCreate(cmd *cobra.Command, args []string) error {
	var cfg map[string]interface{}
	if createConfigJSON != "" {
		if err := json.Unmarshal([]byte(createConfigJSON), &cfg); err != nil {
			return fmt.Errorf("--config must be a JSON object: %w", err)
		}
	}

	req := map[string]interface{}{
		"type_id":      createType,
		"display_name": createName,
		"config":       cfg,
		"auto_start":   createAutoStart,
		"template_id":  createTemplate,
	}
	var inst api.ConnectorInstance
	if err := newAPIClient().post("/instances", req, &inst); err != nil {
		return err
	}
	fmt.Printf("Created instance %s (%s)\n", inst.InstanceID, inst.State)
	return nil
}

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().StringVar(&createType, "type", "", "Connector type ID (required)")
	createCmd.Flags().StringVar(&createName, "name", "", "Display name")
	createCmd.Flags().StringVar(&createConfigJSON, "config", "", "Instance configuration as a JSON object")
	createCmd.Flags().StringVar(&createTemplate, "template", "", "Instance template ID declared by the type")
	createCmd.Flags().BoolVar(&createAutoStart, "auto-start", false, "Start immediately and on daemon startup")
	createCmd.MarkFlagRequired("type")
}
