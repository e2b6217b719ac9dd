package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"connectord/internal/api"
)

var startCmd = &cobra.Command{
	Use:   "start <instance-id>...",
	Short: "Start connector instances",
	Long: `Starts one or more connector instances. With multiple IDs the starts
run concurrently in the daemon and each instance reports its own result.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	client := newAPIClient()

	if len(args) == 1 {
		var inst api.ConnectorInstance
		if err := client.post("/instances/"+args[0]+"/start", nil, &inst); err != nil {
			return err
		}
		fmt.Printf("Instance %s is %s\n", inst.InstanceID, inst.State)
		return nil
	}

	var results map[string]struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	req := map[string]interface{}{"instance_ids": args}
	if err := client.post("/instances/batch-start", req, &results); err != nil {
		return err
	}

	var failed int
	for _, id := range args {
		r := results[id]
		if r.Success {
			fmt.Printf("%s: started\n", id)
		} else {
			failed++
			fmt.Printf("%s: %s\n", id, r.Error)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d instances failed to start", failed, len(args))
	}
	return nil
}

var restartCmd = &cobra.Command{
	Use:   "restart <instance-id>",
	Short: "Restart a connector instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var inst api.ConnectorInstance
		if err := newAPIClient().post("/instances/"+args[0]+"/restart", nil, &inst); err != nil {
			return err
		}
		fmt.Printf("Instance %s is %s\n", inst.InstanceID, inst.State)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(restartCmd)
}
