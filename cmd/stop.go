package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"connectord/internal/api"
)

// stopForce skips the graceful phase and kills the process immediately.
var stopForce bool

var stopCmd = &cobra.Command{
	Use:   "stop <instance-id>",
	Short: "Stop a connector instance",
	Long: `Stops a connector instance. The process gets a termination signal and a
grace period before being killed; --force kills it immediately. Stopping
an instance that is not running is a no-op.`,
	Args: cobra.ExactArgs(1),
	RunE: runStop,
}

func runStop(cmd *cobra.Command, args []string) error {
	req := map[string]interface{}{"force": stopForce}
	var inst api.ConnectorInstance
	if err := newAPIClient().post("/instances/"+args[0]+"/stop", req, &inst); err != nil {
		return err
	}
	fmt.Printf("Instance %s is %s\n", inst.InstanceID, inst.State)
	return nil
}

// deleteForce stops a live instance before removing it.
var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <instance-id>",
	Short: "Delete a connector instance",
	Long: `Removes the instance record. A running instance is rejected unless
--force is given, which stops it first.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func runDelete(cmd *cobra.Command, args []string) error {
	path := "/instances/" + args[0]
	if deleteForce {
		path += "?force=true"
	}
	var resp struct {
		WasRunning bool `json:"was_running"`
	}
	if err := newAPIClient().delete(path, &resp); err != nil {
		return err
	}
	if resp.WasRunning {
		fmt.Printf("Stopped and deleted instance %s\n", args[0])
	} else {
		fmt.Printf("Deleted instance %s\n", args[0])
	}
	return nil
}

func init() {
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(deleteCmd)

	stopCmd.Flags().BoolVar(&stopForce, "force", false, "Kill the process immediately")
	deleteCmd.Flags().BoolVar(&deleteForce, "force", false, "Stop the instance first if it is running")
}
