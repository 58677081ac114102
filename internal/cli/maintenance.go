package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Show or change maintenance mode",
	Args:  cobra.NoArgs,
	RunE:  runMaintenanceStatus,
}

var maintenanceToggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Flip maintenance mode",
	Args:  cobra.NoArgs,
	RunE:  runMaintenanceToggle,
}

var maintenanceSetCmd = &cobra.Command{
	Use:   "set [on|off]",
	Short: "Turn maintenance mode on or off",
	Args:  cobra.ExactArgs(1),
	RunE:  runMaintenanceSet,
}

func init() {
	maintenanceCmd.AddCommand(maintenanceToggleCmd)
	maintenanceCmd.AddCommand(maintenanceSetCmd)
	rootCmd.AddCommand(maintenanceCmd)
}

func printMaintenance(cmd *cobra.Command, on bool) {
	state := "off"
	if on {
		state = "on"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "maintenance mode is %s\n", state)
}

func runMaintenanceStatus(cmd *cobra.Command, _ []string) error {
	svc, err := services()
	if err != nil {
		return err
	}
	on, err := svc.Settings.MaintenanceMode(cmd.Context())
	if err != nil {
		return err
	}
	printMaintenance(cmd, on)
	return nil
}

func runMaintenanceToggle(cmd *cobra.Command, _ []string) error {
	svc, err := services()
	if err != nil {
		return err
	}
	on, err := svc.Settings.ToggleMaintenance(cmd.Context())
	if err != nil {
		return err
	}
	printMaintenance(cmd, on)
	return nil
}

func runMaintenanceSet(cmd *cobra.Command, args []string) error {
	on, err := parseSwitch(args[0])
	if err != nil {
		return err
	}
	svc, err := services()
	if err != nil {
		return err
	}
	if err := svc.Settings.SetMaintenanceMode(cmd.Context(), on); err != nil {
		return err
	}
	printMaintenance(cmd, on)
	return nil
}

func parseSwitch(raw string) (bool, error) {
	switch raw {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	on, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("expected on or off, got %q", raw)
	}
	return on, nil
}
