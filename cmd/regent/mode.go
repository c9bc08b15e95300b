package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/regnantlabs/regent/internal/config"
)

var modeCmd = &cobra.Command{
	Use:   "mode [strict|warning]",
	Short: "Show or set the governance mode for a workspace",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workspaceID, _ := cmd.Flags().GetString("workspace")
		client := newAPIClient()

		if len(args) == 0 {
			var result struct {
				Mode string `json:"mode"`
			}
			if err := client.do("GET", "/api/v1/workspaces/"+workspaceID+"/mode", nil, &result); err != nil {
				return err
			}
			if result.Mode == "" {
				fmt.Printf("workspace %s uses the default mode (%s)\n", workspaceID, cfg.Governance.DefaultMode)
				return nil
			}
			fmt.Printf("workspace %s mode: %s\n", workspaceID, result.Mode)
			return nil
		}

		err := client.do("PUT", "/api/v1/workspaces/"+workspaceID+"/mode", map[string]string{"mode": args[0]}, nil)
		if err != nil {
			return err
		}
		fmt.Printf("workspace %s mode set to %s\n", workspaceID, args[0])
		return nil
	},
}

func init() {
	modeCmd.Flags().StringP("workspace", "w", config.DefaultWorkspaceID, "Target workspace ID")
	rootCmd.AddCommand(modeCmd)
}
