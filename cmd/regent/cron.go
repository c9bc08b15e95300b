package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/regnantlabs/regent/internal/config"
	"github.com/regnantlabs/regent/internal/store"
)

var cronCmd = &cobra.Command{
	Use:   "cron",
	Short: "Manage scheduled dispatches",
}

var cronLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List schedules",
	RunE: func(cmd *cobra.Command, args []string) error {
		workspaceID, _ := cmd.Flags().GetString("workspace")

		var result struct {
			Schedules []store.Schedule `json:"schedules"`
		}
		path := "/api/v1/schedules" + queryString(map[string]string{"workspace_id": workspaceID})
		if err := newAPIClient().do("GET", path, nil, &result); err != nil {
			return err
		}

		if len(result.Schedules) == 0 {
			fmt.Println("no schedules")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tCRON\tINTENT\tENABLED\tNEXT RUN")
		for _, s := range result.Schedules {
			next := ""
			if !s.NextRun.IsZero() {
				next = s.NextRun.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", s.ID, s.CronExpr, s.Intent, s.Enabled, next)
		}
		return w.Flush()
	},
}

var cronAddCmd = &cobra.Command{
	Use:   "add <cron_expr> <intent> [key=value ...]",
	Short: "Add a schedule",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		workspaceID, _ := cmd.Flags().GetString("workspace")
		actorID, _ := cmd.Flags().GetString("actor")
		requiresApproval, _ := cmd.Flags().GetBool("approval")

		params := make(map[string]interface{})
		for _, arg := range args[2:] {
			key, value, ok := strings.Cut(arg, "=")
			if !ok {
				return fmt.Errorf("bad argument %q, expected key=value", arg)
			}
			params[key] = value
		}

		var result store.Schedule
		err := newAPIClient().do("POST", "/api/v1/schedules", map[string]interface{}{
			"workspace_id":      workspaceID,
			"actor_id":          actorID,
			"intent":            args[1],
			"parameters":        params,
			"requires_approval": requiresApproval,
			"cron_expr":         args[0],
			"enabled":           true,
		}, &result)
		if err != nil {
			return err
		}
		fmt.Printf("schedule %s created, next run %s\n", result.ID, result.NextRun.Format("2006-01-02 15:04:05"))
		return nil
	},
}

var cronRmCmd = &cobra.Command{
	Use:   "rm <schedule_id>",
	Short: "Remove a schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newAPIClient().do("DELETE", "/api/v1/schedules/"+args[0], nil, nil); err != nil {
			return err
		}
		fmt.Printf("schedule %s removed\n", args[0])
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{cronLsCmd, cronAddCmd} {
		c.Flags().StringP("workspace", "w", config.DefaultWorkspaceID, "Target workspace ID")
	}
	cronAddCmd.Flags().String("actor", "admin", "Acting user ID")
	cronAddCmd.Flags().Bool("approval", false, "Require manual approval on each run")

	cronCmd.AddCommand(cronLsCmd, cronAddCmd, cronRmCmd)
	rootCmd.AddCommand(cronCmd)
}
