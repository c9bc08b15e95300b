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

var dispatchCmd = &cobra.Command{
	Use:   "dispatch <intent> [key=value ...]",
	Short: "Dispatch a command through the governance pipeline",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workspaceID, _ := cmd.Flags().GetString("workspace")
		actorID, _ := cmd.Flags().GetString("actor")
		requiresApproval, _ := cmd.Flags().GetBool("approval")

		params := make(map[string]interface{})
		for _, arg := range args[1:] {
			key, value, ok := strings.Cut(arg, "=")
			if !ok {
				return fmt.Errorf("bad argument %q, expected key=value", arg)
			}
			params[key] = value
		}

		var result struct {
			CommandID   string `json:"command_id"`
			Status      string `json:"status"`
			ExecutionID string `json:"execution_id"`
			Message     string `json:"message"`
		}
		err := newAPIClient().do("POST", "/api/v1/commands", map[string]interface{}{
			"workspace_id":      workspaceID,
			"actor_id":          actorID,
			"source_surface":    "cli",
			"intent":            args[0],
			"parameters":        params,
			"requires_approval": requiresApproval,
		}, &result)
		if err != nil {
			return err
		}

		fmt.Printf("command:   %s\n", result.CommandID)
		fmt.Printf("status:    %s\n", result.Status)
		if result.ExecutionID != "" {
			fmt.Printf("execution: %s\n", result.ExecutionID)
		}
		if result.Message != "" {
			fmt.Printf("message:   %s\n", result.Message)
		}
		return nil
	},
}

var approveCmd = &cobra.Command{
	Use:   "approve <command_id>",
	Short: "Approve a pending command and run it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var result struct {
			CommandID   string `json:"command_id"`
			ExecutionID string `json:"execution_id"`
			Status      string `json:"status"`
			Message     string `json:"message"`
		}
		if err := newAPIClient().do("POST", "/api/v1/commands/"+args[0]+"/approve", nil, &result); err != nil {
			return err
		}
		fmt.Printf("command %s %s", result.CommandID, result.Status)
		if result.ExecutionID != "" {
			fmt.Printf(" (execution %s)", result.ExecutionID)
		}
		fmt.Println()
		if result.Message != "" {
			fmt.Println(result.Message)
		}
		return nil
	},
}

var rejectCmd = &cobra.Command{
	Use:   "reject <command_id> [reason]",
	Short: "Reject a pending command",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]string{"reason": strings.Join(args[1:], " ")}
		var result struct {
			CommandID string `json:"command_id"`
			Status    string `json:"status"`
		}
		if err := newAPIClient().do("POST", "/api/v1/commands/"+args[0]+"/reject", body, &result); err != nil {
			return err
		}
		fmt.Printf("command %s rejected\n", result.CommandID)
		return nil
	},
}

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List commands",
	RunE: func(cmd *cobra.Command, args []string) error {
		workspaceID, _ := cmd.Flags().GetString("workspace")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetString("limit")

		var result struct {
			Commands []store.Command `json:"commands"`
		}
		path := "/api/v1/commands" + queryString(map[string]string{
			"workspace_id": workspaceID,
			"status":       strings.ToUpper(status),
			"limit":        limit,
		})
		if err := newAPIClient().do("GET", path, nil, &result); err != nil {
			return err
		}

		if len(result.Commands) == 0 {
			fmt.Println("no commands")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tINTENT\tACTOR\tSURFACE\tCREATED")
		for _, c := range result.Commands {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				c.ID, c.Status, c.Intent, c.ActorID, c.SourceSurface,
				c.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

func init() {
	for _, c := range []*cobra.Command{dispatchCmd, commandsCmd} {
		c.Flags().StringP("workspace", "w", config.DefaultWorkspaceID, "Target workspace ID")
	}
	dispatchCmd.Flags().String("actor", "admin", "Acting user ID")
	dispatchCmd.Flags().Bool("approval", false, "Require manual approval before execution")
	commandsCmd.Flags().String("status", "", "Filter by status (pending, running, completed, failed, rejected)")
	commandsCmd.Flags().String("limit", "", "Maximum results")

	rootCmd.AddCommand(dispatchCmd, approveCmd, rejectCmd, commandsCmd)
}
