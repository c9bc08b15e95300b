package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/regnantlabs/regent/internal/config"
	"github.com/regnantlabs/regent/internal/store"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Query the audit event stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		workspaceID, _ := cmd.Flags().GetString("workspace")
		commandID, _ := cmd.Flags().GetString("command")
		eventType, _ := cmd.Flags().GetString("type")
		surfaceID, _ := cmd.Flags().GetString("surface")
		limit, _ := cmd.Flags().GetString("limit")

		var result struct {
			Events []store.SurfaceEvent `json:"events"`
		}
		path := "/api/v1/events" + queryString(map[string]string{
			"workspace_id":   workspaceID,
			"command_id":     commandID,
			"event_type":     eventType,
			"source_surface": surfaceID,
			"limit":          limit,
		})
		if err := newAPIClient().do("GET", path, nil, &result); err != nil {
			return err
		}

		if len(result.Events) == 0 {
			fmt.Println("no events")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "SEQ\tTYPE\tSURFACE\tACTOR\tCOMMAND\tCREATED")
		for _, e := range result.Events {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
				e.Seq, e.EventType, e.SourceSurface, e.ActorID, e.CommandID,
				e.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

func init() {
	eventsCmd.Flags().StringP("workspace", "w", config.DefaultWorkspaceID, "Target workspace ID")
	eventsCmd.Flags().String("command", "", "Filter by command ID")
	eventsCmd.Flags().String("type", "", "Filter by event type")
	eventsCmd.Flags().String("surface", "", "Filter by source surface")
	eventsCmd.Flags().String("limit", "", "Maximum results")
	rootCmd.AddCommand(eventsCmd)
}
