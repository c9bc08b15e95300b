package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/regnantlabs/regent/internal/surface"
)

var surfacesCmd = &cobra.Command{
	Use:   "surfaces",
	Short: "Manage registered surfaces",
}

var surfacesLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List registered surfaces",
	RunE: func(cmd *cobra.Command, args []string) error {
		var result struct {
			Surfaces []surface.Definition `json:"surfaces"`
		}
		if err := newAPIClient().do("GET", "/api/v1/surfaces", nil, &result); err != nil {
			return err
		}

		if len(result.Surfaces) == 0 {
			fmt.Println("no surfaces registered")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tPERMISSION\tNAME\tCAPABILITIES")
		for _, s := range result.Surfaces {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				s.ID, s.Type, s.Permission, s.Name, strings.Join(s.Capabilities, ","))
		}
		return w.Flush()
	},
}

var surfacesAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Register a surface",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		surfaceType, _ := cmd.Flags().GetString("type")
		name, _ := cmd.Flags().GetString("name")
		permission, _ := cmd.Flags().GetString("permission")
		capabilities, _ := cmd.Flags().GetStringSlice("capabilities")

		err := newAPIClient().do("POST", "/api/v1/surfaces", map[string]interface{}{
			"id":           args[0],
			"type":         surfaceType,
			"name":         name,
			"permission":   permission,
			"capabilities": capabilities,
		}, nil)
		if err != nil {
			return err
		}
		fmt.Printf("surface %s registered\n", args[0])
		return nil
	},
}

func init() {
	surfacesAddCmd.Flags().String("type", "control", "Surface type (control, delivery)")
	surfacesAddCmd.Flags().String("name", "", "Display name")
	surfacesAddCmd.Flags().String("permission", "consumer", "Permission level (consumer, operator, admin)")
	surfacesAddCmd.Flags().StringSlice("capabilities", nil, "Capability tags")

	surfacesCmd.AddCommand(surfacesLsCmd, surfacesAddCmd)
	rootCmd.AddCommand(surfacesCmd)
}
