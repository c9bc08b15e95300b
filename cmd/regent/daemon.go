package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/regnantlabs/regent/internal/config"
	"github.com/regnantlabs/regent/internal/daemon"
	"github.com/regnantlabs/regent/internal/daemon/components"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start regent as a long-running service",
	Long:  `Starts the governance daemon: the HTTP API, chat adapters, and the cron scheduler, supervised with component lifecycle orchestration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		forceClean, _ := cmd.Flags().GetBool("force-clean-locks")

		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		daemonMgr, err := daemon.NewDaemon(cfg)
		if err != nil {
			return fmt.Errorf("failed to create daemon manager: %w", err)
		}
		daemonMgr.SetForceCleanup(forceClean)

		storeComp := components.NewStoreComponent(&cfg.Store)
		regComp := components.NewRegistryComponent(cfg.Store.Path, cfg.Surfaces)
		govComp := components.NewGovernanceComponent(&cfg.Governance, storeComp, regComp)
		httpComp := components.NewHTTPServerComponent(&cfg.Server, storeComp, regComp, govComp)
		adaptersComp := components.NewAdaptersComponent(&cfg.Adapters, config.DefaultWorkspaceID, govComp, regComp)
		schedulerComp := components.NewSchedulerComponent(&cfg.Scheduler, storeComp, govComp, adaptersComp)

		daemonMgr.AddComponent(storeComp)
		daemonMgr.AddComponent(regComp)
		daemonMgr.AddComponent(govComp)
		daemonMgr.AddComponent(httpComp)
		daemonMgr.AddComponent(adaptersComp)
		daemonMgr.AddComponent(schedulerComp)

		slog.Info("regent daemon starting up", "port", cfg.Server.Port)
		if err := daemonMgr.Start(context.Background()); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				slog.Info("regent daemon stopped gracefully")
				return nil
			}
			return fmt.Errorf("daemon failed: %w", err)
		}

		slog.Info("regent daemon stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.Flags().Bool("force-clean-locks", false, "Force cleanup of stale lock files (default: warn-only)")
}
