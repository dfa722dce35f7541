package cmd

import (
	"github.com/spf13/cobra"

	"tracker/config"
)

// cfg is loaded once before any command runs.
var cfg *config.Config

var RootCmd = &cobra.Command{
	Use:   "route-tracker",
	Short: "plan and track team route segments",
	Long: `route-tracker keeps an ordered itinerary of segments per team and leg,
autosaves every change locally and syncs it with a remote snapshot server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	RootCmd.AddCommand(serverCommand())
	RootCmd.AddCommand(migrateCommand())
	RootCmd.AddCommand(segmentsCommand())
	RootCmd.AddCommand(presetCommand())
	RootCmd.AddCommand(importCommand())
	RootCmd.AddCommand(statusCommand())
	RootCmd.AddCommand(syncCommand())
	RootCmd.AddCommand(resolveCommand())
}
