package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"feedsim/internal/logging"
)

var (
	cfgPath string
	debug   bool
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// NewRootCmd constructs the root CLI command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "feedsim",
		Short:         "A local simulated social feed with generated posts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := "warn"
			if debug {
				level = "debug"
			}
			logging.Setup(level, true)
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "./feedsim.yaml", "config path")
	root.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")

	root.AddCommand(newInitCmd())
	root.AddCommand(newTabsCmd())
	root.AddCommand(newRefreshCmd())
	root.AddCommand(newBookmarksCmd())
	root.AddCommand(newAchievementsCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newAPIKeyCmd())
	root.AddCommand(newSessionCmd())
	return root
}
