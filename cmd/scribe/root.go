package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var (
		configFlag string
		serverFlag string
		userFlag   string
	)

	rootCmd := &cobra.Command{
		Use:           "scribe",
		Short:         "Convert media links into text transcripts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to config.toml")
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "Daemon API address (overrides config)")
	rootCmd.PersistentFlags().StringVar(&userFlag, "user", "", "User id for signed requests")

	ctx := newCommandContext(&configFlag, &serverFlag, &userFlag)

	rootCmd.AddCommand(newSubmitCommand(ctx))
	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newShowCommand(ctx))
	rootCmd.AddCommand(newFollowCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newNotifyTestCommand(ctx))
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}
