package main

import (
	"github.com/spf13/cobra"

	"FeedDigest/internal/app"
	"FeedDigest/internal/config"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the digest every day at the configured push time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(application *app.Application, _ config.Config) error {
				return application.RunDaemon(cmd.Context())
			})
		},
	}
}
