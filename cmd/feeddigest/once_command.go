package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"FeedDigest/internal/app"
	"FeedDigest/internal/config"
)

func newOnceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Fetch, select and deliver one digest, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(application *app.Application, _ config.Config) error {
				record, err := application.RunOnce(cmd.Context())
				if record.RunID != "" {
					fmt.Fprintln(cmd.OutOrStdout(), renderRunSummary(record))
				}
				return err
			})
		},
	}
}
