package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"FeedDigest/internal/app"
	"FeedDigest/internal/config"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check [source...]",
		Short: "Check that sources are reachable and parse; nothing is delivered",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(application *app.Application, _ config.Config) error {
				results := application.Check(cmd.Context(), args)
				fmt.Fprintln(cmd.OutOrStdout(), renderCheckResults(results))

				for _, res := range results {
					if !res.Failed() {
						return nil
					}
				}
				return errors.New("no source could be fetched")
			})
		},
	}
}
