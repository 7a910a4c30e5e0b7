package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"FeedDigest/internal/app"
	"FeedDigest/internal/config"
)

func newCrontabCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "crontab",
		Short: "Print crontab lines that run the digest once a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(application *app.Application, _ config.Config) error {
				binary, err := os.Executable()
				if err != nil {
					binary = "feeddigest"
				}
				configPath := ctx.configPath()
				if configPath != "" {
					if abs, err := filepath.Abs(configPath); err == nil {
						configPath = abs
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), application.CrontabEntry(binary, configPath))
				return nil
			})
		},
	}
}
