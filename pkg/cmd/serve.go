package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/yeisme/datanexus/pkg/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "start the HTTP API (and the embedded ingestion worker when worker.embedded is set)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *app.Runtime) error {
			a, err := app.NewApp(rt)
			if err != nil {
				return err
			}

			return a.Run(ctx)
		})
	},
}

func registerServeCommands() {
	rootCmd.AddCommand(serveCmd)
}
