package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/yeisme/datanexus/pkg/app"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "consume dn.object.stored events and score uploads",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *app.Runtime) error {
			w, err := rt.NewWorker()
			if err != nil {
				return err
			}

			rt.StartBridge(ctx, w)

			return w.Run(ctx)
		})
	},
}

func registerWorkerCommands() {
	rootCmd.AddCommand(workerCmd)
}
