package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeisme/datanexus/pkg/app"
	"github.com/yeisme/datanexus/pkg/internal/service"
	mq "github.com/yeisme/datanexus/pkg/internal/storage/mq"
	"github.com/yeisme/datanexus/pkg/queue"
)

var (
	mqBucket string

	mqCmd = &cobra.Command{
		Use:     "mq",
		Short:   "Message queue related commands",
		Aliases: []string{"messagequeue"},
	}

	mqListCmd = &cobra.Command{
		Use:     "list",
		Short:   "list all registered mq types",
		Aliases: []string{"ls", "l"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Registered mq types:")

			for _, t := range mq.GetRegisteredMQTypes() {
				fmt.Fprintln(cmd.OutOrStdout(), "   - "+string(t))
			}
		},
	}

	mqReprocessCmd = &cobra.Command{
		Use:   "reprocess <object-key>...",
		Short: "publish dn.object.stored events so the worker rescores existing uploads",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *app.Runtime) error {
				var presigner service.Presigner
				if s3c := rt.Manager.GetS3Client(); s3c != nil {
					presigner = s3c
				}

				svc := service.NewUploadService(presigner, rt.Manager.GetMQClient().Publisher(), rt.Config.Events)

				for _, key := range args {
					id, err := svc.Reprocess(ctx, service.ReprocessRequest{Bucket: mqBucket, ObjectKey: key, Source: queue.SourceCLI})
					if err != nil {
						return fmt.Errorf("%s: %w", key, err)
					}

					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, key)
				}

				return nil
			})
		},
	}
)

// registerMQCommands 注册 MQ 相关命令.
func registerMQCommands() {
	mqReprocessCmd.Flags().StringVar(&mqBucket, "bucket", "", "bucket name (defaults to s3.upload_bucket)")

	rootCmd.AddCommand(mqCmd)
	mqCmd.AddCommand(mqListCmd)
	mqCmd.AddCommand(mqReprocessCmd)
}
