package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeisme/datanexus/pkg/app"
	kv "github.com/yeisme/datanexus/pkg/internal/storage/kv"
)

var (
	kvCmd = &cobra.Command{
		Use:     "kv",
		Short:   "Key-Value store related commands",
		Aliases: []string{"keyvalue"},
	}

	kvListCmd = &cobra.Command{
		Use:     "list",
		Short:   "list all registered kv types",
		Aliases: []string{"ls", "l"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Registered kv types:")

			for _, t := range kv.GetRegisteredKVTypes() {
				fmt.Fprintln(cmd.OutOrStdout(), "   - "+string(t))
			}
		},
	}

	// 刷新市场分类汇总缓存.
	kvRefreshCmd = &cobra.Command{
		Use:   "refresh-summaries",
		Short: "recompute the market category summaries and rewrite the cache entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *app.Runtime) error {
				if err := rt.Manager.GetKVClient().HealthCheck(ctx); err != nil {
					return fmt.Errorf("kv unhealthy: %w", err)
				}

				res, err := rt.Market().RefreshSummaries(ctx)
				if err != nil {
					return err
				}

				for _, c := range res.Categories {
					fmt.Fprintf(cmd.OutOrStdout(), "%-20s files=%d avg=%.1f\n", c.MarketCategory, c.TotalFiles, c.AvgQuality)
				}

				return nil
			})
		},
	}
)

// registerKVCommands 注册 KV 相关命令.
func registerKVCommands() {
	rootCmd.AddCommand(kvCmd)
	kvCmd.AddCommand(kvListCmd)
	kvCmd.AddCommand(kvRefreshCmd)
}
