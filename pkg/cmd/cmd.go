// Package cmd 命令行入口：serve 启动 HTTP 服务，worker 独立运行入库消费者，score/settle 用于离线评分与手动结算.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yeisme/datanexus/pkg/app"
	"github.com/yeisme/datanexus/pkg/configs"
)

var (
	configPath string
	debug      bool

	rootCmd = &cobra.Command{
		Use:           "datanexus",
		Short:         "DataNexus data marketplace scoring and settlement backend",
		SilenceUsage:  true,
		SilenceErrors: false,
		Version:       configs.AppVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return configs.InitConfig(configPath)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file or directory")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "verbose output")

	registerServeCommands()
	registerWorkerCommands()
	registerScoreCommands()
	registerSettleCommands()
	registerConfigsCommands()
	registerDBCommands()
	registerMQCommands()
	registerKVCommands()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// signalContext 在收到 SIGINT/SIGTERM 时取消.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// withRuntime 初始化完整运行时，fn 返回后释放连接.
func withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *app.Runtime) error) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	rt, err := app.Bootstrap(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := rt.Close(context.Background()); cerr != nil {
			rt.Logger.Warn().Err(cerr).Msg("close runtime")
		}
	}()

	return fn(ctx, rt)
}
