package cmd

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/yeisme/datanexus/pkg/app"
	"github.com/yeisme/datanexus/pkg/internal/service"
)

var (
	settleCategory string
	settleAgency   string

	settleCmd = &cobra.Command{
		Use:   "settle",
		Short: "purchase a batch of the best unsold items in a category and distribute payouts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *app.Runtime) error {
				res, err := rt.Market().Purchase(ctx, service.PurchaseRequest{
					Category: settleCategory,
					AgencyID: settleAgency,
				})
				if err != nil {
					return fmt.Errorf("%s: %w", service.PublicMessage(err), err)
				}

				b, err := sonic.ConfigStd.MarshalIndent(res, "", "  ")
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), string(b))

				return nil
			})
		},
	}
)

func registerSettleCommands() {
	settleCmd.Flags().StringVar(&settleCategory, "category", "", "market category, e.g. \"Medical Imaging\"")
	settleCmd.Flags().StringVar(&settleAgency, "agency", service.DefaultAgencyID, "buying agency id")
	_ = settleCmd.MarkFlagRequired("category")

	rootCmd.AddCommand(settleCmd)
}
