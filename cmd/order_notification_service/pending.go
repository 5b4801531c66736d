package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/bettyorganic/golang_services/internal/order_notification_service/repository/postgres"
	"github.com/bettyorganic/golang_services/internal/platform/database"
)

func newPendingCmd() *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Print the orders currently awaiting attention as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfigAndLogger()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			dbPool, err := database.NewDBPool(ctx, cfg.PostgresDSN)
			if err != nil {
				return err
			}
			defer dbPool.Close()

			orders := postgres.NewPgOrderRepository(dbPool, cfg.OrdersTable, log)
			res := newPendingService(cfg, orders, log).FetchPendingNotifications(ctx, scope)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "Restrict to one customer profile id")
	return cmd
}
