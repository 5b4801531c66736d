package main

import (
	"github.com/spf13/cobra"

	"github.com/bettyorganic/golang_services/internal/platform/database"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Betty Organic order notification pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), false)
		},
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newPendingCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var migrateFirst bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server, change feed listener, dispatcher and provider heartbeat",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), migrateFirst)
		},
	}
	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "Run database migrations before starting the server")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Install or remove the order change trigger",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			if len(args) > 0 {
				action = args[0]
			}
			cfg, log, err := loadConfigAndLogger()
			if err != nil {
				return err
			}
			return database.RunMigrations(cfg.PostgresDSN, action, log)
		},
	}
}
