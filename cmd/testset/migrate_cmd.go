package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/testsets/internal/application"
	"github.com/JonMunkholm/testsets/internal/store"
)

func newMigrateCmd() *cobra.Command {
	var driver string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the test-set tables in a SQL store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if driver != "" {
				cfg.Store.Driver = driver
			}

			h, err := store.Open(cmd.Context(), application.StoreConfig(cfg))
			if err != nil {
				return err
			}
			defer h.Close()

			m, ok := h.Store.(store.Migrator)
			if !ok {
				return fmt.Errorf("store driver %q manages its own schema", cfg.Store.Driver)
			}
			if err := m.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "schema applied (%s)\n", cfg.Store.Driver)
			return nil
		},
	}

	cmd.Flags().StringVar(&driver, "driver", "", "Override STORE_DRIVER (postgres, sqlite)")
	return cmd
}
