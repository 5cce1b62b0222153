package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/testsets/internal/config"
	"github.com/JonMunkholm/testsets/internal/logging"
)

func newRootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "testset",
		Short:         "Save test-set documents to the configured store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Overload(envFile); err != nil {
				slog.Debug("no env file loaded", "file", envFile, "error", err)
			}
		},
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load before reading configuration")

	cmd.AddCommand(newSaveCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newPlanCmd())
	return cmd
}

// loadConfig reads configuration and installs the configured logger on
// stderr so stdout stays machine-readable.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logging.New(stderr, cfg.Logging.Level, cfg.Logging.Format))
	return cfg, nil
}
