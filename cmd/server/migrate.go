package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/and161185/noteskeeper/internal/migrate"
)

func newMigrateCmd(fv *flagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, fv)
			if err != nil {
				return err
			}
			if cfg.DatabaseDSN == "" {
				return errors.New("migrate: database_dsn (or --dsn) is required")
			}
			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			v, err := migrate.Up(cmd.Context(), cfg.DatabaseDSN, logger)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
			return err
		},
	}
}
