package main

import (
	"fmt"

	"billing-service/internal/db"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tools",
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(m *db.Migrator, logger *zap.Logger) error {
				if err := m.Down(cmd.Context(), steps); err != nil {
					return err
				}
				logger.Info("migrations rolled back", zap.Int("steps", steps))
				return nil
			})
		},
	}
	down.Flags().IntVarP(&steps, "steps", "n", 1, "Number of migrations to rollback")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Run all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd, func(m *db.Migrator, logger *zap.Logger) error {
					if err := m.Up(cmd.Context()); err != nil {
						return err
					}
					version, err := m.Version(cmd.Context())
					if err != nil {
						return err
					}
					logger.Info("migrations applied", zap.Int64("version", version))
					return nil
				})
			},
		},
		down,
		&cobra.Command{
			Use:   "status",
			Short: "Show migration status",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd, func(m *db.Migrator, _ *zap.Logger) error {
					return m.Status(cmd.Context())
				})
			},
		},
	)

	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(m *db.Migrator, logger *zap.Logger) error) error {
	cfg, logger, err := loadEnv()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	m, err := db.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open migrator: %w", err)
	}
	defer m.Close()

	return fn(m, logger)
}
