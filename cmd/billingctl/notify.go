package main

import (
	"context"
	"fmt"

	"billing-service/internal/app"
	"billing-service/internal/db"
	"billing-service/internal/metrics"

	"github.com/spf13/cobra"
)

func newNotifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Renewal reminders and broadcasts",
	}

	var message string
	broadcast := &cobra.Command{
		Use:   "broadcast",
		Short: "Store a broadcast notification for every user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), func(s *app.Services) error {
				n, err := s.Notification.Broadcast(cmd.Context(), message)
				if err != nil {
					return err
				}
				cmd.Printf("broadcasted to %d users\n", n)
				return nil
			})
		},
	}
	broadcast.Flags().StringVarP(&message, "message", "m", "", "Broadcast message (required)")
	_ = broadcast.MarkFlagRequired("message")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "generate",
			Short: "Generate renewal notifications once",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withServices(cmd.Context(), func(s *app.Services) error {
					n, err := s.Notification.GenerateRenewalNotifications(cmd.Context())
					if err != nil {
						return err
					}
					cmd.Printf("generated %d renewal notifications\n", n)
					return nil
				})
			},
		},
		broadcast,
	)

	return cmd
}

func withServices(ctx context.Context, fn func(s *app.Services) error) error {
	cfg, logger, err := loadEnv()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	pool, err := db.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	// No websocket clients are reachable from the CLI
	return fn(app.NewServices(pool, nil, cfg, metrics.New(), logger))
}
