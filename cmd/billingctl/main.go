package main

import (
	"log"
	"os"

	"billing-service/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[MAIN] No .env file found, relying on system env vars")
	}

	rootCmd := &cobra.Command{
		Use:          "billingctl",
		Short:        "Operator tooling for the billing service",
		Long:         `billingctl runs database migrations, triggers renewal notifications and broadcasts, and mints access tokens.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newMigrateCommand(),
		newNotifyCommand(),
		newTokenCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadEnv() (config.AppConfig, *zap.Logger, error) {
	cfg := config.Load()
	if cfg.IsDevelopment() {
		logger, err := zap.NewDevelopment()
		return cfg, logger, err
	}
	logger, err := zap.NewProduction()
	return cfg, logger, err
}
