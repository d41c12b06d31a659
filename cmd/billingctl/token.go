package main

import (
	"context"
	"fmt"
	"time"

	"billing-service/internal/db"
	"billing-service/internal/pkg/jwt"
	"billing-service/internal/pkg/session"

	"github.com/spf13/cobra"
)

func newTokenCommand() *cobra.Command {
	var (
		identityID int64
		roles      []string
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token signed with JWT_PRIVATE_KEY_PATH",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadEnv()
			if err != nil {
				return err
			}
			if ttl > 0 {
				cfg.JWT.TTL = ttl
			}

			gen, err := jwt.LoadGenerator(cfg.JWT)
			if err != nil {
				return err
			}

			token, jti, err := gen.GenerateAccessToken(identityID, roles)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}

			cmd.Printf("jti: %s\n%s\n", jti, token)
			return nil
		},
	}

	cmd.Flags().Int64Var(&identityID, "identity", 0, "Identity (user) ID (required)")
	cmd.Flags().StringSliceVar(&roles, "role", []string{jwt.RoleUser}, "Roles to embed")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to JWT_TTL)")
	_ = cmd.MarkFlagRequired("identity")

	cmd.AddCommand(newTokenRevokeCommand())

	return cmd
}

func newTokenRevokeCommand() *cobra.Command {
	var (
		jti string
		ttl time.Duration
	)

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Blacklist a token id in Redis until it would have expired",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadEnv()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if cfg.RedisAddr == "" {
				return fmt.Errorf("REDIS_ADDR is not set")
			}
			if ttl <= 0 {
				ttl = cfg.JWT.TTL
			}

			client, err := db.NewRedisClient(db.RedisConfig{
				Addresses: []string{cfg.RedisAddr},
				Password:  cfg.RedisPass,
				PoolSize:  1,
			})
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := session.NewManager(client).BlacklistToken(ctx, jti, ttl); err != nil {
				return fmt.Errorf("failed to revoke token: %w", err)
			}

			cmd.Printf("revoked %s for %s\n", jti, ttl)
			return nil
		},
	}

	cmd.Flags().StringVar(&jti, "jti", "", "Token id printed by 'billingctl token' (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "How long to keep the revocation (defaults to JWT_TTL)")
	_ = cmd.MarkFlagRequired("jti")

	return cmd
}
