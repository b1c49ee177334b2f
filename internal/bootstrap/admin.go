// Package bootstrap seeds the optional development admin account.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/socialimageapp/authentication-api-service/internal/config"
	"github.com/socialimageapp/authentication-api-service/internal/domain"
	"github.com/socialimageapp/authentication-api-service/internal/password"
	"github.com/socialimageapp/authentication-api-service/internal/repository"
)

// EnsureAdmin creates a pre-verified admin user for dev/e2e when the
// admin credentials are configured. Skipped silently otherwise.
func EnsureAdmin(lc fx.Lifecycle, cfg config.Config, users repository.UserRepository, provisioner repository.Provisioner, node *snowflake.Node, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return ensureAdmin(ctx, cfg, users, provisioner, node, logger)
		},
	})
}

func ensureAdmin(ctx context.Context, cfg config.Config, users repository.UserRepository, provisioner repository.Provisioner, node *snowflake.Node, logger *zap.Logger) error {
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	if email == "" || strings.TrimSpace(cfg.AdminPassword) == "" {
		return nil
	}

	if _, err := users.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("bootstrap lookup user: %w", err)
	}

	hashed, err := password.Hash(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap hash password: %w", err)
	}

	created, err := provisioner.CreateProvisionedUser(ctx, domain.User{
		ID:           node.Generate().Int64(),
		Email:        email,
		PasswordHash: hashed,
		FirstName:    "Admin",
		UserType:     "admin",
	})
	if err != nil {
		return fmt.Errorf("bootstrap create admin: %w", err)
	}

	if logger != nil {
		logger.Info("bootstrap admin user created",
			zap.String("email", created.Email),
			zap.Int64("user_id", created.ID),
		)
	}
	return nil
}
