// Package bootstrap wires the process-level dependencies shared by the
// server and the operational commands.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"agora/internal/cache"
	"agora/internal/config"
	"agora/internal/database"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/repository"
	"agora/internal/validation"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// ApplySchema runs migrations according to DB_SCHEMA_MODE before returning.
	ApplySchema bool
}

// InitRuntime connects to DB and Redis, applies the schema when asked and
// ensures the development admin account.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := observability.RegisterGormMetrics(db); err != nil {
		closeRuntime(db, nil)
		return nil, nil, fmt.Errorf("register gorm metrics: %w", err)
	}

	// nil when Redis is unreachable
	r := cache.InitRedis(cfg.RedisURL)

	if err := prepareRuntime(ctx, cfg, opts, db, r); err != nil {
		return nil, nil, err
	}
	return db, r, nil
}

// prepareRuntime applies the schema and the dev admin on freshly opened
// connections. Both connections are closed when it fails.
func prepareRuntime(ctx context.Context, cfg *config.Config, opts Options, db *gorm.DB, r *redis.Client) error {
	if opts.ApplySchema {
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			closeRuntime(db, r)
			return err
		}
	}
	if err := EnsureDevAdmin(ctx, cfg, db); err != nil {
		closeRuntime(db, r)
		return fmt.Errorf("failed to bootstrap development admin: %w", err)
	}
	return nil
}

func closeRuntime(db *gorm.DB, r *redis.Client) {
	if r != nil {
		if err := r.Close(); err != nil {
			middleware.Logger.Warn("closing redis client", slog.String("error", err.Error()))
		}
	}
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			middleware.Logger.Warn("closing database pool", slog.String("error", err.Error()))
		}
	}
}

// EnsureDevAdmin creates or promotes the configured admin account outside
// production when SEED_DEV_ADMIN is set.
func EnsureDevAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil || !cfg.SeedDevAdmin || cfg.IsProduction() {
		return nil
	}

	username := strings.TrimSpace(cfg.DevAdminUsername)
	if username == "" {
		username = "agora_admin"
	}
	if cfg.DevAdminPassword == "" {
		return errors.New("DEV_ADMIN_PASSWORD must be set when SEED_DEV_ADMIN is enabled")
	}
	if len(cfg.DevAdminPassword) > validation.MaxPasswordBytes {
		return fmt.Errorf("DEV_ADMIN_PASSWORD must not exceed %d bytes", validation.MaxPasswordBytes)
	}

	users := repository.NewUserRepository(db)
	existing, err := users.GetByUsername(ctx, username)
	switch {
	case err == nil:
		if existing.IsAdmin {
			return nil
		}
		if err := users.SetAdmin(ctx, existing.ID, true); err != nil {
			return err
		}
		middleware.Logger.Info("development admin promoted", slog.String("username", username))
		return nil
	case !isNotFound(err):
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.DevAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	admin := &models.User{
		Username: username,
		Email:    username + "@agora.local",
		Password: string(hashed),
		IsAdmin:  true,
	}
	if err := users.Create(ctx, admin); err != nil {
		return err
	}

	middleware.Logger.Info("development admin created",
		slog.String("username", username), slog.Uint64("user_id", uint64(admin.ID)))
	return nil
}

func isNotFound(err error) bool {
	var appErr *models.AppError
	return errors.As(err, &appErr) && appErr.Code == models.CodeNotFound
}
