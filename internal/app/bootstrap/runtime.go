// Package bootstrap wires shared infrastructure for the API and worker
// binaries so both processes build their collaborators the same way.
package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/stackvoice/provision-ai-platform/internal/compliance"
	appconfig "github.com/stackvoice/provision-ai-platform/internal/config"
	"github.com/stackvoice/provision-ai-platform/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// BuildPostgres opens the shared connection pool plus a database/sql view of
// it. Both are nil when no DATABASE_URL is configured.
func BuildPostgres(ctx context.Context, cfg *appconfig.Config) (*pgxpool.Pool, *sql.DB, error) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: connect to postgres: %w", err)
	}
	return pool, stdlib.OpenDBFromPool(pool), nil
}

// BuildAuditService returns the audit trail service, or nil when Postgres is
// absent. A nil service degrades to no-op logging.
func BuildAuditService(sqlDB *sql.DB) *compliance.AuditService {
	if sqlDB == nil {
		return nil
	}
	return compliance.NewAuditService(sqlDB)
}
