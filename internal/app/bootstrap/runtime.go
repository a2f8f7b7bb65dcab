package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/lead-crm/internal/config"
	"github.com/wolfman30/lead-crm/internal/leads"
	"github.com/wolfman30/lead-crm/internal/velocity"
	"github.com/wolfman30/lead-crm/pkg/logging"
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
		_ = client.Close()
		return nil
	}
	return client
}

// BuildSubmissionGuard returns the per-email velocity checker, or nil when
// Redis is not configured. The result is safe to pass to leads.NewHandler.
func BuildSubmissionGuard(redisClient *redis.Client, cfg *appconfig.Config, logger *logging.Logger) leads.SubmissionGuard {
	if redisClient == nil || cfg == nil || cfg.SubmitMaxPerEmail <= 0 {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	logger.Info("submission velocity limit enabled",
		"max_per_email", cfg.SubmitMaxPerEmail,
		"window", cfg.SubmitWindow.String(),
	)
	return velocity.NewChecker(redisClient, cfg.SubmitMaxPerEmail, cfg.SubmitWindow, logger)
}
