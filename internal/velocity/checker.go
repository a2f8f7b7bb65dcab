// Package velocity caps how many public lead submissions a single email
// address can make within a rolling window.
package velocity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/lead-crm/pkg/logging"
)

const keyPrefix = "crm:velocity:submit:"

// Checker counts submissions per normalized email in Redis.
type Checker struct {
	redis  redis.Cmdable
	limit  int64
	window time.Duration
	logger *logging.Logger
}

// NewChecker returns a checker allowing limit submissions per window.
func NewChecker(client redis.Cmdable, limit int, window time.Duration, logger *logging.Logger) *Checker {
	if client == nil {
		panic("velocity: redis client required")
	}
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Hour
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Checker{
		redis:  client,
		limit:  int64(limit),
		window: window,
		logger: logger.Component("velocity"),
	}
}

func submissionKey(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Allow increments the counter for email and reports whether it is still
// within the limit.
func (c *Checker) Allow(ctx context.Context, email string) (bool, error) {
	if strings.TrimSpace(email) == "" {
		return true, nil
	}
	key := submissionKey(email)
	var incr *redis.IntCmd
	// INCR and EXPIRE NX commit together so a counter never outlives its
	// window, even if an earlier EXPIRE was lost.
	_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, c.window)
		return nil
	})
	if err != nil {
		return true, fmt.Errorf("velocity: incr: %w", err)
	}
	return incr.Val() <= c.limit, nil
}

// AllowSubmission is Allow with Redis failures logged and treated as allowed.
func (c *Checker) AllowSubmission(ctx context.Context, email string) bool {
	ok, err := c.Allow(ctx, email)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.logger.Warn("velocity check failed; allowing submission", "error", err)
		}
		return true
	}
	if !ok {
		c.logger.Info("submission velocity exceeded", "limit", c.limit, "window", c.window.String())
	}
	return ok
}

// Reset clears the counter for email.
func (c *Checker) Reset(ctx context.Context, email string) error {
	return c.redis.Del(ctx, submissionKey(email)).Err()
}
