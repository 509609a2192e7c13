// Package cache bootstraps the Redis client shared by the notification
// transport, the dispatch queue and health checks.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

// Options tunes the startup connection.
type Options struct {
	Addr string
	// Attempts bounds startup pings; values below one mean a single ping.
	Attempts uint64
	// Backoff is the first wait between pings; it doubles per attempt.
	Backoff time.Duration
}

// New creates a new Redis client and waits until it answers PING.
func New(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: opts.Addr,
	})

	attempts := opts.Attempts
	if attempts == 0 {
		attempts = 1
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	b := retry.WithMaxRetries(attempts-1, retry.NewExponential(backoff))

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("platform/cache: ping %s: %w", opts.Addr, err)
	}

	return client, nil
}

// Ping reports whether client is reachable; it backs readiness checks.
func Ping(client *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
