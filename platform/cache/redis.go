// Package cache provides the shared Redis client.
// This is part of the platform layer and contains no business logic.
package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient parses a redis:// or rediss:// URL and verifies the
// connection. tlsInsecure skips certificate verification for managed
// instances with self-signed certificates.
func NewRedisClient(ctx context.Context, redisURL string, tlsInsecure bool) (*redis.Client, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	if opt.TLSConfig != nil && tlsInsecure {
		opt.TLSConfig = opt.TLSConfig.Clone()
		opt.TLSConfig.InsecureSkipVerify = true
	} else if tlsInsecure {
		opt.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}

	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// HealthAdapter exposes a Redis client as a readiness check.
type HealthAdapter struct {
	client *redis.Client
}

func NewHealthAdapter(client *redis.Client) *HealthAdapter {
	return &HealthAdapter{client: client}
}

func (a *HealthAdapter) Ping(ctx context.Context) error {
	return a.client.Ping(ctx).Err()
}
