// Package ratelimiter caps how often one key (a user id or client IP) may
// hit a route within a fixed window.
package ratelimiter

import (
	"context"
	"time"
)

type Limiter interface {
	// Allow counts one hit for key. When it refuses, the duration is how long
	// the caller should wait before retrying.
	Allow(ctx context.Context, key string) (bool, time.Duration)
}

type Config struct {
	RequestsPerTimeFrame int
	TimeFrame            time.Duration
	Enabled              bool
}
