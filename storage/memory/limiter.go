package memorystore

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Limiter is a fixed-window request counter for a single process.
type Limiter struct {
	c      *gocache.Cache
	limit  int64
	window time.Duration
}

// NewLimiter allows limit hits per key in each window.
func NewLimiter(limit int, window time.Duration) *Limiter {
	return &Limiter{
		c:      gocache.New(window, 2*window),
		limit:  int64(limit),
		window: window,
	}
}

func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	_ = ctx
	// The first hit opens the window; Add fails if one is already open.
	if err := l.c.Add(key, int64(1), l.window); err == nil {
		return l.limit >= 1, nil
	}
	n, err := l.c.IncrementInt64(key, 1)
	if err != nil {
		// The window closed between Add and IncrementInt64.
		l.c.Set(key, int64(1), l.window)
		return l.limit >= 1, nil
	}
	return n <= l.limit, nil
}
