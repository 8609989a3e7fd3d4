package memorystore

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// KV is an in-memory key-value store with TTL support.
// It is only shared within a single process.
type KV struct {
	c *gocache.Cache
}

func NewKV() *KV {
	return &KV{c: gocache.New(gocache.NoExpiration, time.Minute)}
}

func (k *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	_ = ctx
	v, ok := k.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	return append([]byte(nil), b...), true, nil
}

// Set stores value under key. A ttl of zero or less never expires.
func (k *KV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_ = ctx
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	k.c.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

func (k *KV) Del(ctx context.Context, key string) error {
	_ = ctx
	k.c.Delete(key)
	return nil
}
