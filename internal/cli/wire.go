package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	authhttp "github.com/open-rails/castingkit/adapters/http"
	"github.com/open-rails/castingkit/config"
	"github.com/open-rails/castingkit/core"
	"github.com/open-rails/castingkit/jwks"
	memorystore "github.com/open-rails/castingkit/storage/memory"
	pgstore "github.com/open-rails/castingkit/storage/postgres"
	redisstore "github.com/open-rails/castingkit/storage/redis"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func newLogger(cfg *config.Config) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	lvl, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(lvl)
	switch cfg.Log.Format {
	case "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log, nil
}

// newRedis connects when the cache kind is redis; otherwise it returns nil.
func newRedis(cfg *config.Config) *redis.Client {
	if cfg.Cache.Kind != "redis" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: cfg.Cache.Redis.Addr, DB: cfg.Cache.Redis.DB})
}

// newKeySet builds the remote key resolver and, when configured, the shared
// document cache behind it. rdb is used only for the redis cache kind.
func newKeySet(cfg *config.Config, log logrus.FieldLogger, rdb redis.UniversalClient) (*jwks.RemoteKeySet, error) {
	accept := cfg.Accept()
	hc := &http.Client{Timeout: accept.FetchTimeout}
	url, err := jwks.ResolveURL(accept, hc)
	if err != nil {
		return nil, fmt.Errorf("resolve jwks url: %w", err)
	}
	ks := jwks.NewRemoteKeySet(url).
		WithHTTPClient(hc).
		WithTimeout(accept.FetchTimeout).
		WithCacheTTL(accept.CacheTTL).
		WithLogger(log)

	switch cfg.Cache.Kind {
	case "memory":
		ks.WithDocumentCache(memorystore.NewKV(), cfg.Cache.TTL)
	case "redis":
		ks.WithDocumentCache(redisstore.NewKV(rdb).WithPrefix(cfg.Cache.Redis.Prefix), cfg.Cache.TTL)
	}
	return ks, nil
}

// newLimiter returns nil when rate limiting is off. Replicas sharing a
// redis cache also share their rate limit counters.
func newLimiter(cfg *config.Config, rdb redis.UniversalClient) authhttp.RateLimiter {
	rl := cfg.Server.RateLimit
	if rl.Requests <= 0 {
		return nil
	}
	if rdb != nil {
		return redisstore.NewLimiter(rdb, rl.Requests, rl.Window).WithPrefix(cfg.Cache.Redis.Prefix)
	}
	return memorystore.NewLimiter(rl.Requests, rl.Window)
}

func newClientIP(cfg *config.Config) (authhttp.ClientIPFunc, error) {
	prefixes, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		return nil, err
	}
	if len(prefixes) == 0 {
		return authhttp.PeerClientIP(), nil
	}
	return authhttp.TrustedProxyClientIP(prefixes), nil
}

func newStore(ctx context.Context, cfg *config.Config) (core.Store, func(), error) {
	switch cfg.Storage.Driver {
	case "postgres":
		pg, err := pgxpool.New(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		st := pgstore.New(pg)
		if err := st.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		return st, pg.Close, nil
	default:
		return memorystore.NewStore(), func() {}, nil
	}
}
