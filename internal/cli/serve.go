package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	authhttp "github.com/open-rails/castingkit/adapters/http"
	"github.com/open-rails/castingkit/config"
	"github.com/open-rails/castingkit/metrics"
	redisstore "github.com/open-rails/castingkit/storage/redis"
	"github.com/open-rails/castingkit/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func cmdServe() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	rdb := newRedis(cfg)
	if rdb != nil {
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisstore.NewKV(rdb).Ping(pingCtx)
		cancel()
		if err != nil {
			// The key set and rate limiter both degrade without redis.
			log.WithError(err).Warn("redis_unreachable")
		}
	}

	keys, err := newKeySet(cfg, log, rdb)
	if err != nil {
		return err
	}
	clientIP, err := newClientIP(cfg)
	if err != nil {
		return err
	}

	store, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	validator := token.NewValidator(cfg.Accept(), keys)
	svc := authhttp.NewService(store, validator).
		WithLogger(log).
		WithCORSOrigins(cfg.Server.CORSAllowedOrigins).
		WithMetricsHandler(promhttp.Handler()).
		WithRateLimiter(newLimiter(cfg, rdb)).
		WithClientIPFunc(clientIP)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Addr).
			WithField("issuer", cfg.Auth.Issuer).
			WithField("jwks_url", keys.URL()).
			WithField("storage", cfg.Storage.Driver).
			Info("server_starting")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("server_stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
