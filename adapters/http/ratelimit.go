package authhttp

import (
	"context"
	"net/http"

	"github.com/open-rails/castingkit/metrics"
)

// RateLimiter counts hits per key in fixed windows and reports whether the
// current hit is within the limit. storage/memory.Limiter and
// storage/redis.Limiter implement it.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// limit throttles a protected route per client before the token is checked,
// so that guessing tokens costs the same as any other request. It fails
// open when the limiter errors or the client address is unknown.
func (s *Service) limit(next http.Handler) http.Handler {
	if s.rl == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := s.clientIP(r)
		if ip == "" {
			next.ServeHTTP(w, r)
			return
		}
		ok, err := s.rl.Allow(r.Context(), "casting:rl:ip:"+ip)
		if err != nil {
			s.log.WithError(err).Warn("rate_limit_failed")
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			metrics.RateLimited.Inc()
			sendErr(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
