package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors shared by the key resolver and the HTTP adapter. They live in a
// leaf package so jwks and authhttp can both record without importing each other.
var (
	AuthDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "castingkit_auth_decisions_total",
		Help: "Authorization outcomes by result code (allowed or the auth error code).",
	}, []string{"code"})

	KeySetFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "castingkit_jwks_fetch_total",
		Help: "Signing key set loads by result (ok, error, kv_hit).",
	}, []string{"result"})

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "castingkit_http_requests_total",
		Help: "HTTP requests by method, route pattern and status.",
	}, []string{"method", "route", "status"})

	RateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "castingkit_rate_limited_total",
		Help: "Requests rejected by the per-client rate limiter.",
	})
)

// Register registers the collectors on reg (or the default registerer if nil).
// Collectors that are already registered are not an error.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{AuthDecisions, KeySetFetches, HTTPRequests, RateLimited} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
