package authhttp

import (
	"net/http"

	"github.com/open-rails/castingkit/core"
	"github.com/sirupsen/logrus"
)

// Service mounts the casting API on net/http.
type Service struct {
	store       core.Store
	gate        *Gate
	log         logrus.FieldLogger
	corsOrigins []string
	metricsH    http.Handler
	rl          RateLimiter
	clientIP    ClientIPFunc
}

// NewService wires the record store behind a permission gate built on v.
func NewService(store core.Store, v TokenValidator) *Service {
	log := logrus.StandardLogger()
	return &Service{
		store:       store,
		gate:        NewGate(v).WithLogger(log),
		log:         log,
		corsOrigins: []string{"*"},
		clientIP:    PeerClientIP(),
	}
}

func (s *Service) WithLogger(l logrus.FieldLogger) *Service {
	if l != nil {
		s.log = l
		s.gate.WithLogger(l)
	}
	return s
}

func (s *Service) WithCORSOrigins(origins []string) *Service {
	if len(origins) > 0 {
		s.corsOrigins = origins
	}
	return s
}

// WithMetricsHandler exposes h (usually promhttp) at GET /metrics.
func (s *Service) WithMetricsHandler(h http.Handler) *Service { s.metricsH = h; return s }

func (s *Service) Gate() *Gate { return s.gate }

// WithRateLimiter throttles protected routes per client address. A nil
// limiter disables throttling.
func (s *Service) WithRateLimiter(rl RateLimiter) *Service { s.rl = rl; return s }

func (s *Service) WithClientIPFunc(fn ClientIPFunc) *Service {
	if fn == nil {
		fn = PeerClientIP()
	}
	s.clientIP = fn
	return s
}
