package authhttp

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/open-rails/castingkit/core"
	"github.com/open-rails/castingkit/metrics"
	"github.com/sirupsen/logrus"
)

// TokenValidator turns an Authorization header value into verified claims.
// *token.Validator implements it.
type TokenValidator interface {
	ValidateHeader(ctx context.Context, header string) (core.Claims, error)
}

// ClaimsHandler is a protected operation. It runs only after the gate has
// verified the token and the required permission, and receives the claims.
type ClaimsHandler func(w http.ResponseWriter, r *http.Request, claims core.Claims)

// Gate enforces bearer authentication and per-route permissions.
type Gate struct {
	v   TokenValidator
	log logrus.FieldLogger
}

func NewGate(v TokenValidator) *Gate {
	return &Gate{v: v, log: logrus.StandardLogger()}
}

func (g *Gate) WithLogger(l logrus.FieldLogger) *Gate {
	if l != nil {
		g.log = l
	}
	return g
}

// Required validates the bearer token and stores the claims in the request
// context without checking any permission.
func (g *Gate) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := g.v.ValidateHeader(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			g.deny(w, r, "", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(setClaims(r.Context(), claims)))
	})
}

// Require wraps h so that it executes only for a verified token whose
// permission claim contains perm. Any failure ends the request with the
// auth error envelope and h never runs.
func (g *Gate) Require(perm core.Permission, h ClaimsHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := g.v.ValidateHeader(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			g.deny(w, r, perm, err)
			return
		}
		if err := core.Authorize(perm, claims); err != nil {
			g.deny(w, r, perm, err)
			return
		}
		metrics.AuthDecisions.WithLabelValues("allowed").Inc()
		h(w, r.WithContext(setClaims(r.Context(), claims)), claims)
	})
}

func (g *Gate) deny(w http.ResponseWriter, r *http.Request, perm core.Permission, err error) {
	fields := logrus.Fields{
		"method":     r.Method,
		"path":       r.URL.Path,
		"request_id": middleware.GetReqID(r.Context()),
	}
	if perm != "" {
		fields["permission"] = string(perm)
	}
	if ae, ok := core.AsAuthError(err); ok {
		fields["code"] = ae.Code
		fields["status"] = ae.Status
		metrics.AuthDecisions.WithLabelValues(ae.Code).Inc()
		g.log.WithFields(fields).Info("auth_denied")
	} else {
		metrics.AuthDecisions.WithLabelValues("error").Inc()
		g.log.WithFields(fields).WithError(err).Error("auth_failed")
	}
	WriteAuthError(w, err)
}
