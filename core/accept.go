package core

import (
	"errors"
	"strings"
	"time"
)

// AcceptConfig configures verification of access tokens from the trusted issuer.
type AcceptConfig struct {
	Issuer string
	// Audience must be one of the token's aud values.
	Audience string
	// JWKSURL overrides the key set location. When empty the URL is taken
	// from OIDC discovery (Discover) or derived from Issuer.
	JWKSURL  string
	Discover bool
	// Algorithms lists the accepted asymmetric signing algorithms.
	Algorithms []string
	// Leeway tolerates clock drift on exp. Zero means exp must be strictly
	// after the current time.
	Leeway       time.Duration
	FetchTimeout time.Duration
	// CacheTTL bounds how long a fetched key set is trusted. Zero keeps it
	// for the process lifetime.
	CacheTTL time.Duration
}

// WithDefaults fills unset fields.
func (a AcceptConfig) WithDefaults() AcceptConfig {
	if len(a.Algorithms) == 0 {
		a.Algorithms = []string{"RS256"}
	}
	if a.FetchTimeout <= 0 {
		a.FetchTimeout = 5 * time.Second
	}
	return a
}

// Validate reports missing trust configuration.
func (a AcceptConfig) Validate() error {
	if strings.TrimSpace(a.Issuer) == "" {
		return errors.New("issuer is required")
	}
	if strings.TrimSpace(a.Audience) == "" {
		return errors.New("audience is required")
	}
	for _, alg := range a.Algorithms {
		if strings.HasPrefix(strings.ToUpper(alg), "HS") || strings.EqualFold(alg, "none") {
			return errors.New("only asymmetric algorithms are accepted: " + alg)
		}
	}
	return nil
}

// DefaultJWKSURL derives the conventional key set location for an issuer.
func DefaultJWKSURL(issuer string) string {
	return strings.TrimRight(strings.TrimSpace(issuer), "/") + "/.well-known/jwks.json"
}
