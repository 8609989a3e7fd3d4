// Package token verifies bearer access tokens and turns them into typed claims.
package token

import (
	"context"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/open-rails/castingkit/core"
	"github.com/open-rails/castingkit/jwks"
)

// accessClaims is the wire shape of the payload. Permissions is a pointer
// so an absent claim can be told apart from an empty list.
type accessClaims struct {
	jwt.RegisteredClaims
	Permissions *[]string `json:"permissions,omitempty"`
}

// Validator checks tokens against the configured issuer, audience and key set.
// It keeps no per-request state and is safe for concurrent use.
type Validator struct {
	accept core.AcceptConfig
	keys   jwks.KeyResolver
	parser *jwt.Parser
	now    func() time.Time
}

func NewValidator(accept core.AcceptConfig, keys jwks.KeyResolver) *Validator {
	accept = accept.WithDefaults()
	return &Validator{
		accept: accept,
		keys:   keys,
		// Claims are checked below in a fixed order so each failure maps to
		// exactly one error code.
		parser: jwt.NewParser(
			jwt.WithValidMethods(accept.Algorithms),
			jwt.WithoutClaimsValidation(),
		),
		now: time.Now,
	}
}

// WithClock overrides the time source used for the expiry check.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	if now != nil {
		v.now = now
	}
	return v
}

// AcceptConfig exposes the trust configuration.
func (v *Validator) AcceptConfig() core.AcceptConfig { return v.accept }

// BearerToken extracts the token from an Authorization header value.
// The scheme is matched case-insensitively; anything other than exactly
// two whitespace-separated parts is rejected.
func BearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", core.ErrHeaderMissing
	}
	parts := strings.Fields(header)
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", core.ErrSchemeNotBearer
	}
	if len(parts) == 1 {
		return "", core.ErrTokenNotFound
	}
	if len(parts) > 2 {
		return "", core.ErrHeaderParts
	}
	return parts[1], nil
}

// ValidateHeader runs the full chain on an Authorization header value.
func (v *Validator) ValidateHeader(ctx context.Context, header string) (core.Claims, error) {
	raw, err := BearerToken(header)
	if err != nil {
		return core.Claims{}, err
	}
	return v.Validate(ctx, raw)
}

// Validate verifies structure, key, signature, expiry, then audience and
// issuer, stopping at the first failure. Every error is a *core.AuthError.
func (v *Validator) Validate(ctx context.Context, raw string) (core.Claims, error) {
	if strings.Count(raw, ".") != 2 {
		return core.Claims{}, core.ErrMalformedToken
	}

	var ac accessClaims
	tok, err := v.parser.ParseWithClaims(raw, &ac, func(t *jwt.Token) (any, error) {
		return v.keyFor(ctx, t)
	})
	if err != nil {
		if ae, ok := core.AsAuthError(err); ok {
			return core.Claims{}, ae
		}
		return core.Claims{}, core.ErrMalformedToken
	}
	if tok == nil || !tok.Valid {
		return core.Claims{}, core.ErrMalformedToken
	}

	if ac.ExpiresAt == nil {
		return core.Claims{}, core.ErrMissingExpiry
	}
	if !ac.ExpiresAt.Time.Add(v.accept.Leeway).After(v.now()) {
		return core.Claims{}, core.ErrTokenExpired
	}

	if ac.Issuer != v.accept.Issuer || !containsString(ac.Audience, v.accept.Audience) {
		return core.Claims{}, core.ErrClaimsMismatch
	}

	return toClaims(ac), nil
}

func (v *Validator) keyFor(ctx context.Context, t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	if strings.TrimSpace(kid) == "" {
		return nil, core.ErrMissingKeyID
	}
	k, err := v.keys.Resolve(ctx, kid)
	if err != nil {
		if ae, ok := core.AsAuthError(err); ok {
			return nil, ae
		}
		return nil, core.ErrKeyNotFound
	}
	if k.Algorithm != "" && k.Algorithm != t.Method.Alg() {
		return nil, core.ErrKeyNotFound
	}
	return k.Public, nil
}

func toClaims(ac accessClaims) core.Claims {
	c := core.Claims{
		Issuer:   ac.Issuer,
		Subject:  ac.Subject,
		Audience: append([]string(nil), ac.Audience...),
	}
	if ac.ExpiresAt != nil {
		c.ExpiresAt = ac.ExpiresAt.Time
	}
	if ac.IssuedAt != nil {
		c.IssuedAt = ac.IssuedAt.Time
	}
	if ac.Permissions != nil {
		c.PermissionsPresent = true
		c.Permissions = append([]string{}, (*ac.Permissions)...)
	}
	return c
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
