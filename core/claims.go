package core

import (
	"strings"
	"time"
)

// Claims is the typed view of a verified access token.
// It is only constructed after signature, expiry, audience and issuer
// have all been checked.
type Claims struct {
	Issuer    string
	Subject   string
	Audience  []string
	ExpiresAt time.Time
	IssuedAt  time.Time

	// Permissions is meaningful only when PermissionsPresent is true.
	// An empty list with PermissionsPresent set denies every check.
	Permissions        []string
	PermissionsPresent bool
}

// ExtractPermissions returns the permission set carried by claims.
// A token without a permissions claim fails with ErrNoPermissions;
// an empty-but-present claim is valid.
func ExtractPermissions(c Claims) ([]string, error) {
	if !c.PermissionsPresent {
		return nil, ErrNoPermissions
	}
	out := make([]string, len(c.Permissions))
	copy(out, c.Permissions)
	return out, nil
}

// HasPermission reports whether p is in the claims' permission set.
// Matching is exact; "get:actors" does not match "GET:actors".
func (c Claims) HasPermission(p Permission) bool {
	for _, have := range c.Permissions {
		if have == string(p) {
			return true
		}
	}
	return false
}

// HasAudience reports whether aud is one of the token audiences.
func (c Claims) HasAudience(aud string) bool {
	aud = strings.TrimSpace(aud)
	for _, a := range c.Audience {
		if a == aud {
			return true
		}
	}
	return false
}
