package core

import (
	"errors"
	"net/http"
)

// Auth error codes. They are stable and safe to show to callers.
const (
	CodeHeaderMissing = "authorization_header_missing"
	CodeInvalidHeader = "invalid_header"
	CodeTokenExpired  = "token_expired"
	CodeInvalidClaims = "invalid_claims"
	CodeUnauthorized  = "unauthorized"
)

// AuthError is the single failure value produced by every stage of token
// validation and authorization. Values are never mutated after creation.
type AuthError struct {
	Status      int
	Code        string
	Description string
}

func (e *AuthError) Error() string { return e.Code + ": " + e.Description }

func newAuthError(status int, code, desc string) *AuthError {
	return &AuthError{Status: status, Code: code, Description: desc}
}

// Canonical auth failures. Callers compare with errors.Is or inspect the
// fields via errors.As; the pointers themselves must not be modified.
var (
	ErrHeaderMissing    = newAuthError(http.StatusUnauthorized, CodeHeaderMissing, "Authorization header is expected.")
	ErrSchemeNotBearer  = newAuthError(http.StatusUnauthorized, CodeInvalidHeader, `Authorization header must start with "Bearer".`)
	ErrTokenNotFound    = newAuthError(http.StatusUnauthorized, CodeInvalidHeader, "Token not found.")
	ErrHeaderParts      = newAuthError(http.StatusUnauthorized, CodeInvalidHeader, "Authorization header must be bearer token.")
	ErrMalformedToken   = newAuthError(http.StatusUnauthorized, CodeInvalidHeader, "Unable to parse authentication token.")
	ErrMissingKeyID     = newAuthError(http.StatusUnauthorized, CodeInvalidHeader, "Authorization malformed.")
	ErrKeyNotFound      = newAuthError(http.StatusUnauthorized, CodeInvalidHeader, "Unable to find the appropriate key.")
	ErrTokenExpired     = newAuthError(http.StatusUnauthorized, CodeTokenExpired, "Token expired.")
	ErrMissingExpiry    = newAuthError(http.StatusUnauthorized, CodeInvalidClaims, "Token expiry not included in JWT.")
	ErrClaimsMismatch   = newAuthError(http.StatusUnauthorized, CodeInvalidClaims, "Incorrect claims. Please, check the audience and issuer.")
	ErrNoPermissions    = newAuthError(http.StatusBadRequest, CodeInvalidClaims, "Permissions not included in JWT.")
	ErrPermissionDenied = newAuthError(http.StatusForbidden, CodeUnauthorized, "Permission not found.")
)

// AsAuthError extracts an *AuthError from err's chain.
func AsAuthError(err error) (*AuthError, bool) {
	var ae *AuthError
	if errors.As(err, &ae) && ae != nil {
		return ae, true
	}
	return nil, false
}

// Record store errors.
var (
	ErrNotFound = errors.New("not_found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid")
)
