package token_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/open-rails/castingkit/authtest"
	"github.com/open-rails/castingkit/core"
	"github.com/open-rails/castingkit/jwks"
	"github.com/open-rails/castingkit/token"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func newValidator(t *testing.T, iss *authtest.Issuer) *token.Validator {
	t.Helper()
	accept := core.AcceptConfig{Issuer: iss.URL(), Audience: iss.Audience()}
	return token.NewValidator(accept, jwks.NewStaticKeySet(iss.SigningKey()))
}

func requireAuthErr(t *testing.T, err error, want *core.AuthError) {
	t.Helper()
	ae, ok := core.AsAuthError(err)
	require.True(t, ok, "expected *core.AuthError, got %v", err)
	require.Equal(t, want.Code, ae.Code)
	require.Equal(t, want.Status, ae.Status)
	require.Equal(t, want.Description, ae.Description)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		err    *core.AuthError
	}{
		{"", "", core.ErrHeaderMissing},
		{"   ", "", core.ErrHeaderMissing},
		{"Basic abc", "", core.ErrSchemeNotBearer},
		{"Token abc.def.ghi", "", core.ErrSchemeNotBearer},
		{"Bearer", "", core.ErrTokenNotFound},
		{"Bearer a b", "", core.ErrHeaderParts},
		{"Bearer abc.def.ghi", "abc.def.ghi", nil},
		{"bearer abc.def.ghi", "abc.def.ghi", nil},
		{"  Bearer   abc.def.ghi  ", "abc.def.ghi", nil},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, err := token.BearerToken(tt.header)
			if tt.err != nil {
				requireAuthErr(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestValidate_Valid(t *testing.T) {
	iss := authtest.NewIssuer()
	defer iss.Close()
	v := newValidator(t, iss)

	cl, err := v.ValidateHeader(context.Background(), "Bearer "+iss.CreateToken("user-1", "get:actors", "get:movies"))
	require.NoError(t, err)
	require.Equal(t, "user-1", cl.Subject)
	require.Equal(t, iss.URL(), cl.Issuer)
	require.True(t, cl.PermissionsPresent)
	require.Equal(t, []string{"get:actors", "get:movies"}, cl.Permissions)
	require.True(t, cl.HasAudience(iss.Audience()))
	require.False(t, cl.ExpiresAt.IsZero())
}

func TestValidate_PermissionsAbsentVersusEmpty(t *testing.T) {
	iss := authtest.NewIssuer()
	defer iss.Close()
	v := newValidator(t, iss)

	cl, err := v.Validate(context.Background(), iss.Sign(iss.Claims("u", nil)))
	require.NoError(t, err)
	require.False(t, cl.PermissionsPresent)

	cl, err = v.Validate(context.Background(), iss.CreateToken("u"))
	require.NoError(t, err)
	require.True(t, cl.PermissionsPresent)
	require.Empty(t, cl.Permissions)
}

func TestValidate_MalformedTokens(t *testing.T) {
	iss := authtest.NewIssuer()
	defer iss.Close()
	v := newValidator(t, iss)

	for _, raw := range []string{"abc.def", "abc", "a.b.c.d", "abc.def.ghi", "...."} {
		_, err := v.Validate(context.Background(), raw)
		requireAuthErr(t, err, core.ErrMalformedToken)
	}

	_, err := v.ValidateHeader(context.Background(), "Bearer abc.def")
	requireAuthErr(t, err, core.ErrMalformedToken)
	ae, _ := core.AsAuthError(err)
	require.Equal(t, core.CodeInvalidHeader, ae.Code)
	require.Equal(t, http.StatusUnauthorized, ae.Status)
}

func TestValidate_PermissionsWrongTypeIsMalformed(t *testing.T) {
	iss := authtest.NewIssuer()
	defer iss.Close()
	v := newValidator(t, iss)

	c := iss.Claims("u", nil)
	c["permissions"] = "get:actors"
	_, err := v.Validate(context.Background(), iss.Sign(c))
	requireAuthErr(t, err, core.ErrMalformedToken)
}

func TestValidate_KeySelection(t *testing.T) {
	iss := authtest.NewIssuer()
	defer iss.Close()
	v := newValidator(t, iss)

	_, err := v.Validate(context.Background(), authtest.SignRS256(mustKey(t), "", iss.Claims("u", []string{})))
	requireAuthErr(t, err, core.ErrMissingKeyID)

	_, err = v.Validate(context.Background(), authtest.SignRS256(mustKey(t), "other", iss.Claims("u", []string{})))
	requireAuthErr(t, err, core.ErrKeyNotFound)
}

func TestValidate_BadSignature(t *testing.T) {
	iss := authtest.NewIssuer()
	defer iss.Close()
	v := newValidator(t, iss)

	// Known kid, wrong private key.
	forged := authtest.SignRS256(mustKey(t), iss.KeyID(), iss.Claims("u", []string{"delete:movies"}))
	_, err := v.Validate(context.Background(), forged)
	requireAuthErr(t, err, core.ErrMalformedToken)

	// Tampered payload.
	good := iss.CreateToken("u", "get:actors")
	parts := strings.Split(good, ".")
	other := strings.Split(iss.CreateToken("admin", "delete:movies"), ".")
	_, err = v.Validate(context.Background(), parts[0]+"."+other[1]+"."+parts[2])
	requireAuthErr(t, err, core.ErrMalformedToken)
}

func TestValidate_RejectsSymmetricAndNone(t *testing.T) {
	iss := authtest.NewIssuer()
	defer iss.Close()
	v := newValidator(t, iss)

	hs := jwt.NewWithClaims(jwt.SigningMethodHS256, iss.Claims("u", []string{"get:actors"}))
	hs.Header["kid"] = iss.KeyID()
	raw, err := hs.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = v.Validate(context.Background(), raw)
	requireAuthErr(t, err, core.ErrMalformedToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, iss.Claims("u", []string{"get:actors"}))
	none.Header["kid"] = iss.KeyID()
	raw, err = none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = v.Validate(context.Background(), raw)
	requireAuthErr(t, err, core.ErrMalformedToken)
}

func TestValidate_KeyAlgorithmMismatch(t *testing.T) {
	iss := authtest.NewIssuer()
	defer iss.Close()
	sk := iss.SigningKey()
	sk.Algorithm = "PS256"
	accept := core.AcceptConfig{Issuer: iss.URL(), Audience: iss.Audience()}
	v := token.NewValidator(accept, jwks.NewStaticKeySet(sk))

	_, err := v.Validate(context.Background(), iss.CreateToken("u"))
	requireAuthErr(t, err, core.ErrKeyNotFound)
}

func TestValidate_Expiry(t *testing.T) {
	iss := authtest.NewIssuer()
	defer iss.Close()
	v := newValidator(t, iss)

	c := iss.Claims("u", []string{"get:actors"})
	c["exp"] = time.Now().Add(-time.Minute).Unix()
	_, err := v.Validate(context.Background(), iss.Sign(c))
	requireAuthErr(t, err, core.ErrTokenExpired)

	delete(c, "exp")
	_, err = v.Validate(context.Background(), iss.Sign(c))
	requireAuthErr(t, err, core.ErrMissingExpiry)
}

func TestValidate_ExpiryBoundaryAndLeeway(t *testing.T) {
	iss := authtest.NewIssuer()
	defer iss.Close()
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	c := iss.Claims("u", []string{})
	c["exp"] = exp.Unix()
	raw := iss.Sign(c)

	v := newValidator(t, iss).WithClock(func() time.Time { return exp })
	_, err := v.Validate(context.Background(), raw)
	requireAuthErr(t, err, core.ErrTokenExpired)

	v.WithClock(func() time.Time { return exp.Add(-time.Second) })
	_, err = v.Validate(context.Background(), raw)
	require.NoError(t, err)

	accept := core.AcceptConfig{Issuer: iss.URL(), Audience: iss.Audience(), Leeway: 30 * time.Second}
	lenient := token.NewValidator(accept, jwks.NewStaticKeySet(iss.SigningKey())).
		WithClock(func() time.Time { return exp.Add(10 * time.Second) })
	_, err = lenient.Validate(context.Background(), raw)
	require.NoError(t, err)
}

func TestValidate_ExpiryCheckedBeforeClaims(t *testing.T) {
	iss := authtest.NewIssuer()
	defer iss.Close()
	v := newValidator(t, iss)

	c := iss.Claims("u", []string{})
	c["exp"] = time.Now().Add(-time.Hour).Unix()
	c["aud"] = "someone-else"
	_, err := v.Validate(context.Background(), iss.Sign(c))
	requireAuthErr(t, err, core.ErrTokenExpired)
}

func TestValidate_IssuerAndAudience(t *testing.T) {
	iss := authtest.NewIssuer()
	defer iss.Close()
	v := newValidator(t, iss)

	c := iss.Claims("u", []string{})
	c["aud"] = "someone-else"
	_, err := v.Validate(context.Background(), iss.Sign(c))
	requireAuthErr(t, err, core.ErrClaimsMismatch)

	c = iss.Claims("u", []string{})
	c["aud"] = []string{"other", iss.Audience()}
	_, err = v.Validate(context.Background(), iss.Sign(c))
	require.NoError(t, err)

	c = iss.Claims("u", []string{})
	c["iss"] = iss.URL() + "/"
	_, err = v.Validate(context.Background(), iss.Sign(c))
	requireAuthErr(t, err, core.ErrClaimsMismatch)

	c = iss.Claims("u", []string{})
	delete(c, "aud")
	_, err = v.Validate(context.Background(), iss.Sign(c))
	requireAuthErr(t, err, core.ErrClaimsMismatch)
}

func TestValidate_RemoteKeySet(t *testing.T) {
	iss := authtest.NewIssuer()
	defer iss.Close()
	logger, _ := test.NewNullLogger()

	keys := jwks.NewRemoteKeySet(iss.JWKSURL()).WithHTTPClient(iss.Client()).WithLogger(logger)
	v := token.NewValidator(core.AcceptConfig{Issuer: iss.URL(), Audience: iss.Audience()}, keys)

	_, err := v.Validate(context.Background(), iss.CreateToken("u", "get:actors"))
	require.NoError(t, err)

	_, err = v.Validate(context.Background(), authtest.SignRS256(mustKey(t), "unknown", iss.Claims("u", []string{})))
	requireAuthErr(t, err, core.ErrKeyNotFound)
	require.EqualValues(t, 1, iss.JWKSHits())
}

func TestValidate_Concurrent(t *testing.T) {
	iss := authtest.NewIssuer()
	defer iss.Close()
	v := newValidator(t, iss)
	raw := iss.CreateToken("u", "get:actors")

	done := make(chan error, 16)
	for i := 0; i < 16; i++ {
		go func() {
			_, err := v.Validate(context.Background(), raw)
			done <- err
		}()
	}
	for i := 0; i < 16; i++ {
		require.NoError(t, <-done)
	}
}

func mustKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return k
}
