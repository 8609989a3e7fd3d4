// Package authtest runs an in-process token issuer for tests: it serves a
// JWKS document and OIDC discovery, and signs RS256 access tokens.
package authtest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/open-rails/castingkit/jwks"
)

const DefaultAudience = "casting"

type publishedKey struct {
	key *rsa.PrivateKey
	kid string
}

// Issuer is a test issuer. The zero value is not usable; call NewIssuer.
type Issuer struct {
	srv      *httptest.Server
	key      *rsa.PrivateKey
	kid      string
	audience string

	mu         sync.Mutex
	jwksStatus int
	extraKeys  []publishedKey

	jwksHits atomic.Int64
}

// NewIssuer starts the issuer. Callers must Close it.
func NewIssuer() *Issuer {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	iss := &Issuer{
		key:        key,
		kid:        uuid.NewString(),
		audience:   DefaultAudience,
		jwksStatus: http.StatusOK,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/jwks.json", iss.serveJWKS)
	mux.HandleFunc("GET /.well-known/openid-configuration", iss.serveDiscovery)
	iss.srv = httptest.NewServer(mux)
	return iss
}

func (i *Issuer) Close() { i.srv.Close() }

// URL is the issuer identifier placed in iss.
func (i *Issuer) URL() string      { return i.srv.URL }
func (i *Issuer) JWKSURL() string  { return i.srv.URL + "/.well-known/jwks.json" }
func (i *Issuer) Audience() string { return i.audience }
func (i *Issuer) KeyID() string    { return i.kid }
func (i *Issuer) Client() *http.Client {
	return i.srv.Client()
}

// JWKSHits counts requests to the JWKS endpoint.
func (i *Issuer) JWKSHits() int64 { return i.jwksHits.Load() }

// SetJWKSStatus makes the JWKS endpoint answer with status and no body
// when status is not 200.
func (i *Issuer) SetJWKSStatus(status int) {
	i.mu.Lock()
	i.jwksStatus = status
	i.mu.Unlock()
}

// PublishKey adds another key to the served set under kid, e.g. to
// simulate rotation.
func (i *Issuer) PublishKey(k *rsa.PrivateKey, kid string) {
	i.mu.Lock()
	i.extraKeys = append(i.extraKeys, publishedKey{key: k, kid: kid})
	i.mu.Unlock()
}

// SigningKey is the active key as a jwks.SigningKey, for StaticKeySet.
func (i *Issuer) SigningKey() jwks.SigningKey {
	return jwks.SigningKey{KeyID: i.kid, Algorithm: "RS256", Public: &i.key.PublicKey}
}

// Claims returns valid base claims for sub with a one hour lifetime.
// A nil perms omits the permissions claim entirely.
func (i *Issuer) Claims(sub string, perms []string) jwt.MapClaims {
	now := time.Now()
	c := jwt.MapClaims{
		"iss": i.URL(),
		"sub": sub,
		"aud": []string{i.audience},
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	if perms != nil {
		c["permissions"] = perms
	}
	return c
}

// CreateToken signs a valid token for sub carrying perms.
func (i *Issuer) CreateToken(sub string, perms ...string) string {
	if perms == nil {
		perms = []string{}
	}
	return i.Sign(i.Claims(sub, perms))
}

// Sign signs claims with the active key.
func (i *Issuer) Sign(claims jwt.MapClaims) string {
	return SignRS256(i.key, i.kid, claims)
}

// SignRS256 signs claims with key, setting kid in the header when non-empty.
func SignRS256(key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	s, err := tok.SignedString(key)
	if err != nil {
		panic(err)
	}
	return s
}

// JWKSDocument renders the published key set.
func (i *Issuer) JWKSDocument() []byte {
	i.mu.Lock()
	keys := append([]publishedKey{{key: i.key, kid: i.kid}}, i.extraKeys...)
	i.mu.Unlock()

	set := jwk.NewSet()
	for _, k := range keys {
		pub, err := jwk.FromRaw(&k.key.PublicKey)
		if err != nil {
			panic(err)
		}
		_ = pub.Set(jwk.KeyIDKey, k.kid)
		_ = pub.Set(jwk.AlgorithmKey, jwa.RS256)
		_ = pub.Set(jwk.KeyUsageKey, "sig")
		_ = set.AddKey(pub)
	}
	b, err := json.Marshal(set)
	if err != nil {
		panic(err)
	}
	return b
}

func (i *Issuer) serveJWKS(w http.ResponseWriter, r *http.Request) {
	i.jwksHits.Add(1)
	i.mu.Lock()
	status := i.jwksStatus
	i.mu.Unlock()
	if status != http.StatusOK {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(i.JWKSDocument())
}

func (i *Issuer) serveDiscovery(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"issuer":                                i.URL(),
		"jwks_uri":                              i.JWKSURL(),
		"authorization_endpoint":                i.URL() + "/authorize",
		"token_endpoint":                        i.URL() + "/oauth/token",
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}
