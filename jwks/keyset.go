// Package jwks resolves token signing keys by key id from an issuer's
// published JSON Web Key Set.
package jwks

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"sort"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/open-rails/castingkit/core"
)

// SigningKey is one public verification key from the set.
type SigningKey struct {
	KeyID string
	// Algorithm is the JWK "alg" member; empty when the issuer did not pin one.
	Algorithm string
	Public    any
}

// KeySet maps key id to key. A KeySet is never modified after it is built;
// refreshes replace it wholesale.
type KeySet map[string]SigningKey

// KeyIDs returns the key ids in sorted order.
func (s KeySet) KeyIDs() []string {
	out := make([]string, 0, len(s))
	for kid := range s {
		out = append(out, kid)
	}
	sort.Strings(out)
	return out
}

// KeyResolver looks up a verification key by key id.
// Failures are *core.AuthError values with code invalid_header.
type KeyResolver interface {
	Resolve(ctx context.Context, kid string) (SigningKey, error)
}

var errEmptyKeySet = errors.New("empty_jwks")

// ParseKeySet decodes a JWKS document. Private keys, encryption keys,
// keys without a kid and unsupported key types are skipped; a document
// with no usable key is an error.
func ParseKeySet(doc []byte) (KeySet, error) {
	set, err := jwk.Parse(doc)
	if err != nil {
		return nil, err
	}
	out := KeySet{}
	for i := 0; i < set.Len(); i++ {
		k, ok := set.Key(i)
		if !ok {
			continue
		}
		if use := k.KeyUsage(); use != "" && !strings.EqualFold(use, "sig") {
			continue
		}
		kid := strings.TrimSpace(k.KeyID())
		if kid == "" {
			continue
		}
		var raw any
		if err := k.Raw(&raw); err != nil {
			continue
		}
		switch raw.(type) {
		case *rsa.PublicKey, *ecdsa.PublicKey, ed25519.PublicKey:
		default:
			continue
		}
		alg := ""
		if a := k.Algorithm(); a != nil {
			alg = a.String()
		}
		out[kid] = SigningKey{KeyID: kid, Algorithm: alg, Public: raw}
	}
	if len(out) == 0 {
		return nil, errEmptyKeySet
	}
	return out, nil
}

// StaticKeySet serves a fixed key set. It is the test double for
// RemoteKeySet and also backs deployments with pinned keys.
type StaticKeySet struct {
	keys KeySet
}

func NewStaticKeySet(keys ...SigningKey) *StaticKeySet {
	ks := KeySet{}
	for _, k := range keys {
		ks[k.KeyID] = k
	}
	return &StaticKeySet{keys: ks}
}

func (s *StaticKeySet) Resolve(ctx context.Context, kid string) (SigningKey, error) {
	_ = ctx
	if kid == "" {
		return SigningKey{}, core.ErrMissingKeyID
	}
	k, ok := s.keys[kid]
	if !ok {
		return SigningKey{}, core.ErrKeyNotFound
	}
	return k, nil
}
