package jwks

import (
	"errors"
	"net/http"
	"strings"

	"github.com/open-rails/castingkit/core"
	"github.com/zitadel/oidc/v2/pkg/client"
)

// ResolveURL picks the key set endpoint for accept: the explicit JWKSURL,
// the jwks_uri from the issuer's OIDC discovery document when Discover is
// set, or the conventional /.well-known/jwks.json under the issuer.
func ResolveURL(accept core.AcceptConfig, httpClient *http.Client) (string, error) {
	if u := strings.TrimSpace(accept.JWKSURL); u != "" {
		return u, nil
	}
	if !accept.Discover {
		return core.DefaultJWKSURL(accept.Issuer), nil
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	disc, err := client.Discover(strings.TrimSpace(accept.Issuer), httpClient)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(disc.JwksURI) == "" {
		return "", errors.New("discovery document has no jwks_uri")
	}
	return disc.JwksURI, nil
}
