package jwks_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/open-rails/castingkit/authtest"
	"github.com/open-rails/castingkit/core"
	"github.com/open-rails/castingkit/jwks"
	memorystore "github.com/open-rails/castingkit/storage/memory"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func quietLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

func TestRemoteKeySet_FetchesLazilyAndCaches(t *testing.T) {
	iss := authtest.NewIssuer()
	defer iss.Close()

	ks := jwks.NewRemoteKeySet(iss.JWKSURL()).WithLogger(quietLogger())
	require.EqualValues(t, 0, iss.JWKSHits())

	k, err := ks.Resolve(context.Background(), iss.KeyID())
	require.NoError(t, err)
	require.Equal(t, iss.KeyID(), k.KeyID)
	require.Equal(t, "RS256", k.Algorithm)
	require.IsType(t, &rsa.PublicKey{}, k.Public)

	for i := 0; i < 3; i++ {
		_, err := ks.Resolve(context.Background(), iss.KeyID())
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, iss.JWKSHits())
}

func TestRemoteKeySet_UnknownKid(t *testing.T) {
	iss := authtest.NewIssuer()
	defer iss.Close()

	ks := jwks.NewRemoteKeySet(iss.JWKSURL()).WithLogger(quietLogger())
	_, err := ks.Resolve(context.Background(), "not-a-kid")
	require.ErrorIs(t, err, core.ErrKeyNotFound)

	_, err = ks.Resolve(context.Background(), "")
	require.ErrorIs(t, err, core.ErrMissingKeyID)
}

func TestRemoteKeySet_EndpointFailureIsInvalidHeader(t *testing.T) {
	iss := authtest.NewIssuer()
	defer iss.Close()
	iss.SetJWKSStatus(http.StatusServiceUnavailable)

	ks := jwks.NewRemoteKeySet(iss.JWKSURL()).WithLogger(quietLogger())
	_, err := ks.Resolve(context.Background(), iss.KeyID())
	ae, ok := core.AsAuthError(err)
	require.True(t, ok)
	require.Equal(t, core.CodeInvalidHeader, ae.Code)
	require.Equal(t, http.StatusUnauthorized, ae.Status)

	// A failed fetch is not cached; the next attempt goes back to the network.
	iss.SetJWKSStatus(http.StatusOK)
	_, err = ks.Resolve(context.Background(), iss.KeyID())
	require.NoError(t, err)
	require.EqualValues(t, 2, iss.JWKSHits())
}

func TestRemoteKeySet_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ks := jwks.NewRemoteKeySet(srv.URL).WithTimeout(50 * time.Millisecond).WithLogger(quietLogger())
	start := time.Now()
	_, err := ks.Resolve(context.Background(), "kid")
	require.ErrorIs(t, err, core.ErrKeyNotFound)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestRemoteKeySet_ConcurrentColdResolveFetchesOnce(t *testing.T) {
	iss := authtest.NewIssuer()
	defer iss.Close()

	ks := jwks.NewRemoteKeySet(iss.JWKSURL()).WithLogger(quietLogger())
	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ks.Resolve(context.Background(), iss.KeyID())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.LessOrEqual(t, iss.JWKSHits(), int64(2))
}

func TestRemoteKeySet_InvalidatePicksUpRotatedKey(t *testing.T) {
	iss := authtest.NewIssuer()
	defer iss.Close()

	ks := jwks.NewRemoteKeySet(iss.JWKSURL()).WithLogger(quietLogger())
	_, err := ks.Resolve(context.Background(), iss.KeyID())
	require.NoError(t, err)

	rotated, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	iss.PublishKey(rotated, "rotated")

	_, err = ks.Resolve(context.Background(), "rotated")
	require.ErrorIs(t, err, core.ErrKeyNotFound, "cached set is used until invalidated")

	require.NoError(t, ks.Invalidate(context.Background()))
	k, err := ks.Resolve(context.Background(), "rotated")
	require.NoError(t, err)
	require.Equal(t, &rotated.PublicKey, k.Public)
}

func TestRemoteKeySet_StaleSetServedWhenRefreshFails(t *testing.T) {
	iss := authtest.NewIssuer()
	defer iss.Close()

	ks := jwks.NewRemoteKeySet(iss.JWKSURL()).WithCacheTTL(time.Nanosecond).WithLogger(quietLogger())
	_, err := ks.Resolve(context.Background(), iss.KeyID())
	require.NoError(t, err)

	iss.SetJWKSStatus(http.StatusInternalServerError)
	time.Sleep(time.Millisecond)
	_, err = ks.Resolve(context.Background(), iss.KeyID())
	require.NoError(t, err)
	require.GreaterOrEqual(t, iss.JWKSHits(), int64(2))
}

func TestRemoteKeySet_DocumentCacheSharedAcrossInstances(t *testing.T) {
	iss := authtest.NewIssuer()
	defer iss.Close()
	kv := memorystore.NewKV()

	first := jwks.NewRemoteKeySet(iss.JWKSURL()).WithDocumentCache(kv, time.Hour).WithLogger(quietLogger())
	_, err := first.Resolve(context.Background(), iss.KeyID())
	require.NoError(t, err)
	require.EqualValues(t, 1, iss.JWKSHits())

	// A second process with a cold cache reads the shared document.
	iss.SetJWKSStatus(http.StatusInternalServerError)
	second := jwks.NewRemoteKeySet(iss.JWKSURL()).WithDocumentCache(kv, time.Hour).WithLogger(quietLogger())
	_, err = second.Resolve(context.Background(), iss.KeyID())
	require.NoError(t, err)
	require.EqualValues(t, 1, iss.JWKSHits())

	// Invalidate drops the shared copy too.
	require.NoError(t, second.Invalidate(context.Background()))
	_, err = second.Resolve(context.Background(), iss.KeyID())
	require.ErrorIs(t, err, core.ErrKeyNotFound)
}

func TestRemoteKeySet_NoURL(t *testing.T) {
	ks := jwks.NewRemoteKeySet("").WithLogger(quietLogger())
	_, err := ks.Current(context.Background())
	require.Error(t, err)
}
