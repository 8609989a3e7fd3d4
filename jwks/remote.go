package jwks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/open-rails/castingkit/core"
	"github.com/open-rails/castingkit/metrics"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const maxDocumentBytes = 1 << 20

// KV is the optional document cache shared between processes.
// storage/memory.KV and storage/redis.KV implement it.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type cachedSet struct {
	keys      KeySet
	fetchedAt time.Time
}

// RemoteKeySet fetches the issuer's key set on first use and serves it from
// an atomically swapped snapshot afterwards. Readers never lock; a refresh
// builds a new KeySet and replaces the pointer.
type RemoteKeySet struct {
	url     string
	client  *http.Client
	timeout time.Duration
	ttl     time.Duration

	cur   atomic.Pointer[cachedSet]
	group singleflight.Group

	kv    KV
	kvTTL time.Duration

	log logrus.FieldLogger
	now func() time.Time
}

func NewRemoteKeySet(url string) *RemoteKeySet {
	return &RemoteKeySet{
		url:     strings.TrimSpace(url),
		client:  http.DefaultClient,
		timeout: 5 * time.Second,
		log:     logrus.StandardLogger(),
		now:     time.Now,
	}
}

func (r *RemoteKeySet) WithHTTPClient(c *http.Client) *RemoteKeySet {
	if c != nil {
		r.client = c
	}
	return r
}

// WithTimeout bounds each network fetch. A timeout is a resolution failure.
func (r *RemoteKeySet) WithTimeout(d time.Duration) *RemoteKeySet {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// WithCacheTTL makes a fetched set eligible for refresh after d. Zero (the
// default) keeps the first successful fetch until Invalidate.
func (r *RemoteKeySet) WithCacheTTL(d time.Duration) *RemoteKeySet { r.ttl = d; return r }

// WithDocumentCache stores fetched documents in kv so that other processes
// (or a restarted one) can skip the network on a cold cache.
func (r *RemoteKeySet) WithDocumentCache(kv KV, ttl time.Duration) *RemoteKeySet {
	r.kv = kv
	r.kvTTL = ttl
	return r
}

func (r *RemoteKeySet) WithLogger(l logrus.FieldLogger) *RemoteKeySet {
	if l != nil {
		r.log = l
	}
	return r
}

// URL returns the key set endpoint.
func (r *RemoteKeySet) URL() string { return r.url }

// Resolve returns the key for kid, fetching the set on first use.
func (r *RemoteKeySet) Resolve(ctx context.Context, kid string) (SigningKey, error) {
	if strings.TrimSpace(kid) == "" {
		return SigningKey{}, core.ErrMissingKeyID
	}
	set, err := r.Current(ctx)
	if err != nil {
		return SigningKey{}, core.ErrKeyNotFound
	}
	k, ok := set[kid]
	if !ok {
		return SigningKey{}, core.ErrKeyNotFound
	}
	return k, nil
}

// Current returns the cached key set, loading it if needed. The returned
// error carries the underlying cause and is meant for logs and CLIs, not
// for HTTP responses.
func (r *RemoteKeySet) Current(ctx context.Context) (KeySet, error) {
	c := r.cur.Load()
	if c != nil && (r.ttl <= 0 || r.now().Sub(c.fetchedAt) < r.ttl) {
		return c.keys, nil
	}

	v, err, _ := r.group.Do("jwks", func() (any, error) {
		// Another caller may have finished a load while this one waited.
		if c2 := r.cur.Load(); c2 != nil && c2 != c {
			return c2.keys, nil
		}
		// The shared fetch must not die with whichever caller started it.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		return r.load(fctx, c == nil)
	})
	if err != nil {
		if c != nil {
			// Keep serving the previous set when a TTL refresh fails.
			r.log.WithError(err).WithField("url", r.url).Warn("jwks_refresh_failed")
			return c.keys, nil
		}
		r.log.WithError(err).WithField("url", r.url).Error("jwks_fetch_failed")
		return nil, err
	}
	return v.(KeySet), nil
}

// Invalidate drops the cached set (and the shared document) so that the
// next Resolve fetches again.
func (r *RemoteKeySet) Invalidate(ctx context.Context) error {
	r.cur.Store(nil)
	if r.kv != nil {
		return r.kv.Del(ctx, r.kvKey())
	}
	return nil
}

func (r *RemoteKeySet) load(ctx context.Context, cold bool) (KeySet, error) {
	if cold && r.kv != nil {
		if doc, ok, err := r.kv.Get(ctx, r.kvKey()); err != nil {
			r.log.WithError(err).Warn("jwks_kv_get_failed")
		} else if ok {
			if ks, err := ParseKeySet(doc); err == nil {
				metrics.KeySetFetches.WithLabelValues("kv_hit").Inc()
				r.store(ks)
				return ks, nil
			}
		}
	}

	doc, err := r.fetch(ctx)
	if err != nil {
		metrics.KeySetFetches.WithLabelValues("error").Inc()
		return nil, err
	}
	ks, err := ParseKeySet(doc)
	if err != nil {
		metrics.KeySetFetches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("parse jwks: %w", err)
	}
	metrics.KeySetFetches.WithLabelValues("ok").Inc()
	r.store(ks)

	if r.kv != nil {
		if err := r.kv.Set(ctx, r.kvKey(), doc, r.kvTTL); err != nil {
			r.log.WithError(err).Warn("jwks_kv_set_failed")
		}
	}
	r.log.WithField("url", r.url).WithField("keys", len(ks)).Info("jwks_loaded")
	return ks, nil
}

func (r *RemoteKeySet) fetch(ctx context.Context) ([]byte, error) {
	if r.url == "" {
		return nil, errors.New("jwks url is not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("jwks_http_%d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
}

func (r *RemoteKeySet) store(ks KeySet) {
	r.cur.Store(&cachedSet{keys: ks, fetchedAt: r.now()})
}

func (r *RemoteKeySet) kvKey() string { return "castingkit:jwks:" + r.url }
