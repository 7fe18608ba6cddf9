package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	jwt "github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrJWKSKeyNotFound is returned when the requested key ID is absent from the JWKS document.
	ErrJWKSKeyNotFound = errors.New("auth: jwks key not found")
	// ErrJWKSFetchFailed wraps transport or decoding errors while refreshing JWKS.
	ErrJWKSFetchFailed = errors.New("auth: jwks fetch failed")
)

const (
	defaultJWKSRefreshInterval = 15 * time.Minute
	defaultJWKSRefreshTimeout  = 5 * time.Second
)

// keySet is one fetched JWKS document. It is replaced whole, never mutated.
type keySet struct {
	keys     map[string]jose.JSONWebKey
	expiry   time.Time
	prefetch time.Time
}

func (s *keySet) lookup(kid string) (any, bool) {
	if s == nil {
		return nil, false
	}
	jwk, ok := s.keys[kid]
	return jwk.Key, ok
}

// JWKSCache lazily fetches Google's signing keys and keeps them for the advertised max-age.
// Past half of that validity a lookup also starts a background refresh.
type JWKSCache struct {
	url             string
	client          *http.Client
	logger          *zap.Logger
	now             func() time.Time
	refreshInterval time.Duration
	refreshTimeout  time.Duration
	background      bool

	current atomic.Pointer[keySet]
	flight  singleflight.Group
}

type JWKSOption func(*JWKSCache)

func NewJWKSCache(url string, opts ...JWKSOption) *JWKSCache {
	c := &JWKSCache{
		url:             url,
		client:          &http.Client{Timeout: 10 * time.Second},
		logger:          zap.NewNop(),
		now:             time.Now,
		refreshInterval: defaultJWKSRefreshInterval,
		refreshTimeout:  defaultJWKSRefreshTimeout,
		background:      true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func WithJWKSHTTPClient(client *http.Client) JWKSOption {
	return func(c *JWKSCache) {
		if client != nil {
			c.client = client
		}
	}
}

func WithJWKSLogger(logger *zap.Logger) JWKSOption {
	return func(c *JWKSCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithJWKSRefreshInterval sets the validity used when the response has no cache headers.
func WithJWKSRefreshInterval(d time.Duration) JWKSOption {
	return func(c *JWKSCache) {
		if d > 0 {
			c.refreshInterval = d
		}
	}
}

func WithJWKSClock(now func() time.Time) JWKSOption {
	return func(c *JWKSCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithoutJWKSBackgroundRefresh only refreshes on expiry or an unknown kid.
func WithoutJWKSBackgroundRefresh() JWKSOption {
	return func(c *JWKSCache) { c.background = false }
}

// Keyfunc returns a jwt.Keyfunc that only accepts RS256 tokens carrying a kid.
func (c *JWKSCache) Keyfunc(ctx context.Context) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if token.Method == nil || token.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, fmt.Errorf("auth: unexpected signing method %v", token.Method)
		}
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("auth: token missing kid header")
		}
		return c.Key(ctx, kid)
	}
}

// Key resolves the public key for kid. An unknown kid forces one refresh because Google
// publishes new keys before the old document expires.
func (c *JWKSCache) Key(ctx context.Context, kid string) (any, error) {
	now := c.now()
	set := c.current.Load()
	if set == nil || !now.Before(set.expiry) {
		var err error
		if set, err = c.refresh(ctx); err != nil {
			return nil, err
		}
	}
	if key, ok := set.lookup(kid); ok {
		if c.background && !now.Before(set.prefetch) {
			c.flight.DoChan("jwks", c.backgroundRefresh)
		}
		return key, nil
	}

	set, err := c.refresh(ctx)
	if err != nil {
		return nil, err
	}
	if key, ok := set.lookup(kid); ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrJWKSKeyNotFound, kid)
}

func (c *JWKSCache) backgroundRefresh() (any, error) {
	set, err := c.fetch(context.Background())
	if err != nil {
		c.logger.Warn("auth: background jwks refresh failed", zap.Error(err))
	}
	return set, err
}

// refresh collapses concurrent fetches into one request.
func (c *JWKSCache) refresh(ctx context.Context) (*keySet, error) {
	v, err, _ := c.flight.Do("jwks", func() (any, error) { return c.fetch(ctx) })
	if err != nil {
		return nil, err
	}
	return v.(*keySet), nil
}

func (c *JWKSCache) fetch(ctx context.Context) (*keySet, error) {
	ctx, cancel := context.WithTimeout(ctx, c.refreshTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJWKSFetchFailed, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJWKSFetchFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrJWKSFetchFailed, resp.StatusCode)
	}

	var doc jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrJWKSFetchFailed, err)
	}
	set := &keySet{keys: make(map[string]jose.JSONWebKey, len(doc.Keys))}
	for _, jwk := range doc.Keys {
		if jwk.KeyID != "" && jwk.Valid() {
			set.keys[jwk.KeyID] = jwk
		}
	}
	if len(set.keys) == 0 {
		return nil, fmt.Errorf("%w: no usable keys", ErrJWKSFetchFailed)
	}

	now := c.now()
	ttl := c.validity(resp.Header, now)
	set.expiry, set.prefetch = now.Add(ttl), now.Add(ttl/2)
	c.current.Store(set)
	c.logger.Debug("auth: jwks refreshed", zap.Int("keys", len(set.keys)), zap.Duration("ttl", ttl))
	return set, nil
}

// validity prefers Cache-Control max-age, then Expires, then the configured interval.
func (c *JWKSCache) validity(header http.Header, now time.Time) time.Duration {
	if maxAge := parseMaxAge(header.Get("Cache-Control")); maxAge > 0 {
		return maxAge
	}
	if ts, err := http.ParseTime(header.Get("Expires")); err == nil && ts.After(now) {
		return ts.Sub(now)
	}
	return c.refreshInterval
}

func parseMaxAge(header string) time.Duration {
	for _, directive := range strings.Split(header, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}
		if seconds, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}
