package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultEnvironment  = "local"
	defaultFallbackPath = ".secrets.local"
	meterName           = "github.com/mrpixelvns-oss/vntech-sub000/internal/platform/secrets"
)

var secretManagerClientFactory = func(ctx context.Context, opts ...option.ClientOption) (*secretmanager.Client, error) {
	return secretmanager.NewClient(ctx, opts...)
}

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves secret:// references against Secret Manager. Values are cached per
// name and version; a local fallback file answers when the remote is unreachable.
type Fetcher struct {
	client     secretManagerClient
	ownsClient bool
	clientOpts []option.ClientOption
	logger     *zap.Logger

	env            string
	defaultProject string
	projects       map[string]string
	pins           map[string]string
	cacheTTL       time.Duration
	now            func() time.Time

	fallbackPath string
	fallbackOnce sync.Once
	fallback     fallbackFile

	mu    sync.RWMutex
	cache map[string]cachedSecret

	latency   metric.Float64Histogram
	cacheHits metric.Int64Counter
}

type cachedSecret struct {
	name      string
	value     string
	fetchedAt time.Time
}

// Option customises Fetcher construction.
type Option func(*Fetcher)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithEnvironment selects the key looked up in the project map and in env-scoped pins.
func WithEnvironment(env string) Option {
	return func(f *Fetcher) {
		if env = strings.ToLower(strings.TrimSpace(env)); env != "" {
			f.env = env
		}
	}
}

// WithDefaultProject sets the project used when the environment has no mapping.
func WithDefaultProject(projectID string) Option {
	return func(f *Fetcher) {
		f.defaultProject = strings.TrimSpace(projectID)
	}
}

// WithProjectMap maps environment labels to Secret Manager projects.
func WithProjectMap(m map[string]string) Option {
	return func(f *Fetcher) {
		for env, project := range m {
			f.projects[strings.ToLower(strings.TrimSpace(env))] = strings.TrimSpace(project)
		}
	}
}

// WithFallbackFile overrides the local fallback file path. An empty path disables it.
func WithFallbackFile(path string) Option {
	return func(f *Fetcher) {
		f.fallbackPath = strings.TrimSpace(path)
	}
}

// WithVersionPins pins references to explicit versions. Keys are secret://name or
// env:secret://name; the env-scoped form wins.
func WithVersionPins(pins map[string]string) Option {
	return func(f *Fetcher) {
		for ref, version := range pins {
			if version = strings.TrimSpace(version); version != "" {
				f.pins[strings.TrimSpace(ref)] = version
			}
		}
	}
}

// WithCacheTTL expires cached values after ttl. Zero keeps them until Invalidate.
func WithCacheTTL(ttl time.Duration) Option {
	return func(f *Fetcher) {
		if ttl > 0 {
			f.cacheTTL = ttl
		}
	}
}

// WithMeter injects the OpenTelemetry meter.
func WithMeter(m metric.Meter) Option {
	return func(f *Fetcher) {
		if m != nil {
			f.registerMetrics(m)
		}
	}
}

// WithSecretManagerClient injects a client, mainly for tests. The fetcher does not close it.
func WithSecretManagerClient(client secretManagerClient) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithClientOptions is forwarded to secretmanager.NewClient.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(f *Fetcher) {
		f.clientOpts = append(f.clientOpts, opts...)
	}
}

// NewFetcher builds a Fetcher. A Secret Manager client that cannot be created is logged
// and the fetcher runs on the fallback file alone.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		logger:       zap.NewNop(),
		env:          strings.ToLower(strings.TrimSpace(os.Getenv("SITE_SECURITY_ENVIRONMENT"))),
		projects:     map[string]string{},
		pins:         map[string]string{},
		now:          time.Now,
		fallbackPath: defaultFallbackPath,
		cache:        map[string]cachedSecret{},
	}
	if f.env == "" {
		f.env = defaultEnvironment
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	if f.latency == nil {
		f.registerMetrics(otel.GetMeterProvider().Meter(meterName))
	}

	if f.client == nil {
		client, err := secretManagerClientFactory(ctx, f.clientOpts...)
		if err != nil {
			f.logger.Warn("secrets: secret manager unavailable; using fallback file only", zap.Error(err))
		} else {
			f.client = client
			f.ownsClient = true
		}
	}
	f.clientOpts = nil
	return f, nil
}

func (f *Fetcher) registerMetrics(m metric.Meter) {
	latency, err := m.Float64Histogram("site.secrets.fetch.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Secret resolution latency by source"),
	)
	if err != nil {
		f.logger.Warn("secrets: latency metric unavailable", zap.Error(err))
	}
	hits, err := m.Int64Counter("site.secrets.fetch.cache_hits",
		metric.WithDescription("Secret resolutions answered from cache"),
	)
	if err != nil {
		f.logger.Warn("secrets: cache hit metric unavailable", zap.Error(err))
	}
	f.latency, f.cacheHits = latency, hits
}

// Close releases the Secret Manager client when the fetcher created it.
func (f *Fetcher) Close() error {
	if f.ownsClient && f.client != nil {
		return f.client.Close()
	}
	return nil
}

// ResolveSecret satisfies config.SecretResolver.
func (f *Fetcher) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f.Resolve(ctx, ref)
}

// Resolve returns the value behind ref. Remote NotFound and other non-transient errors are
// returned as is; auth and availability failures fall through to the fallback file.
func (f *Fetcher) Resolve(ctx context.Context, raw string) (string, error) {
	started := f.now()
	ref, err := ParseReference(raw)
	if err != nil {
		return "", err
	}
	version := f.version(ref)
	key := versionKey(ref.Name, version)

	if value, ok := f.cached(key); ok {
		f.observe(ctx, started, "cache", ref)
		return value, nil
	}

	if project := f.project(ref); project != "" && f.client != nil {
		value, err := f.fetch(ctx, ref.resource(project, version))
		switch {
		case err == nil:
			f.store(key, ref.Name, value)
			f.observe(ctx, started, "remote", ref)
			return value, nil
		case !transient(err):
			f.observe(ctx, started, "error", ref)
			return "", fmt.Errorf("secrets: fetch %s: %w", ref.Name, err)
		}
		f.logger.Debug("secrets: remote unavailable, trying fallback file",
			zap.String("secret", ref.masked()), zap.Error(err))
	}

	value, ok := f.fallbackValue(ref, version)
	if !ok {
		f.observe(ctx, started, "error", ref)
		return "", fmt.Errorf("secrets: no fallback value for %s", ref.Name)
	}
	f.store(key, ref.Name, value)
	f.observe(ctx, started, "fallback", ref)
	return value, nil
}

// Invalidate drops every cached version of ref, e.g. after a rotation.
func (f *Fetcher) Invalidate(raw string) {
	ref, err := ParseReference(raw)
	if err != nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, entry := range f.cache {
		if entry.name == ref.Name {
			delete(f.cache, key)
		}
	}
}

func (f *Fetcher) cached(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	entry, ok := f.cache[key]
	if !ok {
		return "", false
	}
	if f.cacheTTL > 0 && f.now().Sub(entry.fetchedAt) > f.cacheTTL {
		return "", false
	}
	return entry.value, true
}

func (f *Fetcher) store(key, name, value string) {
	f.mu.Lock()
	f.cache[key] = cachedSecret{name: name, value: value, fetchedAt: f.now()}
	f.mu.Unlock()
}

func (f *Fetcher) fetch(ctx context.Context, resource string) (string, error) {
	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resource})
	if err != nil {
		return "", err
	}
	if resp.GetPayload() == nil {
		return "", fmt.Errorf("empty payload for %s", resource)
	}
	return string(resp.GetPayload().GetData()), nil
}

func (f *Fetcher) project(ref Reference) string {
	if ref.Project != "" {
		return ref.Project
	}
	if project := f.projects[f.env]; project != "" {
		return project
	}
	return f.defaultProject
}

func (f *Fetcher) version(ref Reference) string {
	if ref.Version != "" {
		return ref.Version
	}
	if pin, ok := f.pins[f.env+":"+ref.Name]; ok {
		return pin
	}
	if pin, ok := f.pins[ref.Name]; ok {
		return pin
	}
	return latestVersion
}

func (f *Fetcher) fallbackValue(ref Reference, version string) (string, bool) {
	f.fallbackOnce.Do(func() {
		values, err := loadFallbackFile(f.fallbackPath)
		if err != nil {
			f.logger.Warn("secrets: fallback file unreadable", zap.Error(err))
		}
		f.fallback = values
	})
	return f.fallback.lookup(ref, version)
}

func (f *Fetcher) observe(ctx context.Context, started time.Time, source string, ref Reference) {
	if source == "cache" && f.cacheHits != nil {
		f.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("secret", ref.masked())))
	}
	if f.latency != nil {
		elapsed := float64(f.now().Sub(started)) / float64(time.Millisecond)
		f.latency.Record(ctx, elapsed, metric.WithAttributes(attribute.String("source", source)))
	}
}

// transient reports whether err should be retried against the fallback file.
func transient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}
