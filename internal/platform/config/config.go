package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	defaultEnvFile              = ".env"
	defaultPort                 = "8080"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 30 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultShutdownTimeout      = 10 * time.Second
	defaultPersistenceDriver    = PersistenceFirestore
	defaultPagesCollection      = "pageSeo"
	defaultQuotesCollection     = "quotes"
	defaultQuoteTopic           = "configurator-quotes"
	defaultExportPrefix         = "seo-audits"
	defaultSEOFetchTimeout      = 10 * time.Second
	defaultRateLimitDefault     = 120
	defaultRateLimitQuotes      = 10
	defaultSecurityEnvironment  = "local"
	defaultOIDCJWKSURL          = "https://www.googleapis.com/oauth2/v3/certs"
	defaultSecurityIssuer       = "https://accounts.google.com"
	defaultIdempotencyHeader    = "Idempotency-Key"
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultIdempotencyInterval  = time.Hour
	defaultIdempotencyBatchSize = 200
)

const (
	// PersistenceFirestore stores pages and quotes in Cloud Firestore.
	PersistenceFirestore = "firestore"
	// PersistenceMemory keeps everything in process memory; meant for local runs and tests.
	PersistenceMemory = "memory"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server       ServerConfig
	Firebase     FirebaseConfig
	Firestore    FirestoreConfig
	Persistence  PersistenceConfig
	Storage      StorageConfig
	PubSub       PubSubConfig
	Configurator ConfiguratorConfig
	SEO          SEOConfig
	RateLimits   RateLimitConfig
	Security     SecurityConfig
	Idempotency  IdempotencyConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
	CredentialsJSON string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID        string
	EmulatorHost     string
	PagesCollection  string
	QuotesCollection string
}

// PersistenceConfig selects the repository implementation.
type PersistenceConfig struct {
	Driver string
}

// StorageConfig names the bucket SEO audits are exported to. Exports are disabled when empty.
type StorageConfig struct {
	ExportsBucket string
	ExportPrefix  string
}

// PubSubConfig configures quote notifications. Publishing is disabled when QuoteTopic is empty.
type PubSubConfig struct {
	ProjectID  string
	QuoteTopic string
}

// ConfiguratorConfig points at an optional catalog override file and toggles quote intake.
type ConfiguratorConfig struct {
	CatalogFile   string
	QuotesEnabled bool
}

// SEOConfig controls the page SEO console.
type SEOConfig struct {
	SiteBaseURL  string
	Routes       []string
	FetchTimeout time.Duration
}

// RateLimitConfig controls request throttling.
type RateLimitConfig struct {
	DefaultPerMinute int
	QuotesPerMinute  int
}

// SecurityConfig groups server-to-server authentication settings.
type SecurityConfig struct {
	Environment string
	OIDC        OIDCConfig
}

// OIDCConfig controls Google-signed token verification. ServiceAccounts restricts
// callers to the listed token emails when non-empty.
type OIDCConfig struct {
	JWKSURL         string
	Audience        string
	Audiences       map[string]string
	Issuers         []string
	ServiceAccounts []string
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Header           string
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
}

// Option customises Load.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile               string
	envMap                map[string]string
	useSystemEnv          bool
	secret                SecretResolver
	requiredSecrets       []string
	panicOnMissingSecrets bool
}

func defaultLoaderOptions() loaderOptions {
	return loaderOptions{envFile: defaultEnvFile, useSystemEnv: true}
}

// WithEnvFile overrides the .env file path. An empty path skips the file.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap injects values that win over the process environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

// WithoutSystemEnv stops Load from reading the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

// WithSecretResolver sets the resolver for secret:// values.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) { o.secret = resolver }
}

// WithRequiredSecrets marks config fields (e.g. "Firebase.CredentialsJSON") that must
// resolve to a non-empty value.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) { o.requiredSecrets = append(o.requiredSecrets, names...) }
}

// WithPanicOnMissingSecrets makes Load panic with a *MissingSecretsError instead of returning it.
func WithPanicOnMissingSecrets() Option {
	return func(o *loaderOptions) { o.panicOnMissingSecrets = true }
}

// Load builds the configuration from defaults, the .env file, the process environment and
// explicit overrides, then resolves secret references and validates the result.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	o := defaultLoaderOptions()
	for _, opt := range opts {
		opt(&o)
	}
	env, err := newSource(o)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            env.str("SITE_SERVER_PORT", defaultPort),
			ReadTimeout:     env.duration("SITE_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    env.duration("SITE_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     env.duration("SITE_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: env.duration("SITE_SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       env.raw("SITE_FIREBASE_PROJECT_ID"),
			CredentialsFile: env.raw("SITE_FIREBASE_CREDENTIALS_FILE"),
			CredentialsJSON: env.raw("SITE_FIREBASE_CREDENTIALS_JSON"),
		},
		Firestore: FirestoreConfig{
			ProjectID:        env.str("SITE_FIRESTORE_PROJECT_ID", env.raw("SITE_FIREBASE_PROJECT_ID")),
			EmulatorHost:     env.raw("SITE_FIRESTORE_EMULATOR_HOST"),
			PagesCollection:  env.str("SITE_FIRESTORE_PAGES_COLLECTION", defaultPagesCollection),
			QuotesCollection: env.str("SITE_FIRESTORE_QUOTES_COLLECTION", defaultQuotesCollection),
		},
		Persistence: PersistenceConfig{
			Driver: strings.ToLower(env.str("SITE_PERSISTENCE_DRIVER", defaultPersistenceDriver)),
		},
		Storage: StorageConfig{
			ExportsBucket: env.raw("SITE_STORAGE_EXPORTS_BUCKET"),
			ExportPrefix:  strings.Trim(env.str("SITE_STORAGE_EXPORT_PREFIX", defaultExportPrefix), "/"),
		},
		PubSub: PubSubConfig{
			ProjectID:  env.str("SITE_PUBSUB_PROJECT_ID", env.raw("SITE_FIREBASE_PROJECT_ID")),
			QuoteTopic: env.str("SITE_PUBSUB_QUOTE_TOPIC", defaultQuoteTopic),
		},
		Configurator: ConfiguratorConfig{
			CatalogFile:   env.raw("SITE_CONFIGURATOR_CATALOG_FILE"),
			QuotesEnabled: env.flag("SITE_CONFIGURATOR_QUOTES_ENABLED", true),
		},
		SEO: SEOConfig{
			SiteBaseURL:  strings.TrimRight(env.raw("SITE_SEO_BASE_URL"), "/"),
			Routes:       env.list("SITE_SEO_ROUTES"),
			FetchTimeout: env.duration("SITE_SEO_FETCH_TIMEOUT", defaultSEOFetchTimeout),
		},
		RateLimits: RateLimitConfig{
			DefaultPerMinute: env.integer("SITE_RATELIMIT_DEFAULT_PER_MIN", defaultRateLimitDefault),
			QuotesPerMinute:  env.integer("SITE_RATELIMIT_QUOTES_PER_MIN", defaultRateLimitQuotes),
		},
		Security: SecurityConfig{
			Environment: strings.ToLower(env.str("SITE_SECURITY_ENVIRONMENT", defaultSecurityEnvironment)),
			OIDC: OIDCConfig{
				JWKSURL:         env.str("SITE_SECURITY_OIDC_JWKS_URL", defaultOIDCJWKSURL),
				Audience:        env.raw("SITE_SECURITY_OIDC_AUDIENCE"),
				Audiences:       env.pairs("SITE_SECURITY_OIDC_AUDIENCES"),
				Issuers:         env.list("SITE_SECURITY_OIDC_ISSUERS"),
				ServiceAccounts: env.list("SITE_SECURITY_OIDC_SERVICE_ACCOUNTS"),
			},
		},
		Idempotency: IdempotencyConfig{
			Header:           env.str("SITE_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              env.duration("SITE_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupInterval:  env.duration("SITE_IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyInterval),
			CleanupBatchSize: env.integer("SITE_IDEMPOTENCY_CLEANUP_BATCH", defaultIdempotencyBatchSize),
		},
	}

	if len(cfg.Security.OIDC.Issuers) == 0 {
		cfg.Security.OIDC.Issuers = []string{defaultSecurityIssuer}
	}
	if cfg.Security.OIDC.Audience == "" {
		cfg.Security.OIDC.Audience = cfg.Security.OIDC.Audiences[cfg.Security.Environment]
	}

	resolved := map[string]string{}
	secretFields := map[string]*string{
		"Firebase.CredentialsJSON": &cfg.Firebase.CredentialsJSON,
	}
	for name, field := range secretFields {
		value, err := resolveSecret(ctx, *field, o.secret)
		if err != nil {
			return Config{}, err
		}
		*field = value
		resolved[name] = value
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	if missing := missingSecrets(o.requiredSecrets, resolved); missing != nil {
		if o.panicOnMissingSecrets {
			fmt.Fprintf(os.Stderr, "config: %s\n", missing.Error())
			panic(missing)
		}
		return Config{}, missing
	}
	return cfg, nil
}

func validate(cfg Config) error {
	var invalid []string
	check := func(ok bool, field string) {
		if !ok {
			invalid = append(invalid, field)
		}
	}

	check(cfg.Server.Port != "", "Server.Port")
	switch cfg.Persistence.Driver {
	case PersistenceFirestore:
		check(cfg.Firebase.ProjectID != "", "Firebase.ProjectID")
		check(cfg.Firestore.ProjectID != "", "Firestore.ProjectID")
		check(cfg.Firestore.PagesCollection != "", "Firestore.PagesCollection")
		check(cfg.Firestore.QuotesCollection != "", "Firestore.QuotesCollection")
	case PersistenceMemory:
	default:
		invalid = append(invalid, "Persistence.Driver")
	}
	check(cfg.SEO.FetchTimeout > 0, "SEO.FetchTimeout")
	check(cfg.RateLimits.QuotesPerMinute >= 0, "RateLimits.QuotesPerMinute")
	check(cfg.Idempotency.Header != "", "Idempotency.Header")
	check(cfg.Idempotency.TTL > 0, "Idempotency.TTL")
	check(cfg.Idempotency.CleanupInterval > 0, "Idempotency.CleanupInterval")
	check(cfg.Idempotency.CleanupBatchSize > 0, "Idempotency.CleanupBatchSize")

	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}
