// Command api serves the agency site backend: the public configurator, the SEO console,
// and the internal scheduler hooks.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mrpixelvns-oss/vntech-sub000/internal/di"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/handlers"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/auth"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/config"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/idempotency"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/observability"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/services"
)

func main() {
	logger, err := observability.NewLogger("site-api")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	err = run(logger.Named("api"))
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func run(logger *zap.Logger) error {
	startedAt := time.Now().UTC()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = observability.WithLogger(ctx, logger)

	var closers closeStack
	defer closers.closeAll(logger)

	env, err := config.EnvironmentValues()
	if err != nil {
		logger.Error("read environment", zap.Error(err))
		return err
	}
	fetcher, err := newSecretFetcher(ctx, logger, env)
	if err != nil {
		logger.Error("secret fetcher", zap.Error(err))
		return err
	}
	closers.push("secrets", func(context.Context) error { return fetcher.Close() })

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(env)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Error("required secrets missing", zap.Strings("secrets", missing.RedactedNames()))
		} else {
			logger.Error("load configuration", zap.Error(err))
		}
		return err
	}
	build := buildInfoFromEnv(env, cfg, startedAt)

	deps, err := openInfrastructure(ctx, cfg, fetcher, logger, &closers)
	if err != nil {
		logger.Error("infrastructure", zap.Error(err))
		return err
	}

	container, err := di.NewContainer(ctx, cfg, deps.registry, di.Deps{
		Publisher:  deps.publisher,
		Audits:     deps.audits,
		Metrics:    observability.NewMetrics(nil, logger.Named("metrics")),
		HTTPClient: &http.Client{Timeout: cfg.SEO.FetchTimeout},
		Build:      build,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("build services", zap.Error(err))
		return err
	}
	closers.push("repositories", container.Close)

	authenticator, err := buildAuthenticator(ctx, logger, cfg)
	if err != nil {
		logger.Error("firebase verifier", zap.Error(err))
		return err
	}

	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	var background sync.WaitGroup
	background.Add(1)
	go func() {
		defer background.Done()
		idempotency.RunCleanup(cleanupCtx, deps.idempotency, cfg.Idempotency.CleanupInterval, cfg.Idempotency.CleanupBatchSize, logger.Named("idempotency"))
	}()
	defer background.Wait()
	defer stopCleanup()

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      newRouter(cfg, container.Services, build, deps.idempotency, authenticator, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return serve(ctx, server, cfg.Server.ShutdownTimeout, logger.With(
		zap.String("addr", server.Addr),
		zap.String("persistence", cfg.Persistence.Driver),
		zap.String("environment", build.Environment),
	))
}

func newRouter(cfg config.Config, svc di.Services, build services.BuildInfo, store idempotency.Store, authenticator *auth.Authenticator, logger *zap.Logger) http.Handler {
	httpLogger := logger.Named("http")
	projectID := traceProjectID(cfg)

	configurator := handlers.NewConfiguratorHandlers(svc.Configurator,
		handlers.WithQuoteMiddlewares(
			handlers.RateLimitPerMinute(cfg.RateLimits.QuotesPerMinute, time.Now),
			idempotency.Middleware(store,
				idempotency.WithHeader(cfg.Idempotency.Header),
				idempotency.WithTTL(cfg.Idempotency.TTL),
				idempotency.WithLogger(logger.Named("idempotency")),
			),
		),
	)
	seo := handlers.NewSEOHandlers(authenticator, svc.SEO)
	quotes := handlers.NewQuoteAdminHandlers(authenticator, svc.Configurator)

	opts := []handlers.Option{
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(httpLogger),
			observability.TraceMiddleware(projectID),
			observability.RecoveryMiddleware(httpLogger),
			observability.RequestLoggerMiddleware(projectID),
		),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(
			handlers.WithHealthBuildInfo(build),
			handlers.WithHealthSystemService(svc.System),
		)),
		handlers.WithPublicMiddlewares(handlers.RateLimitPerMinute(cfg.RateLimits.DefaultPerMinute, time.Now)),
		handlers.WithPublicRoutes(configurator.Routes),
		handlers.WithAdminRoutes(seo.Routes, quotes.Routes),
		handlers.WithInternalRoutes(seo.InternalRoutes),
	}
	if oidc := buildOIDCMiddleware(logger, cfg); oidc != nil {
		opts = append(opts, handlers.WithInternalMiddlewares(oidc))
	}
	return handlers.NewRouter(opts...)
}

// serve blocks until ctx is cancelled, then drains in-flight requests within timeout.
func serve(ctx context.Context, server *http.Server, timeout time.Duration, logger *zap.Logger) error {
	failed := make(chan error, 1)
	go func() {
		logger.Info("site api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			failed <- err
		}
	}()

	select {
	case err := <-failed:
		logger.Error("http server stopped", zap.Error(err))
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received, draining requests")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		return err
	}
	return nil
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	return services.BuildInfo{
		Version:     orDefault(env["SITE_BUILD_VERSION"], "dev"),
		CommitSHA:   orDefault(env["SITE_BUILD_COMMIT_SHA"], "unknown"),
		Environment: orDefault(cfg.Security.Environment, "local"),
		StartedAt:   started,
	}
}

func traceProjectID(cfg config.Config) string {
	return orDefault(cfg.Firebase.ProjectID, strings.TrimSpace(cfg.Firestore.ProjectID))
}

func orDefault(value, fallback string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return fallback
}

// closeStack releases resources in reverse acquisition order.
type closeStack []namedCloser

type namedCloser struct {
	name  string
	close func(context.Context) error
}

func (s *closeStack) push(name string, fn func(context.Context) error) {
	*s = append(*s, namedCloser{name: name, close: fn})
}

func (s closeStack) closeAll(logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(s) - 1; i >= 0; i-- {
		if err := s[i].close(ctx); err != nil {
			logger.Warn("close "+s[i].name, zap.Error(err))
		}
	}
}
