package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mrpixelvns-oss/vntech-sub000/internal/configurator"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/config"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/observability"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/repositories"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Configurator services.ConfiguratorService
	SEO          services.SEOService
	System       services.SystemService
}

// Deps carries the infrastructure built by the entrypoint. Every field is optional; a nil
// publisher or audit writer switches the matching feature off.
type Deps struct {
	Publisher  services.QuotePublisher
	Audits     services.AuditWriter
	Metrics    *observability.Metrics
	HTTPClient *http.Client
	Build      services.BuildInfo
	Logger     *zap.Logger
	Clock      func() time.Time
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, deps Deps) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(ctx, reg, cfg, deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, reg repositories.Registry, cfg config.Config, deps Deps) (Services, error) {
	var svc Services

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	catalog, err := loadCatalog(cfg.Configurator)
	if err != nil {
		return Services{}, fmt.Errorf("load catalog: %w", err)
	}

	configuratorSvc, err := services.NewConfiguratorService(services.ConfiguratorServiceDeps{
		Catalog:       catalog,
		Quotes:        reg.Quotes(),
		Publisher:     deps.Publisher,
		Metrics:       deps.Metrics,
		DisableQuotes: !cfg.Configurator.QuotesEnabled,
		Clock:         clock,
		Logger:        observability.EventLogger(logger.Named("configurator")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build configurator service: %w", err)
	}
	svc.Configurator = configuratorSvc

	seoSvc, err := services.NewSEOService(services.SEOServiceDeps{
		Pages:        reg.Pages(),
		Routes:       cfg.SEO.Routes,
		SiteBaseURL:  cfg.SEO.SiteBaseURL,
		HTTPClient:   deps.HTTPClient,
		FetchTimeout: cfg.SEO.FetchTimeout,
		Audits:       deps.Audits,
		Metrics:      deps.Metrics,
		Clock:        clock,
		Logger:       observability.EventLogger(logger.Named("seo")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build seo service: %w", err)
	}
	svc.SEO = seoSvc

	if healthRepo := reg.Health(); healthRepo != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            clock,
			Build:            deps.Build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}

func loadCatalog(cfg config.ConfiguratorConfig) (*configurator.Catalog, error) {
	if path := strings.TrimSpace(cfg.CatalogFile); path != "" {
		return configurator.LoadCatalogFile(path)
	}
	return configurator.DefaultCatalog()
}
