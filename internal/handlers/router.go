package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/httpx"
)

// RouteRegistrar mounts a handler set onto one route group.
type RouteRegistrar func(r chi.Router)

type middlewareFunc = func(http.Handler) http.Handler

// routeGroup is one of the /api/v1 audiences: public visitors, console staff, or schedulers.
type routeGroup struct {
	path        string
	registrars  []RouteRegistrar
	middlewares []middlewareFunc
}

type routerConfig struct {
	prefix      string
	middlewares []middlewareFunc
	health      *HealthHandlers
	public      routeGroup
	admin       routeGroup
	internal    routeGroup
}

// Option customises NewRouter.
type Option func(*routerConfig)

const (
	apiPrefix      = "/api/v1"
	requestTimeout = 60 * time.Second
)

// NewRouter builds the HTTP surface: probes at the root and the three groups under /api/v1.
// A group nobody registered routes on answers 501 rather than 404.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{
		prefix:      apiPrefix,
		middlewares: []middlewareFunc{middleware.RequestID, middleware.RealIP, middleware.Timeout(requestTimeout)},
		public:      routeGroup{path: "/public"},
		admin:       routeGroup{path: "/admin"},
		internal:    routeGroup{path: "/internal"},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	r := chi.NewRouter()
	useAll(r, cfg.middlewares)
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("route_not_found", "no route for "+req.URL.Path, http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", req.Method+" is not allowed on "+req.URL.Path, http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)
	r.Route(cfg.prefix, func(api chi.Router) {
		for _, group := range []routeGroup{cfg.public, cfg.admin, cfg.internal} {
			api.Route(group.path, group.mount)
		}
	})
	return r
}

func (g routeGroup) mount(r chi.Router) {
	useAll(r, g.middlewares)
	mounted := 0
	for _, register := range g.registrars {
		if register != nil {
			register(r)
			mounted++
		}
	}
	if mounted == 0 {
		notImplemented := func(w http.ResponseWriter, req *http.Request) {
			httpx.WriteError(req.Context(), w, httpx.NewError("not_implemented", "no "+g.path[1:]+" routes are served", http.StatusNotImplemented))
		}
		r.HandleFunc("/", notImplemented)
		r.HandleFunc("/*", notImplemented)
	}
}

func useAll(r chi.Router, mws []middlewareFunc) {
	for _, mw := range mws {
		if mw != nil {
			r.Use(mw)
		}
	}
}

// WithMiddlewares appends router-wide middleware after the request id, real ip, and timeout defaults.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) { cfg.middlewares = append(cfg.middlewares, mw...) }
}

func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) { cfg.health = h }
}

// WithPublicRoutes adds registrars to the unauthenticated /public group.
func WithPublicRoutes(regs ...RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.public.registrars = append(cfg.public.registrars, regs...) }
}

func WithPublicMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) { cfg.public.middlewares = append(cfg.public.middlewares, mw...) }
}

// WithAdminRoutes adds registrars to the /admin group. Registrars apply their own role checks.
func WithAdminRoutes(regs ...RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.admin.registrars = append(cfg.admin.registrars, regs...) }
}

// WithInternalRoutes adds registrars to the /internal group used by Cloud Scheduler.
func WithInternalRoutes(regs ...RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.internal.registrars = append(cfg.internal.registrars, regs...) }
}

func WithInternalMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) { cfg.internal.middlewares = append(cfg.internal.middlewares, mw...) }
}
