package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/go-chi/chi/v5"

	"github.com/mrpixelvns-oss/vntech-sub000/internal/configurator"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/auth"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/idempotency"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/repositories/memory"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/services"
)

const (
	editorToken = "editor-token"
	adminToken  = "admin-token"
	viewerToken = "viewer-token"
)

type tokenTable map[string]*firebaseauth.Token

func (t tokenTable) VerifyIDToken(_ context.Context, idToken string) (*firebaseauth.Token, error) {
	if token, ok := t[idToken]; ok {
		return token, nil
	}
	return nil, auth.ErrTokenInvalid
}

func testAuthenticator() *auth.Authenticator {
	return auth.NewAuthenticator(tokenTable{
		editorToken: {UID: "u-editor", Claims: map[string]any{"role": "editor", "email": "editor@agency.vn"}},
		adminToken:  {UID: "u-admin", Claims: map[string]any{"role": "admin", "email": "admin@agency.vn"}},
		viewerToken: {UID: "u-viewer", Claims: map[string]any{"email": "viewer@agency.vn"}},
	})
}

type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type stubAuditWriter struct {
	written []services.SEOAudit
}

func (s *stubAuditWriter) WriteAudit(_ context.Context, audit services.SEOAudit) (services.StoredAudit, error) {
	s.written = append(s.written, audit)
	return services.StoredAudit{
		Location:    "gs://exports/seo-audits/" + audit.ID + ".json",
		DownloadURL: "https://storage.example/signed/" + audit.ID,
		ExpiresAt:   audit.GeneratedAt.Add(15 * time.Minute),
	}, nil
}

type testEnv struct {
	router   chi.Router
	registry *memory.Registry
	audits   *stubAuditWriter
}

type envOptions struct {
	quotesPerMinute  int
	siteBaseURL      string
	withAudits       bool
	internalIdentity *auth.ServiceIdentity
}

func newTestEnv(t *testing.T, opts envOptions) testEnv {
	t.Helper()
	clock := &tickingClock{now: time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)}
	registry := memory.NewRegistry(clock.Now)

	catalog, err := configurator.DefaultCatalog()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	ids := 0
	configuratorSvc, err := services.NewConfiguratorService(services.ConfiguratorServiceDeps{
		Catalog: catalog,
		Quotes:  registry.Quotes(),
		Clock:   clock.Now,
		IDGenerator: func() string {
			ids++
			return "qt_" + string(rune('A'+ids-1))
		},
	})
	if err != nil {
		t.Fatalf("configurator service: %v", err)
	}

	seoDeps := services.SEOServiceDeps{
		Pages:       registry.Pages(),
		Routes:      []string{"/", "/pricing", "/contact"},
		SiteBaseURL: opts.siteBaseURL,
		Clock:       clock.Now,
		IDGenerator: func() string { return "audit-1" },
	}
	var audits *stubAuditWriter
	if opts.withAudits {
		audits = &stubAuditWriter{}
		seoDeps.Audits = audits
	}
	seoSvc, err := services.NewSEOService(seoDeps)
	if err != nil {
		t.Fatalf("seo service: %v", err)
	}

	authn := testAuthenticator()
	quoteMW := []func(http.Handler) http.Handler{
		RateLimitPerMinute(opts.quotesPerMinute, clock.Now),
		idempotency.Middleware(idempotency.NewMemoryStore()),
	}
	configuratorHandlers := NewConfiguratorHandlers(configuratorSvc, WithQuoteMiddlewares(quoteMW...))
	seoHandlers := NewSEOHandlers(authn, seoSvc)
	quoteHandlers := NewQuoteAdminHandlers(authn, configuratorSvc)

	injectIdentity := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.internalIdentity != nil {
				r = r.WithContext(auth.WithServiceIdentity(r.Context(), opts.internalIdentity))
			}
			next.ServeHTTP(w, r)
		})
	}

	router := NewRouter(
		WithPublicRoutes(configuratorHandlers.Routes),
		WithAdminRoutes(seoHandlers.Routes, quoteHandlers.Routes),
		WithInternalRoutes(seoHandlers.InternalRoutes),
		WithInternalMiddlewares(injectIdentity),
	)
	return testEnv{router: router, registry: registry, audits: audits}
}

func doRequest(t *testing.T, h http.Handler, method, target, token string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	req.RemoteAddr = "198.51.100.20:4711"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return out
}

func errorCodeOf(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeJSON[map[string]any](t, rr)
	code, _ := body["error"].(string)
	return code
}
