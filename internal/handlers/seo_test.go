package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/auth"
)

const seoBase = "/api/v1/admin/seo"

func detailURL(path string) string {
	return seoBase + "/pages/detail?path=" + url.QueryEscape(path)
}

func syncPages(t *testing.T, env testEnv) syncRoutesResponse {
	t.Helper()
	rr := doRequest(t, env.router, http.MethodPost, seoBase+"/pages:sync", editorToken, nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("sync: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	return decodeJSON[syncRoutesResponse](t, rr)
}

func TestSEOHandlers_RequireConsoleRole(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"unknown token", "forged", http.StatusUnauthorized},
		{"no role", viewerToken, http.StatusForbidden},
		{"editor", editorToken, http.StatusOK},
		{"admin", adminToken, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := doRequest(t, env.router, http.MethodGet, seoBase+"/pages", tc.token, nil, nil)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestSEOHandlers_SyncIsIdempotent(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	first := syncPages(t, env)
	if first.Trigger != "manual" || len(first.Created) != 3 {
		t.Fatalf("expected 3 created records, got %+v", first)
	}
	if first.Created[0].Path != "/" || first.Created[0].Title != "Home" {
		t.Fatalf("unexpected home record %+v", first.Created[0])
	}

	second := syncPages(t, env)
	if len(second.Created) != 0 || len(second.Skipped) != 0 {
		t.Fatalf("expected second sync to be a no-op, got %+v", second)
	}

	rr := doRequest(t, env.router, http.MethodGet, seoBase+"/pages", editorToken, nil, nil)
	list := decodeJSON[pageListResponse](t, rr)
	if len(list.Items) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(list.Items))
	}
	for _, item := range list.Items {
		if item.Rating == "" || item.Issues == nil {
			t.Fatalf("expected scored page, got %+v", item)
		}
	}
}

func TestSEOHandlers_GetPage(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	syncPages(t, env)

	rr := doRequest(t, env.router, http.MethodGet, detailURL("/pricing"), editorToken, nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := decodeJSON[pageResponse](t, rr).Page.Path; got != "/pricing" {
		t.Fatalf("unexpected path %s", got)
	}

	missing := doRequest(t, env.router, http.MethodGet, seoBase+"/pages/detail", editorToken, nil, nil)
	if missing.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without path, got %d", missing.Code)
	}

	unknown := doRequest(t, env.router, http.MethodGet, detailURL("/nope"), editorToken, nil, nil)
	if unknown.Code != http.StatusNotFound || errorCodeOf(t, unknown) != "page_not_found" {
		t.Fatalf("expected page_not_found, got %d: %s", unknown.Code, unknown.Body.String())
	}
}

func TestSEOHandlers_UpdatePage(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	synced := syncPages(t, env)
	pricing := synced.Created[1]

	rr := doRequest(t, env.router, http.MethodPut, detailURL("/pricing"), editorToken, map[string]any{
		"title":             "<b>Website pricing</b> in Vietnam",
		"description":       "Transparent website pricing for small businesses, from landing pages to full e-commerce stores with hosting included.",
		"focusKeyword":      "website pricing",
		"ogImage":           "https://cdn.example.vn/og/pricing.png",
		"expectedUpdatedAt": pricing.UpdatedAt,
	}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	updated := decodeJSON[pageResponse](t, rr).Page
	if updated.Title != "Website pricing in Vietnam" {
		t.Fatalf("expected sanitized title, got %q", updated.Title)
	}
	if updated.Score <= pricing.Score {
		t.Fatalf("expected score to improve from %d, got %d", pricing.Score, updated.Score)
	}

	stale := doRequest(t, env.router, http.MethodPut, detailURL("/pricing"), editorToken, map[string]any{
		"title":             "Stale edit",
		"expectedUpdatedAt": pricing.UpdatedAt,
	}, nil)
	if stale.Code != http.StatusConflict || errorCodeOf(t, stale) != "page_conflict" {
		t.Fatalf("expected page_conflict, got %d: %s", stale.Code, stale.Body.String())
	}

	badTime := doRequest(t, env.router, http.MethodPut, detailURL("/pricing"), editorToken, map[string]any{
		"expectedUpdatedAt": "yesterday",
	}, nil)
	if badTime.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad timestamp, got %d", badTime.Code)
	}

	badURL := doRequest(t, env.router, http.MethodPut, detailURL("/pricing"), editorToken, map[string]any{
		"ogImage": "/relative.png",
	}, nil)
	if badURL.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for relative og image, got %d", badURL.Code)
	}
}

func TestSEOHandlers_SiteHealth(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	empty := doRequest(t, env.router, http.MethodGet, seoBase+"/health", editorToken, nil, nil)
	if empty.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", empty.Code)
	}
	if body := decodeJSON[siteHealthPayload](t, empty); body.PageCount != 0 || body.Score != 0 {
		t.Fatalf("unexpected empty health %+v", body)
	}

	syncPages(t, env)
	rr := doRequest(t, env.router, http.MethodGet, seoBase+"/health", editorToken, nil, nil)
	body := decodeJSON[siteHealthPayload](t, rr)
	if body.PageCount != 3 || body.Rating == "" {
		t.Fatalf("unexpected health %+v", body)
	}
}

func TestSEOHandlers_ImportLiveMeta(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Contact our studio</title>
<meta name="description" content="Talk to the team about your next website project."></head><body></body></html>`))
	}))
	defer site.Close()

	env := newTestEnv(t, envOptions{siteBaseURL: site.URL})
	syncPages(t, env)
	// clear the generated title so the live one is imported
	clear := doRequest(t, env.router, http.MethodPut, detailURL("/contact"), editorToken, map[string]any{}, nil)
	if clear.Code != http.StatusOK {
		t.Fatalf("clear: expected 200, got %d: %s", clear.Code, clear.Body.String())
	}

	rr := doRequest(t, env.router, http.MethodPost, seoBase+"/pages/detail:import?path=%2Fcontact", editorToken, nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	page := decodeJSON[pageResponse](t, rr).Page
	if page.Title != "Contact our studio" || page.Description == "" {
		t.Fatalf("expected live meta to be imported, got %+v", page)
	}

	disabled := newTestEnv(t, envOptions{})
	syncPages(t, disabled)
	rr = doRequest(t, disabled.router, http.MethodPost, seoBase+"/pages/detail:import?path=%2Fcontact", editorToken, nil, nil)
	if rr.Code != http.StatusServiceUnavailable || errorCodeOf(t, rr) != "live_import_unavailable" {
		t.Fatalf("expected live_import_unavailable, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestSEOHandlers_ExportAudit(t *testing.T) {
	env := newTestEnv(t, envOptions{withAudits: true})
	syncPages(t, env)

	rr := doRequest(t, env.router, http.MethodPost, seoBase+"/audits", adminToken, nil, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeJSON[auditPayload](t, rr)
	if body.ID != "audit-1" || body.PageCount != 3 || body.Location != "gs://exports/seo-audits/audit-1.json" {
		t.Fatalf("unexpected audit %+v", body)
	}
	if body.DownloadURL == "" || body.DownloadExpiresAt == "" {
		t.Fatalf("expected download link, got %+v", body)
	}
	if len(env.audits.written) != 1 {
		t.Fatalf("expected one written audit, got %d", len(env.audits.written))
	}

	disabled := newTestEnv(t, envOptions{})
	rr = doRequest(t, disabled.router, http.MethodPost, seoBase+"/audits", adminToken, nil, nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without writer, got %d", rr.Code)
	}
}

func TestSEOHandlers_ScheduledSync(t *testing.T) {
	env := newTestEnv(t, envOptions{internalIdentity: &auth.ServiceIdentity{
		Subject: "1234567890",
		Email:   "scheduler@site.iam.gserviceaccount.com",
	}})

	rr := doRequest(t, env.router, http.MethodPost, "/api/v1/internal/seo/pages:sync", "", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeJSON[syncRoutesResponse](t, rr)
	if body.Trigger != "scheduler" || len(body.Created) != 3 {
		t.Fatalf("unexpected scheduled sync %+v", body)
	}
}
