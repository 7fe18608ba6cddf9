package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/idempotency"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/repositories"
)

const configuratorBase = "/api/v1/public/configurator"

func TestConfiguratorHandlers_Catalog(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rr := doRequest(t, env.router, http.MethodGet, configuratorBase+"/catalog", "", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Cache-Control") == "" {
		t.Fatalf("expected catalog to be cacheable")
	}
	body := decodeJSON[catalogPayload](t, rr)
	if body.Currency != "VND" || body.MinPageCount != 5 || body.SinglePageItemID != "landing-page" {
		t.Fatalf("unexpected catalog header %+v", body)
	}
	if len(body.Categories) == 0 || body.Categories[0].Name != "core" || body.Categories[0].Arity != "one_of" {
		t.Fatalf("unexpected categories %+v", body.Categories)
	}
	if len(body.Defaults) != 3 {
		t.Fatalf("expected 3 defaults, got %v", body.Defaults)
	}
}

func TestConfiguratorHandlers_DefaultSelection(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rr := doRequest(t, env.router, http.MethodGet, configuratorBase+"/selection", "", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeJSON[selectionResultPayload](t, rr)
	if body.Breakdown.Total != 10_000_000 || body.State.PageCount != 5 || body.PageCountPinned {
		t.Fatalf("unexpected default selection %+v", body)
	}
	if len(body.Breakdown.Items) != 3 {
		t.Fatalf("expected 3 price lines, got %+v", body.Breakdown.Items)
	}
}

func TestConfiguratorHandlers_ApplySelection(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	state := map[string]any{"selectedIds": []string{"corporate-site", "template-design", "hosting"}, "pageCount": 5}

	rr := doRequest(t, env.router, http.MethodPost, configuratorBase+"/selection:apply", "", map[string]any{
		"state":  state,
		"action": "pages",
		"delta":  2,
	}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	more := decodeJSON[selectionResultPayload](t, rr)
	if more.State.PageCount != 7 || more.Breakdown.ExtraPages.Amount != 1_000_000 {
		t.Fatalf("unexpected page delta result %+v", more)
	}

	rr = doRequest(t, env.router, http.MethodPost, configuratorBase+"/selection:apply", "", map[string]any{
		"state":  more.State,
		"action": "toggle",
		"itemId": "landing-page",
	}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	landing := decodeJSON[selectionResultPayload](t, rr)
	if !landing.PageCountPinned || landing.State.PageCount != 1 {
		t.Fatalf("expected landing page to pin the page count, got %+v", landing)
	}
}

func TestConfiguratorHandlers_ApplySelectionErrors(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	state := map[string]any{"selectedIds": []string{"corporate-site"}, "pageCount": 5}

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"unknown item", map[string]any{"state": state, "action": "toggle", "itemId": "time-machine"}, http.StatusNotFound, "item_not_found"},
		{"unknown action", map[string]any{"state": state, "action": "explode"}, http.StatusBadRequest, "invalid_request"},
		{"unknown field", map[string]any{"state": state, "action": "toggle", "itemId": "blog", "price": 1}, http.StatusBadRequest, "invalid_request"},
		{"malformed json", `{"state":`, http.StatusBadRequest, "invalid_request"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := doRequest(t, env.router, http.MethodPost, configuratorBase+"/selection:apply", "", tc.body, nil)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rr.Code, rr.Body.String())
			}
			if code := errorCodeOf(t, rr); code != tc.code {
				t.Fatalf("expected %s, got %s", tc.code, code)
			}
		})
	}
}

func TestConfiguratorHandlers_PriceRepairsState(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rr := doRequest(t, env.router, http.MethodPost, configuratorBase+"/quotes:price", "", map[string]any{
		"state": map[string]any{"selectedIds": []string{"landing-page", "seo-setup"}, "pageCount": 9},
	}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeJSON[selectionResultPayload](t, rr)
	if body.State.PageCount != 1 || body.Breakdown.Total != 5_500_000 {
		t.Fatalf("unexpected repaired price %+v", body)
	}
}

func quoteBody() map[string]any {
	return map[string]any{
		"state": map[string]any{"selectedIds": []string{"corporate-site", "blog"}, "pageCount": 6},
		"contact": map[string]any{
			"name":    "Nguyen Van An",
			"email":   "an@example.vn",
			"phone":   "+84 912 345 678",
			"message": "Need it before Tet",
		},
	}
}

func TestConfiguratorHandlers_SubmitQuoteIsIdempotent(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	headers := map[string]string{"Idempotency-Key": "quote-1"}

	first := doRequest(t, env.router, http.MethodPost, configuratorBase+"/quotes", "", quoteBody(), headers)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", first.Code, first.Body.String())
	}
	created := decodeJSON[submitQuoteResponse](t, first)
	if created.Quote.ID != "qt_A" || created.Quote.Status != "new" {
		t.Fatalf("unexpected quote %+v", created.Quote)
	}
	if created.Quote.Contact != nil {
		t.Fatalf("expected contact details to be withheld, got %+v", created.Quote.Contact)
	}

	replay := doRequest(t, env.router, http.MethodPost, configuratorBase+"/quotes", "", quoteBody(), headers)
	if replay.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201, got %d", replay.Code)
	}
	if replay.Header().Get(idempotency.ReplayHeader) == "" {
		t.Fatalf("expected replay header")
	}
	if decodeJSON[submitQuoteResponse](t, replay).Quote.ID != "qt_A" {
		t.Fatalf("expected replay to return the stored quote")
	}

	page, err := env.registry.Quotes().List(context.Background(), repositories.QuoteListFilter{})
	if err != nil {
		t.Fatalf("list quotes: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("expected a single stored quote, got %d", len(page.Items))
	}
}

func TestConfiguratorHandlers_SubmitQuoteValidation(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	missingKey := doRequest(t, env.router, http.MethodPost, configuratorBase+"/quotes", "", quoteBody(), nil)
	if missingKey.Code != http.StatusBadRequest || errorCodeOf(t, missingKey) != "idempotency_key_required" {
		t.Fatalf("expected idempotency_key_required, got %d: %s", missingKey.Code, missingKey.Body.String())
	}

	body := quoteBody()
	body["contact"] = map[string]any{"name": "", "email": "not-an-email"}
	rr := doRequest(t, env.router, http.MethodPost, configuratorBase+"/quotes", "", body, map[string]string{"Idempotency-Key": "quote-bad"})
	if rr.Code != http.StatusBadRequest || errorCodeOf(t, rr) != "invalid_request" {
		t.Fatalf("expected invalid_request, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestConfiguratorHandlers_SubmitQuoteRateLimited(t *testing.T) {
	env := newTestEnv(t, envOptions{quotesPerMinute: 2})

	for i, key := range []string{"k1", "k2"} {
		rr := doRequest(t, env.router, http.MethodPost, configuratorBase+"/quotes", "", quoteBody(), map[string]string{"Idempotency-Key": key})
		if rr.Code != http.StatusCreated {
			t.Fatalf("request %d: expected 201, got %d", i, rr.Code)
		}
	}
	rr := doRequest(t, env.router, http.MethodPost, configuratorBase+"/quotes", "", quoteBody(), map[string]string{"Idempotency-Key": "k3"})
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	// pricing is not throttled by the quote limit
	price := doRequest(t, env.router, http.MethodPost, configuratorBase+"/quotes:price", "", map[string]any{
		"state": map[string]any{"selectedIds": []string{"blog"}, "pageCount": 5},
	}, nil)
	if price.Code != http.StatusOK {
		t.Fatalf("expected 200 for pricing, got %d", price.Code)
	}
}

func TestConfiguratorHandlers_UnavailableService(t *testing.T) {
	router := NewRouter(WithPublicRoutes(NewConfiguratorHandlers(nil).Routes))

	rr := doRequest(t, router, http.MethodGet, configuratorBase+"/catalog", "", nil, nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
