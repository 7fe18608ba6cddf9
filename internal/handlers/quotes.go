package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/auth"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/httpx"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/pagination"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/services"
)

const (
	defaultQuotePageSize = 20
	maxQuotePageSize     = 100
)

// QuoteAdminHandlers lets console admins read submitted quote requests.
type QuoteAdminHandlers struct {
	authn        *auth.Authenticator
	configurator services.ConfiguratorService
}

// NewQuoteAdminHandlers constructs quote admin handlers. A nil authenticator rejects every request.
func NewQuoteAdminHandlers(authn *auth.Authenticator, configurator services.ConfiguratorService) *QuoteAdminHandlers {
	return &QuoteAdminHandlers{authn: authn, configurator: configurator}
}

// Routes registers /quotes on the admin group.
func (h *QuoteAdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Group(func(g chi.Router) {
		g.Use(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
		g.Get("/quotes", h.listQuotes)
	})
}

type quoteListResponse struct {
	Items         []quotePayload `json:"items"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}

func (h *QuoteAdminHandlers) listQuotes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.configurator == nil {
		httpx.WriteError(ctx, w, httpx.NewError("configurator_unavailable", "configurator service unavailable", http.StatusServiceUnavailable))
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{
		DefaultPageSize: defaultQuotePageSize,
		MaxPageSize:     maxQuotePageSize,
		FilterFields:    []string{"status"},
	})
	if err != nil {
		code := "invalid_request"
		if errors.Is(err, pagination.ErrInvalidPageToken) {
			code = "invalid_page_token"
		}
		httpx.WriteError(ctx, w, httpx.NewError(code, err.Error(), http.StatusBadRequest))
		return
	}

	statuses := make([]services.QuoteStatus, 0)
	for _, value := range params.Values("status") {
		statuses = append(statuses, services.QuoteStatus(value))
	}

	page, err := h.configurator.ListQuotes(ctx, services.QuoteListFilter{
		Status: statuses,
		Pagination: services.Pagination{
			PageSize:  params.PageSize,
			PageToken: params.PageToken,
		},
	})
	if err != nil {
		writeConfiguratorError(ctx, w, err)
		return
	}

	resp := quoteListResponse{
		Items:         make([]quotePayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, quote := range page.Items {
		resp.Items = append(resp.Items, buildQuotePayload(quote))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}
