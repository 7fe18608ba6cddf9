package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/httpx"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/services"
)

const maxConfiguratorBodySize = 32 * 1024

// ConfiguratorHandlers exposes the public website configurator.
type ConfiguratorHandlers struct {
	configurator     services.ConfiguratorService
	quoteMiddlewares []func(http.Handler) http.Handler
}

// ConfiguratorOption customises ConfiguratorHandlers.
type ConfiguratorOption func(*ConfiguratorHandlers)

// WithQuoteMiddlewares wraps only the quote submission route, typically with idempotency and a
// stricter rate limit.
func WithQuoteMiddlewares(mw ...func(http.Handler) http.Handler) ConfiguratorOption {
	return func(h *ConfiguratorHandlers) {
		for _, m := range mw {
			if m != nil {
				h.quoteMiddlewares = append(h.quoteMiddlewares, m)
			}
		}
	}
}

// NewConfiguratorHandlers constructs configurator handlers.
func NewConfiguratorHandlers(configurator services.ConfiguratorService, opts ...ConfiguratorOption) *ConfiguratorHandlers {
	h := &ConfiguratorHandlers{configurator: configurator}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /configurator endpoints on the public group.
func (h *ConfiguratorHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/configurator/catalog", h.getCatalog)
	r.Get("/configurator/selection", h.getDefaultSelection)
	r.Post("/configurator/selection:apply", h.applySelection)
	r.Post("/configurator/quotes:price", h.priceSelection)
	r.With(h.quoteMiddlewares...).Post("/configurator/quotes", h.submitQuote)
}

func (h *ConfiguratorHandlers) getCatalog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(ctx, w) {
		return
	}
	view, err := h.configurator.Catalog(ctx)
	if err != nil {
		writeConfiguratorError(ctx, w, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSONResponse(w, http.StatusOK, buildCatalogPayload(view))
}

func (h *ConfiguratorHandlers) getDefaultSelection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(ctx, w) {
		return
	}
	result, err := h.configurator.DefaultSelection(ctx)
	if err != nil {
		writeConfiguratorError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildSelectionResultPayload(result))
}

type applySelectionRequest struct {
	State  selectionPayload `json:"state"`
	Action string           `json:"action"`
	ItemID string           `json:"itemId"`
	Delta  int              `json:"delta"`
}

func (h *ConfiguratorHandlers) applySelection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(ctx, w) {
		return
	}
	var req applySelectionRequest
	if err := httpx.DecodeJSON(w, r, &req, maxConfiguratorBodySize); err != nil {
		httpx.WriteError(ctx, w, httpx.BodyError(err))
		return
	}
	result, err := h.configurator.Apply(ctx, services.ApplySelectionCommand{
		State:  req.State.state(),
		Action: services.SelectionAction(req.Action),
		ItemID: req.ItemID,
		Delta:  req.Delta,
	})
	if err != nil {
		writeConfiguratorError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildSelectionResultPayload(result))
}

type priceSelectionRequest struct {
	State selectionPayload `json:"state"`
}

func (h *ConfiguratorHandlers) priceSelection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(ctx, w) {
		return
	}
	var req priceSelectionRequest
	if err := httpx.DecodeJSON(w, r, &req, maxConfiguratorBodySize); err != nil {
		httpx.WriteError(ctx, w, httpx.BodyError(err))
		return
	}
	result, err := h.configurator.Price(ctx, req.State.state())
	if err != nil {
		writeConfiguratorError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildSelectionResultPayload(result))
}

type submitQuoteRequest struct {
	State   selectionPayload    `json:"state"`
	Contact quoteContactPayload `json:"contact"`
}

type submitQuoteResponse struct {
	Quote quotePayload `json:"quote"`
}

func (h *ConfiguratorHandlers) submitQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(ctx, w) {
		return
	}
	var req submitQuoteRequest
	if err := httpx.DecodeJSON(w, r, &req, maxConfiguratorBodySize); err != nil {
		httpx.WriteError(ctx, w, httpx.BodyError(err))
		return
	}
	quote, err := h.configurator.SubmitQuote(ctx, services.SubmitQuoteCommand{
		State: req.State.state(),
		Contact: services.QuoteContact{
			Name:    req.Contact.Name,
			Email:   req.Contact.Email,
			Phone:   req.Contact.Phone,
			Company: req.Contact.Company,
			Message: req.Contact.Message,
		},
	})
	if err != nil {
		writeConfiguratorError(ctx, w, err)
		return
	}
	payload := buildQuotePayload(quote)
	// visitors do not get their contact details echoed back
	payload.Contact = nil
	writeJSONResponse(w, http.StatusCreated, submitQuoteResponse{Quote: payload})
}

func (h *ConfiguratorHandlers) available(ctx context.Context, w http.ResponseWriter) bool {
	if h == nil || h.configurator == nil {
		httpx.WriteError(ctx, w, httpx.NewError("configurator_unavailable", "configurator service unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}

type selectionPayload struct {
	SelectedIDs []string `json:"selectedIds"`
	PageCount   int      `json:"pageCount"`
}

func (p selectionPayload) state() services.SelectionState {
	return services.SelectionState{SelectedIDs: p.SelectedIDs, PageCount: p.PageCount}
}

func buildSelectionPayload(state services.SelectionState) selectionPayload {
	ids := state.SelectedIDs
	if ids == nil {
		ids = []string{}
	}
	return selectionPayload{SelectedIDs: ids, PageCount: state.PageCount}
}

type priceLinePayload struct {
	ItemID   string `json:"itemId"`
	Category string `json:"category"`
	Name     string `json:"name"`
	Amount   int64  `json:"amount"`
}

type extraPagesPayload struct {
	Pages     int   `json:"pages"`
	UnitPrice int64 `json:"unitPrice"`
	Amount    int64 `json:"amount"`
}

type breakdownPayload struct {
	Currency   string             `json:"currency"`
	Items      []priceLinePayload `json:"items"`
	ExtraPages extraPagesPayload  `json:"extraPages"`
	Subtotal   int64              `json:"subtotal"`
	Total      int64              `json:"total"`
}

func buildBreakdownPayload(b services.PriceBreakdown) breakdownPayload {
	items := make([]priceLinePayload, 0, len(b.Items))
	for _, line := range b.Items {
		items = append(items, priceLinePayload{
			ItemID:   line.ItemID,
			Category: line.Category,
			Name:     line.Name,
			Amount:   line.Amount,
		})
	}
	return breakdownPayload{
		Currency: b.Currency,
		Items:    items,
		ExtraPages: extraPagesPayload{
			Pages:     b.ExtraPages.Pages,
			UnitPrice: b.ExtraPages.UnitPrice,
			Amount:    b.ExtraPages.Amount,
		},
		Subtotal: b.Subtotal,
		Total:    b.Total,
	}
}

type selectionResultPayload struct {
	State     selectionPayload `json:"state"`
	Breakdown breakdownPayload `json:"breakdown"`
	// PageCountPinned tells the UI to disable the page stepper.
	PageCountPinned bool `json:"pageCountPinned"`
}

func buildSelectionResultPayload(result services.SelectionResult) selectionResultPayload {
	return selectionResultPayload{
		State:           buildSelectionPayload(result.State),
		Breakdown:       buildBreakdownPayload(result.Breakdown),
		PageCountPinned: result.Pinned,
	}
}

type catalogItemPayload struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       int64  `json:"price"`
	Recommended bool   `json:"recommended"`
}

type catalogCategoryPayload struct {
	Name  string               `json:"name"`
	Arity string               `json:"arity"`
	Items []catalogItemPayload `json:"items"`
}

type catalogPayload struct {
	Currency           string                   `json:"currency"`
	MinPageCount       int                      `json:"minPageCount"`
	ExtraPageUnitPrice int64                    `json:"extraPageUnitPrice"`
	SinglePageItemID   string                   `json:"singlePageItemId,omitempty"`
	Categories         []catalogCategoryPayload `json:"categories"`
	Defaults           []string                 `json:"defaults"`
}

func buildCatalogPayload(view services.CatalogView) catalogPayload {
	categories := make([]catalogCategoryPayload, 0, len(view.Categories))
	for _, category := range view.Categories {
		items := make([]catalogItemPayload, 0, len(category.Items))
		for _, item := range category.Items {
			items = append(items, catalogItemPayload{
				ID:          item.ID,
				Category:    item.Category,
				Name:        item.Name,
				Description: item.Description,
				Price:       item.Price,
				Recommended: item.Recommended,
			})
		}
		categories = append(categories, catalogCategoryPayload{Name: category.Name, Arity: category.Arity, Items: items})
	}
	defaults := view.Defaults
	if defaults == nil {
		defaults = []string{}
	}
	return catalogPayload{
		Currency:           view.Currency,
		MinPageCount:       view.MinPageCount,
		ExtraPageUnitPrice: view.ExtraPageUnitPrice,
		SinglePageItemID:   view.SinglePageItemID,
		Categories:         categories,
		Defaults:           defaults,
	}
}

type quoteContactPayload struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Company string `json:"company,omitempty"`
	Message string `json:"message,omitempty"`
}

type quotePayload struct {
	ID        string               `json:"id"`
	Status    string               `json:"status"`
	State     selectionPayload     `json:"state"`
	Breakdown breakdownPayload     `json:"breakdown"`
	Contact   *quoteContactPayload `json:"contact,omitempty"`
	CreatedAt string               `json:"createdAt"`
}

func buildQuotePayload(quote services.Quote) quotePayload {
	return quotePayload{
		ID:        quote.ID,
		Status:    string(quote.Status),
		State:     buildSelectionPayload(quote.Selection),
		Breakdown: buildBreakdownPayload(quote.Breakdown),
		Contact: &quoteContactPayload{
			Name:    quote.Contact.Name,
			Email:   quote.Contact.Email,
			Phone:   quote.Contact.Phone,
			Company: quote.Contact.Company,
			Message: quote.Contact.Message,
		},
		CreatedAt: formatTime(quote.CreatedAt),
	}
}

func writeConfiguratorError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrConfiguratorInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrConfiguratorItemNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("item_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrConfiguratorQuotesDisabled):
		httpx.WriteError(ctx, w, httpx.NewError("quotes_disabled", "quote requests are not accepted right now", http.StatusServiceUnavailable))
	case errors.Is(err, services.ErrConfiguratorRepositoryMissing), isRepositoryUnavailable(err):
		httpx.WriteError(ctx, w, httpx.NewError("configurator_unavailable", "quote storage unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("configurator_error", "failed to process configurator request", http.StatusInternalServerError))
	}
}
