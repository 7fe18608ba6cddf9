package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/auth"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/httpx"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/services"
)

const maxSEOBodySize = 16 * 1024

// SEOHandlers serves the page SEO console and the scheduled route sync.
type SEOHandlers struct {
	authn *auth.Authenticator
	seo   services.SEOService
}

// NewSEOHandlers constructs SEO handlers. A nil authenticator rejects every console request.
func NewSEOHandlers(authn *auth.Authenticator, seo services.SEOService) *SEOHandlers {
	return &SEOHandlers{authn: authn, seo: seo}
}

// Routes registers the console endpoints on the admin group for editors and admins.
func (h *SEOHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Group(func(g chi.Router) {
		g.Use(h.authn.RequireFirebaseAuth(auth.RoleEditor, auth.RoleAdmin))
		g.Get("/seo/pages", h.listPages)
		g.Get("/seo/pages/detail", h.getPage)
		g.Put("/seo/pages/detail", h.updatePage)
		g.Post("/seo/pages/detail:import", h.importLiveMeta)
		g.Post("/seo/pages:sync", h.syncRoutes)
		g.Get("/seo/health", h.siteHealth)
		g.Post("/seo/audits", h.exportAudit)
	})
}

// InternalRoutes registers the scheduler entry point. The internal group carries OIDC verification.
func (h *SEOHandlers) InternalRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/seo/pages:sync", h.scheduledSync)
}

type pagePayload struct {
	Path          string   `json:"path"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	FocusKeyword  string   `json:"focusKeyword"`
	OGImage       string   `json:"ogImage"`
	NoIndex       bool     `json:"noIndex"`
	CanonicalURL  string   `json:"canonicalUrl"`
	IsCornerstone bool     `json:"isCornerstone"`
	CreatedAt     string   `json:"createdAt,omitempty"`
	UpdatedAt     string   `json:"updatedAt,omitempty"`
	Score         int      `json:"score"`
	Rating        string   `json:"rating"`
	Issues        []string `json:"issues"`
}

func buildPagePayload(report services.PageReport) pagePayload {
	issues := report.Issues
	if issues == nil {
		issues = []string{}
	}
	page := report.Page
	return pagePayload{
		Path:          page.Path,
		Title:         page.Title,
		Description:   page.Description,
		FocusKeyword:  page.FocusKeyword,
		OGImage:       page.OGImage,
		NoIndex:       page.NoIndex,
		CanonicalURL:  page.CanonicalURL,
		IsCornerstone: page.IsCornerstone,
		CreatedAt:     formatTime(page.CreatedAt),
		UpdatedAt:     formatTime(page.UpdatedAt),
		Score:         report.Score,
		Rating:        report.Rating,
		Issues:        issues,
	}
}

func buildPageList(reports []services.PageReport) []pagePayload {
	out := make([]pagePayload, 0, len(reports))
	for _, report := range reports {
		out = append(out, buildPagePayload(report))
	}
	return out
}

type siteHealthPayload struct {
	Score       int    `json:"score"`
	Rating      string `json:"rating"`
	PageCount   int    `json:"pageCount"`
	GeneratedAt string `json:"generatedAt,omitempty"`
}

func buildSiteHealthPayload(health services.SiteHealth) siteHealthPayload {
	return siteHealthPayload{
		Score:       health.Score,
		Rating:      health.Rating,
		PageCount:   health.PageCount,
		GeneratedAt: formatTime(health.GeneratedAt),
	}
}

type pageListResponse struct {
	Items []pagePayload `json:"items"`
}

func (h *SEOHandlers) listPages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(ctx, w) {
		return
	}
	reports, err := h.seo.ListPages(ctx)
	if err != nil {
		writeSEOError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, pageListResponse{Items: buildPageList(reports)})
}

type pageResponse struct {
	Page pagePayload `json:"page"`
}

func (h *SEOHandlers) getPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(ctx, w) {
		return
	}
	path, ok := pathParam(ctx, w, r)
	if !ok {
		return
	}
	report, err := h.seo.GetPage(ctx, path)
	if err != nil {
		writeSEOError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, pageResponse{Page: buildPagePayload(report)})
}

type updatePageRequest struct {
	Title             string `json:"title"`
	Description       string `json:"description"`
	FocusKeyword      string `json:"focusKeyword"`
	OGImage           string `json:"ogImage"`
	NoIndex           bool   `json:"noIndex"`
	CanonicalURL      string `json:"canonicalUrl"`
	IsCornerstone     bool   `json:"isCornerstone"`
	ExpectedUpdatedAt string `json:"expectedUpdatedAt"`
}

func (h *SEOHandlers) updatePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(ctx, w) {
		return
	}
	actor, ok := consoleActor(ctx, w)
	if !ok {
		return
	}
	path, ok := pathParam(ctx, w, r)
	if !ok {
		return
	}
	var req updatePageRequest
	if err := httpx.DecodeJSON(w, r, &req, maxSEOBodySize); err != nil {
		httpx.WriteError(ctx, w, httpx.BodyError(err))
		return
	}

	cmd := services.UpdatePageCommand{
		Path:          path,
		Title:         req.Title,
		Description:   req.Description,
		FocusKeyword:  req.FocusKeyword,
		OGImage:       req.OGImage,
		NoIndex:       req.NoIndex,
		CanonicalURL:  req.CanonicalURL,
		IsCornerstone: req.IsCornerstone,
		ActorID:       actor,
	}
	if raw := strings.TrimSpace(req.ExpectedUpdatedAt); raw != "" {
		expected, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "expectedUpdatedAt must be an RFC 3339 timestamp", http.StatusBadRequest))
			return
		}
		cmd.ExpectedUpdatedAt = &expected
	}

	report, err := h.seo.UpdatePage(ctx, cmd)
	if err != nil {
		writeSEOError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, pageResponse{Page: buildPagePayload(report)})
}

func (h *SEOHandlers) importLiveMeta(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(ctx, w) {
		return
	}
	actor, ok := consoleActor(ctx, w)
	if !ok {
		return
	}
	path, ok := pathParam(ctx, w, r)
	if !ok {
		return
	}
	report, err := h.seo.ImportLiveMeta(ctx, services.ImportLiveMetaCommand{Path: path, ActorID: actor})
	if err != nil {
		writeSEOError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, pageResponse{Page: buildPagePayload(report)})
}

type syncRoutesResponse struct {
	Trigger string        `json:"trigger"`
	Created []pagePayload `json:"created"`
	Skipped []string      `json:"skipped"`
}

func (h *SEOHandlers) syncRoutes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(ctx, w) {
		return
	}
	actor, ok := consoleActor(ctx, w)
	if !ok {
		return
	}
	h.runSync(ctx, w, services.SyncRoutesCommand{Trigger: services.SyncTriggerManual, ActorID: actor})
}

func (h *SEOHandlers) scheduledSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(ctx, w) {
		return
	}
	actor := "scheduler"
	if identity, ok := auth.ServiceIdentityFromContext(ctx); ok {
		switch {
		case strings.TrimSpace(identity.Email) != "":
			actor = identity.Email
		case strings.TrimSpace(identity.Subject) != "":
			actor = identity.Subject
		}
	}
	h.runSync(ctx, w, services.SyncRoutesCommand{Trigger: services.SyncTriggerScheduler, ActorID: actor})
}

func (h *SEOHandlers) runSync(ctx context.Context, w http.ResponseWriter, cmd services.SyncRoutesCommand) {
	result, err := h.seo.SyncRoutes(ctx, cmd)
	if err != nil {
		writeSEOError(ctx, w, err)
		return
	}
	skipped := result.Skipped
	if skipped == nil {
		skipped = []string{}
	}
	writeJSONResponse(w, http.StatusOK, syncRoutesResponse{
		Trigger: string(cmd.Trigger),
		Created: buildPageList(result.Created),
		Skipped: skipped,
	})
}

func (h *SEOHandlers) siteHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(ctx, w) {
		return
	}
	health, err := h.seo.SiteHealth(ctx)
	if err != nil {
		writeSEOError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildSiteHealthPayload(health))
}

type auditPayload struct {
	ID                string            `json:"id"`
	GeneratedAt       string            `json:"generatedAt"`
	Location          string            `json:"location"`
	DownloadURL       string            `json:"downloadUrl,omitempty"`
	DownloadExpiresAt string            `json:"downloadExpiresAt,omitempty"`
	Health            siteHealthPayload `json:"health"`
	PageCount         int               `json:"pageCount"`
}

func (h *SEOHandlers) exportAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(ctx, w) {
		return
	}
	actor, ok := consoleActor(ctx, w)
	if !ok {
		return
	}
	audit, err := h.seo.ExportAudit(ctx, services.ExportAuditCommand{ActorID: actor})
	if err != nil {
		writeSEOError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, auditPayload{
		ID:                audit.ID,
		GeneratedAt:       formatTime(audit.GeneratedAt),
		Location:          audit.Location,
		DownloadURL:       audit.DownloadURL,
		DownloadExpiresAt: formatTime(audit.DownloadExpiresAt),
		Health:            buildSiteHealthPayload(audit.Health),
		PageCount:         len(audit.Pages),
	})
}

func (h *SEOHandlers) available(ctx context.Context, w http.ResponseWriter) bool {
	if h == nil || h.seo == nil {
		httpx.WriteError(ctx, w, httpx.NewError("seo_unavailable", "seo service unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}

func pathParam(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if path == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "path query parameter is required", http.StatusBadRequest))
		return "", false
	}
	return path, true
}

func writeSEOError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrSEOInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrSEOPageNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("page_not_found", "no SEO record for this path", http.StatusNotFound))
	case errors.Is(err, services.ErrSEOConflict):
		httpx.WriteError(ctx, w, httpx.NewError("page_conflict", "page was modified by someone else, reload and retry", http.StatusConflict))
	case errors.Is(err, services.ErrSEOFetchFailed):
		httpx.WriteError(ctx, w, httpx.NewError("live_fetch_failed", err.Error(), http.StatusBadGateway))
	case errors.Is(err, services.ErrSEOLiveImportDisabled):
		httpx.WriteError(ctx, w, httpx.NewError("live_import_unavailable", "live meta import is not configured", http.StatusServiceUnavailable))
	case errors.Is(err, services.ErrSEOExportDisabled):
		httpx.WriteError(ctx, w, httpx.NewError("audit_export_unavailable", "audit export is not configured", http.StatusServiceUnavailable))
	case errors.Is(err, services.ErrSEORepositoryMissing), isRepositoryUnavailable(err):
		httpx.WriteError(ctx, w, httpx.NewError("seo_unavailable", "page storage unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("seo_error", "failed to process seo request", http.StatusInternalServerError))
	}
}
