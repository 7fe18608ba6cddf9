package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/observability"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/textutil"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/repositories"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/seo"
)

const (
	defaultFetchTimeout = 10 * time.Second
	maxLivePageBytes    = 2 << 20
	maxKeywordRunes     = 80
	liveMetaUserAgent   = "site-seo-console/1.0"
)

var (
	// ErrSEOInvalidInput signals a malformed path or field value.
	ErrSEOInvalidInput = errors.New("seo: invalid input")
	// ErrSEOPageNotFound is returned when no record exists for a path.
	ErrSEOPageNotFound = errors.New("seo: page not found")
	// ErrSEOConflict is returned when a save raced with another editor.
	ErrSEOConflict = errors.New("seo: page was modified by someone else")
	// ErrSEORepositoryMissing signals that no page repository was configured.
	ErrSEORepositoryMissing = errors.New("seo: page repository is not configured")
	// ErrSEOLiveImportDisabled is returned by ImportLiveMeta when no site base URL is configured.
	ErrSEOLiveImportDisabled = errors.New("seo: live meta import is not configured")
	// ErrSEOFetchFailed wraps failures reading the rendered page.
	ErrSEOFetchFailed = errors.New("seo: fetch live page failed")
	// ErrSEOExportDisabled is returned by ExportAudit when no audit writer is configured.
	ErrSEOExportDisabled = errors.New("seo: audit export is not configured")
)

// SEOServiceDeps groups constructor parameters for the SEO service.
type SEOServiceDeps struct {
	Pages        repositories.PageSEORepository
	Routes       []string
	SiteBaseURL  string
	HTTPClient   *http.Client
	FetchTimeout time.Duration
	Audits       AuditWriter
	Metrics      *observability.Metrics
	Clock        func() time.Time
	IDGenerator  func() string
	Logger       func(context.Context, string, map[string]any)
}

type seoService struct {
	pages        repositories.PageSEORepository
	routes       []string
	siteBase     *url.URL
	client       *http.Client
	fetchTimeout time.Duration
	audits       AuditWriter
	metrics      *observability.Metrics
	clock        func() time.Time
	newID        func() string
	logger       func(context.Context, string, map[string]any)
}

var _ SEOService = (*seoService)(nil)

// NewSEOService constructs the SEO console service. Routes defaults to seo.DefaultRouteCatalog.
func NewSEOService(deps SEOServiceDeps) (SEOService, error) {
	if deps.Pages == nil {
		return nil, ErrSEORepositoryMissing
	}

	var base *url.URL
	if raw := strings.TrimSpace(deps.SiteBaseURL); raw != "" {
		parsed, err := url.Parse(strings.TrimRight(raw, "/"))
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return nil, fmt.Errorf("seo service: site base url %q must be an absolute http(s) url", raw)
		}
		base = parsed
	}

	routes := deps.Routes
	if len(routes) == 0 {
		routes = seo.DefaultRouteCatalog
	}
	client := deps.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	timeout := deps.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &seoService{
		pages:        deps.Pages,
		routes:       append([]string(nil), routes...),
		siteBase:     base,
		client:       client,
		fetchTimeout: timeout,
		audits:       deps.Audits,
		metrics:      deps.Metrics,
		clock:        func() time.Time { return clock().UTC() },
		newID:        newID,
		logger:       logger,
	}, nil
}

func (s *seoService) ListPages(ctx context.Context) ([]PageReport, error) {
	pages, err := s.pages.List(ctx)
	if err != nil {
		return nil, err
	}
	reports := make([]PageReport, 0, len(pages))
	for _, page := range pages {
		reports = append(reports, report(page))
	}
	return reports, nil
}

func (s *seoService) GetPage(ctx context.Context, path string) (PageReport, error) {
	page, err := s.load(ctx, path)
	if err != nil {
		return PageReport{}, err
	}
	return report(page), nil
}

func (s *seoService) UpdatePage(ctx context.Context, cmd UpdatePageCommand) (PageReport, error) {
	current, err := s.load(ctx, cmd.Path)
	if err != nil {
		return PageReport{}, err
	}

	next := current
	next.Title = textutil.PlainText(cmd.Title)
	next.Description = textutil.PlainText(cmd.Description)
	next.FocusKeyword = textutil.Truncate(textutil.PlainText(cmd.FocusKeyword), maxKeywordRunes)
	next.NoIndex = cmd.NoIndex
	next.IsCornerstone = cmd.IsCornerstone
	if next.OGImage, err = absoluteURL("ogImage", cmd.OGImage); err != nil {
		return PageReport{}, err
	}
	if next.CanonicalURL, err = absoluteURL("canonicalUrl", cmd.CanonicalURL); err != nil {
		return PageReport{}, err
	}

	saved, err := s.save(ctx, next, cmd.ExpectedUpdatedAt)
	if err != nil {
		return PageReport{}, err
	}
	result := report(saved)
	s.metrics.PageScored(ctx, saved.Path, result.Score)
	s.logger(ctx, "seo.page.updated", map[string]any{
		"path":  saved.Path,
		"score": result.Score,
		"actor": cmd.ActorID,
	})
	return result, nil
}

func (s *seoService) SiteHealth(ctx context.Context) (SiteHealth, error) {
	pages, err := s.pages.List(ctx)
	if err != nil {
		return SiteHealth{}, err
	}
	score := seo.AggregateHealth(pages)
	s.metrics.SiteHealthComputed(ctx, score)
	return SiteHealth{
		Score:       score,
		Rating:      seo.Rate(score),
		PageCount:   len(pages),
		GeneratedAt: s.clock(),
	}, nil
}

// SyncRoutes creates a default record for every catalog route without one. A path created by
// another writer between listing and inserting is reported as skipped, never overwritten.
func (s *seoService) SyncRoutes(ctx context.Context, cmd SyncRoutesCommand) (SyncRoutesResult, error) {
	trigger := cmd.Trigger
	if trigger == "" {
		trigger = SyncTriggerManual
	}
	persisted, err := s.pages.ListPaths(ctx)
	if err != nil {
		return SyncRoutesResult{}, err
	}

	result := SyncRoutesResult{Created: []PageReport{}, Skipped: []string{}}
	for _, page := range seo.Reconcile(s.routes, persisted) {
		created, err := s.pages.Create(ctx, page)
		switch {
		case err == nil:
			result.Created = append(result.Created, report(created))
		case isRepositoryConflict(err):
			result.Skipped = append(result.Skipped, page.Path)
			s.logger(ctx, "seo.page.create.skipped", map[string]any{"path": page.Path})
		default:
			s.metrics.PagesCreated(ctx, string(trigger), len(result.Created))
			s.logger(ctx, "seo.sync.failed", map[string]any{"path": page.Path, "created": len(result.Created), "error": err})
			return result, err
		}
	}

	s.metrics.PagesCreated(ctx, string(trigger), len(result.Created))
	s.logger(ctx, "seo.sync.completed", map[string]any{
		"trigger": string(trigger),
		"actor":   cmd.ActorID,
		"created": len(result.Created),
		"skipped": len(result.Skipped),
	})
	return result, nil
}

// ImportLiveMeta reads the rendered page from the public site and fills the fields the stored
// record leaves empty.
func (s *seoService) ImportLiveMeta(ctx context.Context, cmd ImportLiveMetaCommand) (PageReport, error) {
	if s.siteBase == nil {
		return PageReport{}, ErrSEOLiveImportDisabled
	}
	current, err := s.load(ctx, cmd.Path)
	if err != nil {
		return PageReport{}, err
	}

	meta, err := s.fetchMeta(ctx, current.Path)
	if err != nil {
		s.logger(ctx, "seo.import.failed", map[string]any{"path": current.Path, "error": err})
		return PageReport{}, err
	}

	merged := seo.MergeMeta(current, seo.Meta{
		Title:        textutil.PlainText(meta.Title),
		Description:  textutil.PlainText(meta.Description),
		OGImage:      keepAbsolute(meta.OGImage),
		CanonicalURL: keepAbsolute(meta.CanonicalURL),
		NoIndex:      meta.NoIndex,
	})
	if merged == current {
		return report(current), nil
	}

	expected := current.UpdatedAt
	saved, err := s.save(ctx, merged, &expected)
	if err != nil {
		return PageReport{}, err
	}
	result := report(saved)
	s.metrics.PageScored(ctx, saved.Path, result.Score)
	s.logger(ctx, "seo.import.completed", map[string]any{"path": saved.Path, "score": result.Score, "actor": cmd.ActorID})
	return result, nil
}

func (s *seoService) ExportAudit(ctx context.Context, cmd ExportAuditCommand) (SEOAudit, error) {
	if s.audits == nil {
		return SEOAudit{}, ErrSEOExportDisabled
	}
	reports, err := s.ListPages(ctx)
	if err != nil {
		return SEOAudit{}, err
	}

	now := s.clock()
	pages := make([]PageSEO, len(reports))
	for i, r := range reports {
		pages[i] = r.Page
	}
	score := seo.AggregateHealth(pages)
	audit := SEOAudit{
		ID:          s.newID(),
		Health:      SiteHealth{Score: score, Rating: seo.Rate(score), PageCount: len(pages), GeneratedAt: now},
		Pages:       reports,
		GeneratedAt: now,
	}

	stored, err := s.audits.WriteAudit(ctx, audit)
	if err != nil {
		s.logger(ctx, "seo.audit.export.failed", map[string]any{"auditId": audit.ID, "error": err})
		return SEOAudit{}, err
	}
	audit.Location = stored.Location
	audit.DownloadURL = stored.DownloadURL
	audit.DownloadExpiresAt = stored.ExpiresAt
	s.logger(ctx, "seo.audit.exported", map[string]any{
		"auditId":  audit.ID,
		"location": stored.Location,
		"pages":    len(reports),
		"score":    score,
		"actor":    cmd.ActorID,
	})
	return audit, nil
}

func (s *seoService) load(ctx context.Context, rawPath string) (PageSEO, error) {
	path, err := cleanPath(rawPath)
	if err != nil {
		return PageSEO{}, err
	}
	page, err := s.pages.Get(ctx, path)
	if err != nil {
		if isRepositoryNotFound(err) {
			return PageSEO{}, fmt.Errorf("%w: %s", ErrSEOPageNotFound, path)
		}
		return PageSEO{}, err
	}
	return page, nil
}

func (s *seoService) save(ctx context.Context, page PageSEO, expected *time.Time) (PageSEO, error) {
	saved, err := s.pages.Update(ctx, page, expected)
	switch {
	case err == nil:
		return saved, nil
	case isRepositoryConflict(err):
		return PageSEO{}, fmt.Errorf("%w: %s", ErrSEOConflict, page.Path)
	case isRepositoryNotFound(err):
		return PageSEO{}, fmt.Errorf("%w: %s", ErrSEOPageNotFound, page.Path)
	default:
		return PageSEO{}, err
	}
}

func (s *seoService) fetchMeta(ctx context.Context, path string) (seo.Meta, error) {
	target := s.siteBase.JoinPath(path)
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return seo.Meta{}, fmt.Errorf("%w: %v", ErrSEOFetchFailed, err)
	}
	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", liveMetaUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return seo.Meta{}, fmt.Errorf("%w: %v", ErrSEOFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return seo.Meta{}, fmt.Errorf("%w: %s returned %d", ErrSEOFetchFailed, target, resp.StatusCode)
	}
	if mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mediaType != "" && mediaType != "text/html" {
		return seo.Meta{}, fmt.Errorf("%w: %s is %s, not html", ErrSEOFetchFailed, target, mediaType)
	}
	meta, err := seo.ExtractMeta(io.LimitReader(resp.Body, maxLivePageBytes))
	if err != nil {
		return seo.Meta{}, fmt.Errorf("%w: %v", ErrSEOFetchFailed, err)
	}
	return meta, nil
}

func report(page PageSEO) PageReport {
	result := seo.Score(page)
	return PageReport{
		Page:   page,
		Score:  result.Score,
		Rating: seo.Rate(result.Score),
		Issues: result.Issues,
	}
}

func cleanPath(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: path is required", ErrSEOInvalidInput)
	}
	if strings.ContainsAny(raw, "?#") || strings.Contains(raw, "://") {
		return "", fmt.Errorf("%w: path %q must not contain a scheme, query or fragment", ErrSEOInvalidInput, raw)
	}
	return seo.NormalizePath(raw), nil
}

func absoluteURL(field, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", fmt.Errorf("%w: %s must be an absolute http(s) url", ErrSEOInvalidInput, field)
	}
	return parsed.String(), nil
}

func keepAbsolute(raw string) string {
	value, err := absoluteURL("", raw)
	if err != nil {
		return ""
	}
	return value
}
