package services

import (
	"context"
	"time"

	domain "github.com/mrpixelvns-oss/vntech-sub000/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	CatalogItem        = domain.CatalogItem
	SelectionState     = domain.SelectionState
	PriceBreakdown     = domain.PriceBreakdown
	Quote              = domain.Quote
	QuoteContact       = domain.QuoteContact
	QuoteStatus        = domain.QuoteStatus
	PageSEO            = domain.PageSEO
	PageReport         = domain.PageReport
	SiteHealth         = domain.SiteHealth
	SEOAudit           = domain.SEOAudit
	SystemHealthReport = domain.SystemHealthReport
)

// ConfiguratorService backs the public website configurator: browsing the catalog, building a
// selection, pricing it and submitting it as a quote request.
type ConfiguratorService interface {
	Catalog(ctx context.Context) (CatalogView, error)
	DefaultSelection(ctx context.Context) (SelectionResult, error)
	Apply(ctx context.Context, cmd ApplySelectionCommand) (SelectionResult, error)
	Price(ctx context.Context, state SelectionState) (SelectionResult, error)
	SubmitQuote(ctx context.Context, cmd SubmitQuoteCommand) (Quote, error)
	ListQuotes(ctx context.Context, filter QuoteListFilter) (domain.CursorPage[Quote], error)
}

// SEOService backs the page SEO console.
type SEOService interface {
	ListPages(ctx context.Context) ([]PageReport, error)
	GetPage(ctx context.Context, path string) (PageReport, error)
	UpdatePage(ctx context.Context, cmd UpdatePageCommand) (PageReport, error)
	SiteHealth(ctx context.Context) (SiteHealth, error)
	SyncRoutes(ctx context.Context, cmd SyncRoutesCommand) (SyncRoutesResult, error)
	ImportLiveMeta(ctx context.Context, cmd ImportLiveMetaCommand) (PageReport, error)
	ExportAudit(ctx context.Context, cmd ExportAuditCommand) (SEOAudit, error)
}

// SystemService reports service health.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// CatalogView is the catalog as the configurator renders it: categories in display order with
// their items and selection rule.
type CatalogView struct {
	Currency           string
	MinPageCount       int
	ExtraPageUnitPrice int64
	SinglePageItemID   string
	Categories         []CatalogCategory
	Defaults           []string
}

type CatalogCategory struct {
	Name  string
	Arity string
	Items []CatalogItem
}

// SelectionResult is a selection together with its price.
type SelectionResult struct {
	State     SelectionState
	Breakdown PriceBreakdown
	Pinned    bool
}

// SelectionAction names the edit ApplySelectionCommand performs.
type SelectionAction string

const (
	SelectionActionToggle SelectionAction = "toggle"
	SelectionActionPages  SelectionAction = "pages"
)

type ApplySelectionCommand struct {
	State  SelectionState
	Action SelectionAction
	ItemID string
	Delta  int
}

type SubmitQuoteCommand struct {
	State   SelectionState
	Contact QuoteContact
}

type QuoteListFilter struct {
	Status     []QuoteStatus
	Pagination Pagination
}

// QuotePublisher announces submitted quotes to downstream consumers (sales CRM sync, mail).
type QuotePublisher interface {
	PublishQuoteSubmitted(ctx context.Context, event QuoteSubmittedEvent) (string, error)
}

// QuoteSubmittedEvent is the message published for every accepted quote.
type QuoteSubmittedEvent struct {
	QuoteID      string    `json:"quoteId"`
	Currency     string    `json:"currency"`
	Total        int64     `json:"total"`
	ItemIDs      []string  `json:"itemIds"`
	PageCount    int       `json:"pageCount"`
	ContactName  string    `json:"contactName"`
	ContactEmail string    `json:"contactEmail"`
	SubmittedAt  time.Time `json:"submittedAt"`
}

// UpdatePageCommand replaces the editable fields of a page. ExpectedUpdatedAt enables
// optimistic concurrency; nil means last write wins.
type UpdatePageCommand struct {
	Path              string
	Title             string
	Description       string
	FocusKeyword      string
	OGImage           string
	NoIndex           bool
	CanonicalURL      string
	IsCornerstone     bool
	ExpectedUpdatedAt *time.Time
	ActorID           string
}

// SyncTrigger records who started a reconciliation run.
type SyncTrigger string

const (
	SyncTriggerManual    SyncTrigger = "manual"
	SyncTriggerScheduler SyncTrigger = "scheduler"
)

type SyncRoutesCommand struct {
	Trigger SyncTrigger
	ActorID string
}

// SyncRoutesResult lists the paths created by a run and the ones another writer created first.
type SyncRoutesResult struct {
	Created []PageReport
	Skipped []string
}

type ImportLiveMetaCommand struct {
	Path    string
	ActorID string
}

type ExportAuditCommand struct {
	ActorID string
}

// AuditWriter stores exported SEO audits.
type AuditWriter interface {
	WriteAudit(ctx context.Context, audit SEOAudit) (StoredAudit, error)
}

// StoredAudit tells where an exported audit landed.
type StoredAudit struct {
	Location    string
	DownloadURL string
	ExpiresAt   time.Time
}
