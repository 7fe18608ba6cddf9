package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// CatalogItem is a purchasable option offered by the website configurator.
type CatalogItem struct {
	ID          string
	Category    string
	Name        string
	Description string
	Price       int64
	Recommended bool
}

// SelectionState is the customer's current pick of catalog items plus the requested page count.
// SelectedIDs keeps the order in which items were added.
type SelectionState struct {
	SelectedIDs []string
	PageCount   int
}

// Contains reports whether id is part of the selection.
func (s SelectionState) Contains(id string) bool {
	for _, selected := range s.SelectedIDs {
		if selected == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can derive new states without aliasing.
func (s SelectionState) Clone() SelectionState {
	ids := make([]string, len(s.SelectedIDs))
	copy(ids, s.SelectedIDs)
	return SelectionState{SelectedIDs: ids, PageCount: s.PageCount}
}

// PageSEO holds the editable search metadata of a single public route.
type PageSEO struct {
	Path          string
	Title         string
	Description   string
	FocusKeyword  string
	OGImage       string
	NoIndex       bool
	CanonicalURL  string
	IsCornerstone bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PageReport pairs a stored record with its computed score.
type PageReport struct {
	Page   PageSEO
	Score  int
	Rating string
	Issues []string
}

// SiteHealth summarises the score of every stored page.
type SiteHealth struct {
	Score       int
	Rating      string
	PageCount   int
	GeneratedAt time.Time
}

// SEOAudit is the exported snapshot of all page reports. Location is the storage URI of the
// export; DownloadURL is a short-lived signed link when signing is configured.
type SEOAudit struct {
	ID                string
	Health            SiteHealth
	Pages             []PageReport
	GeneratedAt       time.Time
	Location          string
	DownloadURL       string
	DownloadExpiresAt time.Time
}

// QuoteStatus tracks the lifecycle of a submitted configurator quote.
type QuoteStatus string

const (
	// QuoteStatusNew marks a quote nobody has followed up yet.
	QuoteStatusNew QuoteStatus = "new"
	// QuoteStatusContacted marks a quote a sales contact has answered.
	QuoteStatusContacted QuoteStatus = "contacted"
)

// QuoteContact carries the details a visitor leaves when requesting a quote.
type QuoteContact struct {
	Name    string
	Email   string
	Phone   string
	Company string
	Message string
}

// Quote is a priced selection a visitor submitted from the configurator.
type Quote struct {
	ID        string
	Selection SelectionState
	Breakdown PriceBreakdown
	Contact   QuoteContact
	Status    QuoteStatus
	CreatedAt time.Time
}
