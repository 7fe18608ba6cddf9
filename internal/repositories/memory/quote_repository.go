package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	domain "github.com/mrpixelvns-oss/vntech-sub000/internal/domain"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/pagination"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/repositories"
)

// QuoteRepository keeps submitted quotes in process memory.
type QuoteRepository struct {
	mu     sync.RWMutex
	quotes map[string]domain.Quote
}

var _ repositories.QuoteRepository = (*QuoteRepository)(nil)

// NewQuoteRepository returns an empty quote repository.
func NewQuoteRepository() *QuoteRepository {
	return &QuoteRepository{quotes: make(map[string]domain.Quote)}
}

func (r *QuoteRepository) Insert(ctx context.Context, quote domain.Quote) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(quote.ID) == "" {
		return repositories.NewStoreError("quotes.insert", repositories.ErrorInvalidInput, "quote id is required", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.quotes[quote.ID]; exists {
		return repositories.NewStoreError("quotes.insert", repositories.ErrorConflict, fmt.Sprintf("quote %s already exists", quote.ID), nil)
	}
	quote.Selection = quote.Selection.Clone()
	r.quotes[quote.ID] = quote
	return nil
}

func (r *QuoteRepository) List(ctx context.Context, filter repositories.QuoteListFilter) (domain.CursorPage[domain.Quote], error) {
	if err := ctx.Err(); err != nil {
		return domain.CursorPage[domain.Quote]{}, err
	}
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Quote]{}, repositories.NewStoreError("quotes.list", repositories.ErrorInvalidInput, "invalid page token", err)
	}
	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}

	r.mu.RLock()
	matches := make([]domain.Quote, 0, len(r.quotes))
	for _, quote := range r.quotes {
		if len(filter.Status) > 0 && !slices.Contains(filter.Status, quote.Status) {
			continue
		}
		matches = append(matches, quote)
	}
	r.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool { return newerFirst(matches[i], matches[j]) })

	start := 0
	if !cursor.IsZero() {
		anchor := domain.Quote{ID: cursor.ID, CreatedAt: cursor.CreatedAt}
		start = sort.Search(len(matches), func(i int) bool { return newerFirst(anchor, matches[i]) })
	}

	end := min(start+pageSize, len(matches))
	page := domain.CursorPage[domain.Quote]{Items: append([]domain.Quote(nil), matches[start:end]...)}
	if end < len(matches) {
		last := matches[end-1]
		token, err := pagination.EncodeToken(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return domain.CursorPage[domain.Quote]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

// newerFirst orders quotes by creation time descending with the id as a tie breaker.
func newerFirst(a, b domain.Quote) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
