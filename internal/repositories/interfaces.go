package repositories

import (
	"context"
	"time"

	domain "github.com/mrpixelvns-oss/vntech-sub000/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Pages() PageSEORepository
	Quotes() QuoteRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// PageSEORepository persists the editable search metadata of public routes, keyed by path.
type PageSEORepository interface {
	// List returns every stored record ordered by path.
	List(ctx context.Context) ([]domain.PageSEO, error)
	// ListPaths returns the stored paths only.
	ListPaths(ctx context.Context) ([]string, error)
	Get(ctx context.Context, path string) (domain.PageSEO, error)
	// Create inserts page and reports a conflict when the path is already stored.
	Create(ctx context.Context, page domain.PageSEO) (domain.PageSEO, error)
	// Update replaces the stored record. When expectedUpdatedAt is set and differs from the
	// stored value the write is rejected with a conflict.
	Update(ctx context.Context, page domain.PageSEO, expectedUpdatedAt *time.Time) (domain.PageSEO, error)
}

// QuoteRepository stores quote requests submitted from the configurator.
type QuoteRepository interface {
	Insert(ctx context.Context, quote domain.Quote) error
	// List returns quotes newest first.
	List(ctx context.Context, filter QuoteListFilter) (domain.CursorPage[domain.Quote], error)
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// QuoteListFilter narrows quote listings for the console.
type QuoteListFilter struct {
	Status     []domain.QuoteStatus
	Pagination domain.Pagination
}
