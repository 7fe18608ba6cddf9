package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	domain "github.com/mrpixelvns-oss/vntech-sub000/internal/domain"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/repositories"
)

// PageSEORepository keeps page records in process memory.
type PageSEORepository struct {
	mu    sync.RWMutex
	pages map[string]domain.PageSEO
	now   func() time.Time
}

var _ repositories.PageSEORepository = (*PageSEORepository)(nil)

// NewPageSEORepository returns an empty repository stamping writes with clock (time.Now when nil).
func NewPageSEORepository(clock func() time.Time) *PageSEORepository {
	if clock == nil {
		clock = time.Now
	}
	return &PageSEORepository{
		pages: make(map[string]domain.PageSEO),
		now:   func() time.Time { return clock().UTC() },
	}
}

func (r *PageSEORepository) List(ctx context.Context) ([]domain.PageSEO, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	pages := make([]domain.PageSEO, 0, len(r.pages))
	for _, page := range r.pages {
		pages = append(pages, page)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Path < pages[j].Path })
	return pages, nil
}

func (r *PageSEORepository) ListPaths(ctx context.Context) ([]string, error) {
	pages, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(pages))
	for i, page := range pages {
		paths[i] = page.Path
	}
	return paths, nil
}

func (r *PageSEORepository) Get(ctx context.Context, path string) (domain.PageSEO, error) {
	if err := ctx.Err(); err != nil {
		return domain.PageSEO{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	page, ok := r.pages[path]
	if !ok {
		return domain.PageSEO{}, repositories.NewStoreError("pageSeo.get", repositories.ErrorNotFound, fmt.Sprintf("page %q not found", path), nil)
	}
	return page, nil
}

func (r *PageSEORepository) Create(ctx context.Context, page domain.PageSEO) (domain.PageSEO, error) {
	if err := ctx.Err(); err != nil {
		return domain.PageSEO{}, err
	}
	if strings.TrimSpace(page.Path) == "" {
		return domain.PageSEO{}, repositories.NewStoreError("pageSeo.create", repositories.ErrorInvalidInput, "path is required", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pages[page.Path]; exists {
		return domain.PageSEO{}, repositories.NewStoreError("pageSeo.create", repositories.ErrorConflict, fmt.Sprintf("page %q already exists", page.Path), nil)
	}
	now := r.now()
	if page.CreatedAt.IsZero() {
		page.CreatedAt = now
	}
	page.UpdatedAt = now
	r.pages[page.Path] = page
	return page, nil
}

func (r *PageSEORepository) Update(ctx context.Context, page domain.PageSEO, expectedUpdatedAt *time.Time) (domain.PageSEO, error) {
	if err := ctx.Err(); err != nil {
		return domain.PageSEO{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.pages[page.Path]
	if !ok {
		return domain.PageSEO{}, repositories.NewStoreError("pageSeo.update", repositories.ErrorNotFound, fmt.Sprintf("page %q not found", page.Path), nil)
	}
	if expectedUpdatedAt != nil && !current.UpdatedAt.Equal(*expectedUpdatedAt) {
		return domain.PageSEO{}, repositories.NewStoreError("pageSeo.update", repositories.ErrorConflict, fmt.Sprintf("page %q was modified concurrently", page.Path), nil)
	}
	page.CreatedAt = current.CreatedAt
	page.UpdatedAt = r.now()
	// Two saves inside one clock tick must still be distinguishable by expectedUpdatedAt.
	if !page.UpdatedAt.After(current.UpdatedAt) {
		page.UpdatedAt = current.UpdatedAt.Add(time.Microsecond)
	}
	r.pages[page.Path] = page
	return page, nil
}
