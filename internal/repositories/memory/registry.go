package memory

import (
	"context"
	"time"

	"github.com/mrpixelvns-oss/vntech-sub000/internal/repositories"
)

// Registry bundles in-memory repositories for local development and tests.
type Registry struct {
	pages  *PageSEORepository
	quotes *QuoteRepository
	health repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds a registry whose health probe always succeeds.
func NewRegistry(clock func() time.Time) *Registry {
	health, _ := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{{
		Name:     "memory",
		Critical: true,
		Check:    func(context.Context) error { return nil },
	}})
	return &Registry{
		pages:  NewPageSEORepository(clock),
		quotes: NewQuoteRepository(),
		health: health,
	}
}

func (r *Registry) Pages() repositories.PageSEORepository { return r.pages }
func (r *Registry) Quotes() repositories.QuoteRepository  { return r.quotes }
func (r *Registry) Health() repositories.HealthRepository { return r.health }
func (r *Registry) Close(context.Context) error           { return nil }
