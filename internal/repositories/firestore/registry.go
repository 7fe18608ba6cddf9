package firestore

import (
	"context"
	"errors"
	"time"

	"google.golang.org/api/iterator"

	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/config"
	pfirestore "github.com/mrpixelvns-oss/vntech-sub000/internal/platform/firestore"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/repositories"
)

// Registry exposes the Firestore-backed repositories and owns the provider lifecycle.
type Registry struct {
	provider *pfirestore.Provider
	pages    *PageSEORepository
	quotes   *QuoteRepository
	health   repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds the repositories on provider. Firestore is probed as a critical
// dependency; extra checks (Pub/Sub, Storage, Secret Manager) are appended as given.
func NewRegistry(provider *pfirestore.Provider, cfg config.FirestoreConfig, extra ...repositories.DependencyCheck) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry: provider is required")
	}
	pages, err := NewPageSEORepository(provider, cfg.PagesCollection)
	if err != nil {
		return nil, err
	}
	quotes, err := NewQuoteRepository(provider, cfg.QuotesCollection)
	if err != nil {
		return nil, err
	}

	checks := append([]repositories.DependencyCheck{{
		Name:     "firestore",
		Critical: true,
		Timeout:  1500 * time.Millisecond,
		Check:    firestoreProbe(provider),
	}}, extra...)
	health, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}

	return &Registry{provider: provider, pages: pages, quotes: quotes, health: health}, nil
}

func (r *Registry) Pages() repositories.PageSEORepository { return r.pages }
func (r *Registry) Quotes() repositories.QuoteRepository  { return r.quotes }
func (r *Registry) Health() repositories.HealthRepository { return r.health }

// Close releases the shared Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

func firestoreProbe(provider *pfirestore.Provider) func(context.Context) error {
	return func(ctx context.Context) error {
		client, err := provider.Client(ctx)
		if err != nil {
			return err
		}
		iter := client.Collections(ctx)
		_, err = iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		return err
	}
}
