//go:build integration

package firestore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	domain "github.com/mrpixelvns-oss/vntech-sub000/internal/domain"
	pconfig "github.com/mrpixelvns-oss/vntech-sub000/internal/platform/config"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/repositories"
)

func TestPageSEORepositoryIntegration(t *testing.T) {
	provider := newEmulatorProvider(t, "pages-test")
	repo, err := NewPageSEORepository(provider, "")
	if err != nil {
		t.Fatalf("new page repository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// Concurrent syncs race to create the same route; exactly one create must win.
	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := repo.Create(ctx, domain.PageSEO{Path: "/pricing", Title: "Pricing"})
			mu.Lock()
			defer mu.Unlock()
			var repoErr repositories.RepositoryError
			switch {
			case err == nil:
				created++
			case errors.As(err, &repoErr) && repoErr.IsConflict():
				conflicts++
			default:
				t.Errorf("create: %v", err)
			}
		}()
	}
	wg.Wait()
	if created != 1 || conflicts != workers-1 {
		t.Fatalf("expected one create and %d conflicts, got %d/%d", workers-1, created, conflicts)
	}

	if _, err := repo.Create(ctx, domain.PageSEO{Path: "/"}); err != nil {
		t.Fatalf("create root: %v", err)
	}
	paths, err := repo.ListPaths(ctx)
	if err != nil {
		t.Fatalf("list paths: %v", err)
	}
	if fmt.Sprint(paths) != "[/ /pricing]" {
		t.Fatalf("unexpected paths %v", paths)
	}

	stored, err := repo.Get(ctx, "/pricing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	stamp := stored.UpdatedAt
	stored.Description = "Transparent website pricing."
	updated, err := repo.Update(ctx, stored, &stamp)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.UpdatedAt.After(stamp) {
		t.Fatalf("expected updatedAt to advance")
	}

	updated.Title = "Pricing and packages"
	again, err := repo.Update(ctx, updated, &updated.UpdatedAt)
	if err != nil {
		t.Fatalf("update with stamp returned by previous update: %v", err)
	}
	if !again.UpdatedAt.After(updated.UpdatedAt) {
		t.Fatalf("expected updatedAt to advance again")
	}

	_, err = repo.Update(ctx, stored, &stamp)
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsConflict() {
		t.Fatalf("expected stale update conflict, got %v", err)
	}

	_, err = repo.Get(ctx, "/missing")
	if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestQuoteRepositoryIntegration(t *testing.T) {
	provider := newEmulatorProvider(t, "quotes-test")
	reg, err := NewRegistry(provider, pconfig.FirestoreConfig{})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	repo := reg.Quotes()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		err := repo.Insert(ctx, domain.Quote{
			ID:        fmt.Sprintf("q%d", i),
			Selection: domain.SelectionState{SelectedIDs: []string{"corporate-site"}, PageCount: 5},
			Breakdown: domain.PriceBreakdown{Currency: "VND", Total: 8_000_000},
			Contact:   domain.QuoteContact{Name: "Lan", Email: "lan@example.vn"},
			Status:    domain.QuoteStatusNew,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	var seen []string
	token := ""
	for {
		page, err := repo.List(ctx, repositories.QuoteListFilter{Pagination: domain.Pagination{PageSize: 2, PageToken: token}})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		for _, quote := range page.Items {
			seen = append(seen, quote.ID)
		}
		if page.NextPageToken == "" {
			break
		}
		token = page.NextPageToken
	}
	if fmt.Sprint(seen) != "[q4 q3 q2 q1 q0]" {
		t.Fatalf("unexpected order %v", seen)
	}

	report, err := reg.Health().Collect(ctx)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if report.Status != domain.HealthStatusOK {
		t.Fatalf("expected healthy emulator, got %+v", report)
	}
}
