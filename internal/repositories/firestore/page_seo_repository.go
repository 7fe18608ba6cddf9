package firestore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/mrpixelvns-oss/vntech-sub000/internal/domain"
	pfirestore "github.com/mrpixelvns-oss/vntech-sub000/internal/platform/firestore"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/repositories"
)

const defaultPagesCollection = "pageSeo"

// PageSEORepository persists page SEO records. Document ids are the query-escaped path
// because Firestore ids cannot contain slashes; the raw path is kept in the "path" field.
type PageSEORepository struct {
	pages *pfirestore.Collection[domain.PageSEO]
	now   func() time.Time
}

var _ repositories.PageSEORepository = (*PageSEORepository)(nil)

// NewPageSEORepository constructs a Firestore-backed page repository on collection
// (pageSeo when empty).
func NewPageSEORepository(provider *pfirestore.Provider, collection string) (*PageSEORepository, error) {
	if provider == nil {
		return nil, errors.New("page seo repository: firestore provider is required")
	}
	if strings.TrimSpace(collection) == "" {
		collection = defaultPagesCollection
	}
	pages, err := pfirestore.NewCollection(provider, collection, pfirestore.Codec[domain.PageSEO]{
		Encode: func(page domain.PageSEO) any { return encodePageDocument(page) },
		Decode: decodePageSnapshot,
	})
	if err != nil {
		return nil, err
	}
	return &PageSEORepository{
		pages: pages,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

func decodePageSnapshot(snap *firestore.DocumentSnapshot) (domain.PageSEO, error) {
	var doc pageDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.PageSEO{}, err
	}
	page := decodePageDocument(doc)
	if page.Path == "" {
		if path, err := url.QueryUnescape(snap.Ref.ID); err == nil {
			page.Path = path
		}
	}
	if page.CreatedAt.IsZero() {
		page.CreatedAt = snap.CreateTime.UTC()
	}
	if page.UpdatedAt.IsZero() {
		page.UpdatedAt = snap.UpdateTime.UTC()
	}
	return page, nil
}

func (r *PageSEORepository) List(ctx context.Context) ([]domain.PageSEO, error) {
	docs, err := r.pages.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("path", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.PageSEO, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Data)
	}
	return out, nil
}

func (r *PageSEORepository) ListPaths(ctx context.Context) ([]string, error) {
	docs, err := r.pages.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Select("path", "createdAt", "updatedAt").OrderBy("path", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(docs))
	for _, doc := range docs {
		paths = append(paths, doc.Data.Path)
	}
	return paths, nil
}

func (r *PageSEORepository) Get(ctx context.Context, path string) (domain.PageSEO, error) {
	return r.pages.Get(ctx, pageDocumentID(path))
}

func (r *PageSEORepository) Create(ctx context.Context, page domain.PageSEO) (domain.PageSEO, error) {
	if strings.TrimSpace(page.Path) == "" {
		return domain.PageSEO{}, errors.New("page seo repository: path is required")
	}
	now := storedTime(r.now())
	if page.CreatedAt.IsZero() {
		page.CreatedAt = now
	}
	page.CreatedAt = storedTime(page.CreatedAt)
	page.UpdatedAt = now
	if err := r.pages.Create(ctx, pageDocumentID(page.Path), page); err != nil {
		return domain.PageSEO{}, err
	}
	return page, nil
}

// Update replaces the stored record inside a transaction so the expectedUpdatedAt
// comparison and the write observe the same snapshot.
func (r *PageSEORepository) Update(ctx context.Context, page domain.PageSEO, expectedUpdatedAt *time.Time) (domain.PageSEO, error) {
	ref, err := r.pages.Ref(ctx, pageDocumentID(page.Path))
	if err != nil {
		return domain.PageSEO{}, err
	}

	var saved domain.PageSEO
	err = r.pages.Provider().RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snapshot, err := tx.Get(ref)
		if err != nil {
			return pfirestore.WrapError("pageSeo.update", err)
		}
		current, err := r.pages.Decode(snapshot)
		if err != nil {
			return err
		}
		if expectedUpdatedAt != nil && !current.UpdatedAt.Equal(*expectedUpdatedAt) {
			return pfirestore.Conflict("pageSeo.update", fmt.Sprintf("page %q was modified concurrently", page.Path))
		}

		next := page
		next.CreatedAt = current.CreatedAt
		next.UpdatedAt = nextUpdatedAt(r.now(), current.UpdatedAt)
		if err := tx.Set(ref, r.pages.Encode(next)); err != nil {
			return err
		}
		saved = next
		return nil
	})
	if err != nil {
		return domain.PageSEO{}, err
	}
	return saved, nil
}

// storedTime drops the precision Firestore timestamps cannot hold, so a stamp handed back
// to the caller compares equal to the one read later.
func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// nextUpdatedAt keeps successive stamps strictly increasing even when the clock did not move.
func nextUpdatedAt(now, previous time.Time) time.Time {
	now, previous = storedTime(now), storedTime(previous)
	if !now.After(previous) {
		return previous.Add(time.Microsecond)
	}
	return now
}

type pageDocument struct {
	Path          string    `firestore:"path"`
	Title         string    `firestore:"title"`
	Description   string    `firestore:"description"`
	FocusKeyword  string    `firestore:"focusKeyword"`
	OGImage       string    `firestore:"ogImage"`
	NoIndex       bool      `firestore:"noIndex"`
	CanonicalURL  string    `firestore:"canonicalUrl"`
	IsCornerstone bool      `firestore:"isCornerstone"`
	CreatedAt     time.Time `firestore:"createdAt"`
	UpdatedAt     time.Time `firestore:"updatedAt"`
}

func pageDocumentID(path string) string {
	return url.QueryEscape(strings.TrimSpace(path))
}

func encodePageDocument(page domain.PageSEO) pageDocument {
	return pageDocument{
		Path:          page.Path,
		Title:         page.Title,
		Description:   page.Description,
		FocusKeyword:  page.FocusKeyword,
		OGImage:       page.OGImage,
		NoIndex:       page.NoIndex,
		CanonicalURL:  page.CanonicalURL,
		IsCornerstone: page.IsCornerstone,
		CreatedAt:     page.CreatedAt.UTC(),
		UpdatedAt:     page.UpdatedAt.UTC(),
	}
}

func decodePageDocument(doc pageDocument) domain.PageSEO {
	return domain.PageSEO{
		Path:          doc.Path,
		Title:         doc.Title,
		Description:   doc.Description,
		FocusKeyword:  doc.FocusKeyword,
		OGImage:       doc.OGImage,
		NoIndex:       doc.NoIndex,
		CanonicalURL:  doc.CanonicalURL,
		IsCornerstone: doc.IsCornerstone,
		CreatedAt:     doc.CreatedAt.UTC(),
		UpdatedAt:     doc.UpdatedAt.UTC(),
	}
}
