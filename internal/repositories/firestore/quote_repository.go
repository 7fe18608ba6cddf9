package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/mrpixelvns-oss/vntech-sub000/internal/domain"
	pfirestore "github.com/mrpixelvns-oss/vntech-sub000/internal/platform/firestore"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/pagination"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/repositories"
)

const (
	defaultQuotesCollection = "quotes"
	// Firestore "in" filters accept at most 10 values.
	maxInFilterValues = 10
)

// QuoteRepository persists configurator quote requests.
type QuoteRepository struct {
	quotes *pfirestore.Collection[domain.Quote]
}

var _ repositories.QuoteRepository = (*QuoteRepository)(nil)

// NewQuoteRepository constructs a Firestore-backed quote repository on collection
// (quotes when empty).
func NewQuoteRepository(provider *pfirestore.Provider, collection string) (*QuoteRepository, error) {
	if provider == nil {
		return nil, errors.New("quote repository: firestore provider is required")
	}
	if strings.TrimSpace(collection) == "" {
		collection = defaultQuotesCollection
	}
	quotes, err := pfirestore.NewCollection(provider, collection, pfirestore.Codec[domain.Quote]{
		Encode: func(quote domain.Quote) any { return encodeQuoteDocument(quote) },
		Decode: func(snap *firestore.DocumentSnapshot) (domain.Quote, error) {
			var doc quoteDocument
			if err := snap.DataTo(&doc); err != nil {
				return domain.Quote{}, err
			}
			quote := decodeQuoteDocument(snap.Ref.ID, doc)
			if quote.CreatedAt.IsZero() {
				quote.CreatedAt = snap.CreateTime.UTC()
			}
			return quote, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return &QuoteRepository{quotes: quotes}, nil
}

func (r *QuoteRepository) Insert(ctx context.Context, quote domain.Quote) error {
	quote.ID = strings.TrimSpace(quote.ID)
	if quote.ID == "" {
		return errors.New("quote repository: id is required")
	}
	return r.quotes.Create(ctx, quote.ID, quote)
}

func (r *QuoteRepository) List(ctx context.Context, filter repositories.QuoteListFilter) (domain.CursorPage[domain.Quote], error) {
	limit := filter.Pagination.PageSize
	if limit <= 0 {
		limit = pagination.DefaultPageSize
	}
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Quote]{}, fmt.Errorf("quote repository: %w", err)
	}

	statuses := make([]string, 0, len(filter.Status))
	for _, status := range filter.Status {
		if trimmed := strings.TrimSpace(string(status)); trimmed != "" {
			statuses = append(statuses, trimmed)
		}
	}
	if len(statuses) > maxInFilterValues {
		statuses = statuses[:maxInFilterValues]
	}

	docs, err := r.quotes.Query(ctx, func(q firestore.Query) firestore.Query {
		switch len(statuses) {
		case 0:
		case 1:
			q = q.Where("status", "==", statuses[0])
		default:
			q = q.Where("status", "in", statuses)
		}
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if !cursor.IsZero() {
			q = q.StartAfter(cursor.CreatedAt, cursor.ID)
		}
		return q.Limit(limit + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Quote]{}, err
	}

	page := domain.CursorPage[domain.Quote]{}
	if len(docs) > limit {
		docs = docs[:limit]
		last := docs[len(docs)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{CreatedAt: last.Data.CreatedAt, ID: last.ID})
		if err != nil {
			return domain.CursorPage[domain.Quote]{}, err
		}
		page.NextPageToken = token
	}
	page.Items = make([]domain.Quote, 0, len(docs))
	for _, doc := range docs {
		page.Items = append(page.Items, doc.Data)
	}
	return page, nil
}

type quoteDocument struct {
	SelectedIDs []string                `firestore:"selectedIds"`
	PageCount   int                     `firestore:"pageCount"`
	Currency    string                  `firestore:"currency"`
	Lines       []quoteLineDocument     `firestore:"lines"`
	ExtraPages  quoteExtraPagesDocument `firestore:"extraPages"`
	Subtotal    int64                   `firestore:"subtotal"`
	Total       int64                   `firestore:"total"`
	Contact     quoteContactDocument    `firestore:"contact"`
	Status      string                  `firestore:"status"`
	CreatedAt   time.Time               `firestore:"createdAt"`
}

type quoteLineDocument struct {
	ItemID   string `firestore:"itemId"`
	Category string `firestore:"category"`
	Name     string `firestore:"name"`
	Amount   int64  `firestore:"amount"`
}

type quoteExtraPagesDocument struct {
	Pages     int   `firestore:"pages"`
	UnitPrice int64 `firestore:"unitPrice"`
	Amount    int64 `firestore:"amount"`
}

type quoteContactDocument struct {
	Name    string `firestore:"name"`
	Email   string `firestore:"email"`
	Phone   string `firestore:"phone,omitempty"`
	Company string `firestore:"company,omitempty"`
	Message string `firestore:"message,omitempty"`
}

func encodeQuoteDocument(quote domain.Quote) quoteDocument {
	lines := make([]quoteLineDocument, 0, len(quote.Breakdown.Items))
	for _, line := range quote.Breakdown.Items {
		lines = append(lines, quoteLineDocument{
			ItemID:   line.ItemID,
			Category: line.Category,
			Name:     line.Name,
			Amount:   line.Amount,
		})
	}
	return quoteDocument{
		SelectedIDs: append([]string{}, quote.Selection.SelectedIDs...),
		PageCount:   quote.Selection.PageCount,
		Currency:    quote.Breakdown.Currency,
		Lines:       lines,
		ExtraPages: quoteExtraPagesDocument{
			Pages:     quote.Breakdown.ExtraPages.Pages,
			UnitPrice: quote.Breakdown.ExtraPages.UnitPrice,
			Amount:    quote.Breakdown.ExtraPages.Amount,
		},
		Subtotal: quote.Breakdown.Subtotal,
		Total:    quote.Breakdown.Total,
		Contact: quoteContactDocument{
			Name:    quote.Contact.Name,
			Email:   quote.Contact.Email,
			Phone:   quote.Contact.Phone,
			Company: quote.Contact.Company,
			Message: quote.Contact.Message,
		},
		Status:    string(quote.Status),
		CreatedAt: quote.CreatedAt.UTC(),
	}
}

func decodeQuoteDocument(id string, doc quoteDocument) domain.Quote {
	lines := make([]domain.PriceLine, 0, len(doc.Lines))
	for _, line := range doc.Lines {
		lines = append(lines, domain.PriceLine{
			ItemID:   line.ItemID,
			Category: line.Category,
			Name:     line.Name,
			Amount:   line.Amount,
		})
	}
	return domain.Quote{
		ID: id,
		Selection: domain.SelectionState{
			SelectedIDs: append([]string{}, doc.SelectedIDs...),
			PageCount:   doc.PageCount,
		},
		Breakdown: domain.PriceBreakdown{
			Currency: doc.Currency,
			Items:    lines,
			ExtraPages: domain.ExtraPagesLine{
				Pages:     doc.ExtraPages.Pages,
				UnitPrice: doc.ExtraPages.UnitPrice,
				Amount:    doc.ExtraPages.Amount,
			},
			Subtotal: doc.Subtotal,
			Total:    doc.Total,
		},
		Contact: domain.QuoteContact{
			Name:    doc.Contact.Name,
			Email:   doc.Contact.Email,
			Phone:   doc.Contact.Phone,
			Company: doc.Contact.Company,
			Message: doc.Contact.Message,
		},
		Status:    domain.QuoteStatus(doc.Status),
		CreatedAt: doc.CreatedAt.UTC(),
	}
}
