package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrpixelvns-oss/vntech-sub000/internal/configurator"
	domain "github.com/mrpixelvns-oss/vntech-sub000/internal/domain"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/repositories"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/repositories/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []QuoteSubmittedEvent
	err    error
}

func (p *recordingPublisher) PublishQuoteSubmitted(_ context.Context, event QuoteSubmittedEvent) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.events = append(p.events, event)
	return "msg-1", nil
}

type loggedEvent struct {
	name   string
	fields map[string]any
}

type eventRecorder struct {
	mu     sync.Mutex
	events []loggedEvent
}

func (r *eventRecorder) log(_ context.Context, name string, fields map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, loggedEvent{name: name, fields: fields})
}

func (r *eventRecorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.name
	}
	return out
}

func repositoriesFilter() repositories.QuoteListFilter {
	return repositories.QuoteListFilter{}
}

var quoteClock = time.Date(2025, time.April, 2, 8, 30, 0, 0, time.UTC)

func newConfiguratorFixture(t *testing.T, mutate func(*ConfiguratorServiceDeps)) (ConfiguratorService, *memory.QuoteRepository, *recordingPublisher, *eventRecorder) {
	t.Helper()
	catalog, err := configurator.DefaultCatalog()
	require.NoError(t, err)

	quotes := memory.NewQuoteRepository()
	publisher := &recordingPublisher{}
	events := &eventRecorder{}
	seq := 0
	deps := ConfiguratorServiceDeps{
		Catalog:   catalog,
		Quotes:    quotes,
		Publisher: publisher,
		Clock:     func() time.Time { return quoteClock },
		IDGenerator: func() string {
			seq++
			return "qt_" + string(rune('A'+seq-1))
		},
		Logger: events.log,
	}
	if mutate != nil {
		mutate(&deps)
	}
	svc, err := NewConfiguratorService(deps)
	require.NoError(t, err)
	return svc, quotes, publisher, events
}

func TestConfiguratorService_RequiresDependencies(t *testing.T) {
	_, err := NewConfiguratorService(ConfiguratorServiceDeps{Quotes: memory.NewQuoteRepository()})
	require.Error(t, err)

	catalog, err := configurator.DefaultCatalog()
	require.NoError(t, err)
	_, err = NewConfiguratorService(ConfiguratorServiceDeps{Catalog: catalog})
	require.ErrorIs(t, err, ErrConfiguratorRepositoryMissing)
}

func TestConfiguratorService_CatalogGroupsItemsByCategory(t *testing.T) {
	svc, _, _, _ := newConfiguratorFixture(t, nil)

	view, err := svc.Catalog(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "VND", view.Currency)
	assert.Equal(t, 5, view.MinPageCount)
	assert.Equal(t, int64(500000), view.ExtraPageUnitPrice)
	assert.Equal(t, "landing-page", view.SinglePageItemID)
	require.NotEmpty(t, view.Categories)
	assert.Equal(t, "core", view.Categories[0].Name)
	assert.Equal(t, string(configurator.ArityOneOf), view.Categories[0].Arity)
	assert.Equal(t, "landing-page", view.Categories[0].Items[0].ID)
}

func TestConfiguratorService_DefaultSelection(t *testing.T) {
	svc, _, _, _ := newConfiguratorFixture(t, nil)

	result, err := svc.DefaultSelection(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"corporate-site", "template-design", "hosting"}, result.State.SelectedIDs)
	assert.Equal(t, 5, result.State.PageCount)
	assert.Equal(t, int64(10_000_000), result.Breakdown.Total)
	assert.False(t, result.Pinned)
}

func TestConfiguratorService_ApplyToggleAndPages(t *testing.T) {
	svc, _, _, _ := newConfiguratorFixture(t, nil)
	ctx := context.Background()
	start, err := svc.DefaultSelection(ctx)
	require.NoError(t, err)

	more, err := svc.Apply(ctx, ApplySelectionCommand{State: start.State, Action: SelectionActionPages, Delta: 2})
	require.NoError(t, err)
	assert.Equal(t, 7, more.State.PageCount)
	assert.Equal(t, int64(11_000_000), more.Breakdown.Total)
	assert.Equal(t, 2, more.Breakdown.ExtraPages.Pages)

	landing, err := svc.Apply(ctx, ApplySelectionCommand{State: more.State, Action: "Toggle", ItemID: "landing-page"})
	require.NoError(t, err)
	assert.True(t, landing.Pinned)
	assert.Equal(t, 1, landing.State.PageCount)
	assert.Equal(t, []string{"template-design", "hosting", "landing-page"}, landing.State.SelectedIDs)
	assert.Equal(t, int64(5_000_000), landing.Breakdown.Total)

	pinned, err := svc.Apply(ctx, ApplySelectionCommand{State: landing.State, Action: SelectionActionPages, Delta: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, pinned.State.PageCount)

	same, err := svc.Apply(ctx, ApplySelectionCommand{State: more.State, Action: SelectionActionPages})
	require.NoError(t, err)
	assert.Equal(t, more.State, same.State)
	assert.Equal(t, more.Breakdown.Total, same.Breakdown.Total)
}

func TestConfiguratorService_ContactValidatorRegistersPhone(t *testing.T) {
	v, err := newContactValidator()
	require.NoError(t, err)
	assert.NoError(t, v.Var("+84 912 345 678", "phone"))
	assert.Error(t, v.Var("call me", "phone"))
}

func TestConfiguratorService_ApplyRejectsBadCommands(t *testing.T) {
	svc, _, _, events := newConfiguratorFixture(t, nil)
	ctx := context.Background()
	state := domain.SelectionState{SelectedIDs: []string{"corporate-site"}, PageCount: 5}

	_, err := svc.Apply(ctx, ApplySelectionCommand{State: state, Action: "explode"})
	assert.ErrorIs(t, err, ErrConfiguratorInvalidInput)

	_, err = svc.Apply(ctx, ApplySelectionCommand{State: state, Action: SelectionActionToggle})
	assert.ErrorIs(t, err, ErrConfiguratorInvalidInput)

	_, err = svc.Apply(ctx, ApplySelectionCommand{State: state, Action: SelectionActionToggle, ItemID: "time-machine"})
	assert.ErrorIs(t, err, ErrConfiguratorItemNotFound)
	assert.Contains(t, events.names(), "configurator.item_not_found.error")

	conflicting := domain.SelectionState{SelectedIDs: []string{"corporate-site", "ecommerce-site"}, PageCount: 5}
	_, err = svc.Apply(ctx, ApplySelectionCommand{State: conflicting, Action: SelectionActionToggle, ItemID: "blog"})
	assert.ErrorIs(t, err, ErrConfiguratorInvalidInput)
}

func TestConfiguratorService_PriceRepairsPageCount(t *testing.T) {
	svc, _, _, _ := newConfiguratorFixture(t, nil)

	result, err := svc.Price(context.Background(), domain.SelectionState{SelectedIDs: []string{" landing-page ", "seo-setup"}, PageCount: 9})
	require.NoError(t, err)
	assert.Equal(t, 1, result.State.PageCount)
	assert.Equal(t, []string{"landing-page", "seo-setup"}, result.State.SelectedIDs)
	assert.Equal(t, int64(5_500_000), result.Breakdown.Total)

	result, err = svc.Price(context.Background(), domain.SelectionState{SelectedIDs: []string{"blog"}, PageCount: 0})
	require.NoError(t, err)
	assert.Equal(t, 5, result.State.PageCount)
}

func TestConfiguratorService_SubmitQuote(t *testing.T) {
	svc, quotes, publisher, events := newConfiguratorFixture(t, nil)
	ctx := context.Background()

	quote, err := svc.SubmitQuote(ctx, SubmitQuoteCommand{
		State: domain.SelectionState{SelectedIDs: []string{"corporate-site", "blog"}, PageCount: 6},
		Contact: QuoteContact{
			Name:    "  Nguyễn <b>Lan</b> ",
			Email:   "Lan@Example.VN",
			Phone:   "+84 90 123 4567",
			Message: "Need it <script>alert(1)</script>before Tet",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "qt_A", quote.ID)
	assert.Equal(t, domain.QuoteStatusNew, quote.Status)
	assert.Equal(t, quoteClock, quote.CreatedAt)
	assert.Equal(t, "Nguyễn Lan", quote.Contact.Name)
	assert.Equal(t, "lan@example.vn", quote.Contact.Email)
	assert.NotContains(t, quote.Contact.Message, "<script>")
	assert.Equal(t, int64(10_500_000), quote.Breakdown.Total)

	page, err := quotes.List(ctx, repositoriesFilter())
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, quote.ID, page.Items[0].ID)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, QuoteSubmittedEvent{
		QuoteID:      "qt_A",
		Currency:     "VND",
		Total:        10_500_000,
		ItemIDs:      []string{"corporate-site", "blog"},
		PageCount:    6,
		ContactName:  "Nguyễn Lan",
		ContactEmail: "lan@example.vn",
		SubmittedAt:  quoteClock,
	}, publisher.events[0])
	assert.Contains(t, events.names(), "configurator.quote.submitted")
}

func TestConfiguratorService_SubmitQuoteValidatesContact(t *testing.T) {
	svc, _, publisher, _ := newConfiguratorFixture(t, nil)
	state := domain.SelectionState{SelectedIDs: []string{"corporate-site"}, PageCount: 5}

	_, err := svc.SubmitQuote(context.Background(), SubmitQuoteCommand{
		State:   state,
		Contact: QuoteContact{Name: "<i></i>", Email: "not-an-email", Phone: "call me"},
	})
	require.ErrorIs(t, err, ErrConfiguratorInvalidInput)
	assert.Contains(t, err.Error(), "contact.name")
	assert.Contains(t, err.Error(), "contact.email")
	assert.Contains(t, err.Error(), "contact.phone")

	_, err = svc.SubmitQuote(context.Background(), SubmitQuoteCommand{
		State:   domain.SelectionState{},
		Contact: QuoteContact{Name: "Lan", Email: "lan@example.vn"},
	})
	require.ErrorIs(t, err, ErrConfiguratorInvalidInput)
	assert.Empty(t, publisher.events)
}

func TestConfiguratorService_SubmitQuoteSurvivesPublishFailure(t *testing.T) {
	svc, quotes, publisher, events := newConfiguratorFixture(t, nil)
	publisher.err = errors.New("pubsub down")

	quote, err := svc.SubmitQuote(context.Background(), SubmitQuoteCommand{
		State:   domain.SelectionState{SelectedIDs: []string{"landing-page"}, PageCount: 1},
		Contact: QuoteContact{Name: "Minh", Email: "minh@example.vn"},
	})
	require.NoError(t, err)

	page, err := quotes.List(context.Background(), repositoriesFilter())
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, quote.ID, page.Items[0].ID)
	assert.Contains(t, events.names(), "configurator.quote.publish.failed")
}

func TestConfiguratorService_QuotesDisabled(t *testing.T) {
	svc, _, _, _ := newConfiguratorFixture(t, func(d *ConfiguratorServiceDeps) { d.DisableQuotes = true })

	_, err := svc.SubmitQuote(context.Background(), SubmitQuoteCommand{
		State:   domain.SelectionState{SelectedIDs: []string{"landing-page"}, PageCount: 1},
		Contact: QuoteContact{Name: "Minh", Email: "minh@example.vn"},
	})
	assert.ErrorIs(t, err, ErrConfiguratorQuotesDisabled)
}

func TestConfiguratorService_ListQuotesFiltersStatus(t *testing.T) {
	svc, _, _, _ := newConfiguratorFixture(t, nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := svc.SubmitQuote(ctx, SubmitQuoteCommand{
			State:   domain.SelectionState{SelectedIDs: []string{"landing-page"}, PageCount: 1},
			Contact: QuoteContact{Name: "Minh", Email: "minh@example.vn"},
		})
		require.NoError(t, err)
	}

	page, err := svc.ListQuotes(ctx, QuoteListFilter{Status: []QuoteStatus{"NEW", "new"}, Pagination: Pagination{PageSize: 2}})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.NotEmpty(t, page.NextPageToken)

	rest, err := svc.ListQuotes(ctx, QuoteListFilter{Pagination: Pagination{PageSize: 2, PageToken: page.NextPageToken}})
	require.NoError(t, err)
	assert.Len(t, rest.Items, 1)
	assert.Empty(t, rest.NextPageToken)

	_, err = svc.ListQuotes(ctx, QuoteListFilter{Status: []QuoteStatus{"archived"}})
	assert.ErrorIs(t, err, ErrConfiguratorInvalidInput)
}
