package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"

	"github.com/mrpixelvns-oss/vntech-sub000/internal/configurator"
	domain "github.com/mrpixelvns-oss/vntech-sub000/internal/domain"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/observability"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/textutil"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/repositories"
)

const (
	quoteIDPrefix        = "qt_"
	maxQuoteMessageRunes = 2000
)

var (
	// ErrConfiguratorInvalidInput signals a malformed selection, command or contact.
	ErrConfiguratorInvalidInput = errors.New("configurator: invalid input")
	// ErrConfiguratorItemNotFound signals a catalog id that does not exist.
	ErrConfiguratorItemNotFound = errors.New("configurator: item not found")
	// ErrConfiguratorQuotesDisabled is returned by SubmitQuote when quote intake is switched off.
	ErrConfiguratorQuotesDisabled = errors.New("configurator: quote intake disabled")
	// ErrConfiguratorRepositoryMissing signals that no quote repository was configured.
	ErrConfiguratorRepositoryMissing = errors.New("configurator: quote repository is not configured")
)

// ConfiguratorServiceDeps groups constructor parameters for the configurator service.
type ConfiguratorServiceDeps struct {
	Catalog       *configurator.Catalog
	Quotes        repositories.QuoteRepository
	Publisher     QuotePublisher
	Metrics       *observability.Metrics
	DisableQuotes bool
	Clock         func() time.Time
	IDGenerator   func() string
	Logger        func(context.Context, string, map[string]any)
}

type configuratorService struct {
	catalog       *configurator.Catalog
	quotes        repositories.QuoteRepository
	publisher     QuotePublisher
	metrics       *observability.Metrics
	quotesEnabled bool
	clock         func() time.Time
	newID         func() string
	logger        func(context.Context, string, map[string]any)
	validate      *validator.Validate
}

var _ ConfiguratorService = (*configuratorService)(nil)

// NewConfiguratorService constructs the configurator service.
func NewConfiguratorService(deps ConfiguratorServiceDeps) (ConfiguratorService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("configurator service: catalog is required")
	}
	if deps.Quotes == nil {
		return nil, ErrConfiguratorRepositoryMissing
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return quoteIDPrefix + ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	validate, err := newContactValidator()
	if err != nil {
		return nil, fmt.Errorf("configurator service: contact validator: %w", err)
	}

	return &configuratorService{
		catalog:       deps.Catalog,
		quotes:        deps.Quotes,
		publisher:     deps.Publisher,
		metrics:       deps.Metrics,
		quotesEnabled: !deps.DisableQuotes,
		clock:         func() time.Time { return clock().UTC() },
		newID:         newID,
		logger:        logger,
		validate:      validate,
	}, nil
}

func (s *configuratorService) Catalog(context.Context) (CatalogView, error) {
	view := CatalogView{
		Currency:           s.catalog.Currency(),
		MinPageCount:       s.catalog.MinPageCount(),
		ExtraPageUnitPrice: s.catalog.ExtraPageUnitPrice(),
		SinglePageItemID:   s.catalog.SinglePageItemID(),
		Defaults:           s.catalog.Defaults(),
	}
	for _, name := range s.catalog.Categories() {
		view.Categories = append(view.Categories, CatalogCategory{
			Name:  name,
			Arity: string(s.catalog.ArityOf(name)),
			Items: s.catalog.ItemsIn(name),
		})
	}
	return view, nil
}

func (s *configuratorService) DefaultSelection(context.Context) (SelectionResult, error) {
	return s.result(configurator.DefaultSelection(s.catalog)), nil
}

func (s *configuratorService) Apply(ctx context.Context, cmd ApplySelectionCommand) (SelectionResult, error) {
	state, err := s.trustedState(ctx, cmd.State)
	if err != nil {
		return SelectionResult{}, err
	}

	switch SelectionAction(strings.ToLower(strings.TrimSpace(string(cmd.Action)))) {
	case SelectionActionToggle:
		itemID := strings.TrimSpace(cmd.ItemID)
		if itemID == "" {
			return SelectionResult{}, fmt.Errorf("%w: itemId is required", ErrConfiguratorInvalidInput)
		}
		next, err := configurator.Toggle(state, itemID, s.catalog)
		if err != nil {
			return SelectionResult{}, s.translateEngineError(ctx, err)
		}
		return s.result(next), nil
	case SelectionActionPages:
		return s.result(configurator.SetPageCount(state, cmd.Delta, s.catalog)), nil
	default:
		return SelectionResult{}, fmt.Errorf("%w: unknown action %q", ErrConfiguratorInvalidInput, cmd.Action)
	}
}

func (s *configuratorService) Price(ctx context.Context, state SelectionState) (SelectionResult, error) {
	trusted, err := s.trustedState(ctx, state)
	if err != nil {
		return SelectionResult{}, err
	}
	return s.result(trusted), nil
}

func (s *configuratorService) SubmitQuote(ctx context.Context, cmd SubmitQuoteCommand) (Quote, error) {
	if !s.quotesEnabled {
		return Quote{}, ErrConfiguratorQuotesDisabled
	}
	state, err := s.trustedState(ctx, cmd.State)
	if err != nil {
		return Quote{}, err
	}
	if len(state.SelectedIDs) == 0 {
		return Quote{}, fmt.Errorf("%w: selection is empty", ErrConfiguratorInvalidInput)
	}
	contact, err := s.normalizeContact(cmd.Contact)
	if err != nil {
		return Quote{}, err
	}

	now := s.clock()
	quote := Quote{
		ID:        s.newID(),
		Selection: state,
		Breakdown: configurator.Price(state, s.catalog),
		Contact:   contact,
		Status:    domain.QuoteStatusNew,
		CreatedAt: now,
	}
	if err := s.quotes.Insert(ctx, quote); err != nil {
		s.logger(ctx, "configurator.quote.insert.failed", map[string]any{"quoteId": quote.ID, "error": err})
		return Quote{}, err
	}
	s.metrics.QuoteSubmitted(ctx, quote.Breakdown.Currency, quote.Breakdown.Total)

	fields := map[string]any{
		"quoteId":   quote.ID,
		"total":     quote.Breakdown.Total,
		"currency":  quote.Breakdown.Currency,
		"itemCount": len(state.SelectedIDs),
	}
	if s.publisher != nil {
		messageID, err := s.publisher.PublishQuoteSubmitted(ctx, QuoteSubmittedEvent{
			QuoteID:      quote.ID,
			Currency:     quote.Breakdown.Currency,
			Total:        quote.Breakdown.Total,
			ItemIDs:      append([]string(nil), state.SelectedIDs...),
			PageCount:    state.PageCount,
			ContactName:  contact.Name,
			ContactEmail: contact.Email,
			SubmittedAt:  now,
		})
		if err != nil {
			// the quote is stored; the sales team still sees it in the console
			s.logger(ctx, "configurator.quote.publish.failed", map[string]any{"quoteId": quote.ID, "error": err})
		} else {
			fields["messageId"] = messageID
		}
	}
	s.logger(ctx, "configurator.quote.submitted", fields)
	return quote, nil
}

func (s *configuratorService) ListQuotes(ctx context.Context, filter QuoteListFilter) (domain.CursorPage[Quote], error) {
	statuses := make([]domain.QuoteStatus, 0, len(filter.Status))
	seen := make(map[domain.QuoteStatus]struct{}, len(filter.Status))
	for _, raw := range filter.Status {
		status := domain.QuoteStatus(strings.ToLower(strings.TrimSpace(string(raw))))
		if status == "" {
			continue
		}
		if status != domain.QuoteStatusNew && status != domain.QuoteStatusContacted {
			return domain.CursorPage[Quote]{}, fmt.Errorf("%w: unknown quote status %q", ErrConfiguratorInvalidInput, raw)
		}
		if _, dup := seen[status]; dup {
			continue
		}
		seen[status] = struct{}{}
		statuses = append(statuses, status)
	}

	return s.quotes.List(ctx, repositories.QuoteListFilter{
		Status: statuses,
		Pagination: domain.Pagination{
			PageSize:  filter.Pagination.PageSize,
			PageToken: strings.TrimSpace(filter.Pagination.PageToken),
		},
	})
}

// trustedState repairs the page count of a client supplied state and checks it against the
// catalog rules.
func (s *configuratorService) trustedState(ctx context.Context, state SelectionState) (SelectionState, error) {
	ids := make([]string, 0, len(state.SelectedIDs))
	for _, id := range state.SelectedIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	normalized := configurator.Normalize(SelectionState{SelectedIDs: ids, PageCount: state.PageCount}, s.catalog)
	if err := configurator.Validate(normalized, s.catalog); err != nil {
		return SelectionState{}, s.translateEngineError(ctx, err)
	}
	return normalized, nil
}

func (s *configuratorService) translateEngineError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, configurator.ErrItemNotFound):
		// ids come from the catalog the client was served, so this is a client or catalog bug
		s.logger(ctx, "configurator.item_not_found.error", map[string]any{"error": err})
		return fmt.Errorf("%w: %v", ErrConfiguratorItemNotFound, err)
	case errors.Is(err, configurator.ErrInvalidSelection):
		return fmt.Errorf("%w: %v", ErrConfiguratorInvalidInput, err)
	default:
		return err
	}
}

func (s *configuratorService) result(state SelectionState) SelectionResult {
	return SelectionResult{
		State:     state,
		Breakdown: configurator.Price(state, s.catalog),
		Pinned:    configurator.IsPinned(state, s.catalog),
	}
}

type contactInput struct {
	Name    string `json:"name" validate:"required,max=120"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Phone   string `json:"phone" validate:"omitempty,phone"`
	Company string `json:"company" validate:"max=160"`
}

func newContactValidator() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	if err := v.RegisterValidation("phone", validatePhone); err != nil {
		return nil, err
	}
	return v, nil
}

// validatePhone accepts 8 to 15 digits with an optional leading plus and common separators.
func validatePhone(fl validator.FieldLevel) bool {
	digits := 0
	for i, r := range fl.Field().String() {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits >= 8 && digits <= 15
}

func (s *configuratorService) normalizeContact(contact QuoteContact) (QuoteContact, error) {
	normalized := QuoteContact{
		Name:    textutil.PlainText(contact.Name),
		Email:   strings.ToLower(strings.TrimSpace(contact.Email)),
		Phone:   strings.TrimSpace(contact.Phone),
		Company: textutil.PlainText(contact.Company),
		Message: textutil.Truncate(textutil.PlainText(contact.Message), maxQuoteMessageRunes),
	}

	err := s.validate.Struct(contactInput{
		Name:    normalized.Name,
		Email:   normalized.Email,
		Phone:   normalized.Phone,
		Company: normalized.Company,
	})
	if err == nil {
		return normalized, nil
	}
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return QuoteContact{}, err
	}
	fields := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		fields = append(fields, "contact."+fe.Field())
	}
	return QuoteContact{}, fmt.Errorf("%w: invalid %s", ErrConfiguratorInvalidInput, strings.Join(fields, ", "))
}
