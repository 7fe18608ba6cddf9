// Package configurator implements the website configurator: a catalog of purchasable
// components, category-constrained selection rules and the price of a selection.
//
// Every operation is a pure function over values; selections passed in are never mutated.
package configurator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mrpixelvns-oss/vntech-sub000/internal/domain"
)

var (
	// ErrItemNotFound indicates a selection referenced an id that is not part of the catalog.
	ErrItemNotFound = errors.New("configurator: item not found")
	// ErrInvalidCatalog indicates the catalog definition violates its invariants.
	ErrInvalidCatalog = errors.New("configurator: invalid catalog")
	// ErrInvalidSelection indicates a client supplied selection breaks the category rules.
	ErrInvalidSelection = errors.New("configurator: invalid selection")
)

const (
	// DefaultMinPageCount is the smallest page count a multi-page build can have.
	DefaultMinPageCount = 5
	// DefaultExtraPageUnitPrice is charged for every page above the minimum (VND).
	DefaultExtraPageUnitPrice int64 = 500000
	// DefaultSinglePageItemID identifies the core item that pins the page count to one.
	DefaultSinglePageItemID = "landing-page"
	// DefaultCurrency is used when the catalog does not name one.
	DefaultCurrency = "VND"

	pinnedPageCount = 1
)

// Arity describes how many items of a category may be selected at the same time.
type Arity string

const (
	// ArityOneOf allows at most one selected item in the category (radio semantics).
	ArityOneOf Arity = "one_of"
	// ArityManyOf allows any subset of the category (checkbox semantics).
	ArityManyOf Arity = "many_of"
)

func (a Arity) valid() bool {
	return a == ArityOneOf || a == ArityManyOf
}

// Rules maps a category to its selection arity. Categories missing from the table are additive.
type Rules map[string]Arity

// DefaultRules returns the rule table of the agency catalog.
func DefaultRules() Rules {
	return Rules{
		"core":   ArityOneOf,
		"design": ArityOneOf,
	}
}

// ArityOf returns the arity configured for category, defaulting to ArityManyOf.
func (r Rules) ArityOf(category string) Arity {
	if arity, ok := r[category]; ok {
		return arity
	}
	return ArityManyOf
}

// Catalog is an immutable, validated set of catalog items plus the pricing parameters that go with it.
type Catalog struct {
	items              []domain.CatalogItem
	index              map[string]int
	rules              Rules
	categories         []string
	defaults           []string
	singlePageItemID   string
	minPageCount       int
	extraPageUnitPrice int64
	currency           string
}

// Option customises catalog construction.
type Option func(*Catalog)

// WithRules replaces the category arity table.
func WithRules(rules Rules) Option {
	return func(c *Catalog) {
		c.rules = make(Rules, len(rules))
		for category, arity := range rules {
			c.rules[strings.TrimSpace(category)] = arity
		}
	}
}

// WithSinglePageItem names the item that pins the page count to one. An empty id disables pinning.
func WithSinglePageItem(id string) Option {
	return func(c *Catalog) {
		c.singlePageItemID = strings.TrimSpace(id)
	}
}

// WithMinPageCount overrides the page count floor.
func WithMinPageCount(n int) Option {
	return func(c *Catalog) {
		c.minPageCount = n
	}
}

// WithExtraPageUnitPrice overrides the price of every page above the floor.
func WithExtraPageUnitPrice(price int64) Option {
	return func(c *Catalog) {
		c.extraPageUnitPrice = price
	}
}

// WithCurrency sets the ISO currency code amounts are expressed in.
func WithCurrency(code string) Option {
	return func(c *Catalog) {
		c.currency = strings.ToUpper(strings.TrimSpace(code))
	}
}

// WithCategoryOrder fixes the display order of categories.
func WithCategoryOrder(categories ...string) Option {
	return func(c *Catalog) {
		c.categories = append([]string(nil), categories...)
	}
}

// WithDefaults lists the items a fresh selection starts with.
func WithDefaults(ids ...string) Option {
	return func(c *Catalog) {
		c.defaults = append([]string(nil), ids...)
	}
}

// NewCatalog validates items and returns a catalog ready for selection and pricing.
func NewCatalog(items []domain.CatalogItem, opts ...Option) (*Catalog, error) {
	c := &Catalog{
		rules:              DefaultRules(),
		singlePageItemID:   DefaultSinglePageItemID,
		minPageCount:       DefaultMinPageCount,
		extraPageUnitPrice: DefaultExtraPageUnitPrice,
		currency:           DefaultCurrency,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if c.minPageCount <= pinnedPageCount {
		return nil, fmt.Errorf("%w: min page count must be greater than %d", ErrInvalidCatalog, pinnedPageCount)
	}
	if c.extraPageUnitPrice < 0 {
		return nil, fmt.Errorf("%w: extra page unit price must not be negative", ErrInvalidCatalog)
	}
	for category, arity := range c.rules {
		if !arity.valid() {
			return nil, fmt.Errorf("%w: category %q has unknown arity %q", ErrInvalidCatalog, category, arity)
		}
	}

	c.items = make([]domain.CatalogItem, 0, len(items))
	c.index = make(map[string]int, len(items))
	seenCategory := make(map[string]bool, len(c.categories))
	for _, category := range c.categories {
		seenCategory[category] = true
	}
	for _, item := range items {
		item.ID = strings.TrimSpace(item.ID)
		item.Category = strings.TrimSpace(item.Category)
		switch {
		case item.ID == "":
			return nil, fmt.Errorf("%w: item id is required", ErrInvalidCatalog)
		case item.Category == "":
			return nil, fmt.Errorf("%w: item %q has no category", ErrInvalidCatalog, item.ID)
		case item.Price < 0:
			return nil, fmt.Errorf("%w: item %q has a negative price", ErrInvalidCatalog, item.ID)
		}
		if _, dup := c.index[item.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate item id %q", ErrInvalidCatalog, item.ID)
		}
		c.index[item.ID] = len(c.items)
		c.items = append(c.items, item)
		if !seenCategory[item.Category] {
			seenCategory[item.Category] = true
			c.categories = append(c.categories, item.Category)
		}
	}

	if c.singlePageItemID != "" {
		item, ok := c.Item(c.singlePageItemID)
		if !ok {
			// a catalog without the single-page offer simply never pins
			c.singlePageItemID = ""
		} else if c.rules.ArityOf(item.Category) != ArityOneOf {
			return nil, fmt.Errorf("%w: single-page item %q must belong to an exclusive category", ErrInvalidCatalog, item.ID)
		}
	}
	for _, id := range c.defaults {
		if _, ok := c.Item(id); !ok {
			return nil, fmt.Errorf("%w: default item %q: %w", ErrInvalidCatalog, id, ErrItemNotFound)
		}
	}
	return c, nil
}

// Items returns a copy of the catalog items in definition order.
func (c *Catalog) Items() []domain.CatalogItem {
	out := make([]domain.CatalogItem, len(c.items))
	copy(out, c.items)
	return out
}

// Item looks up an item by id.
func (c *Catalog) Item(id string) (domain.CatalogItem, bool) {
	idx, ok := c.index[id]
	if !ok {
		return domain.CatalogItem{}, false
	}
	return c.items[idx], true
}

// Categories returns category names in display order.
func (c *Catalog) Categories() []string {
	return append([]string(nil), c.categories...)
}

// ItemsIn returns the items of a category in definition order.
func (c *Catalog) ItemsIn(category string) []domain.CatalogItem {
	var out []domain.CatalogItem
	for _, item := range c.items {
		if item.Category == category {
			out = append(out, item)
		}
	}
	return out
}

// ArityOf returns the selection arity of category.
func (c *Catalog) ArityOf(category string) Arity {
	return c.rules.ArityOf(category)
}

// SinglePageItemID returns the id that pins the page count, or "" when pinning is disabled.
func (c *Catalog) SinglePageItemID() string { return c.singlePageItemID }

// MinPageCount returns the page count floor for multi-page builds.
func (c *Catalog) MinPageCount() int { return c.minPageCount }

// ExtraPageUnitPrice returns the configured price of each page above the floor.
func (c *Catalog) ExtraPageUnitPrice() int64 { return c.extraPageUnitPrice }

// Currency returns the currency code of every amount in the catalog.
func (c *Catalog) Currency() string { return c.currency }

// Defaults returns the ids a fresh selection starts with.
func (c *Catalog) Defaults() []string {
	return append([]string(nil), c.defaults...)
}
