package configurator

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mrpixelvns-oss/vntech-sub000/internal/domain"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

type catalogFile struct {
	Currency           string         `yaml:"currency"`
	MinPageCount       int            `yaml:"minPageCount"`
	ExtraPageUnitPrice *int64         `yaml:"extraPageUnitPrice"`
	SinglePageItem     *string        `yaml:"singlePageItem"`
	Categories         []categoryFile `yaml:"categories"`
	Defaults           []string       `yaml:"defaults"`
	Items              []itemFile     `yaml:"items"`
}

type categoryFile struct {
	ID    string `yaml:"id"`
	Arity Arity  `yaml:"arity"`
}

type itemFile struct {
	ID          string `yaml:"id"`
	Category    string `yaml:"category"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Price       int64  `yaml:"price"`
	Recommended bool   `yaml:"recommended"`
}

// DefaultCatalog returns the catalog bundled with the binary.
func DefaultCatalog() (*Catalog, error) {
	return LoadCatalog(bytes.NewReader(defaultCatalogYAML))
}

// LoadCatalogFile reads a YAML catalog from path.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("configurator: open catalog: %w", err)
	}
	defer f.Close()
	return LoadCatalog(f)
}

// LoadCatalog decodes a YAML catalog definition and validates it.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file catalogFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: decode yaml: %w", ErrInvalidCatalog, err)
	}

	opts := []Option{WithDefaults(file.Defaults...)}
	if strings.TrimSpace(file.Currency) != "" {
		opts = append(opts, WithCurrency(file.Currency))
	}
	if file.MinPageCount != 0 {
		opts = append(opts, WithMinPageCount(file.MinPageCount))
	}
	if file.ExtraPageUnitPrice != nil {
		opts = append(opts, WithExtraPageUnitPrice(*file.ExtraPageUnitPrice))
	}
	if file.SinglePageItem != nil {
		opts = append(opts, WithSinglePageItem(*file.SinglePageItem))
	}
	if len(file.Categories) > 0 {
		rules := make(Rules, len(file.Categories))
		order := make([]string, 0, len(file.Categories))
		for _, category := range file.Categories {
			id := strings.TrimSpace(category.ID)
			if id == "" {
				return nil, fmt.Errorf("%w: category id is required", ErrInvalidCatalog)
			}
			arity := category.Arity
			if arity == "" {
				arity = ArityManyOf
			}
			rules[id] = arity
			order = append(order, id)
		}
		opts = append(opts, WithRules(rules), WithCategoryOrder(order...))
	}

	items := make([]domain.CatalogItem, 0, len(file.Items))
	for _, item := range file.Items {
		items = append(items, domain.CatalogItem{
			ID:          item.ID,
			Category:    item.Category,
			Name:        strings.TrimSpace(item.Name),
			Description: strings.TrimSpace(item.Description),
			Price:       item.Price,
			Recommended: item.Recommended,
		})
	}
	return NewCatalog(items, opts...)
}
