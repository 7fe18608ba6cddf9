// Package pagination parses list query parameters (pageSize, pageToken, filter) and the
// opaque cursor tokens handed back to clients.
package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

const (
	DefaultPageSize    = 50
	DefaultMaxPageSize = 100

	maxFilterValueLength = 512
)

var (
	ErrInvalidPageSize  = errors.New("pagination: invalid pageSize")
	ErrInvalidFilter    = errors.New("pagination: invalid filter")
	ErrInvalidPageToken = errors.New("pagination: invalid pageToken")
)

// Filter is one `filter=field==value` equality predicate.
type Filter struct {
	Field string
	Value string
}

type Params struct {
	PageSize  int
	PageToken string
	Cursor    Cursor
	Filters   []Filter
}

// Values returns the values filtered on field in request order, e.g. several statuses.
func (p Params) Values(field string) []string {
	var out []string
	for _, f := range p.Filters {
		if f.Field == field {
			out = append(out, f.Value)
		}
	}
	return out
}

// Options is per endpoint. Filtering is rejected unless FilterFields lists the field.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
	FilterFields    []string
}

func (o Options) limits() (def, ceiling int) {
	ceiling = o.MaxPageSize
	if ceiling <= 0 {
		ceiling = DefaultMaxPageSize
	}
	def = o.DefaultPageSize
	if def <= 0 {
		def = DefaultPageSize
	}
	return min(def, ceiling), ceiling
}

func FromRequest(r *http.Request, opts Options) (Params, error) {
	if r == nil || r.URL == nil {
		return Params{}, errors.New("pagination: nil request")
	}
	return Parse(r.URL.Query(), opts)
}

// Parse validates query values. Oversized page sizes are clamped, not rejected.
func Parse(values url.Values, opts Options) (Params, error) {
	var (
		params Params
		err    error
	)
	if params.PageSize, err = pageSize(values.Get("pageSize"), opts); err != nil {
		return Params{}, err
	}
	if token := strings.TrimSpace(values.Get("pageToken")); token != "" {
		if params.Cursor, err = DecodeToken(token); err != nil {
			return Params{}, err
		}
		params.PageToken = token
	}
	for _, raw := range values["filter"] {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		filter, err := parseFilter(raw, opts.FilterFields)
		if err != nil {
			return Params{}, err
		}
		params.Filters = append(params.Filters, filter)
	}
	return params, nil
}

func pageSize(raw string, opts Options) (int, error) {
	def, ceiling := opts.limits()
	if raw = strings.TrimSpace(raw); raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidPageSize, raw)
	case n < 1:
		return 0, fmt.Errorf("%w: must be at least 1", ErrInvalidPageSize)
	}
	return min(n, ceiling), nil
}

func parseFilter(raw string, allowed []string) (Filter, error) {
	if len(allowed) == 0 {
		return Filter{}, fmt.Errorf("%w: this listing cannot be filtered", ErrInvalidFilter)
	}
	field, value, ok := strings.Cut(raw, "==")
	field = strings.TrimSpace(field)
	if !ok || field == "" {
		return Filter{}, fmt.Errorf("%w: want field==value, got %q", ErrInvalidFilter, raw)
	}
	if !slices.Contains(allowed, field) {
		return Filter{}, fmt.Errorf("%w: cannot filter on %q", ErrInvalidFilter, field)
	}
	value = filterValue(value)
	if value == "" {
		return Filter{}, fmt.Errorf("%w: %s needs a value", ErrInvalidFilter, field)
	}
	return Filter{Field: field, Value: value}, nil
}

// filterValue unquotes, flattens line breaks, and caps the length.
func filterValue(v string) string {
	v = strings.Trim(strings.TrimSpace(v), `"'`)
	v = strings.TrimSpace(strings.NewReplacer("\r", " ", "\n", " ").Replace(v))
	if len(v) > maxFilterValueLength {
		v = v[:maxFilterValueLength]
	}
	return v
}
