package pagination

import (
	"errors"
	"net/url"
	"reflect"
	"testing"
	"time"
)

func TestParsePageSize(t *testing.T) {
	opts := Options{DefaultPageSize: 25, MaxPageSize: 40}
	cases := []struct {
		raw  string
		opts Options
		want int
	}{
		{raw: "", opts: Options{}, want: DefaultPageSize},
		{raw: "", opts: Options{DefaultPageSize: 500}, want: DefaultMaxPageSize},
		{raw: "", opts: opts, want: 25},
		{raw: " 30 ", opts: opts, want: 30},
		{raw: "400", opts: opts, want: 40},
	}
	for _, tc := range cases {
		params, err := Parse(url.Values{"pageSize": {tc.raw}}, tc.opts)
		if err != nil {
			t.Fatalf("%q: %v", tc.raw, err)
		}
		if params.PageSize != tc.want {
			t.Fatalf("%q: expected %d, got %d", tc.raw, tc.want, params.PageSize)
		}
	}

	for _, raw := range []string{"abc", "0", "-3", "1.5"} {
		if _, err := Parse(url.Values{"pageSize": {raw}}, Options{}); !errors.Is(err, ErrInvalidPageSize) {
			t.Fatalf("%q: expected ErrInvalidPageSize, got %v", raw, err)
		}
	}
}

func TestParseDefaultsToFirstPage(t *testing.T) {
	params, err := Parse(url.Values{}, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if params.PageToken != "" || !params.Cursor.IsZero() || params.Filters != nil {
		t.Fatalf("expected first page without filters, got %#v", params)
	}
}

func TestParsePageToken(t *testing.T) {
	cursor := Cursor{CreatedAt: time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC), ID: "01HZX"}
	token, err := EncodeToken(cursor)
	if err != nil {
		t.Fatalf("EncodeToken: %v", err)
	}
	params, err := Parse(url.Values{"pageToken": {token}}, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if params.PageToken != token || !params.Cursor.CreatedAt.Equal(cursor.CreatedAt) || params.Cursor.ID != cursor.ID {
		t.Fatalf("expected cursor %#v behind %q, got %#v", cursor, token, params)
	}

	incomplete, _ := EncodeToken(Cursor{ID: "only-id"})
	for _, bad := range []string{"!!!", "bm90LWpzb24", incomplete} {
		if _, err := Parse(url.Values{"pageToken": {bad}}, Options{}); !errors.Is(err, ErrInvalidPageToken) {
			t.Fatalf("%q: expected ErrInvalidPageToken, got %v", bad, err)
		}
	}
}

func TestEncodeTokenEmptyCursor(t *testing.T) {
	if token, err := EncodeToken(Cursor{}); err != nil || token != "" {
		t.Fatalf("expected empty token, got %q %v", token, err)
	}
}

func TestParseFilters(t *testing.T) {
	status := Options{FilterFields: []string{"status"}}
	params, err := Parse(url.Values{"filter": {"status==new", " status == 'contacted' ", ""}}, status)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []Filter{{Field: "status", Value: "new"}, {Field: "status", Value: "contacted"}}
	if !reflect.DeepEqual(params.Filters, want) {
		t.Fatalf("expected %#v, got %#v", want, params.Filters)
	}
	if got := params.Values("status"); !reflect.DeepEqual(got, []string{"new", "contacted"}) {
		t.Fatalf("unexpected values %v", got)
	}

	rejected := map[string]struct {
		filter string
		opts   Options
	}{
		"not filterable":   {filter: "status==new"},
		"unknown field":    {filter: "email==a@b.c", opts: status},
		"missing operator": {filter: "status", opts: status},
		"empty value":      {filter: "status==''", opts: status},
	}
	for name, tc := range rejected {
		if _, err := Parse(url.Values{"filter": {tc.filter}}, tc.opts); !errors.Is(err, ErrInvalidFilter) {
			t.Fatalf("%s: expected ErrInvalidFilter, got %v", name, err)
		}
	}
}
