package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/requestctx"
)

func TestWriteErrorEnvelope(t *testing.T) {
	ctx := requestctx.WithTrace(context.Background(), requestctx.TraceInfo{TraceID: "abc123"})
	rec := httptest.NewRecorder()

	WriteError(ctx, rec, NewError("page_not_found", "page\nnot found", http.StatusNotFound).
		WithRequestID("req-1").
		WithDetails(map[string]any{"path": "/pricing"}))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "page_not_found" || body["message"] != "page not found" {
		t.Fatalf("unexpected envelope %v", body)
	}
	if body["request_id"] != "req-1" || body["trace_id"] != "abc123" || body["path"] != "/pricing" {
		t.Fatalf("expected request metadata, got %v", body)
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		ItemID string `json:"itemId"`
	}

	cases := []struct {
		name    string
		body    string
		limit   int64
		wantErr error
	}{
		{name: "valid", body: `{"itemId":"blog"}`},
		{name: "empty", body: "", wantErr: ErrEmptyBody},
		{name: "unknown field", body: `{"itemId":"blog","extra":1}`, wantErr: ErrInvalidJSON},
		{name: "trailing", body: `{"itemId":"blog"}{}`, wantErr: ErrInvalidJSON},
		{name: "too large", body: `{"itemId":"` + strings.Repeat("x", 64) + `"}`, limit: 16, wantErr: ErrBodyTooLarge},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
		var dst payload
		err := DecodeJSON(httptest.NewRecorder(), req, &dst, tc.limit)
		if tc.wantErr == nil {
			if err != nil || dst.ItemID != "blog" {
				t.Fatalf("%s: unexpected result %v %+v", tc.name, err, dst)
			}
			continue
		}
		if !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.wantErr, err)
		}
	}
}

func TestBodyErrorStatus(t *testing.T) {
	if got := BodyError(ErrBodyTooLarge).Status; got != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", got)
	}
	if got := BodyError(ErrInvalidJSON).Status; got != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", got)
	}
}
