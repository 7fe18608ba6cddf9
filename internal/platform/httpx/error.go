package httpx

import (
	"context"
	"encoding/json"
	"maps"
	"net/http"
	"strings"
	"unicode"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/requestctx"
)

const (
	codeLimit    = 80
	messageLimit = 512
	idLimit      = 80
)

// Error is the JSON error body every endpoint answers with. Details are flattened into the
// top-level object next to the fixed keys.
type Error struct {
	Code      string
	Message   string
	Status    int
	RequestID string
	TraceID   string
	Details   map[string]any
}

// NewError builds an Error; a zero status means 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{Code: singleLine(code, codeLimit), Message: singleLine(message, messageLimit), Status: status}
}

func (e Error) Error() string { return e.Code + ": " + e.Message }

func (e Error) WithRequestID(id string) Error {
	e.RequestID = singleLine(id, idLimit)
	return e
}

func (e Error) WithTraceID(id string) Error {
	e.TraceID = singleLine(id, idLimit)
	return e
}

// WithDetails copies details so later mutation by the caller does not leak into the response.
func (e Error) WithDetails(details map[string]any) Error {
	if len(details) > 0 {
		e.Details = maps.Clone(details)
	}
	return e
}

func (e Error) body(ctx context.Context) map[string]any {
	out := make(map[string]any, len(e.Details)+5)
	maps.Copy(out, e.Details)
	out["error"] = e.Code
	out["message"] = e.Message
	out["status"] = e.Status

	requestID := e.RequestID
	if requestID == "" {
		requestID = singleLine(middleware.GetReqID(ctx), idLimit)
	}
	if requestID != "" {
		out["request_id"] = requestID
	}
	traceID := e.TraceID
	if traceID == "" {
		traceID = singleLine(requestctx.TraceID(ctx), idLimit)
	}
	if traceID != "" {
		out["trace_id"] = traceID
	}
	return out
}

// WriteError renders err with request and trace ids taken from ctx when not set explicitly.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	if err.Status == 0 {
		err.Status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status)
	_ = json.NewEncoder(w).Encode(err.body(ctx))
}

// singleLine flattens line breaks, drops other control runes, and truncates to limit runes.
func singleLine(value string, limit int) string {
	value = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r':
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, value)
	value = strings.TrimSpace(value)
	if runes := []rune(value); len(runes) > limit {
		value = string(runes[:limit])
	}
	return value
}
