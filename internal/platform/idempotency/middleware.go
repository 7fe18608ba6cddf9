package idempotency

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/auth"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/httpx"
)

const (
	defaultHeaderName = "Idempotency-Key"
	// ReplayHeader marks responses served from the store.
	ReplayHeader = "X-Idempotent-Replay"
	maxKeyLength = 128
	maxBodyBytes = 1 << 20
)

// guard holds the middleware settings.
type guard struct {
	store   Store
	header  string
	ttl     time.Duration
	methods []string
	clock   func() time.Time
	logger  *zap.Logger
}

type MiddlewareOption func(*guard)

// WithHeader overrides the request header carrying the key.
func WithHeader(name string) MiddlewareOption {
	return func(g *guard) {
		if name = strings.TrimSpace(name); name != "" {
			g.header = name
		}
	}
}

// WithTTL sets how long keys are remembered.
func WithTTL(ttl time.Duration) MiddlewareOption {
	return func(g *guard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithMethods restricts the guarded HTTP methods.
func WithMethods(methods ...string) MiddlewareOption {
	return func(g *guard) {
		var normalized []string
		for _, m := range methods {
			if m = strings.ToUpper(strings.TrimSpace(m)); m != "" {
				normalized = append(normalized, m)
			}
		}
		if len(normalized) > 0 {
			g.methods = normalized
		}
	}
}

func WithLogger(logger *zap.Logger) MiddlewareOption {
	return func(g *guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func WithClock(clock func() time.Time) MiddlewareOption {
	return func(g *guard) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// Middleware makes mutating requests safe to retry. The first request with a key runs the
// handler and its response is stored; repeats with the same body replay it and repeats
// with a different body get 409. Server errors are not stored.
func Middleware(store Store, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	g := &guard{
		store:   store,
		header:  defaultHeaderName,
		ttl:     DefaultTTL,
		methods: []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		clock:   time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(g.methods, r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			g.serve(w, r, next)
		})
	}
}

func (g *guard) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	ctx := r.Context()
	claim, failure, ok := g.claimFor(r)
	if !ok {
		httpx.WriteError(ctx, w, failure)
		return
	}
	logger := g.logger.With(zap.String("idempotencyKey", claim.Key))

	res, err := g.store.Acquire(ctx, claim, g.clock().UTC())
	switch {
	case errors.Is(err, ErrFingerprintMismatch):
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_conflict", "idempotency key already used for a different request", http.StatusConflict))
		return
	case err != nil:
		logger.Error("idempotency: acquire failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_unavailable", "unable to process idempotency key", http.StatusServiceUnavailable))
		return
	case res.Outcome == Replay:
		replay(w, res.Entry)
		return
	case res.Outcome == InFlight:
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_in_progress", "another request is processing this idempotency key", http.StatusConflict))
		return
	}

	buf := &bufferedWriter{header: http.Header{}}
	returned := false
	defer func() {
		if returned {
			return
		}
		// Handler panicked: free the key for retries.
		if err := g.store.Abandon(context.WithoutCancel(ctx), claim); err != nil {
			logger.Warn("idempotency: abandon after panic failed", zap.Error(err))
		}
	}()
	next.ServeHTTP(buf, r)
	returned = true
	resp := buf.response()

	if resp.Code < http.StatusInternalServerError {
		err = g.store.Complete(ctx, claim, resp, g.clock().UTC())
		if err != nil {
			logger.Error("idempotency: storing response failed", zap.Error(err))
		}
	}
	if resp.Code >= http.StatusInternalServerError || err != nil {
		if err := g.store.Abandon(ctx, claim); err != nil {
			logger.Warn("idempotency: abandon failed", zap.Error(err))
		}
	}

	if err := buf.copyTo(w); err != nil {
		logger.Warn("idempotency: write response failed", zap.Error(err))
	}
}

// claimFor validates the key header and fingerprints the request. The key is scoped to the
// caller so two clients picking the same key never collide.
func (g *guard) claimFor(r *http.Request) (Claim, httpx.Error, bool) {
	key := strings.TrimSpace(r.Header.Get(g.header))
	if key == "" {
		return Claim{}, httpx.NewError("idempotency_key_required", "missing "+g.header+" header", http.StatusBadRequest), false
	}
	if len(key) > maxKeyLength {
		return Claim{}, httpx.NewError("invalid_idempotency_key", g.header+" is too long", http.StatusBadRequest), false
	}
	body, err := bufferBody(r)
	if err != nil {
		return Claim{}, httpx.NewError("invalid_request", "unable to read request body", http.StatusBadRequest), false
	}
	return Claim{
		Key:         key + "|" + requesterScope(r),
		Fingerprint: fingerprint(r, body),
		TTL:         g.ttl,
	}, httpx.Error{}, true
}

// bufferBody reads the body so it can be fingerprinted, then rewinds it for the handler.
func bufferBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

func fingerprint(r *http.Request, body []byte) string {
	bodyDigest := ""
	if len(body) > 0 {
		bodyDigest = digest(body)
	}
	parts := []string{r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("Content-Type"), bodyDigest}
	return digest([]byte(strings.Join(parts, "|")))
}

// requesterScope keeps keys from different callers apart. Anonymous visitors are scoped by
// client address, which chi's RealIP middleware has already resolved.
func requesterScope(r *http.Request) string {
	ctx := r.Context()
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity.UID != "" {
		return "user:" + identity.UID
	}
	if svc, ok := auth.ServiceIdentityFromContext(ctx); ok && svc.Subject != "" {
		return "svc:" + svc.Subject
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host = strings.TrimSpace(host); host != "" {
		return "ip:" + host
	}
	return "anonymous"
}

func replay(w http.ResponseWriter, entry Entry) {
	for name, values := range entry.Header {
		w.Header()[name] = append([]string(nil), values...)
	}
	w.Header().Set(ReplayHeader, "true")
	w.WriteHeader(statusOrOK(entry.Code))
	if len(entry.Body) > 0 {
		_, _ = w.Write(entry.Body)
	}
}

func statusOrOK(code int) int {
	if code == 0 {
		return http.StatusOK
	}
	return code
}

// bufferedWriter holds the handler output until it has been stored.
type bufferedWriter struct {
	header http.Header
	code   int
	body   bytes.Buffer
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) WriteHeader(code int) {
	if b.code == 0 {
		b.code = code
	}
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	b.WriteHeader(http.StatusOK)
	return b.body.Write(p)
}

func (b *bufferedWriter) response() Response {
	return Response{Code: statusOrOK(b.code), Header: b.header.Clone(), Body: b.body.Bytes()}
}

func (b *bufferedWriter) copyTo(w http.ResponseWriter) error {
	for name, values := range b.header {
		w.Header()[name] = values
	}
	w.WriteHeader(statusOrOK(b.code))
	if b.body.Len() == 0 {
		return nil
	}
	_, err := w.Write(b.body.Bytes())
	return err
}
