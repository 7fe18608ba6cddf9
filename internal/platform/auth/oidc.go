package auth

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/httpx"
)

// OIDCPolicy lists what a Google-signed token must carry to reach an internal endpoint.
type OIDCPolicy struct {
	Audience string
	Issuers  []string
	// ServiceAccounts, when non-empty, restricts the token "email" claim.
	ServiceAccounts []string
}

// OIDCValidator checks the OIDC tokens Cloud Scheduler attaches to its HTTP targets.
type OIDCValidator struct {
	cache    *JWKSCache
	logger   *zap.Logger
	now      func() time.Time
	attempts metric.Int64Counter
	duration metric.Float64Histogram
}

type OIDCOption func(*OIDCValidator)

func WithOIDCLogger(logger *zap.Logger) OIDCOption {
	return func(v *OIDCValidator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithOIDCMeter records one attempt per request, tagged with the outcome.
func WithOIDCMeter(meter metric.Meter) OIDCOption {
	return func(v *OIDCValidator) {
		if meter == nil {
			return
		}
		v.attempts, _ = meter.Int64Counter("site.auth.oidc.verifications",
			metric.WithDescription("OIDC verification attempts by outcome"))
		v.duration, _ = meter.Float64Histogram("site.auth.oidc.duration",
			metric.WithUnit("ms"), metric.WithDescription("OIDC verification latency"))
	}
}

func WithOIDCClock(now func() time.Time) OIDCOption {
	return func(v *OIDCValidator) {
		if now != nil {
			v.now = now
		}
	}
}

func NewOIDCValidator(cache *JWKSCache, opts ...OIDCOption) *OIDCValidator {
	v := &OIDCValidator{cache: cache, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// ServiceIdentity is the verified caller of an internal endpoint.
type ServiceIdentity struct {
	Subject  string
	Email    string
	Issuer   string
	Audience string
}

type serviceIdentityKey struct{}

func WithServiceIdentity(ctx context.Context, identity *ServiceIdentity) context.Context {
	if identity == nil {
		return ctx
	}
	return context.WithValue(ctx, serviceIdentityKey{}, identity)
}

func ServiceIdentityFromContext(ctx context.Context) (*ServiceIdentity, bool) {
	identity, _ := ctx.Value(serviceIdentityKey{}).(*ServiceIdentity)
	return identity, identity != nil
}

// rejection carries the HTTP answer plus the metric reason for a refused token.
type rejection struct {
	status  int
	code    string
	message string
	reason  string
}

func unauthorized(message, reason string) *rejection {
	return &rejection{status: http.StatusUnauthorized, code: "invalid_token", message: message, reason: reason}
}

func unavailable(message, reason string) *rejection {
	return &rejection{status: http.StatusServiceUnavailable, code: "verification_unavailable", message: message, reason: reason}
}

// RequireOIDC admits requests whose bearer token is RS256-signed by a key in the JWKS and
// matches policy. An empty audience rejects everything with 503.
func (v *OIDCValidator) RequireOIDC(policy OIDCPolicy) func(http.Handler) http.Handler {
	policy.Audience = strings.TrimSpace(policy.Audience)
	policy.Issuers = compact(policy.Issuers)
	policy.ServiceAccounts = compact(policy.ServiceAccounts)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			started := v.now()
			identity, rej := v.verify(ctx, r.Header.Get("Authorization"), policy)
			if rej != nil {
				v.observe(ctx, rej.reason, started)
				httpx.WriteError(ctx, w, httpx.NewError(rej.code, rej.message, rej.status))
				return
			}
			v.observe(ctx, "ok", started)
			next.ServeHTTP(w, r.WithContext(WithServiceIdentity(ctx, identity)))
		})
	}
}

func (v *OIDCValidator) verify(ctx context.Context, header string, policy OIDCPolicy) (*ServiceIdentity, *rejection) {
	if policy.Audience == "" {
		return nil, unavailable("oidc audience not configured", "audience_not_configured")
	}
	raw, ok := bearerToken(header)
	if !ok {
		return nil, &rejection{status: http.StatusUnauthorized, code: "unauthenticated", message: "oidc token missing", reason: "token_missing"}
	}
	if v.cache == nil {
		return nil, unavailable("oidc verification unavailable", "cache_unavailable")
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if _, err := parser.ParseWithClaims(raw, claims, v.cache.Keyfunc(ctx)); err != nil {
		if errors.Is(err, ErrJWKSFetchFailed) {
			v.logger.Warn("auth: jwks unavailable", zap.Error(err))
			return nil, unavailable("oidc keys unavailable", "jwks_unavailable")
		}
		v.logger.Info("auth: oidc token rejected", zap.Error(err))
		return nil, unauthorized("oidc token verification failed", "token_invalid")
	}

	identity := &ServiceIdentity{Audience: policy.Audience}
	identity.Issuer, _ = claims["iss"].(string)
	identity.Email, _ = claims["email"].(string)
	identity.Subject, _ = claims["sub"].(string)

	if len(policy.Issuers) > 0 && !slices.Contains(policy.Issuers, identity.Issuer) {
		return nil, unauthorized("oidc issuer mismatch", "issuer_mismatch")
	}
	if !claims.VerifyAudience(policy.Audience, true) {
		return nil, unauthorized("oidc audience mismatch", "audience_mismatch")
	}
	if len(policy.ServiceAccounts) > 0 && !slices.Contains(policy.ServiceAccounts, identity.Email) {
		v.logger.Info("auth: service account not allowed", zap.String("email", identity.Email))
		return nil, &rejection{status: http.StatusForbidden, code: "forbidden", message: "service account not allowed", reason: "account_not_allowed"}
	}
	return identity, nil
}

func (v *OIDCValidator) observe(ctx context.Context, reason string, started time.Time) {
	attrs := metric.WithAttributes(attribute.Bool("success", reason == "ok"), attribute.String("reason", reason))
	if v.attempts != nil {
		v.attempts.Add(ctx, 1, attrs)
	}
	if v.duration != nil {
		v.duration.Record(ctx, float64(v.now().Sub(started))/float64(time.Millisecond), attrs)
	}
}

func compact(values []string) []string {
	var out []string
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	return out
}
