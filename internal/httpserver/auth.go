package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"accounts/backend/internal/observability"
	usecase "accounts/backend/internal/usecase/auth"
)

// TokenCookie names the HttpOnly cookie carrying the access token.
const TokenCookie = "token"

// Resolver maps a request's bearer credential to an authentication result.
type Resolver struct {
	tokens       usecase.TokenManager
	bearerHeader bool
}

// NewResolver builds a resolver. The token cookie is always the first source; with
// bearerHeader set, an "Authorization: Bearer" header is used when the cookie is absent.
func NewResolver(tokens usecase.TokenManager, bearerHeader bool) *Resolver {
	return &Resolver{tokens: tokens, bearerHeader: bearerHeader}
}

// Resolve reads the credential and verifies it. A request without one is a normal
// anonymous request and yields ReasonNoCredential. The request is not modified.
func (res *Resolver) Resolve(r *http.Request) usecase.Result {
	token := res.credential(r)
	if token == "" {
		return usecase.Unauthenticated(usecase.ReasonNoCredential)
	}
	return res.tokens.Verify(token)
}

func (res *Resolver) credential(r *http.Request) string {
	if c, err := r.Cookie(TokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if res.bearerHeader {
		return extractBearerToken(r.Header.Get("Authorization"))
	}
	return ""
}

type ctxKeyAuth struct{}

func contextWithResult(ctx context.Context, result usecase.Result) context.Context {
	return context.WithValue(ctx, ctxKeyAuth{}, result)
}

// ResultFromContext returns the authentication result attached to ctx, if any.
func ResultFromContext(ctx context.Context) (usecase.Result, bool) {
	result, ok := ctx.Value(ctxKeyAuth{}).(usecase.Result)
	return result, ok
}

// IdentityFromContext returns the authenticated account id attached to ctx.
func IdentityFromContext(ctx context.Context) (string, bool) {
	result, ok := ResultFromContext(ctx)
	if !ok || !result.IsAuthenticated() {
		return "", false
	}
	return result.Identity, true
}

// withAuthentication resolves every request and attaches the result to its context.
// It never rejects; routes that need an identity are wrapped by a Gate.
func withAuthentication(next http.Handler, resolver *Resolver, metrics *observability.Metrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result := resolver.Resolve(r)
		metrics.RecordAuth("middleware", result.Outcome(), string(result.Reason))
		next.ServeHTTP(w, r.WithContext(contextWithResult(r.Context(), result)))
	})
}

// AuthenticatedHandler handles a request whose caller has been authenticated as identity.
type AuthenticatedHandler func(w http.ResponseWriter, r *http.Request, identity string)

// Gate guards individual routes.
type Gate struct {
	resolver *Resolver
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewGate constructs a gate using resolver. metrics may be nil.
func NewGate(resolver *Resolver, metrics *observability.Metrics, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{resolver: resolver, metrics: metrics, logger: logger}
}

// Guard reuses the result attached by withAuthentication and only resolves the request
// itself when mounted without that middleware, so a request is authenticated once.
// Unauthenticated callers get a 401 with the fixed rejection body and next is not called.
// Otherwise next runs with the identity passed explicitly and attached to the request context.
func (g *Gate) Guard(next AuthenticatedHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result, ok := ResultFromContext(r.Context())
		if !ok {
			result = g.resolver.Resolve(r)
			g.metrics.RecordAuth("gate", result.Outcome(), string(result.Reason))
		}
		if !result.IsAuthenticated() {
			g.logger.InfoContext(r.Context(), "request rejected",
				"path", r.URL.Path,
				"reason", string(result.Reason),
			)
			writeUnauthorized(w)
			return
		}
		ctx := contextWithResult(r.Context(), result)
		next(w, r.WithContext(ctx), result.Identity)
	})
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
