package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/evilham/prometheus-adlermanager/internal/apierrors"
	"github.com/evilham/prometheus-adlermanager/internal/site"
	"github.com/evilham/prometheus-adlermanager/internal/sites"
)

// Authenticator resolves a bearer token to the site.Manager it belongs to.
// *sites.Manager satisfies this directly.
type Authenticator interface {
	Authenticate(token string) (*site.Manager, bool)
}

// Auth validates the ingestion endpoint's bearer token against auth and
// attaches the matching site name to the request context. A missing or
// unrecognized token is rejected before the body is ever read.
func Auth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get(AuthorizationHeader))
			if token == "" {
				apierrors.WriteRequest(w, r, http.StatusUnauthorized, "missing_token", "missing bearer token")
				return
			}

			sm, ok := auth.Authenticate(token)
			if !ok {
				apierrors.WriteRequest(w, r, http.StatusUnauthorized, "invalid_token", "unrecognized bearer token")
				return
			}

			ctx := withSite(r.Context(), sm.Name())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header, tolerating a bare token with no scheme prefix.
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	fields := strings.Fields(header)
	if len(fields) == 2 && strings.EqualFold(fields[0], "Bearer") {
		return fields[1]
	}
	return fields[len(fields)-1]
}

// withSite attaches the authenticated site's name to ctx.
func withSite(ctx context.Context, siteName string) context.Context {
	return context.WithValue(ctx, siteContextKey, siteName)
}

// siteFromContext returns the site name Auth attached to ctx, if any.
func siteFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(siteContextKey).(string)
	return name, ok && name != ""
}

// SiteFromRequest is the exported form of siteFromContext for handlers
// outside this package (the ingestion handler logs the resolved site).
func SiteFromRequest(r *http.Request) (string, bool) {
	return siteFromContext(r.Context())
}

var _ Authenticator = (*sites.Manager)(nil)
