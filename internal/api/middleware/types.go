package middleware

type contextKey string

// siteContextKey is the context key the ingestion auth middleware stores
// the authenticated site's name under.
const siteContextKey contextKey = "site"

// HTTP headers.
const (
	RequestIDHeader = "X-Request-ID"

	AuthorizationHeader = "Authorization"

	RateLimitLimitHeader     = "X-RateLimit-Limit"
	RateLimitRemainingHeader = "X-RateLimit-Remaining"
	RateLimitResetHeader     = "X-RateLimit-Reset"
)
