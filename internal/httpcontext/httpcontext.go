// Package httpcontext holds the request-scoped context keys shared between
// the middleware stack and anything downstream that needs to read them
// (apierrors, handlers), split out from internal/api/middleware to avoid an
// import cycle between the two.
package httpcontext

import "context"

type contextKey string

// RequestIDKey is the context key the request-ID middleware stores under.
const RequestIDKey contextKey = "request_id"

// RequestID returns the request ID stashed in ctx, or "" if none.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}
