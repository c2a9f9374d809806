package middleware

import (
	"context"
	"net/http"

	"github.com/evilham/prometheus-adlermanager/internal/httpcontext"
	"github.com/google/uuid"
)

// RequestID generates or extracts the request ID from headers and attaches
// it to both the request context and the response headers.
//
// If the incoming request has an X-Request-ID header, it is used. Otherwise
// a new UUID is generated. Retrieve it downstream with GetRequestID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), httpcontext.RequestIDKey, id)
		r = r.WithContext(ctx)

		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// GetRequestID extracts the request ID from ctx, or "" if none was set.
func GetRequestID(ctx context.Context) string {
	return httpcontext.RequestID(ctx)
}
