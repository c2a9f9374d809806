// Package apierrors funnels HTTP-facing errors through one JSON shape
// covering 400/401 input rejection and 500 internal failure.
package apierrors

import (
	"encoding/json"
	"net/http"

	"github.com/evilham/prometheus-adlermanager/internal/httpcontext"
)

// Body is the wire shape of an error response: {"error":{"code","message","request_id"}}.
type Body struct {
	Error Detail `json:"error"`
}

// Detail is the nested error object.
type Detail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Write sets the status code and writes a JSON error body. It has no request
// to read from, so the body carries no request ID; WriteRequest adds one.
func Write(w http.ResponseWriter, status int, code, message string) {
	WriteRequest(w, nil, status, code, message)
}

// WriteRequest is Write, but also reads the request ID out of r's context.
func WriteRequest(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	body := Body{Error: Detail{Code: code, Message: message}}
	if r != nil {
		body.Error.RequestID = httpcontext.RequestID(r.Context())
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
