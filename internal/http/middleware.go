package http

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const requestIDContextKey contextKey = "request_id"

// RequestIDHeader carries the client generated request id to the backend.
const RequestIDHeader = "X-Request-ID"

// WithRequestID stores id in the context so RequestIDTransport sends it
// instead of generating one. Used to correlate a command's calls in logs.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}

// RequestIDFromContext extracts the request id from the context.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

// NewRequestID returns a time ordered id, falling back to a random one.
func NewRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// RequestIDTransport sets X-Request-ID on outgoing requests which lack one.
type RequestIDTransport struct {
	Base http.RoundTripper
}

func (t *RequestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(RequestIDHeader) != "" {
		return t.base().RoundTrip(req)
	}

	id := RequestIDFromContext(req.Context())
	if id == "" {
		id = NewRequestID()
	}

	// RoundTrippers must not modify the caller's request
	req = req.Clone(WithRequestID(req.Context(), id))
	req.Header.Set(RequestIDHeader, id)

	return t.base().RoundTrip(req)
}

func (t *RequestIDTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}
