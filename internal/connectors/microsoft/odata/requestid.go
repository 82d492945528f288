package odata

import (
	"context"

	"github.com/google/uuid"
)

// RequestIDHeader correlates a request with D365 server-side telemetry.
const RequestIDHeader = "client-request-id"

type requestIDKey struct{}

// WithRequestID attaches id to ctx. Every page and retry issued under ctx
// carries the same client-request-id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// NewRequestContext attaches a fresh random request ID to ctx.
func NewRequestContext(ctx context.Context) (context.Context, string) {
	id := uuid.NewString()
	return WithRequestID(ctx, id), id
}

// RequestIDFrom returns the request ID on ctx, if any.
func RequestIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}
