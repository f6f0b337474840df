package httputil

import "context"

type contextKey string

const (
	callerKey    = contextKey("caller_id")
	requestIDKey = contextKey("request_id")
)

// CallerID returns the verified caller identifier set by the auth middleware.
func CallerID(ctx context.Context) string {
	if id, ok := ctx.Value(callerKey).(string); ok {
		return id
	}
	return ""
}

// WithCaller injects a caller identifier; used by the auth middleware and tests.
func WithCaller(ctx context.Context, callerID string) context.Context {
	return context.WithValue(ctx, callerKey, callerID)
}

// RequestIDFrom returns the correlation id for the request, if any.
func RequestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRequestID injects a correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}
