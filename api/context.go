package api

import "context"

type requestIDContextKey struct{}

// WithRequestID attaches a caller-chosen request ID to ctx. Requests made
// with ctx send it as X-Request-ID instead of a generated one.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}

type anonymousContextKey struct{}

// anonymous marks ctx so the bearer transport sends no token. Used by the
// public login and register endpoints.
func anonymous(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, anonymousContextKey{}, true)
}

func isAnonymous(ctx context.Context) bool {
	if ctx == nil {
		return false
	}

	v, _ := ctx.Value(anonymousContextKey{}).(bool)
	return v
}
