package remote

import "context"

type contextKey string

const idempotencyKey contextKey = "idempotency_key"

// WithIdempotencyKey annotates ctx with the key sent as the Idempotency-Key
// header. The orchestrator uses the queue item id.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, idempotencyKey, key)
}

// IdempotencyKeyFromContext returns the idempotency key if present.
func IdempotencyKeyFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(idempotencyKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
