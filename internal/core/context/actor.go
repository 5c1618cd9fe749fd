package context

import "context"

type actorKey struct{}

// WithActor stores the name of the principal performing the request.
// Authentication happens upstream; the ledger only records who acted.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// GetActor returns the acting principal or empty string.
func GetActor(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok {
		return v
	}
	return ""
}
