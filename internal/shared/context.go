package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the acting user's ID in context. Authentication is
// handled by the outer shell; handlers only need the identity for stamping.
func ContextWithActor(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actorID)
}

// ActorID extracts the acting user's ID from context, zero when absent.
func ActorID(ctx context.Context) int64 {
	id, _ := ctx.Value(actorContextKey{}).(int64)
	return id
}
