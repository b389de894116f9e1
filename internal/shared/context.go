package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the acting user identifier, as asserted by the upstream gateway.
func ContextWithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actorID)
}

// ActorFromContext extracts the acting user identifier, empty when unknown.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorContextKey{}).(string)
	return actor
}
