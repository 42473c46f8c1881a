// Package actorctx carries the authenticated principal id through a request
// context so logging and tracing can pick it up without importing the HTTP
// layer.
package actorctx

import "context"

type ctxKey struct{}

func WithPrincipalID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func PrincipalIDFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKey{}).(string)

	return v, ok && v != ""
}
