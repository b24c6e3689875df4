// Package identity carries the authenticated caller through a request context.
package identity

import "context"

// Actor is the caller on whose behalf an operation runs. A privileged actor may
// act on reservations it does not own.
type Actor struct {
	ID         string `json:"id"`
	Privileged bool   `json:"privileged"`
}

func (a Actor) IsZero() bool {
	return a.ID == ""
}

type actorKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func FromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok && !actor.IsZero()
}
