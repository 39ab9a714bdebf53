package auth

import (
	"context"

	"github.com/google/uuid"
)

// Staff roles.
const (
	RoleAdmin   = "admin"
	RoleLabTech = "lab_tech"
	RoleDoctor  = "doctor"
)

// ValidRole reports whether r is a known staff role.
func ValidRole(r string) bool {
	switch r {
	case RoleAdmin, RoleLabTech, RoleDoctor:
		return true
	}
	return false
}

// Actor is the authenticated staff member performing a request. Services
// receive it explicitly rather than reading ambient state.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

func (a Actor) IsZero() bool { return a.UserID == uuid.Nil }

type actorKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}
