package shared

import (
	"context"

	"github.com/google/uuid"
)

// RolePlatformAdmin may operate on any tenant.
const RolePlatformAdmin = "platform_admin"

// Identity is the verified caller attached to a request.
type Identity struct {
	TenantID uuid.UUID
	UserID   string
	Name     string
	Role     string
}

// Actor returns the label written to audit entries and movements.
func (i Identity) Actor() string {
	if i.Name != "" {
		return i.Name
	}
	return i.UserID
}

type identityContextKey struct{}

// ContextWithIdentity stores the identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}

// ActorFromContext returns the actor label or "system" when no identity is present.
func ActorFromContext(ctx context.Context) string {
	if id, ok := IdentityFromContext(ctx); ok && id.Actor() != "" {
		return id.Actor()
	}
	return "system"
}
