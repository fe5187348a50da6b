package ports

import "context"

// Identity is the signed-in caller as established by the auth middleware.
type Identity struct {
	UserID string
	Email  string
}

func (i Identity) IsZero() bool { return i.UserID == "" && i.Email == "" }

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the caller identity, or false when the request is unauthenticated.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || id.IsZero() {
		return Identity{}, false
	}
	return id, true
}
