package core

import "context"

type ownerKey struct{}

// WithOwner returns a copy of ctx carrying the authenticated owner id.
// The auth middleware sets it; the pipelines read it.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// OwnerFromContext returns the owner id, or "" when the request is anonymous.
func OwnerFromContext(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner
}
