package auth

import (
	"context"
	"slices"
	"strings"
)

// Console roles carried in the Firebase "role" custom claim.
const (
	// RoleEditor may edit page metadata and run syncs.
	RoleEditor = "editor"
	// RoleAdmin may do everything an editor can plus read quote requests.
	RoleAdmin = "admin"
)

// Identity is the console user behind a verified Firebase ID token. Roles are lower-cased
// and unique.
type Identity struct {
	UID   string
	Email string
	Roles []string
}

func (i *Identity) HasRole(role string) bool {
	return i != nil && slices.Contains(i.Roles, normaliseRole(role))
}

// Actor is what console edits are attributed to: the email, or the uid for accounts without one.
func (i *Identity) Actor() string {
	if i == nil {
		return ""
	}
	if email := strings.TrimSpace(i.Email); email != "" {
		return email
	}
	return i.UID
}

type identityKey struct{}

func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, _ := ctx.Value(identityKey{}).(*Identity)
	return identity, identity != nil
}

func normaliseRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
