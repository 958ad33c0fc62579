package session

import (
	"context"
	"net/http"

	"github.com/sunlease/portal/internal/identity"
)

type (
	storeContextKey   struct{}
	managerContextKey struct{}
)

// ContextWithStore stores the session store in context.
func ContextWithStore(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, storeContextKey{}, s)
}

// StoreFromContext extracts the session store from context.
func StoreFromContext(ctx context.Context) *Store {
	s, _ := ctx.Value(storeContextKey{}).(*Store)
	return s
}

// ContextWithManager stores the session manager in context.
func ContextWithManager(ctx context.Context, m *Manager) context.Context {
	return context.WithValue(ctx, managerContextKey{}, m)
}

// ManagerFromContext extracts the session manager from context.
func ManagerFromContext(ctx context.Context) *Manager {
	m, _ := ctx.Value(managerContextKey{}).(*Manager)
	return m
}

// IdentitySource reads the identity of the request's session. It satisfies
// rbac.IdentitySource.
func IdentitySource(r *http.Request) (*identity.Identity, bool) {
	s := StoreFromContext(r.Context())
	if s == nil {
		return nil, false
	}
	v := s.View()
	return v.User, v.Loading
}
