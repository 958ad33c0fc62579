package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/sunlease/portal/internal/identity"
)

// ErrInvalidGrant rejects grants that cannot be stored.
var ErrInvalidGrant = errors.New("rbac: invalid grant")

// Service orchestrates RBAC operations.
type Service struct {
	repo Repository
}

// NewService constructs a Service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// PermissionsFor resolves the effective permission map of a user: the role
// defaults overlaid with the user's own overrides. Super admins get no map.
func (s *Service) PermissionsFor(ctx context.Context, userID int64, role identity.Role) (identity.PermissionMap, error) {
	if role == identity.RoleSuperAdmin {
		return nil, nil
	}
	roleGrants, err := s.repo.RoleGrants(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("rbac: role grants: %w", err)
	}
	userGrants, err := s.repo.UserGrants(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: user grants: %w", err)
	}
	perms := toMap(roleGrants)
	perms.Merge(toMap(userGrants))
	return perms, nil
}

// RoleGrants lists the defaults of role.
func (s *Service) RoleGrants(ctx context.Context, role identity.Role) ([]Grant, error) {
	if !role.Valid() {
		return nil, ErrNotFound
	}
	return s.repo.RoleGrants(ctx, role)
}

// SetRoleGrant records a role default.
func (s *Service) SetRoleGrant(ctx context.Context, role identity.Role, g Grant) error {
	if !role.Valid() {
		return ErrNotFound
	}
	if role == identity.RoleSuperAdmin {
		return fmt.Errorf("%w: super admin grants are implicit", ErrInvalidGrant)
	}
	g, err := normalizeGrant(g)
	if err != nil {
		return err
	}
	return s.repo.UpsertRoleGrant(ctx, role, g)
}

// SetUserGrant records a per-user override.
func (s *Service) SetUserGrant(ctx context.Context, userID int64, g Grant) error {
	g, err := normalizeGrant(g)
	if err != nil {
		return err
	}
	return s.repo.UpsertUserGrant(ctx, userID, g)
}

// ClearUserGrant drops an override so the role default applies again.
func (s *Service) ClearUserGrant(ctx context.Context, userID int64, m identity.Module, c identity.Capability) error {
	rows, err := s.repo.DeleteUserGrant(ctx, userID, m, c)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func normalizeGrant(g Grant) (Grant, error) {
	g.Module = identity.ParseModule(string(g.Module))
	g.Capability = identity.ParseCapability(string(g.Capability))
	if g.Module == "" || g.Capability == "" {
		return Grant{}, fmt.Errorf("%w: module and capability required", ErrInvalidGrant)
	}
	return g, nil
}
