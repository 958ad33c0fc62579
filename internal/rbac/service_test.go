package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunlease/portal/internal/identity"
)

type stubRepo struct {
	role    map[identity.Role][]Grant
	user    map[int64][]Grant
	err     error
	upserts []Grant
	deleted int64
}

func (s *stubRepo) RoleGrants(ctx context.Context, role identity.Role) ([]Grant, error) {
	return s.role[role], s.err
}

func (s *stubRepo) UserGrants(ctx context.Context, userID int64) ([]Grant, error) {
	return s.user[userID], s.err
}

func (s *stubRepo) UpsertRoleGrant(ctx context.Context, role identity.Role, g Grant) error {
	s.upserts = append(s.upserts, g)
	return s.err
}

func (s *stubRepo) UpsertUserGrant(ctx context.Context, userID int64, g Grant) error {
	s.upserts = append(s.upserts, g)
	return s.err
}

func (s *stubRepo) DeleteUserGrant(ctx context.Context, userID int64, m identity.Module, c identity.Capability) (int64, error) {
	return s.deleted, s.err
}

func TestPermissionsForOverlaysUserGrants(t *testing.T) {
	repo := &stubRepo{
		role: map[identity.Role][]Grant{
			identity.RoleAdminStaff: {
				{Module: identity.ModuleProjects, Capability: identity.CapView, Granted: true},
				{Module: identity.ModuleProjects, Capability: identity.CapDelete, Granted: true},
			},
		},
		user: map[int64][]Grant{
			42: {
				{Module: identity.ModuleProjects, Capability: identity.CapDelete, Granted: false},
				{Module: identity.ModuleInvoices, Capability: identity.CapApprove, Granted: true},
			},
		},
	}
	svc := NewService(repo)

	perms, err := svc.PermissionsFor(context.Background(), 42, identity.RoleAdminStaff)
	require.NoError(t, err)
	assert.True(t, perms[identity.ModuleProjects][identity.CapView])
	assert.False(t, perms[identity.ModuleProjects][identity.CapDelete])
	assert.True(t, perms[identity.ModuleInvoices][identity.CapApprove])

	perms, err = svc.PermissionsFor(context.Background(), 1, identity.RoleSuperAdmin)
	require.NoError(t, err)
	assert.Nil(t, perms)
}

func TestPermissionsForWrapsErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewService(&stubRepo{err: boom}).PermissionsFor(context.Background(), 5, identity.RoleInvestor)
	assert.ErrorIs(t, err, boom)
}

func TestSetRoleGrantValidation(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo)
	ctx := context.Background()

	assert.ErrorIs(t, svc.SetRoleGrant(ctx, identity.Role(99), Grant{Module: "x", Capability: "view"}), ErrNotFound)
	assert.ErrorIs(t, svc.SetRoleGrant(ctx, identity.RoleSuperAdmin, Grant{Module: "x", Capability: "view"}), ErrInvalidGrant)
	assert.ErrorIs(t, svc.SetRoleGrant(ctx, identity.RoleInvestor, Grant{Module: " "}), ErrInvalidGrant)

	require.NoError(t, svc.SetRoleGrant(ctx, identity.RoleInvestor, Grant{Module: " Payouts ", Capability: "VIEW", Granted: true}))
	require.Len(t, repo.upserts, 1)
	assert.Equal(t, identity.ModulePayouts, repo.upserts[0].Module)
	assert.Equal(t, identity.CapView, repo.upserts[0].Capability)
}

func TestClearUserGrantNotFound(t *testing.T) {
	svc := NewService(&stubRepo{deleted: 0})
	assert.ErrorIs(t, svc.ClearUserGrant(context.Background(), 3, identity.ModuleProjects, identity.CapView), ErrNotFound)

	svc = NewService(&stubRepo{deleted: 1})
	assert.NoError(t, svc.ClearUserGrant(context.Background(), 3, identity.ModuleProjects, identity.CapView))
}
