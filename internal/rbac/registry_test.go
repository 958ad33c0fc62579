package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunlease/portal/internal/identity"
)

func TestResolveExactBeatsPrefix(t *testing.T) {
	reg := NewRegistry(
		RouteEntry{Path: "/admin/users", Module: identity.ModuleUsers, Capability: identity.CapView, Match: MatchPrefix},
		RouteEntry{Path: "/admin/users/create", Module: identity.ModuleUsers, Capability: identity.CapCreate, Match: MatchExact},
	)

	e, ok := reg.Resolve("/admin/users/create")
	require.True(t, ok)
	assert.Equal(t, identity.CapCreate, e.Capability)
	assert.Equal(t, MatchExact, e.Match)

	e, ok = reg.Resolve("/admin/users/create/extra")
	require.True(t, ok)
	assert.Equal(t, identity.CapView, e.Capability, "exact entries never match longer paths")
}

func TestResolveLongestPrefixWins(t *testing.T) {
	reg := NewRegistry(
		RouteEntry{Path: "/admin", Module: identity.ModuleDashboard, Capability: identity.CapView},
		RouteEntry{Path: "/admin/projects/list", Module: identity.ModuleProjects, Capability: identity.CapView},
		RouteEntry{Path: "/admin/projects", Module: identity.ModuleProjects, Capability: identity.CapEdit},
	)

	e, ok := reg.Resolve("/admin/projects/list/extra")
	require.True(t, ok)
	assert.Equal(t, "/admin/projects/list", e.Path)

	e, ok = reg.Resolve("/admin/other")
	require.True(t, ok)
	assert.Equal(t, "/admin", e.Path)
}

func TestResolveTieKeepsFirstDeclared(t *testing.T) {
	reg := NewRegistry(
		RouteEntry{Path: "/investor/payouts", Module: identity.ModulePayouts, Capability: identity.CapView},
		RouteEntry{Path: "/investor/payouts", Module: identity.ModulePayouts, Capability: identity.CapExport},
	)
	e, ok := reg.Resolve("/investor/payouts/2024")
	require.True(t, ok)
	assert.Equal(t, identity.CapView, e.Capability)
}

func TestResolveNoMatch(t *testing.T) {
	reg := NewRegistry(DefaultRoutes()...)

	_, ok := reg.Resolve("/about-us")
	assert.False(t, ok)

	var nilReg *Registry
	_, ok = nilReg.Resolve("/admin")
	assert.False(t, ok)
}

func TestRegistryCopiesInput(t *testing.T) {
	entries := []RouteEntry{{Path: "/admin/leases", Module: identity.ModuleLeases, Capability: identity.CapView}}
	reg := NewRegistry(entries...)
	entries[0].Capability = identity.CapDelete

	e, ok := reg.Resolve("/admin/leases")
	require.True(t, ok)
	assert.Equal(t, identity.CapView, e.Capability)
}

func TestDefaultRoutes(t *testing.T) {
	reg := NewRegistry(DefaultRoutes()...)

	cases := map[string]Check{
		"/admin/dashboard":               {identity.ModuleDashboard, identity.CapView},
		"/admin/projects":                {identity.ModuleProjects, identity.CapView},
		"/admin/projects/create":         {identity.ModuleProjects, identity.CapCreate},
		"/admin/projects/edit/12":        {identity.ModuleProjects, identity.CapEdit},
		"/admin/invoices/approve/7":      {identity.ModuleInvoices, identity.CapApprove},
		"/admin/reports/export/monthly":  {identity.ModuleReports, identity.CapExport},
		"/offtaker/analytics/dashboard":  {identity.ModuleEnergyAnalytics, identity.CapView},
		"/investor/portfolio/projects/3": {identity.ModulePortfolio, identity.CapView},
	}
	for path, want := range cases {
		e, ok := reg.Resolve(path)
		require.True(t, ok, path)
		assert.Equal(t, want, Check{e.Module, e.Capability}, path)
	}

	assert.Equal(t, []string{"/", "/about"}, reg.Unregistered([]string{"/", "/about", "/admin/users"}))
	assert.NotEmpty(t, reg.Entries())
}
