package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sunlease/portal/internal/identity"
)

func TestGatePrecedenceHasAccessFirst(t *testing.T) {
	perms := identity.PermissionMap{}
	perms.Grant(identity.ModuleProjects, identity.CapView)
	ev := NewEvaluator(staff(perms))

	g := Gate{Module: identity.ModuleProjects, HasAccess: true, Capability: identity.CapEdit}
	assert.True(t, g.Allows(ev), "module access decides, capability ignored")

	g = Gate{Module: identity.ModuleInvoices, HasAccess: true, Capability: identity.CapEdit}
	assert.False(t, g.Allows(NewEvaluator(staff(identity.PermissionMap{
		identity.ModuleInvoices: {identity.CapEdit: false},
	}))))
}

func TestGateShorthandOrder(t *testing.T) {
	perms := identity.PermissionMap{}
	perms.Grant(identity.ModuleProjects, identity.CapCreate)
	ev := NewEvaluator(staff(perms))

	assert.False(t, Gate{Module: identity.ModuleProjects, View: true, Create: true}.Allows(ev), "view evaluated before create")
	assert.True(t, Gate{Module: identity.ModuleProjects, Create: true, Delete: true}.Allows(ev))
	assert.False(t, Gate{Module: identity.ModuleProjects, Edit: true, Capability: identity.CapCreate}.Allows(ev))
	assert.False(t, Gate{Module: identity.ModuleProjects, Delete: true}.Allows(ev))
}

func TestGateCapabilityList(t *testing.T) {
	perms := identity.PermissionMap{}
	perms.Grant(identity.ModuleInvoices, identity.CapView, identity.CapApprove)
	ev := NewEvaluator(staff(perms))

	anyGate := Gate{Module: identity.ModuleInvoices, Capabilities: []identity.Capability{identity.CapApprove, identity.CapDelete}}
	allGate := anyGate
	allGate.RequireAll = true

	assert.True(t, anyGate.Allows(ev))
	assert.False(t, allGate.Allows(ev))
	assert.True(t, Gate{Module: identity.ModuleInvoices, Capability: identity.CapApprove}.Allows(ev))
	assert.False(t, Gate{Module: identity.ModuleInvoices}.Allows(ev), "no selection denies")
}

func TestAllowedActions(t *testing.T) {
	perms := identity.PermissionMap{}
	perms.Grant(identity.ModuleLeases, identity.CapView, identity.CapEdit)
	ev := NewEvaluator(staff(perms))

	got := ev.AllowedActions(
		Action{Name: "create", Path: "/admin/leases/create", Gate: Gate{Module: identity.ModuleLeases, Create: true}},
		Action{Name: "edit", Path: "/admin/leases/edit/", Gate: Gate{Module: identity.ModuleLeases, Edit: true}},
	)
	assert.Len(t, got, 1)
	assert.Equal(t, "edit", got[0].Name)
}
