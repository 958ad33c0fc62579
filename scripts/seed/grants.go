package main

import "github.com/sunlease/portal/internal/identity"

func view(modules ...identity.Module) identity.PermissionMap {
	perms := make(identity.PermissionMap)
	for _, m := range modules {
		perms.Set(m, identity.CapView, true)
	}
	return perms
}

// defaultGrants are the role defaults a fresh install starts from. Super
// admins are absent: they bypass permission checks.
func defaultGrants() map[identity.Role]identity.PermissionMap {
	staff := view(
		identity.ModuleDashboard, identity.ModuleProjects, identity.ModuleLeases,
		identity.ModuleMeterReading, identity.ModuleInvoices, identity.ModulePayments,
		identity.ModuleReports, identity.ModuleInvestors, identity.ModuleOfftakers,
		identity.ModuleUsers, identity.ModuleRoles, identity.ModuleContent, identity.ModuleEnquiries,
	)
	for _, m := range []identity.Module{
		identity.ModuleProjects, identity.ModuleLeases, identity.ModuleMeterReading,
		identity.ModuleInvoices, identity.ModulePayments, identity.ModuleContent, identity.ModuleEnquiries,
	} {
		staff.Set(m, identity.CapCreate, true)
		staff.Set(m, identity.CapEdit, true)
	}
	staff.Set(identity.ModuleReports, identity.CapExport, true)
	staff.Set(identity.ModuleInvoices, identity.CapApprove, true)
	staff.Set(identity.ModuleContent, identity.CapPublish, true)

	offtaker := view(
		identity.ModuleEnergyAnalytics, identity.ModuleBilling, identity.ModuleInvoices,
		identity.ModuleDocuments, identity.ModuleSupport, identity.ModuleProfile,
	)
	offtaker.Set(identity.ModuleProfile, identity.CapEdit, true)
	offtaker.Set(identity.ModuleSupport, identity.CapCreate, true)

	investor := view(
		identity.ModuleDashboard, identity.ModulePortfolio, identity.ModulePayouts,
		identity.ModuleDocuments, identity.ModuleSupport, identity.ModuleProfile,
	)
	investor.Set(identity.ModuleProfile, identity.CapEdit, true)
	investor.Set(identity.ModuleSupport, identity.CapCreate, true)
	investor.Set(identity.ModuleDocuments, identity.CapExport, true)

	return map[identity.Role]identity.PermissionMap{
		identity.RoleAdminStaff: staff,
		identity.RoleOfftaker:   offtaker,
		identity.RoleInvestor:   investor,
	}
}
