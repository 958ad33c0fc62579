package rbac

import "github.com/sunlease/portal/internal/identity"

// Fixed navigation targets used by the guards.
const (
	AccessDeniedPath = "/access-denied"
	LoginPath        = "/login"
)

// crudRoutes declares the list, create, edit and view pages of a module under
// base. The list rule is a prefix so nested pages without their own rule
// inherit the view requirement.
func crudRoutes(base string, m identity.Module) []RouteEntry {
	return []RouteEntry{
		{Path: base, Module: m, Capability: identity.CapView, Match: MatchPrefix},
		{Path: base + "/create", Module: m, Capability: identity.CapCreate, Match: MatchExact},
		{Path: base + "/edit/", Module: m, Capability: identity.CapEdit, Match: MatchPrefix},
		{Path: base + "/view/", Module: m, Capability: identity.CapView, Match: MatchPrefix},
	}
}

// DefaultRoutes returns the route table of the three portals.
func DefaultRoutes() []RouteEntry {
	var routes []RouteEntry
	routes = append(routes,
		RouteEntry{Path: "/admin/dashboard", Module: identity.ModuleDashboard, Capability: identity.CapView, Match: MatchExact},
	)
	routes = append(routes, crudRoutes("/admin/projects", identity.ModuleProjects)...)
	routes = append(routes, crudRoutes("/admin/invoices", identity.ModuleInvoices)...)
	routes = append(routes, crudRoutes("/admin/users", identity.ModuleUsers)...)
	routes = append(routes, crudRoutes("/admin/roles", identity.ModuleRoles)...)
	routes = append(routes, crudRoutes("/admin/investors", identity.ModuleInvestors)...)
	routes = append(routes, crudRoutes("/admin/offtakers", identity.ModuleOfftakers)...)
	routes = append(routes, crudRoutes("/admin/leases", identity.ModuleLeases)...)
	routes = append(routes, crudRoutes("/admin/payments", identity.ModulePayments)...)
	routes = append(routes, crudRoutes("/admin/meter-readings", identity.ModuleMeterReading)...)
	routes = append(routes, crudRoutes("/admin/content", identity.ModuleContent)...)
	routes = append(routes, crudRoutes("/admin/enquiries", identity.ModuleEnquiries)...)
	routes = append(routes,
		RouteEntry{Path: "/admin/invoices/approve/", Module: identity.ModuleInvoices, Capability: identity.CapApprove, Match: MatchPrefix},
		RouteEntry{Path: "/admin/content/publish/", Module: identity.ModuleContent, Capability: identity.CapPublish, Match: MatchPrefix},
		RouteEntry{Path: "/admin/reports", Module: identity.ModuleReports, Capability: identity.CapView, Match: MatchPrefix},
		RouteEntry{Path: "/admin/reports/export", Module: identity.ModuleReports, Capability: identity.CapExport, Match: MatchPrefix},
		RouteEntry{Path: "/admin/settings", Module: identity.ModuleSettings, Capability: identity.CapEdit, Match: MatchPrefix},
		RouteEntry{Path: "/admin/permissions", Module: identity.ModuleRoles, Capability: identity.CapView, Match: MatchPrefix},

		RouteEntry{Path: "/investor/dashboard", Module: identity.ModuleDashboard, Capability: identity.CapView, Match: MatchExact},
		RouteEntry{Path: "/investor/portfolio", Module: identity.ModulePortfolio, Capability: identity.CapView, Match: MatchPrefix},
		RouteEntry{Path: "/investor/payouts", Module: identity.ModulePayouts, Capability: identity.CapView, Match: MatchPrefix},
		RouteEntry{Path: "/investor/documents", Module: identity.ModuleDocuments, Capability: identity.CapView, Match: MatchPrefix},
		RouteEntry{Path: "/investor/support", Module: identity.ModuleSupport, Capability: identity.CapView, Match: MatchPrefix},
		RouteEntry{Path: "/investor/profile", Module: identity.ModuleProfile, Capability: identity.CapView, Match: MatchPrefix},

		RouteEntry{Path: "/offtaker/analytics", Module: identity.ModuleEnergyAnalytics, Capability: identity.CapView, Match: MatchPrefix},
		RouteEntry{Path: "/offtaker/billing", Module: identity.ModuleBilling, Capability: identity.CapView, Match: MatchPrefix},
		RouteEntry{Path: "/offtaker/invoices", Module: identity.ModuleInvoices, Capability: identity.CapView, Match: MatchPrefix},
		RouteEntry{Path: "/offtaker/documents", Module: identity.ModuleDocuments, Capability: identity.CapView, Match: MatchPrefix},
		RouteEntry{Path: "/offtaker/support", Module: identity.ModuleSupport, Capability: identity.CapView, Match: MatchPrefix},
		RouteEntry{Path: "/offtaker/profile", Module: identity.ModuleProfile, Capability: identity.CapView, Match: MatchPrefix},
	)
	return routes
}
