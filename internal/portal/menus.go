package portal

import (
	"github.com/sunlease/portal/internal/identity"
	"github.com/sunlease/portal/internal/rbac"
)

// AdminMenu is the navigation of the admin portal. Leaves without an explicit
// Permission are keyed by their normalised label.
func AdminMenu() []rbac.MenuItem {
	return []rbac.MenuItem{
		{Label: "Dashboard", Path: "/admin/dashboard", Icon: "home"},
		{Label: "Operations", Icon: "sun", Children: []rbac.MenuItem{
			{Label: "Projects", Path: "/admin/projects"},
			{Label: "Leases", Path: "/admin/leases"},
			{Label: "Meter Readings", Path: "/admin/meter-readings"},
		}},
		{Label: "Finance", Icon: "wallet", Children: []rbac.MenuItem{
			{Label: "Invoices", Path: "/admin/invoices"},
			{Label: "Payments", Path: "/admin/payments"},
			{Label: "Reports", Path: "/admin/reports"},
		}},
		{Label: "Accounts", Icon: "users", Children: []rbac.MenuItem{
			{Label: "Investors", Path: "/admin/investors"},
			{Label: "Offtakers", Path: "/admin/offtakers"},
			{Label: "Users", Path: "/admin/users"},
			{Label: "Roles", Path: "/admin/roles"},
			{Label: "Permissions", Path: "/admin/permissions", Permission: identity.ModuleRoles},
		}},
		{Label: "Website", Icon: "globe", Children: []rbac.MenuItem{
			{Label: "Content", Path: "/admin/content"},
			{Label: "Enquiries", Path: "/admin/enquiries"},
		}},
		{Label: "Settings", Path: "/admin/settings", Icon: "cog"},
	}
}

// InvestorMenu is the navigation of the investor portal.
func InvestorMenu() []rbac.MenuItem {
	return []rbac.MenuItem{
		{Label: "Dashboard", Path: "/investor/dashboard", Icon: "home"},
		{Label: "Portfolio", Path: "/investor/portfolio"},
		{Label: "Payouts", Path: "/investor/payouts"},
		{Label: "Documents", Path: "/investor/documents"},
		{Label: "Support", Path: "/investor/support"},
		{Label: "Profile", Path: "/investor/profile"},
	}
}

// OfftakerMenu is the navigation of the offtaker portal.
func OfftakerMenu() []rbac.MenuItem {
	return []rbac.MenuItem{
		{Label: "Energy Analytics", Path: "/offtaker/analytics/dashboard", Icon: "chart"},
		{Label: "Billing", Path: "/offtaker/billing"},
		{Label: "Invoices", Path: "/offtaker/invoices"},
		{Label: "Documents", Path: "/offtaker/documents"},
		{Label: "Support", Path: "/offtaker/support"},
		{Label: "Profile", Path: "/offtaker/profile"},
	}
}

// MenuFor returns the unfiltered menu of the role's portal.
func MenuFor(role identity.Role) []rbac.MenuItem {
	switch role {
	case identity.RoleInvestor:
		return InvestorMenu()
	case identity.RoleOfftaker:
		return OfftakerMenu()
	default:
		return AdminMenu()
	}
}

// sectionRoles lists who may enter each portal section. Super-admins enter
// every section.
var sectionRoles = map[string][]identity.Role{
	"/admin":    {identity.RoleSuperAdmin, identity.RoleAdminStaff},
	"/investor": {identity.RoleSuperAdmin, identity.RoleInvestor},
	"/offtaker": {identity.RoleSuperAdmin, identity.RoleOfftaker},
}
