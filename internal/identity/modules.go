package identity

import "strings"

// Module names a functional area of the portals.
type Module string

// Capability names an action within a module.
type Capability string

// Admin portal modules.
const (
	ModuleDashboard    Module = "dashboard"
	ModuleProjects     Module = "projects"
	ModuleInvoices     Module = "invoices"
	ModuleUsers        Module = "users"
	ModuleRoles        Module = "roles"
	ModuleInvestors    Module = "investors"
	ModuleOfftakers    Module = "offtakers"
	ModuleLeases       Module = "leases"
	ModulePayments     Module = "payments"
	ModuleMeterReading Module = "meter_readings"
	ModuleReports      Module = "reports"
	ModuleSettings     Module = "settings"
	ModuleContent      Module = "content"
	ModuleEnquiries    Module = "enquiries"
)

// Investor and offtaker portal modules.
const (
	ModulePortfolio       Module = "portfolio"
	ModulePayouts         Module = "payouts"
	ModuleDocuments       Module = "documents"
	ModuleEnergyAnalytics Module = "energy_analytics"
	ModuleBilling         Module = "billing"
	ModuleSupport         Module = "support"
	ModuleProfile         Module = "profile"
)

// Standard capabilities plus the domain specific ones.
const (
	CapView    Capability = "view"
	CapCreate  Capability = "create"
	CapEdit    Capability = "edit"
	CapDelete  Capability = "delete"
	CapApprove Capability = "approve"
	CapExport  Capability = "export"
	CapPublish Capability = "publish"
)

// CRUD lists the four standard capabilities.
func CRUD() []Capability {
	return []Capability{CapView, CapCreate, CapEdit, CapDelete}
}

// AllCapabilities lists every capability known at compile time.
func AllCapabilities() []Capability {
	return append(CRUD(), CapApprove, CapExport, CapPublish)
}

// AdminModules lists modules reachable from the admin portal.
func AdminModules() []Module {
	return []Module{
		ModuleDashboard,
		ModuleProjects,
		ModuleInvoices,
		ModuleUsers,
		ModuleRoles,
		ModuleInvestors,
		ModuleOfftakers,
		ModuleLeases,
		ModulePayments,
		ModuleMeterReading,
		ModuleReports,
		ModuleSettings,
		ModuleContent,
		ModuleEnquiries,
	}
}

// InvestorModules lists modules of the investor portal.
func InvestorModules() []Module {
	return []Module{ModuleDashboard, ModulePortfolio, ModulePayouts, ModuleDocuments, ModuleSupport, ModuleProfile}
}

// OfftakerModules lists modules of the offtaker portal.
func OfftakerModules() []Module {
	return []Module{ModuleDashboard, ModuleEnergyAnalytics, ModuleBilling, ModuleInvoices, ModuleDocuments, ModuleSupport, ModuleProfile}
}

// ParseModule normalises a raw module key. Unknown keys are accepted as-is.
func ParseModule(raw string) Module {
	return Module(strings.ToLower(strings.TrimSpace(raw)))
}

// ParseCapability normalises a raw capability key.
func ParseCapability(raw string) Capability {
	return Capability(strings.ToLower(strings.TrimSpace(raw)))
}

// ParseScope splits a "module.capability" scope string. The capability is the
// text after the last dot so that modules may contain dots.
func ParseScope(scope string) (Module, Capability, bool) {
	scope = strings.TrimSpace(scope)
	idx := strings.LastIndex(scope, ".")
	if idx <= 0 || idx == len(scope)-1 {
		return "", "", false
	}
	return ParseModule(scope[:idx]), ParseCapability(scope[idx+1:]), true
}

// Scope joins a module and capability into the "module.capability" form.
func Scope(m Module, c Capability) string {
	return string(m) + "." + string(c)
}
