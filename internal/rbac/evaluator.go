package rbac

import "github.com/sunlease/portal/internal/identity"

// Check pairs a module with a capability.
type Check struct {
	Module     identity.Module
	Capability identity.Capability
}

// Evaluator answers capability questions for one identity. The zero value
// denies everything.
type Evaluator struct {
	id *identity.Identity
}

// NewEvaluator binds an evaluator to id. A nil identity denies every check.
func NewEvaluator(id *identity.Identity) Evaluator {
	return Evaluator{id: id}
}

// IsSuperAdmin reports whether the bound identity bypasses checks.
func (e Evaluator) IsSuperAdmin() bool {
	return e.id.IsSuperAdmin()
}

// Authenticated reports whether an identity is bound.
func (e Evaluator) Authenticated() bool {
	return e.id != nil
}

// Identity returns the bound identity.
func (e Evaluator) Identity() *identity.Identity {
	return e.id
}

// HasPermission reports whether capability c is granted on module m.
// Missing modules or capabilities are denials.
func (e Evaluator) HasPermission(m identity.Module, c identity.Capability) bool {
	if e.id == nil {
		return false
	}
	if e.id.IsSuperAdmin() {
		return true
	}
	caps, ok := e.id.Permissions[m]
	if !ok {
		return false
	}
	return caps[c]
}

func (e Evaluator) CanView(m identity.Module) bool   { return e.HasPermission(m, identity.CapView) }
func (e Evaluator) CanCreate(m identity.Module) bool { return e.HasPermission(m, identity.CapCreate) }
func (e Evaluator) CanEdit(m identity.Module) bool   { return e.HasPermission(m, identity.CapEdit) }
func (e Evaluator) CanDelete(m identity.Module) bool { return e.HasPermission(m, identity.CapDelete) }

// HasModuleAccess reports whether any capability under m is granted.
func (e Evaluator) HasModuleAccess(m identity.Module) bool {
	if e.id == nil {
		return false
	}
	if e.id.IsSuperAdmin() {
		return true
	}
	for _, granted := range e.id.Permissions[m] {
		if granted {
			return true
		}
	}
	return false
}

// ModulePermissions returns a copy of the capability map for m. Super admins
// get every known capability.
func (e Evaluator) ModulePermissions(m identity.Module) map[identity.Capability]bool {
	out := make(map[identity.Capability]bool)
	if e.id == nil {
		return out
	}
	if e.id.IsSuperAdmin() {
		for _, c := range identity.AllCapabilities() {
			out[c] = true
		}
		return out
	}
	for c, granted := range e.id.Permissions[m] {
		out[c] = granted
	}
	return out
}

// HasAllPermissions reports whether every check passes. An empty list passes.
func (e Evaluator) HasAllPermissions(checks ...Check) bool {
	for _, ch := range checks {
		if !e.HasPermission(ch.Module, ch.Capability) {
			return false
		}
	}
	return true
}

// HasAnyPermission reports whether at least one check passes.
func (e Evaluator) HasAnyPermission(checks ...Check) bool {
	for _, ch := range checks {
		if e.HasPermission(ch.Module, ch.Capability) {
			return true
		}
	}
	return false
}

// Permissions returns a copy of the raw permission map.
func (e Evaluator) Permissions() identity.PermissionMap {
	if e.id == nil {
		return nil
	}
	return e.id.Permissions.Clone()
}
