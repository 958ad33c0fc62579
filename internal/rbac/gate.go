package rbac

import "github.com/sunlease/portal/internal/identity"

// Gate decides whether an inline control is rendered. Set exactly one
// selection; when several are set the first in this order applies:
// HasAccess, View, Create, Edit, Delete, Capability, Capabilities.
type Gate struct {
	Module       identity.Module
	HasAccess    bool
	View         bool
	Create       bool
	Edit         bool
	Delete       bool
	Capability   identity.Capability
	Capabilities []identity.Capability
	RequireAll   bool
}

// Allows evaluates the gate. A gate with no selection denies.
func (g Gate) Allows(e Evaluator) bool {
	switch {
	case g.HasAccess:
		return e.HasModuleAccess(g.Module)
	case g.View:
		return e.CanView(g.Module)
	case g.Create:
		return e.CanCreate(g.Module)
	case g.Edit:
		return e.CanEdit(g.Module)
	case g.Delete:
		return e.CanDelete(g.Module)
	case g.Capability != "":
		return e.HasPermission(g.Module, g.Capability)
	case len(g.Capabilities) > 0:
		checks := make([]Check, len(g.Capabilities))
		for i, c := range g.Capabilities {
			checks[i] = Check{Module: g.Module, Capability: c}
		}
		if g.RequireAll {
			return e.HasAllPermissions(checks...)
		}
		return e.HasAnyPermission(checks...)
	default:
		return false
	}
}

// Action is a control offered to the client when its gate allows it.
type Action struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Gate Gate   `json:"-"`
}

// AllowedActions filters actions down to those the evaluator may use.
// Denied actions are dropped silently.
func (e Evaluator) AllowedActions(actions ...Action) []Action {
	out := make([]Action, 0, len(actions))
	for _, a := range actions {
		if a.Gate.Allows(e) {
			out = append(out, a)
		}
	}
	return out
}
