package rbac

import (
	"regexp"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sunlease/portal/internal/identity"
)

// MenuItem is one entry of a portal navigation tree.
type MenuItem struct {
	Label      string          `json:"label"`
	Path       string          `json:"path,omitempty"`
	Icon       string          `json:"icon,omitempty"`
	Permission identity.Module `json:"permission,omitempty"`
	Children   []MenuItem      `json:"children,omitempty"`
}

// ModuleKey returns the explicit permission key, falling back to the
// normalised label. New menu items should always set Permission.
func (item MenuItem) ModuleKey() identity.Module {
	if item.Permission != "" {
		return item.Permission
	}
	return NormalizeModuleKey(item.Label)
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeModuleKey lowercases label and replaces every whitespace run,
// including leading and trailing ones, with "_".
func NormalizeModuleKey(label string) identity.Module {
	lower := cases.Lower(language.Und).String(label)
	return identity.Module(whitespaceRun.ReplaceAllString(lower, "_"))
}

// FilterMenu prunes items the evaluator cannot view. A leaf survives when its
// module is viewable; a parent survives when at least one child does.
func (e Evaluator) FilterMenu(items []MenuItem) []MenuItem {
	out := make([]MenuItem, 0, len(items))
	for _, item := range items {
		if len(item.Children) > 0 {
			children := e.FilterMenu(item.Children)
			if len(children) == 0 {
				continue
			}
			item.Children = children
			out = append(out, item)
			continue
		}
		if e.CanView(item.ModuleKey()) {
			out = append(out, item)
		}
	}
	return out
}
