package rbac

import (
	"sort"
	"strings"

	"github.com/sunlease/portal/internal/identity"
)

// MatchMode selects how a route entry compares against a path.
type MatchMode int

const (
	MatchPrefix MatchMode = iota
	MatchExact
)

// RouteEntry maps a path to the permission that governs it.
type RouteEntry struct {
	Path       string
	Module     identity.Module
	Capability identity.Capability
	Match      MatchMode
}

// Registry resolves request paths to route entries. It is immutable once
// built and safe for concurrent use.
type Registry struct {
	exact  map[string]RouteEntry
	prefix []RouteEntry
}

// NewRegistry copies entries into a new Registry. When two exact entries share
// a path the first one wins; prefix entries keep declaration order.
func NewRegistry(entries ...RouteEntry) *Registry {
	reg := &Registry{exact: make(map[string]RouteEntry)}
	for _, e := range entries {
		if e.Match == MatchExact {
			if _, dup := reg.exact[e.Path]; !dup {
				reg.exact[e.Path] = e
			}
			continue
		}
		reg.prefix = append(reg.prefix, e)
	}
	return reg
}

// Resolve returns the entry governing path. Exact entries beat prefix entries;
// among prefix entries the longest path wins and ties keep the first declared.
// The boolean is false when no entry applies.
func (r *Registry) Resolve(path string) (RouteEntry, bool) {
	if r == nil {
		return RouteEntry{}, false
	}
	if e, ok := r.exact[path]; ok {
		return e, true
	}
	var best RouteEntry
	found := false
	for _, e := range r.prefix {
		if !strings.HasPrefix(path, e.Path) {
			continue
		}
		if !found || len(e.Path) > len(best.Path) {
			best = e
			found = true
		}
	}
	return best, found
}

// Entries returns a copy of all entries, exact ones first, sorted by path.
func (r *Registry) Entries() []RouteEntry {
	if r == nil {
		return nil
	}
	out := make([]RouteEntry, 0, len(r.exact)+len(r.prefix))
	for _, e := range r.exact {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return append(out, r.prefix...)
}

// Unregistered lists the paths that no entry governs. Those routes are open to
// any authenticated user.
func (r *Registry) Unregistered(paths []string) []string {
	var missing []string
	for _, p := range paths {
		if _, ok := r.Resolve(p); !ok {
			missing = append(missing, p)
		}
	}
	return missing
}
