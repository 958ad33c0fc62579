package rbac

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/sunlease/portal/internal/identity"
)

// State is the outcome of a route guard evaluation.
type State int

const (
	// StateWaiting means the session is still resolving its identity.
	StateWaiting State = iota
	// StateUnauthenticated defers to the login gate.
	StateUnauthenticated
	StateChecking
	StateGranted
	StateDenied
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateChecking:
		return "checking"
	case StateGranted:
		return "granted"
	case StateDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Requirement is an explicit permission requirement for a guarded page. The
// zero value means "look the path up in the registry".
type Requirement struct {
	Module     identity.Module
	Capability identity.Capability
	View       bool
	Create     bool
	Edit       bool
	Delete     bool
}

// check resolves the requirement. A module without capability defaults to view.
func (r Requirement) check() (Check, bool) {
	if r.Module == "" {
		return Check{}, false
	}
	c := r.Capability
	switch {
	case r.View:
		c = identity.CapView
	case r.Create:
		c = identity.CapCreate
	case r.Edit:
		c = identity.CapEdit
	case r.Delete:
		c = identity.CapDelete
	case c == "":
		c = identity.CapView
	}
	return Check{Module: r.Module, Capability: c}, true
}

// GuardInput is everything a guard decision depends on.
type GuardInput struct {
	Path        string
	Requirement Requirement
	Loading     bool
	Identity    *identity.Identity
}

// Decision is the result of Guard.Evaluate. Redirect is set only on the first
// evaluation that reaches a given denial.
type Decision struct {
	State    State
	Check    Check
	Ruled    bool
	Redirect string
}

// Guard arbitrates authenticated-but-unauthorised access to a page. It keeps
// just enough state to fire the denial redirect once per distinct input.
type Guard struct {
	registry *Registry

	mu         sync.Mutex
	state      State
	lastKey    string
	redirected bool
}

// NewGuard creates a guard backed by registry.
func NewGuard(registry *Registry) *Guard {
	return &Guard{registry: registry, state: StateWaiting}
}

// State returns the last settled state.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Evaluate decides whether the page at in.Path may render.
func (g *Guard) Evaluate(in GuardInput) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	if in.Loading {
		g.state = StateWaiting
		return Decision{State: StateWaiting}
	}
	if in.Identity == nil {
		g.state = StateUnauthenticated
		g.lastKey = ""
		g.redirected = false
		return Decision{State: StateUnauthenticated}
	}

	key := inputKey(in)
	if key != g.lastKey {
		g.state = StateChecking
		g.lastKey = key
		g.redirected = false
	}

	check, ok := in.Requirement.check()
	if !ok {
		var entry RouteEntry
		entry, ok = g.registry.Resolve(in.Path)
		check = Check{Module: entry.Module, Capability: entry.Capability}
	}
	if !ok || check.Module == "" {
		g.state = StateGranted
		return Decision{State: StateGranted}
	}

	if NewEvaluator(in.Identity).HasPermission(check.Module, check.Capability) {
		g.state = StateGranted
		return Decision{State: StateGranted, Check: check, Ruled: true}
	}

	g.state = StateDenied
	d := Decision{State: StateDenied, Check: check, Ruled: true}
	if !g.redirected {
		g.redirected = true
		d.Redirect = AccessDeniedPath
	}
	return d
}

// inputKey fingerprints the inputs that retrigger a check.
func inputKey(in GuardInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%s|%t%t%t%t|%d|%d|", in.Path, in.Requirement.Module, in.Requirement.Capability,
		in.Requirement.View, in.Requirement.Create, in.Requirement.Edit, in.Requirement.Delete,
		in.Identity.ID, int(in.Identity.Role))
	modules := make([]string, 0, len(in.Identity.Permissions))
	for m := range in.Identity.Permissions {
		modules = append(modules, string(m))
	}
	sort.Strings(modules)
	for _, m := range modules {
		caps := in.Identity.Permissions[identity.Module(m)]
		names := make([]string, 0, len(caps))
		for c, granted := range caps {
			if granted {
				names = append(names, string(c))
			}
		}
		sort.Strings(names)
		fmt.Fprintf(&b, "%s=%s;", m, strings.Join(names, ","))
	}
	return b.String()
}

// IdentitySource reports the identity of the request's session and whether
// that session is still resolving it.
type IdentitySource func(r *http.Request) (id *identity.Identity, loading bool)

// GuardOptions configures the RouteGuard middleware.
type GuardOptions struct {
	Registry    *Registry
	Source      IdentitySource
	Requirement Requirement
	// Fallback renders the body sent along with the denial redirect.
	Fallback http.Handler
	// Loading renders while the session is still resolving.
	Loading http.Handler
	Logger  *slog.Logger
	Observe func(State)
}

// RouteGuard gates page rendering on the resolved permission.
func RouteGuard(opts GuardOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, loading := opts.Source(r)
			guard := NewGuard(opts.Registry)
			decision := guard.Evaluate(GuardInput{
				Path:        r.URL.Path,
				Requirement: opts.Requirement,
				Loading:     loading,
				Identity:    id,
			})
			if opts.Observe != nil {
				opts.Observe(decision.State)
			}
			switch decision.State {
			case StateWaiting:
				w.Header().Set("Retry-After", "1")
				if opts.Loading != nil {
					sw := &statusWriter{ResponseWriter: w, status: http.StatusServiceUnavailable}
					opts.Loading.ServeHTTP(sw, r)
					sw.WriteHeader(sw.status)
					return
				}
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			case StateDenied:
				if opts.Logger != nil {
					opts.Logger.Info("route access denied",
						slog.String("path", r.URL.Path),
						slog.Int64("user_id", id.ID),
						slog.String("scope", identity.Scope(decision.Check.Module, decision.Check.Capability)))
				}
				if decision.Redirect != "" {
					w.Header().Set("Location", decision.Redirect)
				}
				if opts.Fallback != nil {
					sw := &statusWriter{ResponseWriter: w, status: http.StatusSeeOther}
					opts.Fallback.ServeHTTP(sw, r)
					sw.WriteHeader(sw.status)
					return
				}
				w.WriteHeader(http.StatusSeeOther)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// statusWriter forces the status code chosen by the guard.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *statusWriter) WriteHeader(int) {
	if w.written {
		return
	}
	w.written = true
	w.ResponseWriter.WriteHeader(w.status)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if !w.written {
		w.WriteHeader(w.status)
	}
	return w.ResponseWriter.Write(p)
}
