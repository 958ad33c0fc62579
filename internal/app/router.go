package app

import (
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sunlease/portal/internal/auth"
	"github.com/sunlease/portal/internal/identity"
	"github.com/sunlease/portal/internal/observability"
	"github.com/sunlease/portal/internal/portal"
	"github.com/sunlease/portal/internal/rbac"
	"github.com/sunlease/portal/internal/session"
	"github.com/sunlease/portal/internal/shared"
	"github.com/sunlease/portal/jobs"
	"github.com/sunlease/portal/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger      *slog.Logger
	Config      *Config
	Sessions    *session.Manager
	CSRFManager *shared.CSRFManager
	Registry    *rbac.Registry
	Portal      *portal.Handler
	// AuthHandler serves the auth API in-process; nil when BACKEND_URL is set.
	AuthHandler        *auth.Handler
	PermissionsHandler *rbac.PermissionsHandler
	JobsHandler        *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with portal defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	mwCfg := MiddlewareConfig{
		Logger:      params.Logger,
		Config:      params.Config,
		Sessions:    params.Sessions,
		CSRFManager: params.CSRFManager,
		Metrics:     params.Metrics,
	}
	for _, mw := range MiddlewareStack(mwCfg) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.AuthHandler != nil {
		r.Route("/api/auth", params.AuthHandler.MountRoutes)
	}

	r.Group(func(r chi.Router) {
		for _, mw := range SessionStack(mwCfg) {
			r.Use(mw)
		}
		params.Portal.MountRoutes(r)
		guard := rbac.Middleware{Source: session.IdentitySource, Logger: params.Logger}
		if params.PermissionsHandler != nil {
			r.Route("/api/permissions", func(r chi.Router) {
				r.Use(guard.RequireLogin)
				params.PermissionsHandler.MountRoutes(r)
			})
		}
		if params.JobsHandler != nil {
			r.Route("/api/jobs", func(r chi.Router) {
				r.Use(guard.RequireLogin)
				r.Use(guard.RequireAny(identity.Scope(identity.ModuleSettings, identity.CapView)))
				params.JobsHandler.Trigger = guard.RequireAny(identity.Scope(identity.ModuleSettings, identity.CapEdit))
				params.JobsHandler.MountRoutes(r)
			})
		}
	})

	staticFS, err := web.Static()
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	if missing := UnregisteredRoutes(r, params.Registry); len(missing) > 0 {
		params.Logger.Warn("routes without permission entry are open to any signed-in user",
			slog.Any("paths", missing))
	}

	return r
}

// guardedSections are the path prefixes served behind the route guard.
var guardedSections = []string{"/admin/", "/investor/", "/offtaker/"}

// UnregisteredRoutes lists concrete page paths, from the router and the
// portal menus, that the registry does not govern.
func UnregisteredRoutes(routes chi.Routes, registry *rbac.Registry) []string {
	seen := make(map[string]struct{})
	add := func(path string) {
		if strings.ContainsAny(path, "*{") {
			return
		}
		for _, prefix := range guardedSections {
			if strings.HasPrefix(path, prefix) && len(path) > len(prefix) {
				seen[path] = struct{}{}
				return
			}
		}
	}
	_ = chi.Walk(routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if method == http.MethodGet {
			add(route)
		}
		return nil
	})
	for _, role := range []identity.Role{identity.RoleAdminStaff, identity.RoleInvestor, identity.RoleOfftaker} {
		var walk func([]rbac.MenuItem)
		walk = func(items []rbac.MenuItem) {
			for _, item := range items {
				add(item.Path)
				walk(item.Children)
			}
		}
		walk(portal.MenuFor(role))
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return registry.Unregistered(paths)
}

// staticCacheHandler wraps a file server with Cache-Control headers.
// Static assets (CSS, fonts, images) are cached for 1 hour in browser.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
