package portal

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sunlease/portal/internal/identity"
	"github.com/sunlease/portal/internal/platform/httpx"
	"github.com/sunlease/portal/internal/rbac"
	"github.com/sunlease/portal/internal/session"
	"github.com/sunlease/portal/internal/shared"
	"github.com/sunlease/portal/internal/view"
)

// Observer receives portal events worth counting.
type Observer interface {
	ObserveGuard(state string)
	ObserveLogin(success bool)
}

// Handler serves the login flow and the three role portals.
type Handler struct {
	logger    *slog.Logger
	templates *view.Engine
	csrf      *shared.CSRFManager
	registry  *rbac.Registry
	observer  Observer
	rbac      rbac.Middleware
	validator *validator.Validate
	loginRate func(http.Handler) http.Handler
}

// NewHandler constructs a Handler. observer may be nil.
func NewHandler(logger *slog.Logger, templates *view.Engine, csrf *shared.CSRFManager, registry *rbac.Registry, observer Observer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		templates: templates,
		csrf:      csrf,
		registry:  registry,
		observer:  observer,
		rbac:      rbac.Middleware{Source: session.IdentitySource, Logger: logger},
		validator: validator.New(),
		loginRate: httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
	}
}

// MountRoutes registers portal routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.home)
	r.Get(rbac.LoginPath, h.showLogin)
	r.With(h.loginRate).Post(rbac.LoginPath, h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get(rbac.AccessDeniedPath, h.accessDenied)
	r.Get("/api/me", h.me)
	for _, prefix := range []string{"/admin", "/investor", "/offtaker"} {
		h.mountSection(r, prefix)
	}
}

func (h *Handler) mountSection(r chi.Router, prefix string) {
	r.Route(prefix, func(r chi.Router) {
		r.Use(h.rbac.RequireLogin)
		r.Use(h.requireSection(prefix))
		r.Use(rbac.RouteGuard(rbac.GuardOptions{
			Registry: h.registry,
			Source:   session.IdentitySource,
			Fallback: http.HandlerFunc(h.accessDenied),
			Loading:  http.HandlerFunc(h.loading),
			Logger:   h.logger,
			Observe:  h.observeGuard,
		}))
		r.Get("/", h.sectionIndex)
		r.Get("/*", h.page)
	})
}

// requireSection keeps each role inside its own portal.
func (h *Handler) requireSection(prefix string) func(http.Handler) http.Handler {
	allowed := sectionRoles[prefix]
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, loading := session.IdentitySource(r)
			if loading || id == nil {
				next.ServeHTTP(w, r)
				return
			}
			for _, role := range allowed {
				if id.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			h.logger.Info("portal section denied", slog.String("path", r.URL.Path), slog.Int64("user_id", id.ID))
			http.Redirect(w, r, session.LandingRoute(id.Role), http.StatusSeeOther)
		})
	}
}

func (h *Handler) observeGuard(state rbac.State) {
	if h.observer != nil {
		h.observer.ObserveGuard(state.String())
	}
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	if user := currentUser(r); user != nil {
		http.Redirect(w, r, session.LandingRoute(user.Role), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, rbac.LoginPath, http.StatusSeeOther)
}

func (h *Handler) sectionIndex(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user == nil {
		http.Redirect(w, r, rbac.LoginPath, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, session.LandingRoute(user.Role), http.StatusSeeOther)
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

type loginPageData struct {
	Email  string
	Errors map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if user := currentUser(r); user != nil {
		http.Redirect(w, r, session.LandingRoute(user.Role), http.StatusSeeOther)
		return
	}
	h.renderLogin(w, r, http.StatusOK, loginPageData{}, "")
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	store := session.StoreFromContext(r.Context())
	if store == nil {
		h.logger.Error("session missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	form := loginForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	errors := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fieldErr := range fieldErrs {
				errors[fieldErr.Field()] = fieldErr.Error()
			}
		}
	}
	data := loginPageData{Email: form.Email, Errors: errors}
	if len(errors) > 0 {
		h.renderLogin(w, r, http.StatusBadRequest, data, "")
		return
	}

	res := store.Login(r.Context(), session.Credentials{Email: form.Email, Password: form.Password})
	if h.observer != nil {
		h.observer.ObserveLogin(res.Success)
	}
	if !res.Success {
		h.renderLogin(w, r, http.StatusUnauthorized, data, res.Message)
		return
	}
	if manager := session.ManagerFromContext(r.Context()); manager != nil {
		manager.Rotate(r.Context(), w, store)
	}
	http.Redirect(w, r, res.Redirect, http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	target := rbac.LoginPath
	store := session.StoreFromContext(r.Context())
	if store != nil {
		target = store.Logout(r.Context())
	}
	if manager := session.ManagerFromContext(r.Context()); manager != nil {
		manager.Destroy(w, store)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

type deniedPageData struct {
	Home string
}

// accessDenied doubles as the guard's fallback body, so it never sets its
// own status when serving a guarded route.
func (h *Handler) accessDenied(w http.ResponseWriter, r *http.Request) {
	status := http.StatusForbidden
	if r.URL.Path != rbac.AccessDeniedPath {
		status = http.StatusSeeOther
	}
	data := h.baseData(r, "Access denied")
	if data.User != nil {
		data.Data = deniedPageData{Home: session.LandingRoute(data.User.Role)}
	}
	h.render(w, status, "pages/access_denied.html", data)
}

func (h *Handler) loading(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusServiceUnavailable, "pages/loading.html", view.TemplateData{Title: "Loading"})
}

type modulePage struct {
	Module string
	Base   string
}

func (h *Handler) page(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.registry.Resolve(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if strings.HasSuffix(r.URL.Path, "/dashboard") {
		h.render(w, http.StatusOK, "pages/dashboard.html", h.baseData(r, "Dashboard"))
		return
	}
	data := h.baseData(r, titleFor(entry.Module))
	data.Data = modulePage{Module: string(entry.Module), Base: sectionBase(r.URL.Path)}
	h.render(w, http.StatusOK, "pages/module.html", data)
}

type meResponse struct {
	User          *identity.Identity                               `json:"user"`
	Loading       bool                                             `json:"loading"`
	Authenticated bool                                             `json:"authenticated"`
	IsSuperAdmin  bool                                             `json:"isSuperAdmin"`
	Permissions   identity.PermissionMap                           `json:"permissions"`
	Modules       map[identity.Module]map[identity.Capability]bool `json:"modules"`
	Menu          []rbac.MenuItem                                  `json:"menu"`
	Landing       string                                           `json:"landing,omitempty"`
}

// me exposes the session view to scripts.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	store := session.StoreFromContext(r.Context())
	if store == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	v := store.View()
	access := rbac.NewEvaluator(v.User)
	res := meResponse{
		User:          v.User,
		Loading:       v.Loading,
		Authenticated: v.Authenticated,
		IsSuperAdmin:  access.IsSuperAdmin(),
		Permissions:   access.Permissions(),
		Modules:       make(map[identity.Module]map[identity.Capability]bool),
		Menu:          []rbac.MenuItem{},
	}
	if v.User != nil {
		res.Landing = session.LandingRoute(v.User.Role)
		res.Menu = access.FilterMenu(MenuFor(v.User.Role))
		for _, m := range modulesOf(v.User.Role) {
			if perms := access.ModulePermissions(m); len(perms) > 0 {
				res.Modules[m] = perms
			}
		}
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, status int, data loginPageData, message string) {
	td := h.baseData(r, "Sign in")
	td.User = nil
	td.Menu = nil
	td.Data = data
	td.Error = message
	h.render(w, status, "pages/login.html", td)
}

func (h *Handler) baseData(r *http.Request, title string) view.TemplateData {
	td := view.TemplateData{Title: title, CurrentPath: r.URL.Path}
	store := session.StoreFromContext(r.Context())
	if store == nil {
		return td
	}
	if token, err := h.csrf.Token(store.Key()); err == nil {
		td.CSRFToken = token
	}
	td.User = store.User()
	td.Access = rbac.NewEvaluator(td.User)
	if td.User != nil {
		td.Menu = td.Access.FilterMenu(MenuFor(td.User.Role))
	}
	return td
}

func (h *Handler) render(w http.ResponseWriter, status int, name string, data view.TemplateData) {
	if err := h.templates.RenderStatus(w, status, name, data); err != nil {
		h.logger.Error("render page", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func currentUser(r *http.Request) *identity.Identity {
	if store := session.StoreFromContext(r.Context()); store != nil {
		return store.User()
	}
	return nil
}

func modulesOf(role identity.Role) []identity.Module {
	switch role {
	case identity.RoleInvestor:
		return identity.InvestorModules()
	case identity.RoleOfftaker:
		return identity.OfftakerModules()
	default:
		return identity.AdminModules()
	}
}

func titleFor(m identity.Module) string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(m), "_", " "))
}

// sectionBase trims a page path to its portal and module segments.
func sectionBase(path string) string {
	parts := strings.SplitN(strings.Trim(path, "/"), "/", 3)
	if len(parts) < 2 {
		return "/" + strings.Join(parts, "/")
	}
	return "/" + parts[0] + "/" + parts[1]
}
