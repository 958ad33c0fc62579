package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sunlease/portal/internal/identity"
	"github.com/sunlease/portal/internal/platform/httpx"
	"github.com/sunlease/portal/internal/shared"
)

// Auditor records permission changes.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// PermissionsHandler manages role defaults and user overrides.
type PermissionsHandler struct {
	logger    *slog.Logger
	service   *Service
	rbac      Middleware
	validator *validator.Validate
	auditor   Auditor
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, service *Service, rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// WithAuditor records every successful change through a.
func (h *PermissionsHandler) WithAuditor(a Auditor) *PermissionsHandler {
	h.auditor = a
	return h
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(identity.Scope(identity.ModuleRoles, identity.CapView)))
		r.Get("/roles/{role}", h.listRoleGrants)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(identity.Scope(identity.ModuleRoles, identity.CapEdit)))
		r.Put("/roles/{role}", h.putRoleGrant)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(
			identity.Scope(identity.ModuleUsers, identity.CapEdit),
			identity.Scope(identity.ModuleRoles, identity.CapEdit),
		))
		r.Put("/users/{id}", h.putUserGrant)
		r.Delete("/users/{id}/{module}/{capability}", h.deleteUserGrant)
	})
}

func (h *PermissionsHandler) listRoleGrants(w http.ResponseWriter, r *http.Request) {
	role, ok := parseRole(chi.URLParam(r, "role"))
	if !ok {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	grants, err := h.service.RoleGrants(r.Context(), role)
	if err != nil {
		h.fail(w, "list role grants", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"role": role, "grants": grants})
}

func (h *PermissionsHandler) putRoleGrant(w http.ResponseWriter, r *http.Request) {
	role, ok := parseRole(chi.URLParam(r, "role"))
	if !ok {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	grant, ok := h.decodeGrant(w, r)
	if !ok {
		return
	}
	if err := h.service.SetRoleGrant(r.Context(), role, grant); err != nil {
		h.fail(w, "set role grant", err)
		return
	}
	h.audit(r, "grant.set", "role", strconv.Itoa(int(role)), grant.Module, grant.Capability, &grant.Granted)
	w.WriteHeader(http.StatusNoContent)
}

func (h *PermissionsHandler) putUserGrant(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || userID <= 0 {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	grant, ok := h.decodeGrant(w, r)
	if !ok {
		return
	}
	if err := h.service.SetUserGrant(r.Context(), userID, grant); err != nil {
		h.fail(w, "set user grant", err)
		return
	}
	h.audit(r, "grant.set", "user", strconv.FormatInt(userID, 10), grant.Module, grant.Capability, &grant.Granted)
	w.WriteHeader(http.StatusNoContent)
}

func (h *PermissionsHandler) deleteUserGrant(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || userID <= 0 {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	module := identity.ParseModule(chi.URLParam(r, "module"))
	capability := identity.ParseCapability(chi.URLParam(r, "capability"))
	if err := h.service.ClearUserGrant(r.Context(), userID, module, capability); err != nil {
		h.fail(w, "clear user grant", err)
		return
	}
	h.audit(r, "grant.clear", "user", strconv.FormatInt(userID, 10), module, capability, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *PermissionsHandler) decodeGrant(w http.ResponseWriter, r *http.Request) (Grant, bool) {
	var grant Grant
	if err := httpx.DecodeJSON(r, &grant); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return Grant{}, false
	}
	if err := h.validator.Struct(grant); err != nil {
		httpx.ValidationProblem(w, err)
		return Grant{}, false
	}
	return grant, true
}

func (h *PermissionsHandler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	case errors.Is(err, ErrInvalidGrant):
		httpx.ValidationProblem(w, err)
		return
	}
	if h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

// audit is best effort: the change is already stored when it runs.
func (h *PermissionsHandler) audit(r *http.Request, action, entity, entityID string, m identity.Module, c identity.Capability, granted *bool) {
	if h.auditor == nil {
		return
	}
	entry := shared.AuditLog{
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta:     map[string]any{"module": m, "capability": c},
	}
	if granted != nil {
		entry.Meta["granted"] = *granted
	}
	if h.rbac.Source != nil {
		if actor, _ := h.rbac.Source(r); actor != nil {
			entry.ActorID = actor.ID
		}
	}
	if err := h.auditor.Record(r.Context(), entry); err != nil && h.logger != nil {
		h.logger.Warn("audit permission change", slog.String("action", action), slog.Any("error", err))
	}
}

func parseRole(raw string) (identity.Role, bool) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	role := identity.Role(n)
	return role, role.Valid()
}
