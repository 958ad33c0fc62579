package rbac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunlease/portal/internal/identity"
	"github.com/sunlease/portal/internal/shared"
)

type recordingAuditor struct {
	entries []shared.AuditLog
	err     error
}

func (a *recordingAuditor) Record(ctx context.Context, log shared.AuditLog) error {
	a.entries = append(a.entries, log)
	return a.err
}

func permissionsRouter(repo *stubRepo, actor *identity.Identity, auditor Auditor) http.Handler {
	h := NewPermissionsHandler(nil, NewService(repo), Middleware{Source: guardSource(actor, false)})
	if auditor != nil {
		h.WithAuditor(auditor)
	}
	r := chi.NewRouter()
	r.Route("/api/permissions", h.MountRoutes)
	return r
}

func roleAdmin() *identity.Identity {
	perms := identity.PermissionMap{}
	perms.Grant(identity.ModuleRoles, identity.CapView, identity.CapEdit)
	perms.Grant(identity.ModuleUsers, identity.CapEdit)
	return staff(perms)
}

func send(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rr, req)
	return rr
}

func TestPutRoleGrantIsAudited(t *testing.T) {
	repo := &stubRepo{}
	auditor := &recordingAuditor{}
	router := permissionsRouter(repo, roleAdmin(), auditor)

	rr := send(router, http.MethodPut, "/api/permissions/roles/4", `{"module":"Payouts","capability":"view","granted":true}`)
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())
	require.Len(t, repo.upserts, 1)
	assert.Equal(t, identity.ModulePayouts, repo.upserts[0].Module)

	require.Len(t, auditor.entries, 1)
	entry := auditor.entries[0]
	assert.Equal(t, "grant.set", entry.Action)
	assert.Equal(t, "role", entry.Entity)
	assert.Equal(t, "4", entry.EntityID)
	assert.Equal(t, int64(10), entry.ActorID)
	assert.Equal(t, true, entry.Meta["granted"])
}

func TestSuperAdminRoleGrantRejected(t *testing.T) {
	auditor := &recordingAuditor{}
	router := permissionsRouter(&stubRepo{}, roleAdmin(), auditor)

	rr := send(router, http.MethodPut, "/api/permissions/roles/1", `{"module":"projects","capability":"view","granted":true}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, auditor.entries)
}

func TestRoleGrantValidation(t *testing.T) {
	router := permissionsRouter(&stubRepo{}, roleAdmin(), nil)

	assert.Equal(t, http.StatusBadRequest, send(router, http.MethodPut, "/api/permissions/roles/2", `{"module":"projects"}`).Code)
	assert.Equal(t, http.StatusBadRequest, send(router, http.MethodPut, "/api/permissions/roles/2", `{`).Code)
	assert.Equal(t, http.StatusNotFound, send(router, http.MethodPut, "/api/permissions/roles/9", `{"module":"projects","capability":"view"}`).Code)
}

func TestPermissionRoutesRequireScopes(t *testing.T) {
	perms := identity.PermissionMap{}
	perms.Grant(identity.ModuleRoles, identity.CapView)
	router := permissionsRouter(&stubRepo{}, staff(perms), nil)

	assert.Equal(t, http.StatusOK, send(router, http.MethodGet, "/api/permissions/roles/2", "").Code)
	assert.Equal(t, http.StatusForbidden, send(router, http.MethodPut, "/api/permissions/roles/2", `{"module":"projects","capability":"view"}`).Code)
	assert.Equal(t, http.StatusForbidden, send(router, http.MethodDelete, "/api/permissions/users/5/projects/view", "").Code)
}

func TestDeleteUserGrant(t *testing.T) {
	auditor := &recordingAuditor{err: errors.New("audit table missing")}
	router := permissionsRouter(&stubRepo{deleted: 1}, roleAdmin(), auditor)

	assert.Equal(t, http.StatusNoContent, send(router, http.MethodDelete, "/api/permissions/users/5/projects/view", "").Code)
	require.Len(t, auditor.entries, 1)
	assert.Equal(t, "grant.clear", auditor.entries[0].Action)
	assert.NotContains(t, auditor.entries[0].Meta, "granted")

	missing := permissionsRouter(&stubRepo{}, roleAdmin(), nil)
	assert.Equal(t, http.StatusNotFound, send(missing, http.MethodDelete, "/api/permissions/users/5/projects/view", "").Code)
}
