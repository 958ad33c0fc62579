package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sunlease/portal/internal/identity"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
}

func serve(h http.Handler, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestRequireAnyAndAll(t *testing.T) {
	perms := identity.PermissionMap{}
	perms.Grant(identity.ModuleRoles, identity.CapView)
	m := Middleware{Source: guardSource(staff(perms), false)}

	assert.Equal(t, http.StatusOK, serve(m.RequireAny("roles.view", "roles.edit")(okHandler()), "/").Code)
	assert.Equal(t, http.StatusForbidden, serve(m.RequireAll("roles.view", "roles.edit")(okHandler()), "/").Code)
	assert.Equal(t, http.StatusOK, serve(m.RequireAll(" Roles.View ")(okHandler()), "/").Code)
	assert.Equal(t, http.StatusOK, serve(m.RequireAny()(okHandler()), "/").Code)
	assert.Equal(t, http.StatusForbidden, serve(m.RequireAny("malformed")(okHandler()), "/").Code)

	anon := Middleware{Source: guardSource(nil, false)}
	assert.Equal(t, http.StatusForbidden, serve(anon.RequireAny("roles.view")(okHandler()), "/").Code)
}

func TestRequireLogin(t *testing.T) {
	anon := Middleware{Source: guardSource(nil, false)}

	rr := serve(anon.RequireLogin(okHandler()), "/admin/dashboard")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, LoginPath, rr.Header().Get("Location"))

	assert.Equal(t, http.StatusUnauthorized, serve(anon.RequireLogin(okHandler()), "/api/me").Code)

	loading := Middleware{Source: guardSource(nil, true)}
	assert.Equal(t, http.StatusOK, serve(loading.RequireLogin(okHandler()), "/admin/dashboard").Code)

	user := Middleware{Source: guardSource(staff(nil), false)}
	assert.Equal(t, http.StatusOK, serve(user.RequireLogin(okHandler()), "/admin/dashboard").Code)
}
