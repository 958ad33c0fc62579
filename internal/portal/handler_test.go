package portal_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunlease/portal/internal/identity"
	"github.com/sunlease/portal/internal/portal"
	"github.com/sunlease/portal/internal/rbac"
	"github.com/sunlease/portal/internal/session"
	"github.com/sunlease/portal/internal/shared"
	"github.com/sunlease/portal/internal/view"
	_ "github.com/sunlease/portal/testing"
)

type stubBackend struct {
	users map[string]*identity.Identity
}

func (b *stubBackend) Login(ctx context.Context, creds session.Credentials) (session.LoginResponse, error) {
	u, ok := b.users[creds.Email]
	if !ok || creds.Password != "correct-horse" {
		return session.LoginResponse{}, &session.LoginError{Message: "Invalid email or password"}
	}
	return session.LoginResponse{Token: "tok:" + creds.Email, User: u.Clone()}, nil
}

func (b *stubBackend) Verify(ctx context.Context, token string) (*identity.Identity, error) {
	u, ok := b.users[strings.TrimPrefix(token, "tok:")]
	if !ok {
		return nil, session.ErrUnauthenticated
	}
	return u.Clone(), nil
}

func (b *stubBackend) Logout(ctx context.Context, token string) error { return nil }

type recordingObserver struct {
	mu     sync.Mutex
	states []string
	logins []bool
}

func (o *recordingObserver) ObserveGuard(state string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, state)
}

func (o *recordingObserver) ObserveLogin(success bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.logins = append(o.logins, success)
}

func (o *recordingObserver) snapshot() ([]string, []bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.states...), append([]bool(nil), o.logins...)
}

func newPortal(t *testing.T) (*httptest.Server, *recordingObserver) {
	t.Helper()
	staffPerms := identity.PermissionMap{}
	staffPerms.Grant(identity.ModuleDashboard, identity.CapView)
	staffPerms.Grant(identity.ModuleProjects, identity.CapView)
	offtakerPerms := identity.PermissionMap{}
	offtakerPerms.Grant(identity.ModuleEnergyAnalytics, identity.CapView)
	offtakerPerms.Grant(identity.ModuleBilling, identity.CapView)

	backend := &stubBackend{users: map[string]*identity.Identity{
		"staff@sunlease.test":    {ID: 2, Name: "Sam Staff", Email: "staff@sunlease.test", Role: identity.RoleAdminStaff, Status: identity.StatusActive, Permissions: staffPerms},
		"offtaker@sunlease.test": {ID: 3, Name: "Olu", Email: "offtaker@sunlease.test", Role: identity.RoleOfftaker, Status: identity.StatusActive, Permissions: offtakerPerms},
		"root@sunlease.test":     {ID: 1, Name: "Root", Email: "root@sunlease.test", Role: identity.RoleSuperAdmin, Status: identity.StatusActive},
	}}
	manager, err := session.NewManager(session.ManagerConfig{Backend: backend, Cache: session.NewMemoryCache()})
	require.NoError(t, err)
	t.Cleanup(manager.Close)

	templates, err := view.NewEngine()
	require.NoError(t, err)
	observer := &recordingObserver{}
	h := portal.NewHandler(nil, templates, shared.NewCSRFManager("secret"), rbac.NewRegistry(rbac.DefaultRoutes()...), observer)

	r := chi.NewRouter()
	r.Use(manager.Middleware)
	h.MountRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, observer
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func get(t *testing.T, c *http.Client, url string) (*http.Response, string) {
	t.Helper()
	res, err := c.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	return res, string(body)
}

func login(t *testing.T, c *http.Client, base, email, password string) *http.Response {
	t.Helper()
	res, err := c.PostForm(base+"/login", url.Values{"email": {email}, "password": {password}})
	require.NoError(t, err)
	_ = res.Body.Close()
	return res
}

func TestAnonymousIsSentToLogin(t *testing.T) {
	srv, _ := newPortal(t)
	c := newClient(t)

	res, _ := get(t, c, srv.URL+"/admin/dashboard")
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/login", res.Header.Get("Location"))

	res, body := get(t, c, srv.URL+"/login")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "<form")
	assert.Contains(t, body, `name="csrf_token"`)
}

func TestOfftakerLoginLandsOnAnalytics(t *testing.T) {
	srv, observer := newPortal(t)
	c := newClient(t)

	res := login(t, c, srv.URL, "offtaker@sunlease.test", "correct-horse")
	require.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/offtaker/analytics/dashboard", res.Header.Get("Location"))

	res, body := get(t, c, srv.URL+"/offtaker/analytics/dashboard")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Energy Analytics")
	assert.Contains(t, body, "Billing")
	assert.NotContains(t, body, "/offtaker/documents")

	// Other portals bounce back to the offtaker landing route.
	res, _ = get(t, c, srv.URL+"/admin/projects")
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/offtaker/analytics/dashboard", res.Header.Get("Location"))

	// Inside the portal, missing permissions go to access denied.
	res, _ = get(t, c, srv.URL+"/offtaker/documents")
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, rbac.AccessDeniedPath, res.Header.Get("Location"))

	states, logins := observer.snapshot()
	assert.Equal(t, []bool{true}, logins)
	assert.Contains(t, states, rbac.StateDenied.String())
}

func TestLoginRotatesSessionCookie(t *testing.T) {
	srv, _ := newPortal(t)
	base, err := url.Parse(srv.URL)
	require.NoError(t, err)

	c := newClient(t)
	get(t, c, srv.URL+"/login")
	before := c.Jar.Cookies(base)
	require.Len(t, before, 1)

	require.Equal(t, http.StatusSeeOther, login(t, c, srv.URL, "offtaker@sunlease.test", "correct-horse").StatusCode)
	after := c.Jar.Cookies(base)
	require.Len(t, after, 1)
	assert.NotEqual(t, before[0].Value, after[0].Value)

	// Whoever else holds the pre-login cookie stays signed out.
	other := newClient(t)
	other.Jar.SetCookies(base, before)
	res, _ := get(t, other, srv.URL+"/offtaker/analytics/dashboard")
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/login", res.Header.Get("Location"))

	res, err = c.PostForm(srv.URL+"/logout", nil)
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Empty(t, c.Jar.Cookies(base), "logout expires the session cookie")
}

func TestInvalidLoginRendersMessage(t *testing.T) {
	srv, observer := newPortal(t)
	c := newClient(t)

	res, err := c.PostForm(srv.URL+"/login", url.Values{"email": {"offtaker@sunlease.test"}, "password": {"wrong-password"}})
	require.NoError(t, err)
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Contains(t, string(body), "Invalid email or password")
	_, logins := observer.snapshot()
	assert.Equal(t, []bool{false}, logins)

	res = login(t, c, srv.URL, "not-an-email", "x")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestStaffActionsFollowPermissions(t *testing.T) {
	srv, _ := newPortal(t)
	c := newClient(t)
	require.Equal(t, "/admin/dashboard", login(t, c, srv.URL, "staff@sunlease.test", "correct-horse").Header.Get("Location"))

	res, body := get(t, c, srv.URL+"/admin/projects")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Projects")
	assert.NotContains(t, body, `data-action="create"`)
	assert.NotContains(t, body, "/admin/invoices")

	res, _ = get(t, c, srv.URL+"/admin/projects/create")
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, rbac.AccessDeniedPath, res.Header.Get("Location"))

	res, body = get(t, c, srv.URL+rbac.AccessDeniedPath)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Contains(t, body, "/admin/dashboard")
}

func TestSuperAdminSeesEverything(t *testing.T) {
	srv, _ := newPortal(t)
	c := newClient(t)
	login(t, c, srv.URL, "root@sunlease.test", "correct-horse")

	res, body := get(t, c, srv.URL+"/admin/projects")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, `data-action="create"`)
	assert.Contains(t, body, "/admin/settings")

	res, _ = get(t, c, srv.URL+"/investor/portfolio")
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestMeReflectsSession(t *testing.T) {
	srv, _ := newPortal(t)
	c := newClient(t)

	var me struct {
		User          *identity.Identity                                 `json:"user"`
		Authenticated bool                                               `json:"authenticated"`
		IsSuperAdmin  bool                                               `json:"isSuperAdmin"`
		Modules       map[identity.Module]map[identity.Capability]bool `json:"modules"`
		Menu          []rbac.MenuItem                                    `json:"menu"`
	}
	_, body := get(t, c, srv.URL+"/api/me")
	require.NoError(t, json.Unmarshal([]byte(body), &me))
	assert.Nil(t, me.User)
	assert.False(t, me.Authenticated)

	login(t, c, srv.URL, "offtaker@sunlease.test", "correct-horse")
	_, body = get(t, c, srv.URL+"/api/me")
	require.NoError(t, json.Unmarshal([]byte(body), &me))
	assert.True(t, me.Authenticated)
	assert.False(t, me.IsSuperAdmin)
	assert.True(t, me.Modules[identity.ModuleEnergyAnalytics][identity.CapView])
	assert.Len(t, me.Menu, 2)

	res, err := c.PostForm(srv.URL+"/logout", nil)
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Equal(t, "/login", res.Header.Get("Location"))
	res, _ = get(t, c, srv.URL+"/offtaker/analytics/dashboard")
	assert.Equal(t, "/login", res.Header.Get("Location"))
}

func TestMenuKeysMatchRegistry(t *testing.T) {
	registry := rbac.NewRegistry(rbac.DefaultRoutes()...)
	for _, role := range []identity.Role{identity.RoleAdminStaff, identity.RoleInvestor, identity.RoleOfftaker} {
		for _, item := range portal.MenuFor(role) {
			leaves := item.Children
			if len(leaves) == 0 {
				leaves = []rbac.MenuItem{item}
			}
			for _, leaf := range leaves {
				entry, ok := registry.Resolve(leaf.Path)
				require.True(t, ok, leaf.Path)
				assert.Equal(t, entry.Module, leaf.ModuleKey(), leaf.Path)
			}
		}
	}
}
