package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
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
	"github.com/sunlease/portal/jobs"
)

type nopBackend struct{}

func (nopBackend) Login(ctx context.Context, creds session.Credentials) (session.LoginResponse, error) {
	return session.LoginResponse{}, &session.LoginError{Message: "Invalid email or password"}
}

func (nopBackend) Verify(ctx context.Context, token string) (*identity.Identity, error) {
	return nil, session.ErrUnauthenticated
}

func (nopBackend) Logout(ctx context.Context, token string) error { return nil }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager, err := session.NewManager(session.ManagerConfig{Backend: nopBackend{}, Cache: session.NewMemoryCache(), Logger: logger})
	require.NoError(t, err)
	t.Cleanup(manager.Close)

	templates, err := view.NewEngine()
	require.NoError(t, err)
	csrf := shared.NewCSRFManager("secret")
	registry := rbac.NewRegistry(rbac.DefaultRoutes()...)

	return NewRouter(RouterParams{
		Logger:      logger,
		Config:      &Config{AppEnv: "development"},
		Sessions:    manager,
		CSRFManager: csrf,
		Registry:    registry,
		Portal:      portal.NewHandler(logger, templates, csrf, registry, nil),
		JobsHandler: jobs.NewHandler(nil, nil, logger),
	})
}

func TestHealthzSkipsSession(t *testing.T) {
	router := newTestRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Result().Cookies())
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}

func TestLoginPageIssuesSessionCookie(t *testing.T) {
	router := newTestRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/login", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "portal_session", cookies[0].Name)
}

func TestUnsafeMethodWithoutCSRFIsRejected(t *testing.T) {
	router := newTestRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/logout", nil))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestJobsAPIRequiresLogin(t *testing.T) {
	router := newTestRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/jobs/health", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUnregisteredRoutes(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/admin/", func(http.ResponseWriter, *http.Request) {})
	r.Get("/admin/reports", func(http.ResponseWriter, *http.Request) {})
	r.Get("/admin/*", func(http.ResponseWriter, *http.Request) {})
	r.Get("/healthz", func(http.ResponseWriter, *http.Request) {})

	assert.Empty(t, UnregisteredRoutes(r, rbac.NewRegistry(rbac.DefaultRoutes()...)))

	missing := UnregisteredRoutes(r, rbac.NewRegistry())
	assert.Contains(t, missing, "/admin/reports")
	assert.Contains(t, missing, "/admin/dashboard")
	assert.NotContains(t, missing, "/admin/")
	assert.NotContains(t, missing, "/healthz")
}
