package auth

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/sunlease/portal/internal/platform/httpx"
	"github.com/sunlease/portal/internal/session"
	"github.com/sunlease/portal/internal/shared"
)

// Handler exposes the authentication JSON API.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	rateLimit func(http.Handler) http.Handler
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
		rateLimit: httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rateLimit).Post("/login", h.handleLogin)
	r.Get("/verify", h.handleVerify)
	r.Post("/logout", h.handleLogout)
}

type loginFailure struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds session.Credentials
	if err := httpx.DecodeJSON(r, &creds); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	creds.Email = strings.TrimSpace(strings.ToLower(creds.Email))
	if err := h.validator.Struct(creds); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	sess, err := h.service.Login(r.Context(), creds.Email, creds.Password, clientIP(r), r.UserAgent())
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			httpx.JSON(w, http.StatusUnauthorized, loginFailure{Message: InvalidCredentialsMessage})
			return
		}
		h.logger.Error("auth login", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, session.LoginResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt, User: sess.User})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Verify(r.Context(), bearer(r))
	if err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrTokenExpired) {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
			return
		}
		h.logger.Error("auth verify", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), bearer(r)); err != nil {
		h.logger.Error("auth logout", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func bearer(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
