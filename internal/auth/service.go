package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"

	"github.com/sunlease/portal/internal/identity"
	"github.com/sunlease/portal/internal/shared"
)

// PermissionSource resolves the effective permissions of an account.
type PermissionSource interface {
	PermissionsFor(ctx context.Context, userID int64, role identity.Role) (identity.PermissionMap, error)
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *identity.Identity
}

// Service wraps authentication business rules.
type Service struct {
	repo        Repository
	perms       PermissionSource
	tokens      *Tokens
	revocations Revocations
	logger      *slog.Logger
	loads       singleflight.Group
}

// NewService constructs a new Service.
func NewService(repo Repository, perms PermissionSource, tokens *Tokens, revocations Revocations, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, perms: perms, tokens: tokens, revocations: revocations, logger: logger}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if user.Status != identity.StatusActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and issues a bearer token.
func (s *Service) Login(ctx context.Context, email, password, ip, ua string) (Session, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	perms, err := s.permissions(ctx, user)
	if err != nil {
		return Session{}, err
	}
	issued, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return Session{}, err
	}
	if err := s.repo.CreateSession(ctx, issued.ID, user.ID, issued.ExpiresAt, ip, ua); err != nil {
		s.logger.Warn("register session", slog.Any("error", err))
	}
	return Session{Token: issued.Value, ExpiresAt: issued.ExpiresAt, User: user.Identity(perms)}, nil
}

// Verify resolves the identity behind a bearer token. The account is
// reloaded so deactivation and permission changes apply immediately.
func (s *Service) Verify(ctx context.Context, raw string) (*identity.Identity, error) {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return nil, err
	}
	if s.revocations != nil {
		revoked, err := s.revocations.Revoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("auth: revocation lookup: %w", err)
		}
		if revoked {
			return nil, ErrInvalidToken
		}
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}
	return s.loadIdentity(ctx, userID)
}

// Logout revokes the token. Expired or malformed tokens need no revocation.
func (s *Service) Logout(ctx context.Context, raw string) error {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return nil
	}
	if s.revocations != nil {
		if err := s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			return fmt.Errorf("auth: revoke: %w", err)
		}
	}
	if err := s.repo.DeleteSession(ctx, claims.ID); err != nil {
		s.logger.Warn("remove session", slog.Any("error", err))
	}
	return nil
}

// PurgeExpiredSessions removes audit rows past their expiry.
func (s *Service) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	return s.repo.PurgeExpiredSessions(ctx, now)
}

func (s *Service) loadIdentity(ctx context.Context, userID int64) (*identity.Identity, error) {
	ch := s.loads.DoChan(strconv.FormatInt(userID, 10), func() (any, error) {
		user, err := s.repo.FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, ErrInvalidToken
			}
			return nil, err
		}
		if user.Status != identity.StatusActive {
			return nil, ErrInvalidToken
		}
		perms, err := s.permissions(ctx, user)
		if err != nil {
			return nil, err
		}
		return user.Identity(perms), nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*identity.Identity).Clone(), nil
	}
}

func (s *Service) permissions(ctx context.Context, user *User) (identity.PermissionMap, error) {
	if s.perms == nil || user.Role == identity.RoleSuperAdmin {
		return nil, nil
	}
	perms, err := s.perms.PermissionsFor(ctx, user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("auth: load permissions: %w", err)
	}
	return perms, nil
}
