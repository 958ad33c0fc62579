package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sunlease/portal/internal/identity"
	"github.com/sunlease/portal/internal/rbac"
)

const (
	defaultLoginFailure   = "Invalid email or password"
	unreachableMessage    = "Unable to reach the server, please try again"
	defaultBackendTimeout = 10 * time.Second
)

// Check outcomes reported to Options.OnCheck.
const (
	CheckValid   = "valid"
	CheckInvalid = "invalid"
	CheckError   = "error"
	CheckSkipped = "skipped"
)

// LoginResult is returned by Store.Login. It never carries an error; callers
// check Success.
type LoginResult struct {
	Success  bool               `json:"success"`
	Message  string             `json:"message,omitempty"`
	Redirect string             `json:"redirect,omitempty"`
	User     *identity.Identity `json:"user,omitempty"`
}

// View is a read-only snapshot of a store.
type View struct {
	User          *identity.Identity `json:"user"`
	Loading       bool               `json:"loading"`
	Authenticated bool               `json:"authenticated"`
}

// Options configures a Store.
type Options struct {
	Key     string
	Backend Backend
	Cache   Cache
	Logger  *slog.Logger
	// Timeout bounds background validation calls.
	Timeout time.Duration
	OnCheck func(result string)
}

// Store owns the identity of one client session. Identity and token change
// only through Initialize, Login, Logout and CheckAuth.
type Store struct {
	key     string
	backend Backend
	cache   Cache
	logger  *slog.Logger
	timeout time.Duration
	onCheck func(string)

	mu         sync.Mutex
	user       *identity.Identity
	token      string
	loading    bool
	generation uint64
	closed     bool
	checkedAt  time.Time

	// persistMu orders cache writes so the last write carries the latest state.
	persistMu sync.Mutex

	inflight atomic.Bool
	bg       sync.WaitGroup
}

// NewStore constructs an empty, unauthenticated Store.
func NewStore(opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultBackendTimeout
	}
	return &Store{
		key:     opts.Key,
		backend: opts.Backend,
		cache:   opts.Cache,
		logger:  logger,
		timeout: timeout,
		onCheck: opts.OnCheck,
	}
}

// Key returns the session key the store persists under.
func (s *Store) Key() string { return s.key }

// User returns a copy of the current identity, or nil.
func (s *Store) User() *identity.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user.Clone()
}

// Token returns the bearer token, or "".
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Loading reports whether a validation is in progress.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Authenticated reports whether an identity is held.
func (s *Store) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user != nil
}

// View returns user, loading and authenticated together.
func (s *Store) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{User: s.user.Clone(), Loading: s.loading, Authenticated: s.user != nil}
}

// Evaluator binds a permission evaluator to the current identity.
func (s *Store) Evaluator() rbac.Evaluator {
	return rbac.NewEvaluator(s.User())
}

// Initialize hydrates the store from the cache. A decodable identity is
// available at once and re-validated in the background; a missing or corrupt
// identity is validated before Initialize returns.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	token, raw, err := s.cache.Load(ctx, s.key)
	if err != nil {
		s.mu.Lock()
		s.user, s.token, s.loading = nil, "", false
		s.mu.Unlock()
		if errors.Is(err, ErrNoSnapshot) {
			return nil
		}
		return err
	}

	id, decodeErr := identity.Decode(raw)
	s.mu.Lock()
	s.token = token
	if decodeErr == nil {
		s.user = id
		s.loading = false
	}
	s.mu.Unlock()

	if decodeErr != nil {
		s.logger.Warn("session snapshot corrupt, validating", slog.String("session", s.key), slog.Any("error", decodeErr))
		checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		s.CheckAuth(checkCtx, false)
		cancel()
		s.mu.Lock()
		if !s.inflight.Load() {
			s.loading = false
		}
		s.mu.Unlock()
		return nil
	}

	s.Revalidate(ctx)
	return nil
}

// Revalidate starts a silent background CheckAuth detached from ctx's
// cancellation and bounded by the store timeout.
func (s *Store) Revalidate(ctx context.Context) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		s.CheckAuth(bgCtx, true)
	}()
}

// Stale reports whether an authenticated store was last validated more than
// maxAge ago.
func (s *Store) Stale(maxAge time.Duration, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != "" && now.Sub(s.checkedAt) > maxAge
}

// Login submits creds to the backend. On success the token and identity are
// stored and persisted and Redirect names the role's landing route. On
// failure nothing changes.
func (s *Store) Login(ctx context.Context, creds Credentials) LoginResult {
	creds.Email = strings.TrimSpace(strings.ToLower(creds.Email))
	res, err := s.backend.Login(ctx, creds)
	if err != nil {
		var loginErr *LoginError
		if errors.As(err, &loginErr) {
			return LoginResult{Message: loginErr.Message}
		}
		s.logger.Error("session login", slog.Any("error", err))
		return LoginResult{Message: unreachableMessage}
	}
	if res.Token == "" || res.User.Validate() != nil {
		s.logger.Error("session login: malformed backend response")
		return LoginResult{Message: unreachableMessage}
	}

	s.mu.Lock()
	s.token = res.Token
	s.user = res.User.Clone()
	s.loading = false
	s.generation++
	s.checkedAt = time.Now()
	s.mu.Unlock()

	s.syncCache(ctx)
	return LoginResult{Success: true, Redirect: LandingRoute(res.User.Role), User: res.User.Clone()}
}

// Logout forgets the session and tells the backend best effort. It returns
// the route to navigate to.
func (s *Store) Logout(ctx context.Context) string {
	s.mu.Lock()
	token := s.token
	s.user, s.token, s.loading = nil, "", false
	s.generation++
	s.mu.Unlock()

	s.syncCache(ctx)
	if token != "" {
		if err := s.backend.Logout(ctx, token); err != nil {
			s.logger.Warn("session backend logout", slog.Any("error", err))
		}
	}
	return rbac.LoginPath
}

// CheckAuth re-validates the token. Only one validation runs at a time; a
// call that overlaps a running one returns the current state without
// contacting the backend. Any failure clears the session. silent leaves the
// loading flag untouched.
func (s *Store) CheckAuth(ctx context.Context, silent bool) bool {
	if !s.inflight.CompareAndSwap(false, true) {
		s.report(CheckSkipped)
		return s.Authenticated()
	}
	defer s.inflight.Store(false)

	s.mu.Lock()
	token := s.token
	gen := s.generation
	if !silent {
		s.loading = true
	}
	s.mu.Unlock()

	if token == "" {
		s.mu.Lock()
		s.user = nil
		if !silent {
			s.loading = false
		}
		s.mu.Unlock()
		return false
	}

	id, err := s.backend.Verify(ctx, token)
	if err == nil {
		err = id.Validate()
	}

	s.mu.Lock()
	if !silent {
		s.loading = false
	}
	if s.closed || s.generation != gen {
		// The session moved on while the call was out; drop the result.
		authenticated := s.user != nil
		s.mu.Unlock()
		return authenticated
	}
	if err != nil {
		s.user, s.token = nil, ""
		s.generation++
		s.mu.Unlock()
		if errors.Is(err, ErrUnauthenticated) {
			s.report(CheckInvalid)
		} else {
			s.report(CheckError)
			s.logger.Warn("session verify failed", slog.String("session", s.key), slog.Any("error", err))
		}
		s.syncCache(context.WithoutCancel(ctx))
		return false
	}
	s.user = id.Clone()
	s.checkedAt = time.Now()
	s.mu.Unlock()
	s.report(CheckValid)

	s.syncCache(context.WithoutCancel(ctx))
	return true
}

// syncCache writes the store's current token and identity to the cache, or
// clears the snapshot when signed out. It reads the state after taking
// persistMu, so a slow write can never overwrite a newer login or logout.
func (s *Store) syncCache(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	token, user := s.token, s.user.Clone()
	s.mu.Unlock()

	if token == "" || user == nil {
		if err := s.cache.Clear(ctx, s.key); err != nil {
			s.logger.Warn("session cache clear", slog.String("session", s.key), slog.Any("error", err))
		}
		return
	}
	if err := s.cache.Save(ctx, s.key, token, user); err != nil {
		s.logger.Warn("session cache save", slog.String("session", s.key), slog.Any("error", err))
	}
}

// handOver moves the signed-in state to next and signs s out. Both cache
// snapshots are rewritten.
func (s *Store) handOver(ctx context.Context, next *Store) {
	s.mu.Lock()
	token, user, checkedAt := s.token, s.user, s.checkedAt
	s.user, s.token, s.loading = nil, "", false
	s.generation++
	s.mu.Unlock()

	next.mu.Lock()
	next.token, next.user, next.checkedAt, next.loading = token, user, checkedAt, false
	next.generation++
	next.mu.Unlock()

	next.syncCache(ctx)
	s.syncCache(ctx)
}

// Close detaches the store. Validations that finish later are discarded.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Wait blocks until background validations started by Initialize finish.
func (s *Store) Wait() {
	s.bg.Wait()
}

func (s *Store) report(result string) {
	if s.onCheck != nil {
		s.onCheck(result)
	}
}

// LandingRoute returns the first page a role sees after login.
func LandingRoute(role identity.Role) string {
	switch role {
	case identity.RoleInvestor:
		return "/investor/dashboard"
	case identity.RoleOfftaker:
		return "/offtaker/analytics/dashboard"
	default:
		return "/admin/dashboard"
	}
}
