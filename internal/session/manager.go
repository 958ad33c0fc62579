package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// ManagerConfig collects what the Manager needs.
type ManagerConfig struct {
	Backend    Backend
	Cache      Cache
	Logger     *slog.Logger
	CookieName string
	TTL        time.Duration
	Secure     bool
	// Capacity bounds the number of live stores kept in memory.
	Capacity int
	Timeout  time.Duration
	// Revalidate re-checks a live store's token in the background once it
	// is older than this. Zero disables it.
	Revalidate time.Duration
	OnCheck    func(result string)
}

// Manager maps browser sessions, identified by cookie, to live stores.
// Evicted stores are closed and rebuilt from the cache on the next request.
type Manager struct {
	cfg    ManagerConfig
	stores *lru.Cache[string, *Store]
	group  singleflight.Group
}

// NewManager constructs a Manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Backend == nil || cfg.Cache == nil {
		return nil, errors.New("session: backend and cache required")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "portal_session"
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 4096
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 720 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	stores, err := lru.NewWithEvict(cfg.Capacity, func(_ string, s *Store) {
		s.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("session: lru: %w", err)
	}
	return &Manager{cfg: cfg, stores: stores}, nil
}

// CookieName returns the cookie identifier used for sessions.
func (m *Manager) CookieName() string {
	return m.cfg.CookieName
}

// TTL exposes the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.cfg.TTL
}

// Load returns the store for the request's session, creating one when the
// cookie is missing. Concurrent loads of the same session share one store.
func (m *Manager) Load(ctx context.Context, r *http.Request) (*Store, error) {
	id := ""
	if cookie, err := r.Cookie(m.cfg.CookieName); err == nil {
		if _, parseErr := uuid.Parse(cookie.Value); parseErr == nil {
			id = cookie.Value
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	if s, ok := m.stores.Get(id); ok {
		if m.cfg.Revalidate > 0 && s.Stale(m.cfg.Revalidate, time.Now()) {
			s.Revalidate(ctx)
		}
		return s, nil
	}
	v, err, _ := m.group.Do(id, func() (any, error) {
		if s, ok := m.stores.Get(id); ok {
			return s, nil
		}
		s := m.newStore(id)
		if err := s.Initialize(ctx); err != nil {
			m.cfg.Logger.Warn("session initialize", slog.String("session", id), slog.Any("error", err))
		}
		m.stores.Add(id, s)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Store), nil
}

// Get returns a live store without creating one.
func (m *Manager) Get(id string) (*Store, bool) {
	return m.stores.Get(id)
}

// Len reports the number of live stores.
func (m *Manager) Len() int {
	return m.stores.Len()
}

// Commit writes the session cookie.
func (m *Manager) Commit(w http.ResponseWriter, s *Store) {
	if s == nil {
		return
	}
	m.setCookie(w, s.Key(), time.Now().Add(m.cfg.TTL), 0)
}

// Rotate moves the state of old onto a store with a freshly generated key
// and points the cookie at it. Handlers call it after a successful login so a
// key chosen before authentication never carries a signed-in session.
func (m *Manager) Rotate(ctx context.Context, w http.ResponseWriter, old *Store) *Store {
	next := m.newStore(uuid.NewString())
	if old != nil {
		old.handOver(ctx, next)
		m.stores.Remove(old.Key())
	}
	m.stores.Add(next.Key(), next)
	m.Commit(w, next)
	return next
}

// Destroy drops the live store and expires the cookie.
func (m *Manager) Destroy(w http.ResponseWriter, s *Store) {
	if s != nil {
		m.stores.Remove(s.Key())
	}
	m.setCookie(w, "", time.Unix(0, 0), -1)
}

// setCookie replaces any session cookie already queued on w.
func (m *Manager) setCookie(w http.ResponseWriter, value string, expires time.Time, maxAge int) {
	header := w.Header()
	prefix := m.cfg.CookieName + "="
	kept := make([]string, 0, len(header["Set-Cookie"]))
	for _, line := range header["Set-Cookie"] {
		if !strings.HasPrefix(line, prefix) {
			kept = append(kept, line)
		}
	}
	if len(kept) == 0 {
		header.Del("Set-Cookie")
	} else {
		header["Set-Cookie"] = kept
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  expires,
		MaxAge:   maxAge,
	})
}

// Middleware loads the session store into the request context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := m.Load(r.Context(), r)
		if err != nil {
			m.cfg.Logger.Error("failed to load session", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		m.Commit(w, s)
		ctx := ContextWithManager(ContextWithStore(r.Context(), s), m)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Close detaches every live store and waits for background validations.
func (m *Manager) Close() {
	for _, key := range m.stores.Keys() {
		if s, ok := m.stores.Peek(key); ok {
			s.Close()
			s.Wait()
		}
	}
	m.stores.Purge()
}

func (m *Manager) newStore(id string) *Store {
	return NewStore(Options{
		Key:     id,
		Backend: m.cfg.Backend,
		Cache:   m.cfg.Cache,
		Logger:  m.cfg.Logger,
		Timeout: m.cfg.Timeout,
		OnCheck: m.cfg.OnCheck,
	})
}
