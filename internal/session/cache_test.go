package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunlease/portal/internal/identity"
)

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, time.Hour), mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	cache, mr := newRedisCache(t)
	ctx := context.Background()

	id := &identity.Identity{ID: 9, Name: "Ada", Email: "ada@sunlease.test", Role: identity.RoleAdminStaff,
		Permissions: identity.PermissionMap{identity.ModuleInvoices: {identity.CapView: true}}}
	require.NoError(t, cache.Save(ctx, "abc", "tok", id))

	assert.True(t, mr.Exists("portal:session:abc:token"))
	assert.Equal(t, time.Hour, mr.TTL("portal:session:abc:identity"))

	token, raw, err := cache.Load(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
	got, err := identity.Decode(raw)
	require.NoError(t, err)
	assert.True(t, got.Permissions[identity.ModuleInvoices][identity.CapView])

	require.NoError(t, cache.Clear(ctx, "abc"))
	_, _, err = cache.Load(ctx, "abc")
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestRedisCacheExpiry(t *testing.T) {
	cache, mr := newRedisCache(t)
	ctx := context.Background()
	require.NoError(t, cache.Save(ctx, "abc", "tok", &identity.Identity{ID: 1, Email: "a@b.c", Role: identity.RoleInvestor}))

	mr.FastForward(2 * time.Hour)
	_, _, err := cache.Load(ctx, "abc")
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestRedisCacheCorruptIdentityIsReturnedRaw(t *testing.T) {
	cache, mr := newRedisCache(t)
	require.NoError(t, mr.Set("portal:session:abc:token", "tok"))
	require.NoError(t, mr.Set("portal:session:abc:identity", "not-json"))

	token, raw, err := cache.Load(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
	_, err = identity.Decode(raw)
	assert.Error(t, err)
}

func TestRedisCacheUnavailable(t *testing.T) {
	cache, mr := newRedisCache(t)
	mr.Close()

	_, _, err := cache.Load(context.Background(), "abc")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSnapshot)
}

func TestInitializeReportsCacheFailure(t *testing.T) {
	cache, mr := newRedisCache(t)
	mr.Close()
	s := NewStore(Options{Key: "abc", Backend: newFakeBackend(), Cache: cache})

	assert.Error(t, s.Initialize(context.Background()))
	assert.False(t, s.Authenticated())
	assert.False(t, s.Loading())
}
