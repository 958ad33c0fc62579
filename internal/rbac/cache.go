package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sunlease/portal/internal/identity"
)

const roleGrantsKeyPrefix = "portal:rbac:role:"

// CachedRepository keeps role defaults in Redis. User overrides are always
// read from the underlying repository.
type CachedRepository struct {
	Repository
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedRepository decorates repo with a Redis role-grant cache.
func NewCachedRepository(repo Repository, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedRepository {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedRepository{Repository: repo, client: client, ttl: ttl, logger: logger}
}

func roleGrantsKey(role identity.Role) string {
	return roleGrantsKeyPrefix + strconv.Itoa(int(role))
}

// RoleGrants serves role defaults from Redis, falling back to the repository
// on a miss or a cache failure.
func (c *CachedRepository) RoleGrants(ctx context.Context, role identity.Role) ([]Grant, error) {
	if c.client != nil {
		raw, err := c.client.Get(ctx, roleGrantsKey(role)).Bytes()
		switch {
		case err == nil:
			var grants []Grant
			if jsonErr := json.Unmarshal(raw, &grants); jsonErr == nil {
				return grants, nil
			}
			c.logger.Warn("rbac cache decode", slog.Int("role", int(role)))
		case !errors.Is(err, redis.Nil):
			c.logger.Warn("rbac cache get", slog.Int("role", int(role)), slog.Any("error", err))
		}
	}
	return c.load(ctx, role)
}

func (c *CachedRepository) load(ctx context.Context, role identity.Role) ([]Grant, error) {
	grants, err := c.Repository.RoleGrants(ctx, role)
	if err != nil {
		return nil, err
	}
	c.store(ctx, role, grants)
	return grants, nil
}

func (c *CachedRepository) store(ctx context.Context, role identity.Role, grants []Grant) {
	if c.client == nil {
		return
	}
	payload, err := json.Marshal(grants)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, roleGrantsKey(role), payload, c.ttl).Err(); err != nil {
		c.logger.Warn("rbac cache set", slog.Int("role", int(role)), slog.Any("error", err))
	}
}

// UpsertRoleGrant writes through and drops the cached defaults of role.
func (c *CachedRepository) UpsertRoleGrant(ctx context.Context, role identity.Role, g Grant) error {
	if err := c.Repository.UpsertRoleGrant(ctx, role, g); err != nil {
		return err
	}
	if c.client != nil {
		if err := c.client.Del(ctx, roleGrantsKey(role)).Err(); err != nil {
			c.logger.Warn("rbac cache invalidate", slog.Int("role", int(role)), slog.Any("error", err))
		}
	}
	return nil
}

// Warm reloads the defaults of every non super-admin role into the cache and
// reports how many roles were refreshed.
func (c *CachedRepository) Warm(ctx context.Context) (int, error) {
	warmed := 0
	for role := identity.RoleAdminStaff; role.Valid(); role++ {
		if err := ctx.Err(); err != nil {
			return warmed, err
		}
		if _, err := c.load(ctx, role); err != nil {
			return warmed, err
		}
		warmed++
	}
	return warmed, nil
}

var _ Repository = (*CachedRepository)(nil)
