package rbac

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sunlease/portal/internal/identity"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("rbac: not found")

const pgForeignKeyViolation = "23503"

// Repository persists role and user grants.
type Repository interface {
	RoleGrants(ctx context.Context, role identity.Role) ([]Grant, error)
	UserGrants(ctx context.Context, userID int64) ([]Grant, error)
	UpsertRoleGrant(ctx context.Context, role identity.Role, g Grant) error
	UpsertUserGrant(ctx context.Context, userID int64, g Grant) error
	DeleteUserGrant(ctx context.Context, userID int64, m identity.Module, c identity.Capability) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// RoleGrants lists the default grants of a role.
func (r *PGRepository) RoleGrants(ctx context.Context, role identity.Role) ([]Grant, error) {
	return r.queryGrants(ctx, `SELECT module, capability, granted, updated_at FROM role_permissions WHERE role_id = $1 ORDER BY module, capability`, int(role))
}

// UserGrants lists the per-user overrides.
func (r *PGRepository) UserGrants(ctx context.Context, userID int64) ([]Grant, error) {
	return r.queryGrants(ctx, `SELECT module, capability, granted, updated_at FROM user_permissions WHERE user_id = $1 ORDER BY module, capability`, userID)
}

func (r *PGRepository) queryGrants(ctx context.Context, query string, arg any) ([]Grant, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []Grant
	for rows.Next() {
		var (
			g          Grant
			module     string
			capability string
		)
		if err := rows.Scan(&module, &capability, &g.Granted, &g.UpdatedAt); err != nil {
			return nil, err
		}
		g.Module = identity.ParseModule(module)
		g.Capability = identity.ParseCapability(capability)
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}

// UpsertRoleGrant inserts or updates a role grant.
func (r *PGRepository) UpsertRoleGrant(ctx context.Context, role identity.Role, g Grant) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO role_permissions (role_id, module, capability, granted, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (role_id, module, capability) DO UPDATE SET granted = EXCLUDED.granted, updated_at = EXCLUDED.updated_at`,
		int(role), string(g.Module), string(g.Capability), g.Granted, time.Now().UTC())
	return err
}

// UpsertUserGrant inserts or updates a user override. Unknown users map to ErrNotFound.
func (r *PGRepository) UpsertUserGrant(ctx context.Context, userID int64, g Grant) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_permissions (user_id, module, capability, granted, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, module, capability) DO UPDATE SET granted = EXCLUDED.granted, updated_at = EXCLUDED.updated_at`,
		userID, string(g.Module), string(g.Capability), g.Granted, time.Now().UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return ErrNotFound
	}
	return err
}

// DeleteUserGrant removes a user override and reports the affected rows.
func (r *PGRepository) DeleteUserGrant(ctx context.Context, userID int64, m identity.Module, c identity.Capability) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_permissions WHERE user_id = $1 AND module = $2 AND capability = $3`, userID, string(m), string(c))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Repository = (*PGRepository)(nil)
