package rbac

import (
	"time"

	"github.com/sunlease/portal/internal/identity"
)

// Grant records one capability decision for a role or a single user.
type Grant struct {
	Module     identity.Module     `json:"module" validate:"required"`
	Capability identity.Capability `json:"capability" validate:"required"`
	Granted    bool                `json:"granted"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// toMap folds grants into a permission map.
func toMap(grants []Grant) identity.PermissionMap {
	perms := make(identity.PermissionMap)
	for _, g := range grants {
		perms.Set(g.Module, g.Capability, g.Granted)
	}
	return perms
}
