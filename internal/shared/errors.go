package shared

import "errors"

// Sentinels shared by the auth and audit layers.
var (
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials covers unknown emails, wrong passwords and
	// disabled accounts alike so a login never reveals which one failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrCSRFTokenMissing  = errors.New("csrf token missing")
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")

	// ErrAuditIncomplete rejects entries missing action, entity or entity id.
	ErrAuditIncomplete  = errors.New("audit log requires action/entity/entity_id")
	ErrAuditUnavailable = errors.New("audit logger not initialised")
)
