package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionPurge removes login audit rows whose token has expired.
	TaskSessionPurge = "auth:sessions:purge"
	// TaskPermissionsWarm reloads the cached role defaults.
	TaskPermissionsWarm = "rbac:permissions:warm"
)

// SessionPurgePayload controls how far back expired rows are retained.
type SessionPurgePayload struct {
	RetainHours int `json:"retain_hours"`
}

// Retention converts the payload into a duration, never negative.
func (p SessionPurgePayload) Retention() time.Duration {
	if p.RetainHours <= 0 {
		return 0
	}
	return time.Duration(p.RetainHours) * time.Hour
}

// NewSessionPurgeTask constructs an Asynq task for the session purge.
func NewSessionPurgeTask(retainHours int) (*asynq.Task, error) {
	data, err := json.Marshal(SessionPurgePayload{RetainHours: retainHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionPurge, data), nil
}

// NewPermissionsWarmTask constructs an Asynq task for the role cache warmup.
func NewPermissionsWarmTask() *asynq.Task {
	return asynq.NewTask(TaskPermissionsWarm, nil)
}
