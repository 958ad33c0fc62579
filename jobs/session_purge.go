package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/sunlease/portal/internal/jobs"
)

// SessionPurger deletes login audit rows that expired before a cutoff.
type SessionPurger interface {
	PurgeExpiredSessions(ctx context.Context, before time.Time) (int64, error)
}

// SessionPurgeJob trims the user_sessions table.
type SessionPurgeJob struct {
	Purger  SessionPurger
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewSessionPurgeJob wires dependencies for the purge handler.
func NewSessionPurgeJob(purger SessionPurger, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionPurgeJob {
	return &SessionPurgeJob{
		Purger:  purger,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes session purge tasks.
func (j *SessionPurgeJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Purger == nil {
		return errors.New("session purge: handler not configured")
	}
	var payload SessionPurgePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	tracker := j.metrics().Track(TaskSessionPurge)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	cutoff := j.now().Add(-payload.Retention())
	logger := j.logger().With(slog.Time("cutoff", cutoff))

	removed, err := j.Purger.PurgeExpiredSessions(ctx, cutoff)
	if err != nil {
		logger.Error("purge expired sessions", slog.Any("error", err))
		return err
	}
	logger.Info("purged expired sessions", slog.Int64("removed", removed))
	return nil
}

func (j *SessionPurgeJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSessionPurge))
	}
	return slog.Default().With(slog.String("job", TaskSessionPurge))
}

func (j *SessionPurgeJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *SessionPurgeJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
