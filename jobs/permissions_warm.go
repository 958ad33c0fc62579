package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/sunlease/portal/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// GrantWarmer reloads cached role defaults.
type GrantWarmer interface {
	Warm(ctx context.Context) (int, error)
}

// PermissionsWarmJob pre-populates the role permission cache so the first
// logins after a deploy do not all hit Postgres.
type PermissionsWarmJob struct {
	Warmer  GrantWarmer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Timeout time.Duration
}

// NewPermissionsWarmJob wires dependencies for the warmup handler.
func NewPermissionsWarmJob(warmer GrantWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *PermissionsWarmJob {
	return &PermissionsWarmJob{
		Warmer:  warmer,
		Logger:  logger,
		Metrics: metrics,
		Timeout: 20 * time.Second,
	}
}

// Handle processes permission warmup tasks.
func (j *PermissionsWarmJob) Handle(ctx context.Context, _ *asynq.Task) (resultErr error) {
	if j == nil || j.Warmer == nil {
		return errors.New("permissions warm: handler not configured")
	}
	tracker := j.metrics().Track(TaskPermissionsWarm)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	start := time.Now()
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	warmed, err := j.Warmer.Warm(ctx)
	if err != nil {
		logger.Error("warm role grants", slog.Int("roles", warmed), slog.Any("error", err))
		return err
	}
	logger.Info("completed permissions warmup", slog.Int("roles", warmed), slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *PermissionsWarmJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskPermissionsWarm))
	}
	return slog.Default().With(slog.String("job", TaskPermissionsWarm))
}

func (j *PermissionsWarmJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
