package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/sunlease/portal/internal/platform/httpx"
)

// Worker wraps the Asynq server and optional scheduler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// TaskHandler allows injecting custom Asynq handlers during worker setup.
type TaskHandler struct {
	Type    string
	Handler asynq.HandlerFunc
}

// CronRegistration wires a cron expression to a prepared task.
type CronRegistration struct {
	Spec    string
	Task    *asynq.Task
	Options []asynq.Option
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Logger      *slog.Logger
	Concurrency int
	Handlers    []TaskHandler
	Cron        []CronRegistration
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: concurrency,
		Logger:      newAsynqLogger(cfg.Logger),
		Queues: map[string]int{
			QueueDefault: 1,
		},
	})
	mux := asynq.NewServeMux()
	for _, h := range cfg.Handlers {
		if h.Type == "" || h.Handler == nil {
			continue
		}
		mux.HandleFunc(h.Type, h.Handler)
	}

	var scheduler *asynq.Scheduler
	if len(cfg.Cron) > 0 {
		scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{Location: time.UTC})
		for _, entry := range cfg.Cron {
			if entry.Spec == "" || entry.Task == nil {
				continue
			}
			if _, err := scheduler.Register(entry.Spec, entry.Task, entry.Options...); err != nil {
				return nil, err
			}
		}
	}

	return &Worker{server: srv, mux: mux, scheduler: scheduler, logger: cfg.Logger}, nil
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return err
		}
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		return err
	}
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	client := asynq.NewClient(redisOpts)
	return &Client{client: client}, nil
}

// EnqueueSessionPurge schedules an immediate purge of expired login rows.
func (c *Client) EnqueueSessionPurge(ctx context.Context, retainHours int) (*asynq.TaskInfo, error) {
	task, err := NewSessionPurgeTask(retainHours)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(3))
}

// EnqueuePermissionsWarm asks the worker to reload the role grant cache.
// Duplicate requests within a minute collapse into one task.
func (c *Client) EnqueuePermissionsWarm(ctx context.Context) (*asynq.TaskInfo, error) {
	return c.client.EnqueueContext(ctx, NewPermissionsWarmTask(), asynq.Queue(QueueDefault), asynq.Unique(time.Minute))
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

var _ Enqueuer = (*Client)(nil)

// Enqueuer submits portal maintenance tasks.
type Enqueuer interface {
	EnqueueSessionPurge(ctx context.Context, retainHours int) (*asynq.TaskInfo, error)
	EnqueuePermissionsWarm(ctx context.Context) (*asynq.TaskInfo, error)
}

// Handler exposes HTTP endpoints for job observability and manual triggers.
type Handler struct {
	inspector *asynq.Inspector
	enqueuer  Enqueuer
	logger    *slog.Logger
	// Trigger guards the manual trigger routes; nil leaves them open to
	// whoever can reach MountRoutes.
	Trigger func(http.Handler) http.Handler
}

// NewHandler constructs an HTTP handler for jobs endpoints. enqueuer may be
// nil, in which case the trigger routes are not mounted.
func NewHandler(inspector *asynq.Inspector, enqueuer Enqueuer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{inspector: inspector, enqueuer: enqueuer, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
	if h.enqueuer == nil {
		return
	}
	r.Group(func(r chi.Router) {
		if h.Trigger != nil {
			r.Use(h.Trigger)
		}
		r.Post("/sessions/purge", h.triggerPurge)
		r.Post("/permissions/warm", h.triggerWarm)
	})
}

func (h *Handler) triggerPurge(w http.ResponseWriter, r *http.Request) {
	retain := 0
	if raw := r.URL.Query().Get("retain_hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "retain_hours must be a non-negative integer")
			return
		}
		retain = parsed
	}
	info, err := h.enqueuer.EnqueueSessionPurge(r.Context(), retain)
	h.accepted(w, TaskSessionPurge, info, err)
}

func (h *Handler) triggerWarm(w http.ResponseWriter, r *http.Request) {
	info, err := h.enqueuer.EnqueuePermissionsWarm(r.Context())
	if errors.Is(err, asynq.ErrDuplicateTask) {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	h.accepted(w, TaskPermissionsWarm, info, err)
}

func (h *Handler) accepted(w http.ResponseWriter, task string, info *asynq.TaskInfo, err error) {
	if err != nil {
		h.logger.Error("enqueue task", slog.String("task", task), slog.Any("error", err))
		httpx.RespondError(w, httpx.ErrUnavailable)
		return
	}
	body := map[string]string{"task": task}
	if info != nil {
		body["id"] = info.ID
	}
	httpx.JSON(w, http.StatusAccepted, body)
}

type queueHealth struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Failed    int    `json:"failed_today"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	body := queueHealth{Queue: QueueDefault}
	if h.inspector != nil {
		info, err := h.inspector.GetQueueInfo(QueueDefault)
		if err != nil {
			h.logger.Warn("jobs health", slog.Any("error", err))
			httpx.RespondError(w, httpx.ErrUnavailable)
			return
		}
		if info != nil {
			body = queueHealth{
				Queue:     info.Queue,
				Pending:   info.Pending,
				Active:    info.Active,
				Scheduled: info.Scheduled,
				Retry:     info.Retry,
				Failed:    info.Failed,
			}
		}
	}
	httpx.JSON(w, http.StatusOK, body)
}

// asynqLogger routes asynq's internal logging through slog.
type asynqLogger struct {
	logger *slog.Logger
}

func newAsynqLogger(logger *slog.Logger) asynqLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return asynqLogger{logger: logger.With(slog.String("component", "asynq"))}
}

func (l asynqLogger) Debug(args ...any) { l.logger.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...any)  { l.logger.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...any)  { l.logger.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...any) { l.logger.Error(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...any) {
	l.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}
