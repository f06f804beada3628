package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/quotewizard/internal/platform/httpx"
)

// ErrPurgePending reports that a purge was enqueued moments ago.
var ErrPurgePending = fmt.Errorf("jobs: purge already pending: %w", httpx.ErrConflict)

type queueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

type purgeEnqueuer interface {
	EnqueuePurge(ctx context.Context, retention time.Duration) (string, error)
}

// Handler exposes queue health and manual job triggers.
type Handler struct {
	inspector queueInspector
	enqueuer  purgeEnqueuer
	logger    *slog.Logger
}

// NewHandler accepts nil dependencies; the matching endpoints then degrade.
func NewHandler(inspector queueInspector, enqueuer purgeEnqueuer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{inspector: inspector, enqueuer: enqueuer, logger: logger}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
	r.Post("/purge", h.purge)
}

// QueueHealth summarises one queue.
type QueueHealth struct {
	Queue     string `json:"queue"`
	Size      int    `json:"size"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
	LatencyMS int64  `json:"latencyMs"`
	Paused    bool   `json:"paused,omitempty"`
	Priority  int    `json:"priority"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	priorities := QueuePriorities()
	out := make([]QueueHealth, 0, len(priorities))
	for _, q := range []string{QueueDrafts, QueueMaintenance} {
		health := QueueHealth{Queue: q, Priority: priorities[q]}
		if h.inspector != nil {
			info, err := h.inspector.GetQueueInfo(q)
			if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
				h.logger.Warn("jobs health", slog.String("queue", q), slog.Any("error", err))
				httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "queue inspection failed")
				return
			}
			if info != nil {
				health.Size = info.Size
				health.Pending = info.Pending
				health.Active = info.Active
				health.Retry = info.Retry
				health.Archived = info.Archived
				health.LatencyMS = info.Latency.Milliseconds()
				health.Paused = info.Paused
			}
		}
		out = append(out, health)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) purge(w http.ResponseWriter, r *http.Request) {
	if h.enqueuer == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "job queue not configured")
		return
	}
	var retention time.Duration
	if raw := r.URL.Query().Get("retention"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "retention must be a positive duration, e.g. 720h")
			return
		}
		retention = d
	}
	id, err := h.enqueuer.EnqueuePurge(r.Context(), retention)
	if err != nil {
		h.logger.Warn("enqueue purge", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"taskId": id})
}
