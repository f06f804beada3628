package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/quotewizard/internal/jobs"
)

type draftPurger interface {
	PurgeStale(ctx context.Context, retention time.Duration) (int, error)
}

// DraftPurgeJob deletes open drafts nobody wrote to within the retention
// period. Submitted drafts are kept.
type DraftPurgeJob struct {
	drafts    draftPurger
	retention time.Duration
	logger    *slog.Logger
	metrics   *jobmetrics.Metrics
}

// NewDraftPurgeJob uses retention when a task does not carry its own.
func NewDraftPurgeJob(purger draftPurger, retention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *DraftPurgeJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &DraftPurgeJob{drafts: purger, retention: retention, logger: logger, metrics: metrics}
}

// Handle processes TaskDraftPurge tasks.
func (j *DraftPurgeJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.drafts == nil {
		return errors.New("draft purge: handler not configured")
	}
	var payload DraftPurgePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	retention := payload.Retention
	if retention <= 0 {
		retention = j.retention
	}
	if retention <= 0 {
		j.logger.Warn("draft purge skipped: no retention configured")
		return asynq.SkipRetry
	}

	tracker := j.metrics.Track(TaskDraftPurge)
	defer func() { err = tracker.End(err) }()

	n, err := j.drafts.PurgeStale(ctx, retention)
	if err != nil {
		j.logger.Error("purge stale drafts", slog.Any("error", err))
		return err
	}
	j.metrics.AddPurged(n)
	j.logger.Info("purged stale drafts", slog.Int("count", n), slog.Duration("retention", retention))
	return nil
}
