package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/quotewizard/internal/adapters"
	"github.com/odyssey-erp/quotewizard/internal/drafts"
	jobmetrics "github.com/odyssey-erp/quotewizard/internal/jobs"
)

// SubmissionChannel is the Redis channel submitted quotes are announced on.
const SubmissionChannel = "drafts.submitted"

// Submission summarises a submitted quote for downstream consumers.
type Submission struct {
	DraftID     string    `json:"draftId"`
	RequestID   string    `json:"requestQuoteId,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
	Options     int       `json:"options"`
	Preferred   string    `json:"preferredOption,omitempty"`
	GrandTotal  float64   `json:"grandTotal"`
	Currency    string    `json:"currency,omitempty"`
}

// Publisher delivers submissions downstream.
type Publisher interface {
	PublishSubmission(ctx context.Context, s Submission) error
}

// RedisPublisher publishes submissions as JSON on SubmissionChannel.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) PublishSubmission(ctx context.Context, s Submission) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, SubmissionChannel, raw).Err()
}

type draftReader interface {
	Draft(ctx context.Context, id string) (drafts.Draft, error)
}

// DraftSubmittedJob summarises a submitted draft and publishes it.
type DraftSubmittedJob struct {
	drafts    draftReader
	publisher Publisher
	logger    *slog.Logger
	metrics   *jobmetrics.Metrics
}

func NewDraftSubmittedJob(reader draftReader, publisher Publisher, logger *slog.Logger, metrics *jobmetrics.Metrics) *DraftSubmittedJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &DraftSubmittedJob{drafts: reader, publisher: publisher, logger: logger, metrics: metrics}
}

// Handle processes TaskDraftSubmitted tasks. Payloads that can never succeed
// skip retries.
func (j *DraftSubmittedJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.drafts == nil {
		return errors.New("draft submitted: handler not configured")
	}
	var payload DraftSubmittedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.DraftID == "" {
		return asynq.SkipRetry
	}
	tracker := j.metrics.Track(TaskDraftSubmitted)
	defer func() { err = tracker.End(err) }()

	logger := j.logger.With(slog.String("draft_id", payload.DraftID))
	d, err := j.drafts.Draft(ctx, payload.DraftID)
	if errors.Is(err, drafts.ErrNotFound) {
		logger.Warn("submitted draft vanished")
		return fmt.Errorf("draft %s: %w", payload.DraftID, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}
	if !d.Submitted() {
		logger.Warn("draft not submitted", slog.String("status", string(d.Status)))
		return fmt.Errorf("draft %s is %s: %w", payload.DraftID, d.Status, asynq.SkipRetry)
	}

	sub, err := Summarize(d)
	if err != nil {
		logger.Error("summarize draft", slog.Any("error", err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	logger.Info("quote submitted",
		slog.String("request_id", sub.RequestID),
		slog.Int("options", sub.Options),
		slog.String("preferred", sub.Preferred),
		slog.Float64("grand_total", sub.GrandTotal),
		slog.String("currency", sub.Currency))

	if j.publisher == nil {
		return nil
	}
	if err := j.publisher.PublishSubmission(ctx, sub); err != nil {
		return fmt.Errorf("publish submission: %w", err)
	}
	j.metrics.IncPublished()
	return nil
}

// Summarize reads a stored draft through the draft adapter. The preferred
// option, or the first one when none is preferred, supplies the total.
func Summarize(d drafts.Draft) (Submission, error) {
	doc, err := drafts.Document(d)
	if err != nil {
		return Submission{}, err
	}
	p, err := adapters.ParsePayload(doc)
	if err != nil {
		return Submission{}, err
	}
	form, err := adapters.DraftToForm(p, adapters.UserContext{})
	if err != nil {
		return Submission{}, err
	}

	sub := Submission{
		DraftID:   d.ID,
		RequestID: form.RequestID,
		Options:   len(form.ExistingOptions),
	}
	if d.SubmittedAt != nil {
		sub.SubmittedAt = *d.SubmittedAt
	}
	if len(form.ExistingOptions) == 0 {
		return sub, nil
	}
	chosen := form.ExistingOptions[0]
	for _, o := range form.ExistingOptions {
		if o.IsPreferred {
			chosen = o
			break
		}
	}
	sub.Preferred = chosen.Name
	sub.GrandTotal = chosen.Totals().GrandTotal
	sub.Currency = chosen.Currency
	return sub, nil
}
