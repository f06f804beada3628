package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// Queues. Submission fan-out outranks maintenance six to one.
const (
	QueueDrafts      = "drafts"
	QueueMaintenance = "maintenance"
)

// QueuePriorities is the weighted queue set served by the worker.
func QueuePriorities() map[string]int {
	return map[string]int{QueueDrafts: 6, QueueMaintenance: 1}
}

const (
	// TaskDraftSubmitted announces a submitted draft downstream.
	TaskDraftSubmitted = "draft:submitted"
	// TaskDraftPurge deletes open drafts past the retention period.
	TaskDraftPurge = "draft:purge"
)

// DraftSubmittedPayload identifies a submitted draft.
type DraftSubmittedPayload struct {
	DraftID     string    `json:"draftId"`
	RequestID   string    `json:"requestQuoteId,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// NewDraftSubmittedTask constructs an Asynq task. The task id makes a
// repeated enqueue for the same draft a no-op.
func NewDraftSubmittedTask(payload DraftSubmittedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDraftSubmitted, data,
		asynq.Queue(QueueDrafts),
		asynq.MaxRetry(5),
		asynq.TaskID(TaskDraftSubmitted+":"+payload.DraftID),
	), nil
}

// DraftPurgePayload carries the retention period.
type DraftPurgePayload struct {
	Retention time.Duration `json:"retention"`
}

// NewDraftPurgeTask builds a stale draft removal task. A zero retention
// defers to the worker's configured period.
func NewDraftPurgeTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(DraftPurgePayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDraftPurge, data, asynq.Queue(QueueMaintenance), asynq.MaxRetry(3)), nil
}
