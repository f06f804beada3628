package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

// Client enqueues draft tasks. It satisfies drafts.Notifier.
type Client struct {
	client *asynq.Client
}

func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	return &Client{client: asynq.NewClient(redisOpts)}, nil
}

// NotifySubmitted enqueues a TaskDraftSubmitted task. A task already queued
// for the draft counts as delivered.
func (c *Client) NotifySubmitted(ctx context.Context, draftID, requestID string, at time.Time) error {
	task, err := NewDraftSubmittedTask(DraftSubmittedPayload{DraftID: draftID, RequestID: requestID, SubmittedAt: at})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// EnqueuePurge queues an on-demand purge. Requests within the same minute
// collapse into one task.
func (c *Client) EnqueuePurge(ctx context.Context, retention time.Duration) (string, error) {
	task, err := NewDraftPurgeTask(retention)
	if err != nil {
		return "", err
	}
	info, err := c.client.EnqueueContext(ctx, task, asynq.Unique(time.Minute))
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return "", ErrPurgePending
	}
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
