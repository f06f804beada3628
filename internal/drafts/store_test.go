package drafts

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCopiesPayloads(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	payload := json.RawMessage(`{"a":1}`)

	_, err := s.InsertDraft(ctx, Draft{ID: "d-1", Payload: payload, Status: StatusOpen})
	require.NoError(t, err)
	payload[2] = 'b'

	d, err := s.GetDraft(ctx, "d-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(d.Payload))
	d.Payload[2] = 'c'

	again, err := s.GetDraft(ctx, "d-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(again.Payload))
}

func TestMemoryStoreSessionUniqueness(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first, err := s.InsertDraft(ctx, Draft{ID: "d-1", SessionID: "s", Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)
	second, err := s.InsertDraft(ctx, Draft{ID: "d-2", SessionID: "s", Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = s.InsertDraft(ctx, Draft{ID: "d-3", Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)
	_, err = s.InsertDraft(ctx, Draft{ID: "d-4", Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)
	_, err = s.GetDraft(ctx, "d-4")
	assert.NoError(t, err, "drafts without a session are never merged")
}

func TestMemoryStoreSubmit(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	at := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

	_, err := s.InsertDraft(ctx, Draft{ID: "d-1", Status: StatusOpen, Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)

	d, err := s.MarkSubmitted(ctx, "d-1", at)
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, d.Status)
	assert.Equal(t, at, *d.SubmittedAt)

	_, err = s.UpdateDraft(ctx, DraftUpdate{ID: "d-1", Payload: []byte(`{}`)})
	assert.ErrorIs(t, err, ErrDraftSubmitted)
	_, err = s.MarkSubmitted(ctx, "missing", at)
	assert.ErrorIs(t, err, ErrNotFound)
}
