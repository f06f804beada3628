// Package drafts persists quote drafts for the wizard. It serves the draft
// gateway from Postgres with a Redis read cache, and exposes it over HTTP.
package drafts

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/odyssey-erp/quotewizard/internal/platform/httpx"
)

// Status of a stored draft.
type Status string

const (
	StatusOpen      Status = "open"
	StatusSubmitted Status = "submitted"
)

// Draft is one stored draft document.
type Draft struct {
	ID          string          `json:"id"`
	SessionID   string          `json:"sessionId,omitempty"`
	RequestID   string          `json:"requestQuoteId,omitempty"`
	Payload     json.RawMessage `json:"payload"`
	Fingerprint string          `json:"fingerprint"`
	Status      Status          `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	SubmittedAt *time.Time      `json:"submittedAt,omitempty"`
}

// Submitted reports whether the draft is closed for updates.
func (d Draft) Submitted() bool { return d.Status == StatusSubmitted }

// Request is an upstream quote request document.
type Request struct {
	ID        string          `json:"id"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

var (
	ErrNotFound       = fmt.Errorf("drafts: %w", httpx.ErrNotFound)
	ErrDraftSubmitted = fmt.Errorf("drafts: draft already submitted: %w", httpx.ErrConflict)
	ErrLocked         = fmt.Errorf("drafts: session is being written: %w", httpx.ErrLocked)
	ErrMissingID      = errors.New("drafts: id required")
)

// InvalidPayloadError reports a document the adapters refuse.
type InvalidPayloadError struct {
	Errors []string
}

func (e *InvalidPayloadError) Error() string {
	return fmt.Sprintf("drafts: invalid payload (%d problems)", len(e.Errors))
}

func (e *InvalidPayloadError) Details() []string { return e.Errors }

func (e *InvalidPayloadError) Unwrap() error { return httpx.ErrValidation }
