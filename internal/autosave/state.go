package autosave

import (
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of the orchestrator.
type Status string

const (
	StatusIdle   Status = "idle"
	StatusSaving Status = "saving"
	StatusError  Status = "error"
)

// State is published to subscribers after every transition.
type State struct {
	Status            Status    `json:"status"`
	LastSavedAt       time.Time `json:"lastSavedAt"`
	LastError         error     `json:"-"`
	DraftID           string    `json:"draftId,omitempty"`
	HasUnsavedChanges bool      `json:"hasUnsavedChanges"`
	SavedVersion      uint64    `json:"savedVersion"`
}

var (
	// ErrSaveFailed is wrapped by every PersistenceError.
	ErrSaveFailed = errors.New("autosave: save failed")
	// ErrClosed is returned by explicit saves after Close.
	ErrClosed = errors.New("autosave: orchestrator closed")
	// ErrEmptyDraftID is returned when the gateway accepts a create but
	// returns no identifier.
	ErrEmptyDraftID = errors.New("autosave: gateway returned an empty draft id")
)

// Op names the gateway call that failed.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
)

// PersistenceError records a failed gateway write. The in-memory model is
// never rolled back; the next save sends the current model.
type PersistenceError struct {
	Op      Op
	DraftID string
	Err     error
}

func (e *PersistenceError) Error() string {
	if e.DraftID == "" {
		return fmt.Sprintf("autosave: %s draft: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("autosave: %s draft %s: %v", e.Op, e.DraftID, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrSaveFailed, e.Err} }
