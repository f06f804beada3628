package drafts

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Store persists drafts and upstream requests.
type Store interface {
	// InsertDraft stores d. When a draft with the same non-empty session id
	// exists, that draft is returned instead and nothing is written.
	InsertDraft(ctx context.Context, d Draft) (Draft, error)
	// UpdateDraft replaces the payload of an open draft.
	UpdateDraft(ctx context.Context, u DraftUpdate) (Draft, error)
	GetDraft(ctx context.Context, id string) (Draft, error)
	MarkSubmitted(ctx context.Context, id string, at time.Time) (Draft, error)
	// PurgeOpen deletes open drafts untouched since before.
	PurgeOpen(ctx context.Context, before time.Time) ([]string, error)

	PutRequest(ctx context.Context, r Request) error
	GetRequest(ctx context.Context, id string) (Request, error)
}

// DraftUpdate is the mutable part of a draft.
type DraftUpdate struct {
	ID          string
	RequestID   string
	Payload     []byte
	Fingerprint string
	At          time.Time
}

// MemoryStore is an in-process Store for tests and local runs.
type MemoryStore struct {
	mu        sync.RWMutex
	drafts    map[string]Draft
	bySession map[string]string
	requests  map[string]Request
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		drafts:    make(map[string]Draft),
		bySession: make(map[string]string),
		requests:  make(map[string]Request),
	}
}

func (s *MemoryStore) InsertDraft(_ context.Context, d Draft) (Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.SessionID != "" {
		if id, ok := s.bySession[d.SessionID]; ok {
			return cloneDraft(s.drafts[id]), nil
		}
		s.bySession[d.SessionID] = d.ID
	}
	d = cloneDraft(d)
	s.drafts[d.ID] = d
	return cloneDraft(d), nil
}

func (s *MemoryStore) UpdateDraft(_ context.Context, u DraftUpdate) (Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[u.ID]
	if !ok {
		return Draft{}, ErrNotFound
	}
	if d.Submitted() {
		return Draft{}, ErrDraftSubmitted
	}
	if u.RequestID != "" {
		d.RequestID = u.RequestID
	}
	d.Payload = slices.Clone(u.Payload)
	d.Fingerprint = u.Fingerprint
	d.UpdatedAt = u.At
	s.drafts[d.ID] = d
	return cloneDraft(d), nil
}

func (s *MemoryStore) GetDraft(_ context.Context, id string) (Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drafts[id]
	if !ok {
		return Draft{}, ErrNotFound
	}
	return cloneDraft(d), nil
}

func (s *MemoryStore) MarkSubmitted(_ context.Context, id string, at time.Time) (Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[id]
	if !ok {
		return Draft{}, ErrNotFound
	}
	if d.Submitted() {
		return Draft{}, ErrDraftSubmitted
	}
	d.Status = StatusSubmitted
	d.SubmittedAt = &at
	d.UpdatedAt = at
	s.drafts[id] = d
	return cloneDraft(d), nil
}

func (s *MemoryStore) PurgeOpen(_ context.Context, before time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged []string
	for id, d := range s.drafts {
		if d.Submitted() || !d.UpdatedAt.Before(before) {
			continue
		}
		delete(s.drafts, id)
		if d.SessionID != "" {
			delete(s.bySession, d.SessionID)
		}
		purged = append(purged, id)
	}
	slices.Sort(purged)
	return purged, nil
}

func (s *MemoryStore) PutRequest(_ context.Context, r Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.Payload = slices.Clone(r.Payload)
	s.requests[r.ID] = r
	return nil
}

func (s *MemoryStore) GetRequest(_ context.Context, id string) (Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	r.Payload = slices.Clone(r.Payload)
	return r, nil
}

func cloneDraft(d Draft) Draft {
	d.Payload = slices.Clone(d.Payload)
	if d.SubmittedAt != nil {
		at := *d.SubmittedAt
		d.SubmittedAt = &at
	}
	return d
}
