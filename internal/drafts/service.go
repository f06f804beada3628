package drafts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/quotewizard/internal/adapters"
)

const (
	kindDraft   = "draft"
	kindRequest = "request"
)

// Notifier is told about submitted drafts after the submission is stored.
type Notifier interface {
	NotifySubmitted(ctx context.Context, draftID, requestID string, at time.Time) error
}

// Metrics observes draft writes.
type Metrics interface {
	ObserveSave(op string, elapsed time.Duration, err error)
}

// Options configures a Service. Every field is optional.
type Options struct {
	Cache    *Cache
	Locker   *Locker
	Notifier Notifier
	Metrics  Metrics
	Logger   *slog.Logger
	Now      func() time.Time
	NewID    func() string
}

// Service is the server side of the draft gateway.
type Service struct {
	store    Store
	cache    *Cache
	locker   *Locker
	notifier Notifier
	metrics  Metrics
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// NewService wires the store with its optional collaborators.
func NewService(store Store, opts Options) *Service {
	s := &Service{
		store:    store,
		cache:    opts.Cache,
		locker:   opts.Locker,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		now:      opts.Now,
		newID:    opts.NewID,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// CreateDraft stores a new draft. Creates are idempotent per session id: a
// repeated create returns the session's draft, updated to p.
func (s *Service) CreateDraft(ctx context.Context, p adapters.DraftPayload) (_ string, err error) {
	defer s.observe("create", time.Now(), &err)
	raw, fp, err := encode(p)
	if err != nil {
		return "", err
	}
	if p.SessionID != "" {
		release, err := s.locker.Acquire(ctx, SessionLockKey(p.SessionID))
		if err != nil {
			return "", err
		}
		defer release()
	}

	id := s.newID()
	now := s.now().UTC()
	d, err := s.store.InsertDraft(ctx, Draft{
		ID:          id,
		SessionID:   p.SessionID,
		RequestID:   p.RequestQuoteID,
		Payload:     raw,
		Fingerprint: fp,
		Status:      StatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return "", err
	}
	if d.ID == id {
		s.logger.Info("draft created",
			slog.String("draft_id", d.ID),
			slog.String("session_id", p.SessionID),
			slog.String("request_id", p.RequestQuoteID))
		return d.ID, nil
	}

	s.logger.Info("draft create replayed", slog.String("draft_id", d.ID), slog.String("session_id", p.SessionID))
	if d.Fingerprint == fp {
		return d.ID, nil
	}
	return d.ID, s.write(ctx, d, p.RequestQuoteID, raw, fp)
}

// UpdateDraft replaces the draft document. Writing the document the draft
// already holds is a no-op.
func (s *Service) UpdateDraft(ctx context.Context, id string, p adapters.DraftPayload) (_ string, err error) {
	defer s.observe("update", time.Now(), &err)
	if id == "" {
		return "", ErrMissingID
	}
	raw, fp, err := encode(p)
	if err != nil {
		return "", err
	}
	current, err := s.Draft(ctx, id)
	if err != nil {
		return "", err
	}
	if current.Submitted() {
		return "", ErrDraftSubmitted
	}
	if current.Fingerprint == fp {
		s.logger.Debug("draft unchanged", slog.String("draft_id", id))
		return id, nil
	}
	return id, s.write(ctx, current, p.RequestQuoteID, raw, fp)
}

func (s *Service) write(ctx context.Context, d Draft, requestID string, raw []byte, fp string) error {
	_, err := s.store.UpdateDraft(ctx, DraftUpdate{
		ID:          d.ID,
		RequestID:   requestID,
		Payload:     raw,
		Fingerprint: fp,
		At:          s.now().UTC(),
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, kindDraft, d.ID)
	return nil
}

// Draft returns the stored record.
func (s *Service) Draft(ctx context.Context, id string) (Draft, error) {
	if id == "" {
		return Draft{}, ErrMissingID
	}
	var d Draft
	err := s.cache.FetchJSON(ctx, kindDraft, id, &d, func(ctx context.Context) (any, error) {
		return s.store.GetDraft(ctx, id)
	})
	if err != nil {
		return Draft{}, err
	}
	return d, nil
}

// FetchDraft returns the stored document with its draft id filled in, the
// shape the draft adapter reads back.
func (s *Service) FetchDraft(ctx context.Context, id string) ([]byte, error) {
	d, err := s.Draft(ctx, id)
	if err != nil {
		return nil, err
	}
	return Document(d)
}

// Document renders a draft as the document served to clients. The stored
// status overrides any status inside the payload.
func Document(d Draft) ([]byte, error) {
	doc := map[string]json.RawMessage{}
	if err := json.Unmarshal(d.Payload, &doc); err != nil {
		return nil, fmt.Errorf("drafts: stored payload of %s: %w", d.ID, err)
	}
	id, err := json.Marshal(d.ID)
	if err != nil {
		return nil, err
	}
	doc["draftId"] = id
	if _, ok := doc["requestQuoteId"]; !ok && d.RequestID != "" {
		req, err := json.Marshal(d.RequestID)
		if err != nil {
			return nil, err
		}
		doc["requestQuoteId"] = req
	}
	if d.Status != "" {
		status, err := json.Marshal(d.Status)
		if err != nil {
			return nil, err
		}
		doc["status"] = status
	}
	return json.Marshal(doc)
}

// FetchRequest returns the upstream request document.
func (s *Service) FetchRequest(ctx context.Context, id string) ([]byte, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	var r Request
	err := s.cache.FetchJSON(ctx, kindRequest, id, &r, func(ctx context.Context) (any, error) {
		return s.store.GetRequest(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return r.Payload, nil
}

// PutRequest registers an upstream request. The document must pass the
// request payload checks.
func (s *Service) PutRequest(ctx context.Context, id string, raw []byte) error {
	if id == "" {
		return ErrMissingID
	}
	p, err := adapters.ParsePayload(raw)
	if err != nil {
		return &InvalidPayloadError{Errors: []string{err.Error()}}
	}
	if res := adapters.ValidateRequestPayload(p); !res.IsValid {
		return &InvalidPayloadError{Errors: res.Errors}
	}
	if err := s.store.PutRequest(ctx, Request{ID: id, Payload: raw, CreatedAt: s.now().UTC()}); err != nil {
		return err
	}
	s.invalidate(ctx, kindRequest, id)
	return nil
}

// SubmitDraft closes the draft for updates and notifies downstream. A failed
// notification is logged; the submission stands.
func (s *Service) SubmitDraft(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}
	d, err := s.store.MarkSubmitted(ctx, id, s.now().UTC())
	if err != nil {
		return err
	}
	s.invalidate(ctx, kindDraft, id)
	s.logger.Info("draft submitted", slog.String("draft_id", id), slog.String("request_id", d.RequestID))

	if s.notifier == nil {
		return nil
	}
	if err := s.notifier.NotifySubmitted(ctx, d.ID, d.RequestID, *d.SubmittedAt); err != nil {
		s.logger.Warn("notify draft submitted", slog.String("draft_id", id), slog.Any("error", err))
	}
	return nil
}

// PurgeStale deletes open drafts not written for retention.
func (s *Service) PurgeStale(ctx context.Context, retention time.Duration) (int, error) {
	ids, err := s.store.PurgeOpen(ctx, s.now().UTC().Add(-retention))
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		s.invalidate(ctx, kindDraft, id)
	}
	if len(ids) > 0 {
		s.logger.Info("stale drafts purged", slog.Int("count", len(ids)))
	}
	return len(ids), nil
}

// invalidate runs after a committed write. A failure leaves the old entry
// until its TTL ends.
func (s *Service) invalidate(ctx context.Context, kind, id string) {
	if err := s.cache.Bump(ctx, kind, id); err != nil {
		s.logger.Warn("cache invalidate",
			slog.String("kind", kind),
			slog.String("id", id),
			slog.Any("error", err))
	}
}

func (s *Service) observe(op string, start time.Time, err *error) {
	if s.metrics != nil {
		s.metrics.ObserveSave(op, time.Since(start), *err)
	}
}

func encode(p adapters.DraftPayload) ([]byte, string, error) {
	raw, err := p.JSON()
	if err != nil {
		return nil, "", fmt.Errorf("drafts: encode payload: %w", err)
	}
	fp, err := Fingerprint(p)
	if err != nil {
		return nil, "", fmt.Errorf("drafts: fingerprint payload: %w", err)
	}
	return raw, fp, nil
}
