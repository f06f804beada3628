package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/quotewizard/internal/autosave"
	"github.com/odyssey-erp/quotewizard/internal/options"
	"github.com/odyssey-erp/quotewizard/internal/quote"
)

// Gateway is the remote draft store consumed by a session.
type Gateway interface {
	autosave.Writer
	FetchDraft(ctx context.Context, id string) ([]byte, error)
	FetchRequest(ctx context.Context, id string) ([]byte, error)
	SubmitDraft(ctx context.Context, id string) error
}

// ErrNoGateway is returned by New without a gateway.
var ErrNoGateway = errors.New("wizard: gateway is required")

// Config assembles a session.
type Config struct {
	Gateway Gateway
	Initial quote.DraftQuoteForm
	// DraftID is the remote draft a resumed session keeps updating.
	DraftID  string
	Readonly bool
	// Finalized starts the session on a submitted draft. Every mutation
	// fails with quote.ErrFinalized.
	Finalized bool
	// SessionID defaults to a random uuid.
	SessionID string

	Debounce        time.Duration
	SaveTimeout     time.Duration
	OptionValidity  time.Duration
	DefaultCurrency string
	Metrics         autosave.Metrics
	Logger          *slog.Logger
	Now             func() time.Time
}

// Event is published to shell subscribers after every model, step or
// autosave change.
type Event struct {
	Version  uint64         `json:"version"`
	Step     Step           `json:"step"`
	Autosave autosave.State `json:"autosave"`
}

// Session is the shell-facing API of one wizard instance. It owns the form
// store and funnels every mutation through it.
type Session struct {
	id      string
	gw      Gateway
	store   *quote.FormStore
	nav     *Navigator
	orch    *autosave.Orchestrator
	options *options.Manager
	logger  *slog.Logger

	mu        sync.Mutex
	listeners map[int]func(Event)
	nextID    int
	unsubs    []func()
	closed    bool
}

// New builds a session around cfg.Initial.
func New(cfg Config) (*Session, error) {
	if cfg.Gateway == nil {
		return nil, ErrNoGateway
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("session_id", cfg.SessionID))

	store := quote.NewFormStore(cfg.Initial)
	orch := autosave.New(store, cfg.Gateway, autosave.Config{
		Debounce:    cfg.Debounce,
		SaveTimeout: cfg.SaveTimeout,
		SessionID:   cfg.SessionID,
		DraftID:     cfg.DraftID,
		Logger:      logger,
		Metrics:     cfg.Metrics,
		Now:         cfg.Now,
	})
	s := &Session{
		id:      cfg.SessionID,
		gw:      cfg.Gateway,
		store:   store,
		orch:    orch,
		options: options.NewManager(store, orch, options.Config{
			Validity:        cfg.OptionValidity,
			DefaultCurrency: cfg.DefaultCurrency,
			Logger:          logger,
			Now:             cfg.Now,
		}),
		logger:    logger,
		listeners: make(map[int]func(Event)),
	}
	s.nav = NewNavigator(s.GetCurrentModel, cfg.Readonly)
	if cfg.Finalized {
		store.Finalize()
		orch.Close()
	}

	s.unsubs = append(s.unsubs,
		store.Subscribe(func(uint64) { s.emit(orch.State()) }),
		orch.Subscribe(s.emit),
	)
	s.nav.OnChange(func(from, to Step) {
		logger.Debug("step changed", slog.String("from", string(from)), slog.String("to", string(to)))
		s.emit(orch.State())
	})
	return s, nil
}

func (s *Session) ID() string { return s.id }

// GetCurrentModel returns a copy of the form.
func (s *Session) GetCurrentModel() quote.DraftQuoteForm {
	form, _ := s.store.Snapshot()
	return form
}

func (s *Session) Version() uint64                { return s.store.Version() }
func (s *Session) Errors() quote.ValidationErrors { return s.store.Errors() }
func (s *Session) Step() Step                     { return s.nav.Current() }
func (s *Session) Readonly() bool                 { return s.nav.Readonly() }
func (s *Session) Autosave() autosave.State       { return s.orch.State() }
func (s *Session) DraftID() string                { return s.orch.DraftID() }
func (s *Session) Finalized() bool                { return s.store.Finalized() }

// Subscribe registers fn for session events and returns its cancel func.
func (s *Session) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Session) emit(state autosave.State) {
	ev := Event{Version: s.store.Version(), Step: s.nav.Current(), Autosave: state}
	s.mu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// ============================================================================
// NAVIGATION
// ============================================================================

// GotoStep jumps to the step with the given URL id.
func (s *Session) GotoStep(id string) error {
	step, err := ParseStep(id)
	if err != nil {
		return err
	}
	return s.nav.Goto(step)
}

func (s *Session) Next() (Step, error)     { return s.nav.Next() }
func (s *Session) Previous() (Step, error) { return s.nav.Previous() }
func (s *Session) CanAdvance() bool        { return s.nav.CanAdvance() }

// OnStepChange registers fn for step changes, e.g. to keep a URL in sync.
func (s *Session) OnStepChange(fn func(from, to Step)) { s.nav.OnChange(fn) }

// ============================================================================
// MUTATIONS
// ============================================================================

func (s *Session) UpdateBasics(fn func(*quote.Basics)) (quote.ValidationErrors, error) {
	return s.store.UpdateBasics(fn)
}

func (s *Session) UpdateCurrentOption(fn func(*quote.OptionDraft)) (quote.ValidationErrors, error) {
	return s.store.UpdateCurrentOption(fn)
}

func (s *Session) SetAttachments(attachments []quote.Attachment) (quote.ValidationErrors, error) {
	return s.store.SetAttachments(attachments)
}

// Preview returns the totals of the option being composed.
func (s *Session) Preview() quote.Totals { return s.options.Preview() }

func (s *Session) Options() []quote.QuoteOption { return s.options.List() }

func (s *Session) Commit(ctx context.Context, name, description string) (quote.QuoteOption, error) {
	return s.options.Commit(ctx, name, description)
}

func (s *Session) Duplicate(ctx context.Context, id string) (quote.QuoteOption, error) {
	return s.options.Duplicate(ctx, id)
}

func (s *Session) Delete(ctx context.Context, id string) error {
	return s.options.Delete(ctx, id)
}

func (s *Session) SetPreferred(ctx context.Context, id string) (quote.QuoteOption, error) {
	return s.options.SetPreferred(ctx, id)
}

func (s *Session) Edit(id string) (quote.OptionDraft, error) { return s.options.Edit(id) }

func (s *Session) CancelEdit() error { return s.options.CancelEdit() }

// ============================================================================
// PERSISTENCE
// ============================================================================

// SaveNow writes the current model, waiting for any write in flight.
func (s *Session) SaveNow(ctx context.Context) error {
	return s.orch.SaveNow(ctx)
}

// EnsureDraft returns the remote draft id, creating the draft if needed.
func (s *Session) EnsureDraft(ctx context.Context) (string, error) {
	return s.orch.EnsureDraft(ctx)
}

// Submit saves the model, submits the draft and makes the form immutable.
// The review step must be complete.
func (s *Session) Submit(ctx context.Context) (string, error) {
	if s.store.Finalized() {
		return "", quote.ErrFinalized
	}
	if form := s.GetCurrentModel(); !IsStepComplete(StepReview, form) {
		return "", fmt.Errorf("%w: %s", ErrStepIncomplete, StepReview)
	}
	if err := s.orch.SaveNow(ctx); err != nil {
		return "", err
	}
	id, err := s.orch.EnsureDraft(ctx)
	if err != nil {
		return "", err
	}
	if err := s.gw.SubmitDraft(ctx, id); err != nil {
		return "", fmt.Errorf("wizard: submit draft %s: %w", id, err)
	}
	s.store.Finalize()
	s.orch.Close()
	s.logger.Info("draft submitted", slog.String("draft_id", id))
	s.emit(s.orch.State())
	return id, nil
}

// Close stops autosave scheduling. A write in flight still completes.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubs := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()

	s.orch.Close()
	for _, fn := range unsubs {
		fn()
	}
}

// Wait blocks until autosave is idle.
func (s *Session) Wait(ctx context.Context) error {
	return s.orch.Wait(ctx)
}
