package autosave

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/odyssey-erp/quotewizard/internal/adapters"
	"github.com/odyssey-erp/quotewizard/internal/quote"
)

const (
	DefaultDebounce    = 900 * time.Millisecond
	DefaultSaveTimeout = 30 * time.Second
)

// Writer is the write half of the draft gateway.
type Writer interface {
	CreateDraft(ctx context.Context, payload adapters.DraftPayload) (string, error)
	UpdateDraft(ctx context.Context, id string, payload adapters.DraftPayload) (string, error)
}

// Source is the observable model being persisted. *quote.FormStore
// satisfies it.
type Source interface {
	Snapshot() (quote.DraftQuoteForm, uint64)
	Version() uint64
	Subscribe(fn func(version uint64)) func()
}

// Metrics receives one observation per gateway write.
type Metrics interface {
	ObserveSave(op string, elapsed time.Duration, err error)
}

// Config tunes an Orchestrator.
type Config struct {
	Debounce    time.Duration
	SaveTimeout time.Duration
	// SessionID is sent with every write so the gateway can make creates
	// idempotent.
	SessionID string
	// DraftID pre-seeds the remote draft of a resumed session.
	DraftID string
	Logger  *slog.Logger
	Metrics Metrics
	Now     func() time.Time
}

// Orchestrator debounces model changes into gateway writes. At most one write
// is in flight; changes arriving meanwhile are coalesced into the next write.
type Orchestrator struct {
	src     Source
	gw      Writer
	cfg     Config
	logger  *slog.Logger
	unwatch func()

	mu       sync.Mutex
	state    State
	saving   bool
	done     chan struct{}
	pending  bool
	timer    *time.Timer
	timerGen uint64
	idle     chan struct{}
	closed   bool

	listeners map[int]func(State)
	nextID    int
}

// New starts watching src. The current version of src counts as saved.
func New(src Source, gw Writer, cfg Config) *Orchestrator {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = DefaultSaveTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		src:    src,
		gw:     gw,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "autosave")),
		state: State{
			Status:       StatusIdle,
			DraftID:      cfg.DraftID,
			SavedVersion: src.Version(),
		},
		listeners: make(map[int]func(State)),
	}
	o.unwatch = src.Subscribe(o.onChange)
	return o
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// DraftID returns the captured remote draft id, if any.
func (o *Orchestrator) DraftID() string {
	return o.State().DraftID
}

// Subscribe registers fn for state transitions and returns its cancel func.
func (o *Orchestrator) Subscribe(fn func(State)) func() {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.listeners[id] = fn
	o.mu.Unlock()
	return func() {
		o.mu.Lock()
		delete(o.listeners, id)
		o.mu.Unlock()
	}
}

func (o *Orchestrator) onChange(version uint64) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.state.HasUnsavedChanges = version > o.state.SavedVersion
	o.scheduleLocked()
	o.publishLocked()
}

// scheduleLocked (re)starts the debounce timer.
func (o *Orchestrator) scheduleLocked() {
	if o.timer != nil {
		o.timer.Stop()
	}
	o.timerGen++
	gen := o.timerGen
	o.timer = time.AfterFunc(o.cfg.Debounce, func() { o.fire(gen) })
	o.busyLocked()
}

func (o *Orchestrator) stopTimerLocked() {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	o.timerGen++
}

func (o *Orchestrator) fire(gen uint64) {
	o.mu.Lock()
	if gen != o.timerGen {
		o.mu.Unlock()
		return
	}
	o.timer = nil
	switch {
	case o.closed:
		o.settleLocked()
		o.mu.Unlock()
		return
	case o.saving:
		o.pending = true
		o.mu.Unlock()
		return
	case !o.dirtyLocked():
		o.settleLocked()
		o.mu.Unlock()
		return
	}
	draftID := o.beginLocked()
	o.publishLocked()

	if err := o.run(context.Background(), draftID); err != nil {
		o.logger.Warn("autosave failed", slog.Any("error", err))
	}
}

func (o *Orchestrator) dirtyLocked() bool {
	return o.src.Version() > o.state.SavedVersion
}

func (o *Orchestrator) beginLocked() string {
	o.saving = true
	o.done = make(chan struct{})
	o.state.Status = StatusSaving
	o.busyLocked()
	return o.state.DraftID
}

// run performs one gateway write with the model as it is now. The write is
// detached from ctx cancellation so the draft id is captured even when the
// caller goes away.
func (o *Orchestrator) run(ctx context.Context, draftID string) error {
	form, version := o.src.Snapshot()
	payload := adapters.FormToPayload(form)
	payload.SessionID = o.cfg.SessionID

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.SaveTimeout)
	defer cancel()

	op := OpCreate
	start := time.Now()
	var (
		id  string
		err error
	)
	if draftID == "" {
		id, err = o.gw.CreateDraft(writeCtx, payload)
		if err == nil && id == "" {
			err = ErrEmptyDraftID
		}
	} else {
		op = OpUpdate
		id, err = o.gw.UpdateDraft(writeCtx, draftID, payload)
	}
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.ObserveSave(string(op), time.Since(start), err)
	}
	if err != nil {
		err = &PersistenceError{Op: op, DraftID: draftID, Err: err}
	}
	o.finish(version, id, err)
	return err
}

func (o *Orchestrator) finish(version uint64, id string, err error) {
	o.mu.Lock()
	o.saving = false
	close(o.done)
	o.done = nil

	if err != nil {
		o.state.Status = StatusError
		o.state.LastError = err
	} else {
		o.state.Status = StatusIdle
		o.state.LastError = nil
		o.state.LastSavedAt = o.cfg.Now().UTC()
		if version > o.state.SavedVersion {
			o.state.SavedVersion = version
		}
		if o.state.DraftID == "" {
			o.state.DraftID = id
			o.logger.Info("draft created", slog.String("draft_id", id))
		}
	}
	o.state.HasUnsavedChanges = o.dirtyLocked()

	if o.pending && !o.closed {
		o.pending = false
		o.scheduleLocked()
	} else {
		o.pending = false
		o.settleLocked()
	}
	o.publishLocked()
}

// SaveNow writes the current model without waiting for the debounce. An
// in-flight write is awaited first. Nothing is written when the model is
// already saved to an existing draft.
func (o *Orchestrator) SaveNow(ctx context.Context) error {
	for {
		o.mu.Lock()
		if o.closed {
			o.mu.Unlock()
			return ErrClosed
		}
		if o.saving {
			done := o.done
			o.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if !o.dirtyLocked() && o.state.DraftID != "" {
			o.mu.Unlock()
			return nil
		}
		o.stopTimerLocked()
		draftID := o.beginLocked()
		o.publishLocked()
		return o.run(ctx, draftID)
	}
}

// EnsureDraft returns the remote draft id, creating the draft through the
// single-flight path when none exists yet.
func (o *Orchestrator) EnsureDraft(ctx context.Context) (string, error) {
	for {
		o.mu.Lock()
		if o.state.DraftID != "" {
			id := o.state.DraftID
			o.mu.Unlock()
			return id, nil
		}
		if o.closed {
			o.mu.Unlock()
			return "", ErrClosed
		}
		if o.saving {
			done := o.done
			o.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		o.stopTimerLocked()
		o.beginLocked()
		o.publishLocked()
		if err := o.run(ctx, ""); err != nil {
			return "", err
		}
	}
}

// Wait blocks until no debounce is scheduled and no write is in flight.
func (o *Orchestrator) Wait(ctx context.Context) error {
	o.mu.Lock()
	idle := o.idle
	o.mu.Unlock()
	if idle == nil {
		return nil
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops scheduling saves. A write already in flight completes and
// still records the draft id.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.stopTimerLocked()
	o.pending = false
	o.settleLocked()
	o.mu.Unlock()
	o.unwatch()
}

func (o *Orchestrator) busyLocked() {
	if o.idle == nil {
		o.idle = make(chan struct{})
	}
}

func (o *Orchestrator) settleLocked() {
	if o.saving || o.timer != nil {
		return
	}
	if o.idle != nil {
		close(o.idle)
		o.idle = nil
	}
}

// publishLocked releases o.mu and notifies listeners in subscription order.
func (o *Orchestrator) publishLocked() {
	state := o.state
	ids := make([]int, 0, len(o.listeners))
	for id := range o.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(State), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, o.listeners[id])
	}
	o.mu.Unlock()
	for _, fn := range fns {
		fn(state)
	}
}
