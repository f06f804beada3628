package options

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/quotewizard/internal/quote"
)

const (
	DefaultValidity = 30 * 24 * time.Hour
	DefaultCurrency = "EUR"

	copySuffix = " (copy)"
)

// Saver persists the whole draft after an option mutation.
// *autosave.Orchestrator satisfies it.
type Saver interface {
	SaveNow(ctx context.Context) error
}

// Config tunes a Manager.
type Config struct {
	Validity        time.Duration
	DefaultCurrency string
	Logger          *slog.Logger
	Now             func() time.Time
	NewID           func() string
}

// Manager applies option operations to a form store. Every operation is one
// store mutation, so invariants hold for every observable version.
type Manager struct {
	store  *quote.FormStore
	saver  Saver
	cfg    Config
	logger *slog.Logger
}

// NewManager wires a manager. saver may be nil for purely local use.
func NewManager(store *quote.FormStore, saver Saver, cfg Config) *Manager {
	if cfg.Validity <= 0 {
		cfg.Validity = DefaultValidity
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = DefaultCurrency
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return uuid.NewString() }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  store,
		saver:  saver,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "options")),
	}
}

// List returns the committed options in order.
func (m *Manager) List() []quote.QuoteOption {
	form, _ := m.store.Snapshot()
	return form.ExistingOptions
}

// Get returns one committed option.
func (m *Manager) Get(id string) (quote.QuoteOption, error) {
	form, _ := m.store.Snapshot()
	i := indexOf(form.ExistingOptions, id)
	if i < 0 {
		return quote.QuoteOption{}, fmt.Errorf("%w: %s", quote.ErrOptionNotFound, id)
	}
	return form.ExistingOptions[i], nil
}

// Preview returns the totals of the option being composed.
func (m *Manager) Preview() quote.Totals {
	form, _ := m.store.Snapshot()
	return quote.DraftTotals(form.CurrentOption)
}

// Commit freezes the current option into the committed list and clears the
// slot. When the slot edits a committed option that option is replaced in
// place, keeping its id, creation time and preferred flag; otherwise the
// list must have room. A failed save keeps the commit and is returned as an
// error next to the committed option.
func (m *Manager) Commit(ctx context.Context, name, description string) (quote.QuoteOption, error) {
	var id string
	_, err := m.store.Apply(func(f *quote.DraftQuoteForm) error {
		draft := f.CurrentOption
		if draft.IsEmpty() {
			return quote.ErrEmptyOption
		}
		cur, err := optionCurrency(draft, m.cfg.DefaultCurrency)
		if err != nil {
			return err
		}
		now := m.now()
		opt := quote.QuoteOption{
			Name:        strings.TrimSpace(name),
			Description: strings.TrimSpace(description),
			Seafreights: draft.Seafreights,
			Haulages:    draft.Haulages,
			Services:    draft.Services,
			Containers:  append([]quote.Container(nil), f.Basics.Containers...),
			Ports:       f.Basics.Ports,
			Currency:    cur,
			ValidUntil:  now.Add(m.cfg.Validity),
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if draft.EditingID != "" {
			i := indexOf(f.ExistingOptions, draft.EditingID)
			if i < 0 {
				return fmt.Errorf("%w: %s", quote.ErrOptionNotFound, draft.EditingID)
			}
			prev := f.ExistingOptions[i]
			opt.ID = prev.ID
			opt.CreatedAt = prev.CreatedAt
			opt.IsPreferred = prev.IsPreferred
			if opt.Name == "" {
				opt.Name = prev.Name
			}
			if opt.Description == "" {
				opt.Description = prev.Description
			}
			f.ExistingOptions[i] = opt
		} else {
			if len(f.ExistingOptions) >= quote.MaxOptions {
				return quote.ErrCapacityExceeded
			}
			opt.ID = m.cfg.NewID()
			if opt.Name == "" {
				opt.Name = fmt.Sprintf("Option %d", len(f.ExistingOptions)+1)
			}
			f.ExistingOptions = append(f.ExistingOptions, opt)
		}
		f.CurrentOption = quote.OptionDraft{}
		id = opt.ID
		return nil
	})
	if err != nil {
		return quote.QuoteOption{}, err
	}
	return m.result(ctx, "commit", id)
}

// Duplicate appends a deep copy of a committed option under a new id.
func (m *Manager) Duplicate(ctx context.Context, id string) (quote.QuoteOption, error) {
	var newID string
	_, err := m.store.Apply(func(f *quote.DraftQuoteForm) error {
		if len(f.ExistingOptions) >= quote.MaxOptions {
			return quote.ErrCapacityExceeded
		}
		i := indexOf(f.ExistingOptions, id)
		if i < 0 {
			return fmt.Errorf("%w: %s", quote.ErrOptionNotFound, id)
		}
		now := m.now()
		cp := quote.CloneOption(f.ExistingOptions[i])
		cp.ID = m.cfg.NewID()
		cp.Name += copySuffix
		cp.IsPreferred = false
		cp.CreatedAt = now
		cp.UpdatedAt = now
		cp.ValidUntil = now.Add(m.cfg.Validity)
		f.ExistingOptions = append(f.ExistingOptions, cp)
		newID = cp.ID
		return nil
	})
	if err != nil {
		return quote.QuoteOption{}, err
	}
	return m.result(ctx, "duplicate", newID)
}

// Delete removes a committed option. An edit in progress of that option
// becomes a new option on its next commit.
func (m *Manager) Delete(ctx context.Context, id string) error {
	_, err := m.store.Apply(func(f *quote.DraftQuoteForm) error {
		i := indexOf(f.ExistingOptions, id)
		if i < 0 {
			return fmt.Errorf("%w: %s", quote.ErrOptionNotFound, id)
		}
		f.ExistingOptions = append(f.ExistingOptions[:i], f.ExistingOptions[i+1:]...)
		if f.CurrentOption.EditingID == id {
			f.CurrentOption.EditingID = ""
		}
		return nil
	})
	if err != nil {
		return err
	}
	return m.persist(ctx, "delete")
}

// SetPreferred marks id as the only preferred option.
func (m *Manager) SetPreferred(ctx context.Context, id string) (quote.QuoteOption, error) {
	_, err := m.store.Apply(func(f *quote.DraftQuoteForm) error {
		if indexOf(f.ExistingOptions, id) < 0 {
			return fmt.Errorf("%w: %s", quote.ErrOptionNotFound, id)
		}
		for i := range f.ExistingOptions {
			f.ExistingOptions[i].IsPreferred = f.ExistingOptions[i].ID == id
		}
		return nil
	})
	if err != nil {
		return quote.QuoteOption{}, err
	}
	return m.result(ctx, "set preferred", id)
}

// Edit loads a committed option's line items into the current option. The
// committed option is untouched until the next Commit.
func (m *Manager) Edit(id string) (quote.OptionDraft, error) {
	var draft quote.OptionDraft
	_, err := m.store.Apply(func(f *quote.DraftQuoteForm) error {
		i := indexOf(f.ExistingOptions, id)
		if i < 0 {
			return fmt.Errorf("%w: %s", quote.ErrOptionNotFound, id)
		}
		src := quote.CloneOption(f.ExistingOptions[i])
		f.CurrentOption = quote.OptionDraft{
			EditingID:   src.ID,
			Seafreights: src.Seafreights,
			Haulages:    src.Haulages,
			Services:    src.Services,
		}
		draft = quote.CloneDraft(f.CurrentOption)
		return nil
	})
	return draft, err
}

// CancelEdit empties the current option slot.
func (m *Manager) CancelEdit() error {
	_, err := m.store.Apply(func(f *quote.DraftQuoteForm) error {
		f.CurrentOption = quote.OptionDraft{}
		return nil
	})
	return err
}

func (m *Manager) result(ctx context.Context, op, id string) (quote.QuoteOption, error) {
	opt, err := m.Get(id)
	if err != nil {
		return quote.QuoteOption{}, err
	}
	return opt, m.persist(ctx, op)
}

func (m *Manager) persist(ctx context.Context, op string) error {
	if m.saver == nil {
		return nil
	}
	if err := m.saver.SaveNow(ctx); err != nil {
		m.logger.Warn("option change not persisted", slog.String("op", op), slog.Any("error", err))
		return fmt.Errorf("options: %s: %w", op, err)
	}
	return nil
}

func (m *Manager) now() time.Time {
	return m.cfg.Now().UTC().Truncate(time.Millisecond)
}

func indexOf(opts []quote.QuoteOption, id string) int {
	for i, o := range opts {
		if o.ID == id {
			return i
		}
	}
	return -1
}
