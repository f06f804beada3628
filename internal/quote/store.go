package quote

import (
	"sort"
	"sync"
)

// FormStore owns the form of one wizard session. Every mutation goes through
// it so normalization, validation and dirty tracking cannot be bypassed.
type FormStore struct {
	mu        sync.RWMutex
	form      DraftQuoteForm
	version   uint64
	errs      ValidationErrors
	finalized bool

	listeners map[int]func(uint64)
	nextID    int
}

// NewFormStore seeds a store with an initial form at version zero.
func NewFormStore(initial DraftQuoteForm) *FormStore {
	form := Normalize(Clone(initial))
	return &FormStore{
		form:      form,
		errs:      Validate(form),
		listeners: make(map[int]func(uint64)),
	}
}

// Snapshot returns a deep copy of the form and the version it was taken at.
func (s *FormStore) Snapshot() (DraftQuoteForm, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Clone(s.form), s.version
}

// Version increases by one for every accepted mutation.
func (s *FormStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Errors returns the validation errors of the current form.
func (s *FormStore) Errors() ValidationErrors {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.errs) == 0 {
		return nil
	}
	out := make(ValidationErrors, len(s.errs))
	for k, v := range s.errs {
		out[k] = v
	}
	return out
}

// Finalize makes the form immutable.
func (s *FormStore) Finalize() {
	s.mu.Lock()
	s.finalized = true
	s.mu.Unlock()
}

// Finalized reports whether the form was submitted.
func (s *FormStore) Finalized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.finalized
}

// Apply runs fn against a copy of the form. The copy replaces the form only
// when fn returns nil, so a failed operation leaves the model unchanged. The
// returned ValidationErrors describe the accepted form and are informational.
func (s *FormStore) Apply(fn func(*DraftQuoteForm) error) (ValidationErrors, error) {
	s.mu.Lock()
	if s.finalized {
		s.mu.Unlock()
		return nil, ErrFinalized
	}
	next := Clone(s.form)
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	next = Normalize(next)
	s.form = next
	s.errs = Validate(next)
	s.version++
	version := s.version
	errs := s.errs
	listeners := s.listenersLocked()
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(version)
	}
	return errs, nil
}

// UpdateBasics mutates the shipment basics.
func (s *FormStore) UpdateBasics(fn func(*Basics)) (ValidationErrors, error) {
	return s.Apply(func(f *DraftQuoteForm) error {
		fn(&f.Basics)
		return nil
	})
}

// UpdateCurrentOption mutates the option being composed.
func (s *FormStore) UpdateCurrentOption(fn func(*OptionDraft)) (ValidationErrors, error) {
	return s.Apply(func(f *DraftQuoteForm) error {
		fn(&f.CurrentOption)
		return nil
	})
}

// SetAttachments replaces the attachment references.
func (s *FormStore) SetAttachments(attachments []Attachment) (ValidationErrors, error) {
	return s.Apply(func(f *DraftQuoteForm) error {
		f.Attachments = cloneSlice(attachments)
		return nil
	})
}

// Subscribe registers fn to be called with the new version after every
// accepted mutation. Calls happen outside the store lock.
func (s *FormStore) Subscribe(fn func(version uint64)) func() {
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

func (s *FormStore) listenersLocked() []func(uint64) {
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(uint64), 0, len(ids))
	for _, id := range ids {
		out = append(out, s.listeners[id])
	}
	return out
}
