package wizard

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/odyssey-erp/quotewizard/internal/quote"
)

// Step identifies one page of the wizard. The string value is the id used in
// URLs and bookmarks.
type Step string

const (
	StepBasics  Step = "basics"
	StepOptions Step = "options"
	StepReview  Step = "review"
)

// Steps lists the wizard steps in order.
var Steps = []Step{StepBasics, StepOptions, StepReview}

var (
	// ErrStepIncomplete is returned when forward navigation is gated.
	ErrStepIncomplete = errors.New("wizard: step incomplete")
	// ErrNoPreviousStep is returned by Previous on the first step.
	ErrNoPreviousStep = errors.New("wizard: already on first step")
	// ErrUnknownStep is returned for ids that are not a step.
	ErrUnknownStep = errors.New("wizard: unknown step")
)

// ParseStep maps a URL step id to a Step.
func ParseStep(id string) (Step, error) {
	s := Step(strings.ToLower(strings.TrimSpace(id)))
	if s.Index() < 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownStep, id)
	}
	return s, nil
}

// Index returns the position of s in Steps, or -1.
func (s Step) Index() int {
	for i, step := range Steps {
		if step == s {
			return i
		}
	}
	return -1
}

// IsStepComplete reports whether step holds everything the next step needs.
func IsStepComplete(step Step, f quote.DraftQuoteForm) bool {
	switch step {
	case StepBasics:
		b := f.Basics
		for _, v := range []string{
			string(b.CargoType), b.Incoterm,
			b.Origin.City, b.Origin.Country,
			b.Destination.City, b.Destination.Country,
			b.GoodsDescription,
		} {
			if strings.TrimSpace(v) == "" {
				return false
			}
		}
		return true
	case StepOptions:
		return len(f.ExistingOptions) > 0
	case StepReview:
		return IsStepComplete(StepBasics, f) && IsStepComplete(StepOptions, f)
	}
	return false
}

// Navigator is the step state machine. It reads the form through a func and
// never mutates it. Readonly mode relaxes forward gating only.
type Navigator struct {
	form func() quote.DraftQuoteForm

	mu        sync.Mutex
	current   Step
	readonly  bool
	listeners []func(from, to Step)
}

// NewNavigator starts on the first step.
func NewNavigator(form func() quote.DraftQuoteForm, readonly bool) *Navigator {
	return &Navigator{form: form, current: StepBasics, readonly: readonly}
}

func (n *Navigator) Current() Step {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

func (n *Navigator) Readonly() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.readonly
}

func (n *Navigator) SetReadonly(readonly bool) {
	n.mu.Lock()
	n.readonly = readonly
	n.mu.Unlock()
}

// OnChange registers fn for every step change.
func (n *Navigator) OnChange(fn func(from, to Step)) {
	n.mu.Lock()
	n.listeners = append(n.listeners, fn)
	n.mu.Unlock()
}

// CanAdvance reports whether Next would succeed.
func (n *Navigator) CanAdvance() bool {
	n.mu.Lock()
	cur, readonly := n.current, n.readonly
	n.mu.Unlock()
	if cur.Index() == len(Steps)-1 {
		return false
	}
	return readonly || IsStepComplete(cur, n.form())
}

// Next moves forward one step.
func (n *Navigator) Next() (Step, error) {
	n.mu.Lock()
	cur := n.current
	i := cur.Index()
	if i == len(Steps)-1 {
		n.mu.Unlock()
		return cur, fmt.Errorf("%w: %s is the last step", ErrStepIncomplete, cur)
	}
	if !n.readonly && !IsStepComplete(cur, n.form()) {
		n.mu.Unlock()
		return cur, fmt.Errorf("%w: %s", ErrStepIncomplete, cur)
	}
	return n.moveLocked(Steps[i+1]), nil
}

// Previous moves back one step.
func (n *Navigator) Previous() (Step, error) {
	n.mu.Lock()
	i := n.current.Index()
	if i <= 0 {
		cur := n.current
		n.mu.Unlock()
		return cur, ErrNoPreviousStep
	}
	return n.moveLocked(Steps[i-1]), nil
}

// Goto jumps to step. Going back is always allowed; going forward requires
// every step before the target to be complete unless readonly.
func (n *Navigator) Goto(step Step) error {
	target := step.Index()
	if target < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownStep, string(step))
	}
	n.mu.Lock()
	if target > n.current.Index() && !n.readonly {
		form := n.form()
		for _, s := range Steps[:target] {
			if !IsStepComplete(s, form) {
				n.mu.Unlock()
				return fmt.Errorf("%w: %s", ErrStepIncomplete, s)
			}
		}
	}
	n.moveLocked(step)
	return nil
}

// moveLocked switches steps, releases n.mu and notifies listeners.
func (n *Navigator) moveLocked(to Step) Step {
	from := n.current
	n.current = to
	listeners := slices.Clone(n.listeners)
	n.mu.Unlock()
	if from != to {
		for _, fn := range listeners {
			fn(from, to)
		}
	}
	return to
}
