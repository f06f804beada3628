package quote

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrCapacityExceeded is returned when an option would exceed MaxOptions.
	ErrCapacityExceeded = errors.New("quote: option capacity exceeded")
	// ErrOptionNotFound is returned when no committed option has the given id.
	ErrOptionNotFound = errors.New("quote: option not found")
	// ErrMixedCurrency is returned when line items of one option disagree on currency.
	ErrMixedCurrency = errors.New("quote: mixed currencies in one option")
	// ErrInvalidCurrency is returned for codes that are not ISO 4217.
	ErrInvalidCurrency = errors.New("quote: invalid currency")
	// ErrEmptyOption is returned when committing an option without line items.
	ErrEmptyOption = errors.New("quote: option has no line items")
	// ErrFinalized is returned for mutations of a submitted draft.
	ErrFinalized = errors.New("quote: draft is finalized")
)

// ValidationErrors maps a json field path to a message. It never blocks a
// mutation.
type ValidationErrors map[string]string

// Error implements error.
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation passed"
	}
	fields := v.Fields()
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Fields returns the failing field paths in stable order.
func (v ValidationErrors) Fields() []string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Scope returns the errors whose path starts with prefix.
func (v ValidationErrors) Scope(prefix string) ValidationErrors {
	out := ValidationErrors{}
	for f, msg := range v {
		if f == prefix || strings.HasPrefix(f, prefix+".") {
			out[f] = msg
		}
	}
	return out
}

// Has reports whether the exact field path failed.
func (v ValidationErrors) Has(field string) bool {
	_, ok := v[field]
	return ok
}
