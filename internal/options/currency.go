package options

import (
	"fmt"
	"slices"
	"strings"

	"github.com/odyssey-erp/quotewizard/internal/quote"
)

// optionCurrency returns the single currency shared by the line items of
// draft. Items without a currency follow the others; an option without any
// currency uses fallback.
func optionCurrency(draft quote.OptionDraft, fallback string) (string, error) {
	seen := map[string]struct{}{}
	add := func(code string) {
		if code = strings.ToUpper(strings.TrimSpace(code)); code != "" {
			seen[code] = struct{}{}
		}
	}
	for _, sf := range draft.Seafreights {
		add(sf.Currency)
	}
	for _, h := range draft.Haulages {
		add(h.Currency)
	}
	for _, s := range draft.Services {
		add(s.Currency)
	}

	code := fallback
	switch len(seen) {
	case 0:
	case 1:
		for c := range seen {
			code = c
		}
	default:
		codes := make([]string, 0, len(seen))
		for c := range seen {
			codes = append(codes, c)
		}
		slices.Sort(codes)
		return "", fmt.Errorf("%w: %s", quote.ErrMixedCurrency, strings.Join(codes, ", "))
	}
	return quote.ParseCurrency(code)
}
