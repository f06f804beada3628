package adapters

import (
	"fmt"
	"strings"

	"github.com/odyssey-erp/quotewizard/internal/quote"
)

// UserContext describes the user composing the quote. Adapters use it for
// defaults instead of reading ambient session state.
type UserContext struct {
	UserID string
	Name   string
	Email  string
}

// RequestToForm adapts a request for quote into a fresh form. The payload is
// validated first; an invalid payload yields an *AdaptationError.
func RequestToForm(p Payload, user UserContext) (quote.DraftQuoteForm, error) {
	if res := ValidateRequestPayload(p); !res.IsValid {
		return quote.DraftQuoteForm{}, &AdaptationError{Kind: KindRequest, Errors: res.Errors}
	}
	rs := RequestRules
	form := quote.DraftQuoteForm{
		RequestID: rs.Resolve(p, FieldRequestID),
		Basics:    basicsFrom(rs, p, user),
	}
	form.Basics.Containers = resolveContainers(p, rs,
		[]string{"data.containers", "containers", "data.containerLines", "containerLines"},
		[]string{"data.containerTypes", "containerTypes", "data.packingType", "packingType", "data.containerType", "containerType"},
	)
	form.Attachments = attachmentsAt(p, "data.attachments", "attachments", "data.files", "files")
	return quote.Normalize(form), nil
}

// DraftToForm adapts a stored draft back into a form, including its committed
// options and the option being composed. Drafts in the canonical data.basics
// layout keep their cargo type and departure date exactly as saved, so that
// in-progress forms survive a round trip; older layouts go through the same
// mapping as requests.
func DraftToForm(p Payload, user UserContext) (quote.DraftQuoteForm, error) {
	if res := ValidateDraftPayload(p); !res.IsValid {
		return quote.DraftQuoteForm{}, &AdaptationError{Kind: KindDraft, Errors: res.Errors}
	}
	rs := DraftRules
	form := quote.DraftQuoteForm{
		RequestID: rs.Resolve(p, FieldRequestID),
		Basics:    basicsFrom(rs, p, user),
	}
	if _, ok := p.Lookup("data.basics"); ok {
		form.Basics.CargoType = quote.CargoType(verbatimAt(p, "data.basics.cargoType"))
		form.Basics.RequestedDeparture = verbatimAt(p, "data.basics.requestedDeparture")
	}
	form.Basics.Containers = resolveContainers(p, rs,
		[]string{"data.basics.containers", "data.step1.containers", "basics.containers", "data.containers", "containers"},
		[]string{"data.step1.containerTypes", "data.containerTypes", "containerTypes"},
	)

	var err error
	if form.ExistingOptions, err = optionsFrom(p); err != nil {
		return quote.DraftQuoteForm{}, err
	}
	if form.CurrentOption, err = currentOptionFrom(p); err != nil {
		return quote.DraftQuoteForm{}, err
	}
	form.Attachments = attachmentsAt(p, "data.attachments", "attachments", "data.files")
	return quote.Normalize(form), nil
}

// Adapt dispatches on kind.
func Adapt(kind Kind, p Payload, user UserContext) (quote.DraftQuoteForm, error) {
	if kind == KindDraft {
		return DraftToForm(p, user)
	}
	return RequestToForm(p, user)
}

func basicsFrom(rs RuleSet, p Payload, user UserContext) quote.Basics {
	b := quote.Basics{
		CargoType: resolveCargoType(rs, p),
		Incoterm:  rs.Resolve(p, FieldIncoterm),
		Origin: quote.Location{
			City:    rs.Resolve(p, FieldOriginCity),
			Country: rs.Resolve(p, FieldOriginCountry),
		},
		Destination: quote.Location{
			City:    rs.Resolve(p, FieldDestinationCity),
			Country: rs.Resolve(p, FieldDestinationCountry),
		},
		RequestedDeparture: normalizeDate(rs.Resolve(p, FieldRequestedDeparture)),
		GoodsDescription:   rs.Resolve(p, FieldGoodsDescription),
		Client: quote.Party{
			ID:    rs.Resolve(p, FieldClientID),
			Name:  rs.Resolve(p, FieldClientName),
			Email: rs.Resolve(p, FieldClientEmail),
		},
		Assignee: quote.Party{
			ID:    rs.Resolve(p, FieldAssigneeID),
			Name:  rs.Resolve(p, FieldAssigneeName),
			Email: rs.Resolve(p, FieldAssigneeEmail),
		},
		Ports: quote.Ports{
			Loading: quote.Port{
				ID:      rs.Resolve(p, FieldLoadingPortID),
				Name:    rs.Resolve(p, FieldLoadingPortName),
				Country: rs.Resolve(p, FieldLoadingPortCountry),
			},
			Discharge: quote.Port{
				ID:      rs.Resolve(p, FieldDischargePortID),
				Name:    rs.Resolve(p, FieldDischargePortName),
				Country: rs.Resolve(p, FieldDischargePortCntry),
			},
		},
	}
	if b.Assignee == (quote.Party{}) {
		b.Assignee = quote.Party{ID: user.UserID, Name: user.Name, Email: user.Email}
	}
	return b
}

func optionsFrom(p Payload) ([]quote.QuoteOption, error) {
	for _, path := range []string{"data.options", "data.existingOptions", "options", "existingOptions"} {
		v, ok := p.Lookup(path)
		if !ok {
			continue
		}
		var opts []quote.QuoteOption
		if err := decodeInto(v, &opts); err != nil {
			return nil, &AdaptationError{Kind: KindDraft, Errors: []string{fmt.Sprintf("malformed %s: %v", path, err)}}
		}
		return opts, nil
	}
	return []quote.QuoteOption{}, nil
}

func currentOptionFrom(p Payload) (quote.OptionDraft, error) {
	for _, path := range []string{"data.currentOption", "currentOption"} {
		v, ok := p.Lookup(path)
		if !ok {
			continue
		}
		var draft quote.OptionDraft
		if err := decodeInto(v, &draft); err != nil {
			return quote.OptionDraft{}, &AdaptationError{Kind: KindDraft, Errors: []string{fmt.Sprintf("malformed %s: %v", path, err)}}
		}
		return draft, nil
	}
	return quote.OptionDraft{}, nil
}

// Submitted reports whether a served draft document carries the submitted
// status.
func Submitted(p Payload) bool {
	return strings.EqualFold(verbatimAt(p, "status"), "submitted")
}

func verbatimAt(p Payload, path string) string {
	v, ok := p.Lookup(path)
	if !ok {
		return ""
	}
	s, _ := scalarString(v)
	return s
}
