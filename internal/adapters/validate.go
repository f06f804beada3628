package adapters

import (
	"errors"
	"strings"
)

// ErrAdaptation is wrapped by every AdaptationError.
var ErrAdaptation = errors.New("adapters: payload cannot be adapted")

// Kind distinguishes the supported upstream payload families.
type Kind string

const (
	KindRequest Kind = "request"
	KindDraft   Kind = "draft"
)

// Result is the outcome of inspecting a raw payload.
type Result struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// AdaptationError carries the reasons a payload was refused.
type AdaptationError struct {
	Kind   Kind
	Errors []string
}

func (e *AdaptationError) Error() string {
	return "adapters: invalid " + string(e.Kind) + " payload: " + strings.Join(e.Errors, "; ")
}

func (e *AdaptationError) Unwrap() error { return ErrAdaptation }

// ValidateRequestPayload checks the raw request payload for the fields the
// request adapter cannot default: id, origin, destination and goods.
func ValidateRequestPayload(p Payload) Result {
	var errs []string
	if RequestRules.Resolve(p, FieldRequestID) == "" {
		errs = append(errs, "missing request id")
	}
	if !hasLocation(RequestRules, p, FieldOriginCity, FieldOriginCountry) {
		errs = append(errs, "missing origin location")
	}
	if !hasLocation(RequestRules, p, FieldDestinationCity, FieldDestinationCountry) {
		errs = append(errs, "missing destination location")
	}
	if RequestRules.Resolve(p, FieldGoodsDescription) == "" {
		errs = append(errs, "missing goods description")
	}
	return result(errs)
}

// ValidateDraftPayload checks the raw draft payload. A draft is identified by
// its own id or by the request it answers.
func ValidateDraftPayload(p Payload) Result {
	var errs []string
	if DraftRules.Resolve(p, FieldDraftID) == "" && DraftRules.Resolve(p, FieldRequestID) == "" {
		errs = append(errs, "missing draft or request id")
	}
	if !hasLocation(DraftRules, p, FieldOriginCity, FieldOriginCountry) {
		errs = append(errs, "missing origin location")
	}
	if !hasLocation(DraftRules, p, FieldDestinationCity, FieldDestinationCountry) {
		errs = append(errs, "missing destination location")
	}
	return result(errs)
}

// Validate dispatches on kind.
func Validate(kind Kind, p Payload) Result {
	if kind == KindDraft {
		return ValidateDraftPayload(p)
	}
	return ValidateRequestPayload(p)
}

func hasLocation(rs RuleSet, p Payload, city, country Field) bool {
	return rs.Resolve(p, city) != "" || rs.Resolve(p, country) != ""
}

func result(errs []string) Result {
	if len(errs) == 0 {
		return Result{IsValid: true, Errors: []string{}}
	}
	return Result{IsValid: false, Errors: errs}
}
