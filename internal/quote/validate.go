package quote

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/currency"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func schema() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks the form against its schema and returns field-scoped errors.
// A nil result means the form is valid.
func Validate(f DraftQuoteForm) ValidationErrors {
	err := schema().Struct(f)
	if err == nil {
		return checkCurrencies(f, nil)
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ValidationErrors{"form": err.Error()}
	}
	out := ValidationErrors{}
	for _, fe := range verrs {
		out[fieldPath(fe.Namespace())] = message(fe)
	}
	return checkCurrencies(f, out)
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + fe.Param()
	case "email":
		return "must be a valid email"
	case "datetime":
		return "must be a date formatted " + fe.Param()
	case "len":
		return "must be " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	}
	return fmt.Sprintf("failed %s", fe.Tag())
}

func checkCurrencies(f DraftQuoteForm, out ValidationErrors) ValidationErrors {
	for i, o := range f.ExistingOptions {
		if o.Currency == "" {
			continue
		}
		if _, err := ParseCurrency(o.Currency); err != nil {
			if out == nil {
				out = ValidationErrors{}
			}
			out[fmt.Sprintf("existingOptions[%d].currency", i)] = "must be an ISO 4217 code"
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ParseCurrency validates an ISO 4217 code and returns it upper-cased.
func ParseCurrency(code string) (string, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	return unit.String(), nil
}
