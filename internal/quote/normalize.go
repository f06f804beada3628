package quote

import (
	"strings"
)

var teuFactors = map[string]float64{
	"20GP": 1,
	"20HC": 1,
	"40GP": 2,
	"40HC": 2,
	"45HC": 2.25,
}

// TEUFactor returns the twenty-foot equivalent of one container of the given
// type. Unknown types count as one TEU.
func TEUFactor(containerType string) float64 {
	if f, ok := teuFactors[strings.ToUpper(strings.TrimSpace(containerType))]; ok {
		return f
	}
	return 1
}

// Normalize returns f with derived fields recomputed, text trimmed and nil
// collections replaced with empty ones.
func Normalize(f DraftQuoteForm) DraftQuoteForm {
	f.RequestID = strings.TrimSpace(f.RequestID)
	f.Basics = normalizeBasics(f.Basics)
	f.CurrentOption = normalizeDraft(f.CurrentOption)
	if f.ExistingOptions == nil {
		f.ExistingOptions = []QuoteOption{}
	}
	for i := range f.ExistingOptions {
		f.ExistingOptions[i] = normalizeOption(f.ExistingOptions[i])
	}
	if f.Attachments == nil {
		f.Attachments = []Attachment{}
	}
	return f
}

func normalizeBasics(b Basics) Basics {
	b.CargoType = CargoType(strings.ToUpper(strings.TrimSpace(string(b.CargoType))))
	b.Incoterm = strings.ToUpper(strings.TrimSpace(b.Incoterm))
	b.Origin = trimLocation(b.Origin)
	b.Destination = trimLocation(b.Destination)
	b.RequestedDeparture = strings.TrimSpace(b.RequestedDeparture)
	b.GoodsDescription = strings.TrimSpace(b.GoodsDescription)
	b.Containers = normalizeContainers(b.Containers)
	return b
}

func trimLocation(l Location) Location {
	return Location{City: strings.TrimSpace(l.City), Country: strings.TrimSpace(l.Country)}
}

func normalizeContainers(cs []Container) []Container {
	if cs == nil {
		return []Container{}
	}
	for i := range cs {
		cs[i].ContainerType = strings.ToUpper(strings.TrimSpace(cs[i].ContainerType))
		cs[i].TEU = TEUFactor(cs[i].ContainerType)
	}
	return cs
}

func normalizeDraft(o OptionDraft) OptionDraft {
	if o.Seafreights == nil {
		o.Seafreights = []Seafreight{}
	}
	for i := range o.Seafreights {
		if o.Seafreights[i].Rates == nil {
			o.Seafreights[i].Rates = []SeafreightRate{}
		}
	}
	if o.Haulages == nil {
		o.Haulages = []Haulage{}
	}
	if o.Services == nil {
		o.Services = []Service{}
	}
	return o
}

func normalizeOption(o QuoteOption) QuoteOption {
	d := normalizeDraft(OptionDraft{Seafreights: o.Seafreights, Haulages: o.Haulages, Services: o.Services})
	o.Seafreights, o.Haulages, o.Services = d.Seafreights, d.Haulages, d.Services
	o.Containers = normalizeContainers(o.Containers)
	o.Currency = strings.ToUpper(strings.TrimSpace(o.Currency))
	return o
}

// Clone returns a deep copy of f.
func Clone(f DraftQuoteForm) DraftQuoteForm {
	out := f
	out.Basics.Containers = cloneSlice(f.Basics.Containers)
	out.CurrentOption = CloneDraft(f.CurrentOption)
	if f.ExistingOptions != nil {
		out.ExistingOptions = make([]QuoteOption, len(f.ExistingOptions))
		for i, o := range f.ExistingOptions {
			out.ExistingOptions[i] = CloneOption(o)
		}
	}
	out.Attachments = cloneSlice(f.Attachments)
	return out
}

// CloneDraft returns a deep copy of the draft option.
func CloneDraft(o OptionDraft) OptionDraft {
	out := o
	out.Seafreights = cloneSeafreights(o.Seafreights)
	out.Haulages = cloneSlice(o.Haulages)
	out.Services = cloneSlice(o.Services)
	return out
}

// CloneOption returns a deep copy of a committed option.
func CloneOption(o QuoteOption) QuoteOption {
	out := o
	out.Seafreights = cloneSeafreights(o.Seafreights)
	out.Haulages = cloneSlice(o.Haulages)
	out.Services = cloneSlice(o.Services)
	out.Containers = cloneSlice(o.Containers)
	return out
}

func cloneSeafreights(in []Seafreight) []Seafreight {
	if in == nil {
		return nil
	}
	out := make([]Seafreight, len(in))
	for i, sf := range in {
		out[i] = sf
		out[i].Rates = cloneSlice(sf.Rates)
	}
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
