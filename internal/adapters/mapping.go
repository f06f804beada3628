package adapters

import (
	"strings"
	"time"

	"github.com/odyssey-erp/quotewizard/internal/quote"
)

var modeToCargo = map[string]quote.CargoType{
	"sea":  quote.CargoTypeFCL,
	"air":  quote.CargoTypeAIR,
	"road": quote.CargoTypeFCL,
	"rail": quote.CargoTypeFCL,
}

// CargoTypeFromMode maps a transport mode to a cargo type. Values that already
// are cargo types pass through; anything unknown maps to FCL.
func CargoTypeFromMode(mode string) quote.CargoType {
	m := strings.ToLower(strings.TrimSpace(mode))
	if ct := quote.CargoType(strings.ToUpper(m)); ct.Valid() {
		return ct
	}
	if ct, ok := modeToCargo[m]; ok {
		return ct
	}
	return quote.CargoTypeFCL
}

// resolveCargoType prefers an explicit cargo type over a transport mode.
func resolveCargoType(rs RuleSet, p Payload) quote.CargoType {
	if v := rs.Resolve(p, FieldCargoType); v != "" {
		if ct := quote.CargoType(strings.ToUpper(v)); ct.Valid() {
			return ct
		}
		return CargoTypeFromMode(v)
	}
	return CargoTypeFromMode(rs.Resolve(p, FieldTransportMode))
}

// ContainersFromTypes expands a multi-type shipment into one line per type.
// Every line carries the same total quantity: upstream only records one
// quantity for the whole shipment.
func ContainersFromTypes(types []string, quantity int) []quote.Container {
	out := make([]quote.Container, 0, len(types))
	for _, t := range types {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		out = append(out, quote.Container{
			ContainerType: t,
			Quantity:      quantity,
			TEU:           quote.TEUFactor(t),
		})
	}
	return out
}

var (
	containerTypeKeys = []string{"containerType", "type", "container", "code"}
	quantityKeys      = []string{"quantity", "qty", "count", "numberOfUnits"}
)

// containerLines reads an explicit list of container objects.
func containerLines(v any) ([]quote.Container, bool) {
	list, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]quote.Container, 0, len(list))
	for _, item := range list {
		obj, ok := asObject(item)
		if !ok {
			if s, ok := scalarString(item); ok {
				out = append(out, quote.Container{ContainerType: strings.ToUpper(s), TEU: quote.TEUFactor(s)})
			}
			continue
		}
		typ := firstKey(obj, containerTypeKeys)
		if typ == "" {
			continue
		}
		qty := 0
		for _, k := range quantityKeys {
			if n, ok := scalarInt(obj[k]); ok {
				qty = n
				break
			}
		}
		out = append(out, quote.Container{ContainerType: strings.ToUpper(typ), Quantity: qty, TEU: quote.TEUFactor(typ)})
	}
	return out, true
}

// containerTypes reads a list of type codes given either as an array or as a
// comma separated string.
func containerTypes(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := scalarString(item); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return strings.Split(t, ",")
	}
	return nil
}

// resolveContainers tries explicit container lines first, then a list of
// types sharing one quantity.
func resolveContainers(p Payload, rs RuleSet, linePaths, typePaths []string) []quote.Container {
	for _, path := range linePaths {
		if v, ok := p.Lookup(path); ok {
			if lines, ok := containerLines(v); ok {
				return lines
			}
		}
	}
	qty := 0
	if q := rs.Resolve(p, FieldQuantity); q != "" {
		if n, ok := scalarInt(q); ok {
			qty = n
		}
	}
	for _, path := range typePaths {
		if v, ok := p.Lookup(path); ok {
			if types := containerTypes(v); len(types) > 0 {
				return ContainersFromTypes(types, qty)
			}
		}
	}
	return []quote.Container{}
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006",
}

// normalizeDate renders any known date layout as YYYY-MM-DD. Unknown layouts
// yield an empty value.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// attachmentsAt reads attachment references given as objects or bare ids.
func attachmentsAt(p Payload, paths ...string) []quote.Attachment {
	for _, path := range paths {
		v, ok := p.Lookup(path)
		if !ok {
			continue
		}
		list, ok := v.([]any)
		if !ok {
			continue
		}
		out := make([]quote.Attachment, 0, len(list))
		for _, item := range list {
			if obj, ok := asObject(item); ok {
				id := firstKey(obj, []string{"id", "fileId", "key"})
				if id == "" {
					continue
				}
				out = append(out, quote.Attachment{ID: id, FileName: firstKey(obj, []string{"fileName", "name", "filename"})})
				continue
			}
			if id, ok := scalarString(item); ok {
				out = append(out, quote.Attachment{ID: id})
			}
		}
		return out
	}
	return []quote.Attachment{}
}
