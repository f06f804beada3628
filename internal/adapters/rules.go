package adapters

import "strings"

// Field names a value the inbound adapters resolve.
type Field string

const (
	FieldDraftID            Field = "draftId"
	FieldRequestID          Field = "requestQuoteId"
	FieldOriginCity         Field = "origin.city"
	FieldOriginCountry      Field = "origin.country"
	FieldDestinationCity    Field = "destination.city"
	FieldDestinationCountry Field = "destination.country"
	FieldGoodsDescription   Field = "goodsDescription"
	FieldCargoType          Field = "cargoType"
	FieldTransportMode      Field = "transportMode"
	FieldIncoterm           Field = "incoterm"
	FieldRequestedDeparture Field = "requestedDeparture"
	FieldClientID           Field = "client.id"
	FieldClientName         Field = "client.name"
	FieldClientEmail        Field = "client.email"
	FieldAssigneeID         Field = "assignee.id"
	FieldAssigneeName       Field = "assignee.name"
	FieldAssigneeEmail      Field = "assignee.email"
	FieldLoadingPortID      Field = "ports.loading.id"
	FieldLoadingPortName    Field = "ports.loading.name"
	FieldLoadingPortCountry Field = "ports.loading.country"
	FieldDischargePortID    Field = "ports.discharge.id"
	FieldDischargePortName  Field = "ports.discharge.name"
	FieldDischargePortCntry Field = "ports.discharge.country"
	FieldQuantity           Field = "quantity"
)

// Strategy extracts one candidate value from a payload.
type Strategy func(Payload) (string, bool)

// Rule is the ordered list of strategies for one field. The first strategy
// yielding a non-empty value wins.
type Rule struct {
	Field      Field
	Strategies []Strategy
}

// RuleSet resolves fields for one payload kind.
type RuleSet map[Field]Rule

// Resolve returns the first value any strategy of field yields, or "".
func (rs RuleSet) Resolve(p Payload, field Field) string {
	v, _ := rs.lookup(p, field)
	return v
}

func (rs RuleSet) lookup(p Payload, field Field) (string, bool) {
	rule, ok := rs[field]
	if !ok {
		return "", false
	}
	for _, s := range rule.Strategies {
		if v, ok := s(p); ok {
			return v, true
		}
	}
	return "", false
}

// At reads a scalar at path.
func At(path string) Strategy {
	return func(p Payload) (string, bool) {
		v, ok := p.Lookup(path)
		if !ok {
			return "", false
		}
		return scalarString(v)
	}
}

// CityOf reads the city of a location found at path. The location may be an
// object or a "City, Country" string.
func CityOf(path string) Strategy {
	return func(p Payload) (string, bool) {
		city, _ := locationAt(p, path)
		return city, city != ""
	}
}

// CountryOf reads the country of a location found at path.
func CountryOf(path string) Strategy {
	return func(p Payload) (string, bool) {
		_, country := locationAt(p, path)
		return country, country != ""
	}
}

var (
	cityKeys    = []string{"city", "cityName", "name"}
	countryKeys = []string{"country", "countryName", "countryCode"}
)

func locationAt(p Payload, path string) (city, country string) {
	v, ok := p.Lookup(path)
	if !ok {
		return "", ""
	}
	if obj, ok := asObject(v); ok {
		return firstKey(obj, cityKeys), firstKey(obj, countryKeys)
	}
	s, ok := v.(string)
	if !ok {
		return "", ""
	}
	return splitLocation(s)
}

func firstKey(obj map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := scalarString(obj[k]); ok {
			return s
		}
	}
	return ""
}

// splitLocation parses "City, Country". A value without a comma is a city.
func splitLocation(s string) (city, country string) {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, ","); i >= 0 {
		return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
	}
	return s, ""
}

// wrapped tries the data wrapper before the root for each path.
func wrapped(mk func(string) Strategy, paths ...string) []Strategy {
	out := make([]Strategy, 0, len(paths)*2)
	for _, path := range paths {
		out = append(out, mk("data."+path), mk(path))
	}
	return out
}

func chain(groups ...[]Strategy) []Strategy {
	var out []Strategy
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func ruleSet(rules ...Rule) RuleSet {
	rs := make(RuleSet, len(rules))
	for _, r := range rules {
		rs[r.Field] = r
	}
	return rs
}

// RequestRules resolves request shaped payloads, i.e. a customer's request
// for quote as returned by the request API.
var RequestRules = ruleSet(
	Rule{FieldRequestID, wrapped(At, "requestQuoteId", "requestId", "quoteRequestId", "id")},
	Rule{FieldOriginCity, chain(
		wrapped(CityOf, "departure", "departureLocation", "origin"),
		wrapped(At, "departureCity", "originCity", "from"),
	)},
	Rule{FieldOriginCountry, chain(
		wrapped(CountryOf, "departure", "departureLocation", "origin"),
		wrapped(At, "departureCountry", "originCountry"),
	)},
	Rule{FieldDestinationCity, chain(
		wrapped(CityOf, "arrival", "arrivalLocation", "destination"),
		wrapped(At, "arrivalCity", "destinationCity", "to"),
	)},
	Rule{FieldDestinationCountry, chain(
		wrapped(CountryOf, "arrival", "arrivalLocation", "destination"),
		wrapped(At, "arrivalCountry", "destinationCountry"),
	)},
	Rule{FieldGoodsDescription, wrapped(At, "goodsDescription", "detail", "cargoDescription", "description")},
	Rule{FieldCargoType, wrapped(At, "cargoType", "typeOfCargo")},
	Rule{FieldTransportMode, wrapped(At, "transportMode", "modeOfTransport", "freightMode", "mode")},
	Rule{FieldIncoterm, wrapped(At, "incoterm", "incotermName", "incoTerm")},
	Rule{FieldRequestedDeparture, wrapped(At, "requestedDeparture", "departureDate", "pickupDate", "estimatedDepartureDate")},
	Rule{FieldClientID, wrapped(At, "customer.id", "customerId", "clientId")},
	Rule{FieldClientName, wrapped(At, "customer.name", "customerName", "clientName", "companyName")},
	Rule{FieldClientEmail, wrapped(At, "customer.email", "customerEmail", "clientEmail", "email")},
	Rule{FieldAssigneeID, wrapped(At, "assignee.id", "assigneeId", "assignedManagerId")},
	Rule{FieldAssigneeName, wrapped(At, "assignee.name", "assigneeName", "assignedManagerName")},
	Rule{FieldAssigneeEmail, wrapped(At, "assignee.email", "assigneeEmail", "assignedManagerEmail")},
	Rule{FieldLoadingPortID, wrapped(At, "portDeparture.portId", "portDeparture.id", "departurePortId")},
	Rule{FieldLoadingPortName, wrapped(At, "portDeparture.portName", "portDeparture.name", "departurePortName")},
	Rule{FieldLoadingPortCountry, wrapped(At, "portDeparture.country", "departurePortCountry")},
	Rule{FieldDischargePortID, wrapped(At, "portArrival.portId", "portArrival.id", "arrivalPortId")},
	Rule{FieldDischargePortName, wrapped(At, "portArrival.portName", "portArrival.name", "arrivalPortName")},
	Rule{FieldDischargePortCntry, wrapped(At, "portArrival.country", "arrivalPortCountry")},
	Rule{FieldQuantity, wrapped(At, "numberOfUnits", "quantity", "containerCount")},
)

// DraftRules resolves draft shaped payloads: the canonical data.basics layout
// first, then the legacy step1 layout, then root level aliases.
var DraftRules = ruleSet(
	Rule{FieldDraftID, wrapped(At, "draftId", "id", "quoteOfferDraftId")},
	Rule{FieldRequestID, chain(
		wrapped(At, "requestQuoteId", "requestId", "basics.requestQuoteId"),
		[]Strategy{At("data.step1.requestQuoteId")},
	)},
	Rule{FieldOriginCity, chain(
		[]Strategy{CityOf("data.basics.origin"), CityOf("data.step1.departure"), CityOf("basics.origin")},
		wrapped(CityOf, "origin", "departure"),
		wrapped(At, "departureCity"),
	)},
	Rule{FieldOriginCountry, chain(
		[]Strategy{CountryOf("data.basics.origin"), CountryOf("data.step1.departure"), CountryOf("basics.origin")},
		wrapped(CountryOf, "origin", "departure"),
		wrapped(At, "departureCountry"),
	)},
	Rule{FieldDestinationCity, chain(
		[]Strategy{CityOf("data.basics.destination"), CityOf("data.step1.arrival"), CityOf("basics.destination")},
		wrapped(CityOf, "destination", "arrival"),
		wrapped(At, "arrivalCity"),
	)},
	Rule{FieldDestinationCountry, chain(
		[]Strategy{CountryOf("data.basics.destination"), CountryOf("data.step1.arrival"), CountryOf("basics.destination")},
		wrapped(CountryOf, "destination", "arrival"),
		wrapped(At, "arrivalCountry"),
	)},
	Rule{FieldGoodsDescription, draftPaths("goodsDescription", "detail")},
	Rule{FieldCargoType, draftPaths("cargoType")},
	Rule{FieldTransportMode, draftPaths("transportMode", "modeOfTransport")},
	Rule{FieldIncoterm, draftPaths("incoterm", "incotermName")},
	Rule{FieldRequestedDeparture, draftPaths("requestedDeparture", "departureDate")},
	Rule{FieldClientID, draftPaths("client.id", "customer.id", "customerId")},
	Rule{FieldClientName, draftPaths("client.name", "customer.name", "customerName")},
	Rule{FieldClientEmail, draftPaths("client.email", "customer.email", "customerEmail")},
	Rule{FieldAssigneeID, draftPaths("assignee.id", "assigneeId")},
	Rule{FieldAssigneeName, draftPaths("assignee.name", "assigneeName")},
	Rule{FieldAssigneeEmail, draftPaths("assignee.email", "assigneeEmail")},
	Rule{FieldLoadingPortID, draftPaths("ports.loading.id", "portDeparture.portId")},
	Rule{FieldLoadingPortName, draftPaths("ports.loading.name", "portDeparture.portName")},
	Rule{FieldLoadingPortCountry, draftPaths("ports.loading.country", "portDeparture.country")},
	Rule{FieldDischargePortID, draftPaths("ports.discharge.id", "portArrival.portId")},
	Rule{FieldDischargePortName, draftPaths("ports.discharge.name", "portArrival.portName")},
	Rule{FieldDischargePortCntry, draftPaths("ports.discharge.country", "portArrival.country")},
	Rule{FieldQuantity, draftPaths("quantity", "numberOfUnits")},
)

// draftPaths expands each key over the draft layouts in priority order.
func draftPaths(keys ...string) []Strategy {
	var out []Strategy
	for _, prefix := range []string{"data.basics.", "data.step1.", "basics.", "data.", ""} {
		for _, k := range keys {
			out = append(out, At(prefix+k))
		}
	}
	return out
}
