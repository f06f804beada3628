package adapters

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/quotewizard/internal/quote"
)

func mustParse(t *testing.T, raw string) Payload {
	t.Helper()
	p, err := ParsePayload([]byte(raw))
	require.NoError(t, err)
	return p
}

// ============================================================================
// REQUEST ADAPTER
// ============================================================================

func TestRequestToFormRootLevelShape(t *testing.T) {
	p := mustParse(t, `{
		"requestQuoteId": 42,
		"departure": "Douala, Cameroon",
		"arrival": {"city": "Antwerp", "country": "Belgium"},
		"detail": "Cocoa beans",
		"transportMode": "sea",
		"incoterm": "fob",
		"pickupDate": "2026-11-02T08:00:00Z",
		"customer": {"id": 7, "name": "Choco SA", "email": "buyer@choco.example"},
		"containers": [{"containerType": "20GP", "quantity": 3}, {"type": "40hc", "qty": 1}],
		"portDeparture": {"portId": 11, "portName": "Douala", "country": "Cameroon"},
		"attachments": ["file-1", {"id": "file-2", "fileName": "packing.pdf"}]
	}`)

	form, err := RequestToForm(p, UserContext{UserID: "u1", Name: "Ada", Email: "ada@forwarder.example"})
	require.NoError(t, err)

	assert.Equal(t, "42", form.RequestID)
	assert.Equal(t, quote.CargoTypeFCL, form.Basics.CargoType)
	assert.Equal(t, "FOB", form.Basics.Incoterm)
	assert.Equal(t, quote.Location{City: "Douala", Country: "Cameroon"}, form.Basics.Origin)
	assert.Equal(t, quote.Location{City: "Antwerp", Country: "Belgium"}, form.Basics.Destination)
	assert.Equal(t, "2026-11-02", form.Basics.RequestedDeparture)
	assert.Equal(t, "Cocoa beans", form.Basics.GoodsDescription)
	assert.Equal(t, quote.Party{ID: "7", Name: "Choco SA", Email: "buyer@choco.example"}, form.Basics.Client)
	assert.Equal(t, quote.Party{ID: "u1", Name: "Ada", Email: "ada@forwarder.example"}, form.Basics.Assignee)
	assert.Equal(t, quote.Port{ID: "11", Name: "Douala", Country: "Cameroon"}, form.Basics.Ports.Loading)
	assert.Equal(t, []quote.Container{
		{ContainerType: "20GP", Quantity: 3, TEU: 1},
		{ContainerType: "40HC", Quantity: 1, TEU: 2},
	}, form.Basics.Containers)
	assert.Equal(t, []quote.Attachment{{ID: "file-1"}, {ID: "file-2", FileName: "packing.pdf"}}, form.Attachments)
	assert.Empty(t, form.ExistingOptions)
}

func TestRequestToFormDataWrapperWinsOverRoot(t *testing.T) {
	p := mustParse(t, `{
		"id": "root-id",
		"goodsDescription": "root goods",
		"data": {
			"requestQuoteId": "wrapped-id",
			"departure": {"name": "Lagos", "countryName": "Nigeria"},
			"arrival": "Rotterdam, Netherlands",
			"goodsDescription": "wrapped goods",
			"modeOfTransport": "air"
		}
	}`)

	form, err := RequestToForm(p, UserContext{})
	require.NoError(t, err)

	assert.Equal(t, "wrapped-id", form.RequestID)
	assert.Equal(t, "wrapped goods", form.Basics.GoodsDescription)
	assert.Equal(t, quote.Location{City: "Lagos", Country: "Nigeria"}, form.Basics.Origin)
	assert.Equal(t, quote.CargoTypeAIR, form.Basics.CargoType)
}

func TestRequestRulesTryEveryAliasBeforeDefault(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"first alias", `{"goodsDescription": "a", "detail": "b"}`, "a"},
		{"blank skipped", `{"goodsDescription": "  ", "detail": "b"}`, "b"},
		{"legacy alias", `{"cargoDescription": "c"}`, "c"},
		{"last alias", `{"description": "d"}`, "d"},
		{"default", `{}`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, RequestRules.Resolve(mustParse(t, tc.raw), FieldGoodsDescription))
		})
	}
}

func TestRequestToFormMultiTypeSharesQuantity(t *testing.T) {
	p := mustParse(t, `{
		"requestQuoteId": "r1", "departure": "Douala, Cameroon", "arrival": "Antwerp, Belgium",
		"detail": "Timber", "packingType": "20GP, 40HC,45hc", "numberOfUnits": "4"
	}`)

	form, err := RequestToForm(p, UserContext{})
	require.NoError(t, err)

	require.Len(t, form.Basics.Containers, 3)
	for _, c := range form.Basics.Containers {
		assert.Equal(t, 4, c.Quantity, c.ContainerType)
	}
	assert.Equal(t, 2.25, form.Basics.Containers[2].TEU)
}

func TestRequestToFormRejectsInvalidPayload(t *testing.T) {
	p := mustParse(t, `{"departure": "Douala, Cameroon"}`)

	res := ValidateRequestPayload(p)
	assert.False(t, res.IsValid)
	assert.Equal(t, []string{"missing request id", "missing destination location", "missing goods description"}, res.Errors)

	_, err := RequestToForm(p, UserContext{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAdaptation))

	var aerr *AdaptationError
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, KindRequest, aerr.Kind)
	assert.Len(t, aerr.Errors, 3)
}

func TestValidateRequestPayloadValid(t *testing.T) {
	res := ValidateRequestPayload(mustParse(t, `{"id": 1, "origin": "Douala", "to": "Antwerp", "detail": "x"}`))
	assert.True(t, res.IsValid)
	assert.Empty(t, res.Errors)
}

// ============================================================================
// MAPPING
// ============================================================================

func TestCargoTypeFromMode(t *testing.T) {
	cases := map[string]quote.CargoType{
		"sea": quote.CargoTypeFCL, "air": quote.CargoTypeAIR, "road": quote.CargoTypeFCL,
		"rail": quote.CargoTypeFCL, "SEA": quote.CargoTypeFCL, "lcl": quote.CargoTypeLCL,
		"": quote.CargoTypeFCL, "pipeline": quote.CargoTypeFCL,
	}
	for mode, want := range cases {
		assert.Equal(t, want, CargoTypeFromMode(mode), mode)
	}
}

func TestContainersFromTypesSkipsBlank(t *testing.T) {
	got := ContainersFromTypes([]string{"20gp", " ", "40GP"}, 2)
	assert.Equal(t, []quote.Container{
		{ContainerType: "20GP", Quantity: 2, TEU: 1},
		{ContainerType: "40GP", Quantity: 2, TEU: 2},
	}, got)
}

func TestNormalizeDate(t *testing.T) {
	assert.Equal(t, "2026-03-01", normalizeDate("2026-03-01"))
	assert.Equal(t, "2026-03-01", normalizeDate("2026-03-01T22:10:00+02:00"))
	assert.Equal(t, "2026-03-01", normalizeDate("01/03/2026"))
	assert.Equal(t, "", normalizeDate("next tuesday"))
}

// ============================================================================
// DRAFT ADAPTER
// ============================================================================

func TestDraftToFormLegacyStepLayout(t *testing.T) {
	p := mustParse(t, `{
		"id": "draft-9",
		"data": {
			"step1": {
				"requestQuoteId": "req-3",
				"departure": {"city": "Tema", "country": "Ghana"},
				"arrival": {"city": "Hamburg", "country": "Germany"},
				"goodsDescription": "Cashew",
				"cargoType": "lcl",
				"containerTypes": ["20GP", "40GP"],
				"quantity": 5
			},
			"existingOptions": [
				{"id": "o1", "name": "Option 1", "currency": "EUR", "isPreferred": true,
				 "haulages": [{"haulier": "H", "price": 300}],
				 "totals": {"grandTotal": 999}}
			]
		}
	}`)

	form, err := DraftToForm(p, UserContext{})
	require.NoError(t, err)

	assert.Equal(t, "req-3", form.RequestID)
	assert.Equal(t, quote.CargoTypeLCL, form.Basics.CargoType)
	assert.Equal(t, "Tema", form.Basics.Origin.City)
	assert.Equal(t, []quote.Container{
		{ContainerType: "20GP", Quantity: 5, TEU: 1},
		{ContainerType: "40GP", Quantity: 5, TEU: 2},
	}, form.Basics.Containers)
	require.Len(t, form.ExistingOptions, 1)
	assert.True(t, form.ExistingOptions[0].IsPreferred)
	assert.Equal(t, 300.0, form.ExistingOptions[0].Totals().GrandTotal, "stored totals are recomputed")
}

func TestDraftToFormRejectsMissingIdentity(t *testing.T) {
	p := mustParse(t, `{"data": {"basics": {"origin": {"city": "Tema"}}}}`)

	res := ValidateDraftPayload(p)
	assert.False(t, res.IsValid)
	assert.Equal(t, []string{"missing draft or request id", "missing destination location"}, res.Errors)

	_, err := DraftToForm(p, UserContext{})
	assert.ErrorIs(t, err, ErrAdaptation)
}

func TestDraftToFormMalformedOptions(t *testing.T) {
	p := mustParse(t, `{"draftId": "d", "origin": "A", "destination": "B", "options": "nope"}`)

	_, err := DraftToForm(p, UserContext{})
	var aerr *AdaptationError
	require.ErrorAs(t, err, &aerr)
	assert.Contains(t, aerr.Errors[0], "malformed options")
}

func TestAdaptDispatchesOnKind(t *testing.T) {
	p := mustParse(t, `{"requestQuoteId": "r", "origin": "A, X", "destination": "B, Y", "detail": "goods"}`)

	_, err := Adapt(KindRequest, p, UserContext{})
	require.NoError(t, err)
	assert.True(t, Validate(KindDraft, p).IsValid)
}

// ============================================================================
// ROUND TRIP
// ============================================================================

func sampleForm() quote.DraftQuoteForm {
	created := time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)
	return quote.Normalize(quote.DraftQuoteForm{
		RequestID: "req-77",
		Basics: quote.Basics{
			CargoType:          quote.CargoTypeFCL,
			Incoterm:           "FOB",
			Origin:             quote.Location{City: "Douala", Country: "Cameroon"},
			Destination:        quote.Location{City: "Antwerp", Country: "Belgium"},
			RequestedDeparture: "2026-11-02",
			GoodsDescription:   "Cocoa beans",
			Client:             quote.Party{ID: "c1", Name: "Choco SA", Email: "buyer@choco.example"},
			Assignee:           quote.Party{ID: "u1", Name: "Ada", Email: "ada@forwarder.example"},
			Ports: quote.Ports{
				Loading:   quote.Port{ID: "11", Name: "Douala", Country: "Cameroon"},
				Discharge: quote.Port{ID: "12", Name: "Antwerp", Country: "Belgium"},
			},
			Containers: []quote.Container{{ContainerType: "40HC", Quantity: 2}},
		},
		CurrentOption: quote.OptionDraft{
			Services: []quote.Service{{Name: "Insurance", Currency: "EUR", Price: 35.75}},
		},
		ExistingOptions: []quote.QuoteOption{
			{
				ID:          "opt-1",
				Name:        "Option 1",
				Description: "Direct call",
				Seafreights: []quote.Seafreight{{
					ID: "sf", Carrier: "CMA CGM", Currency: "EUR", TransitDays: 18,
					Rates: []quote.SeafreightRate{{ContainerType: "40HC", BasePrice: 1200}},
				}},
				Haulages:    []quote.Haulage{{Haulier: "Bolloré", Currency: "EUR", Price: 300}},
				Containers:  []quote.Container{{ContainerType: "40HC", Quantity: 2}},
				Currency:    "EUR",
				IsPreferred: true,
				ValidUntil:  created.AddDate(0, 0, 30),
				CreatedAt:   created,
				UpdatedAt:   created.Add(time.Hour),
			},
		},
		Attachments: []quote.Attachment{{ID: "f1", FileName: "invoice.pdf"}},
	})
}

func TestDraftRoundTrip(t *testing.T) {
	m := sampleForm()

	raw, err := FormToPayload(m).JSON()
	require.NoError(t, err)
	p, err := ParsePayload(raw)
	require.NoError(t, err)

	back, err := DraftToForm(p, UserContext{})
	require.NoError(t, err)

	assert.Equal(t, m.Basics, back.Basics)
	assert.Equal(t, m.ExistingOptions, back.ExistingOptions)
	assert.Equal(t, m.CurrentOption, back.CurrentOption)
	assert.Equal(t, m.Attachments, back.Attachments)
	assert.Equal(t, m.RequestID, back.RequestID)
}

func TestDraftRoundTripMinimalForm(t *testing.T) {
	m := quote.Normalize(quote.DraftQuoteForm{
		RequestID: "r",
		Basics: quote.Basics{
			CargoType:   quote.CargoTypeLCL,
			Origin:      quote.Location{City: "A"},
			Destination: quote.Location{Country: "B"},
		},
	})

	p, err := FormToPayload(m).Payload()
	require.NoError(t, err)
	back, err := DraftToForm(p, UserContext{})
	require.NoError(t, err)

	assert.Equal(t, m, back)
}

func TestDraftRoundTripKeepsUnfinishedBasics(t *testing.T) {
	for name, basics := range map[string]quote.Basics{
		"no cargo type": {
			Origin:      quote.Location{City: "Douala", Country: "Cameroon"},
			Destination: quote.Location{City: "Antwerp", Country: "Belgium"},
		},
		"unparsed departure": {
			CargoType:          quote.CargoTypeAIR,
			Origin:             quote.Location{City: "Douala"},
			Destination:        quote.Location{Country: "Belgium"},
			RequestedDeparture: "next week",
		},
		"unknown cargo type": {
			CargoType:          "BULK",
			Origin:             quote.Location{City: "Douala"},
			Destination:        quote.Location{City: "Antwerp"},
			RequestedDeparture: "2025-02-30",
		},
	} {
		t.Run(name, func(t *testing.T) {
			m := quote.Normalize(quote.DraftQuoteForm{RequestID: "req-5", Basics: basics})

			p, err := FormToPayload(m).Payload()
			require.NoError(t, err)
			back, err := DraftToForm(p, UserContext{})
			require.NoError(t, err)

			assert.Equal(t, m.Basics, back.Basics)
		})
	}
}

func TestDraftToFormMapsCargoOnlyOutsideCanonicalLayout(t *testing.T) {
	legacy := mustParse(t, `{"id": "d-1", "data": {"step1": {
		"requestQuoteId": "req-1", "transportMode": "air",
		"departure": {"city": "Tema", "country": "Ghana"},
		"arrival": {"city": "Hamburg", "country": "Germany"},
		"requestedDeparture": "2025-03-01T10:00:00Z"}}}`)
	form, err := DraftToForm(legacy, UserContext{})
	require.NoError(t, err)
	assert.Equal(t, quote.CargoTypeAIR, form.Basics.CargoType)
	assert.Equal(t, "2025-03-01", form.Basics.RequestedDeparture)

	canonical := mustParse(t, `{"draftId": "d-1", "data": {"basics": {
		"origin": {"city": "Tema"}, "destination": {"city": "Hamburg"}, "transportMode": "air"}}}`)
	form, err = DraftToForm(canonical, UserContext{})
	require.NoError(t, err)
	assert.Empty(t, form.Basics.CargoType)
}

func TestSubmittedReadsServedStatus(t *testing.T) {
	assert.True(t, Submitted(mustParse(t, `{"draftId": "d-1", "status": "submitted"}`)))
	assert.True(t, Submitted(mustParse(t, `{"status": "SUBMITTED"}`)))
	assert.False(t, Submitted(mustParse(t, `{"status": "open"}`)))
	assert.False(t, Submitted(mustParse(t, `{"data": {"status": "submitted"}}`)))
}

func TestFormToPayloadWritesTotals(t *testing.T) {
	payload := FormToPayload(sampleForm())

	require.Len(t, payload.Data.Options, 1)
	assert.Equal(t, 1500.0, payload.Data.Options[0].Totals.GrandTotal)
	assert.Equal(t, "req-77", payload.RequestQuoteID)
}
