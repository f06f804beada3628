package quote

import "time"

// MaxOptions bounds the number of committed options on one draft.
const MaxOptions = 3

// CargoType classifies the shipment.
type CargoType string

const (
	CargoTypeFCL CargoType = "FCL"
	CargoTypeLCL CargoType = "LCL"
	CargoTypeAIR CargoType = "AIR"
)

// Valid reports whether c is one of the known cargo types.
func (c CargoType) Valid() bool {
	switch c {
	case CargoTypeFCL, CargoTypeLCL, CargoTypeAIR:
		return true
	}
	return false
}

// ============================================================================
// DRAFT FORM
// ============================================================================

// DraftQuoteForm is the canonical representation of a quote in progress.
type DraftQuoteForm struct {
	RequestID       string        `json:"requestQuoteId,omitempty"`
	Basics          Basics        `json:"basics"`
	CurrentOption   OptionDraft   `json:"currentOption"`
	ExistingOptions []QuoteOption `json:"existingOptions" validate:"max=3,dive"`
	Attachments     []Attachment  `json:"attachments"`
}

type Location struct {
	City    string `json:"city" validate:"required"`
	Country string `json:"country" validate:"required"`
}

// IsZero reports whether neither city nor country is known.
func (l Location) IsZero() bool {
	return l.City == "" && l.Country == ""
}

type Party struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

type Port struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Country string `json:"country,omitempty"`
}

type Ports struct {
	Loading   Port `json:"loading"`
	Discharge Port `json:"discharge"`
}

type Container struct {
	ContainerType string  `json:"containerType" validate:"required"`
	Quantity      int     `json:"quantity" validate:"gte=0"`
	TEU           float64 `json:"teu"`
}

// Basics holds the shipment-level facts shared by every option.
type Basics struct {
	CargoType          CargoType   `json:"cargoType" validate:"required,oneof=FCL LCL AIR"`
	Incoterm           string      `json:"incoterm" validate:"required,max=10"`
	Origin             Location    `json:"origin"`
	Destination        Location    `json:"destination"`
	RequestedDeparture string      `json:"requestedDeparture,omitempty" validate:"omitempty,datetime=2006-01-02"`
	GoodsDescription   string      `json:"goodsDescription" validate:"required"`
	Client             Party       `json:"client"`
	Assignee           Party       `json:"assignee"`
	Ports              Ports       `json:"ports"`
	Containers         []Container `json:"containers" validate:"dive"`
}

type Attachment struct {
	ID       string `json:"id"`
	FileName string `json:"fileName,omitempty"`
}

// ============================================================================
// LINE ITEMS
// ============================================================================

type SeafreightRate struct {
	ContainerType string  `json:"containerType"`
	BasePrice     float64 `json:"basePrice" validate:"gte=0"`
}

type Seafreight struct {
	ID            string           `json:"id,omitempty"`
	Carrier       string           `json:"carrier"`
	CarrierAgent  string           `json:"carrierAgent,omitempty"`
	DeparturePort string           `json:"departurePort,omitempty"`
	ArrivalPort   string           `json:"arrivalPort,omitempty"`
	TransitDays   int              `json:"transitDays,omitempty" validate:"gte=0"`
	Frequency     string           `json:"frequency,omitempty"`
	Currency      string           `json:"currency,omitempty" validate:"omitempty,len=3"`
	Rates         []SeafreightRate `json:"rates" validate:"dive"`
}

type Haulage struct {
	ID            string  `json:"id,omitempty"`
	Haulier       string  `json:"haulier"`
	LoadingPlace  string  `json:"loadingPlace,omitempty"`
	DeliveryPlace string  `json:"deliveryPlace,omitempty"`
	Mode          string  `json:"mode,omitempty"`
	Currency      string  `json:"currency,omitempty" validate:"omitempty,len=3"`
	Price         float64 `json:"price" validate:"gte=0"`
}

type Service struct {
	ID       string  `json:"id,omitempty"`
	Name     string  `json:"name"`
	Category string  `json:"category,omitempty"`
	Currency string  `json:"currency,omitempty" validate:"omitempty,len=3"`
	Price    float64 `json:"price" validate:"gte=0"`
}

// OptionDraft is the option being composed. EditingID is set when the user
// re-edits a committed option; the committed copy is only replaced on commit.
type OptionDraft struct {
	EditingID   string       `json:"editingOptionId,omitempty"`
	Seafreights []Seafreight `json:"seafreights" validate:"dive"`
	Haulages    []Haulage    `json:"haulages" validate:"dive"`
	Services    []Service    `json:"services" validate:"dive"`
}

// IsEmpty reports whether the draft option carries no line item.
func (o OptionDraft) IsEmpty() bool {
	return len(o.Seafreights) == 0 && len(o.Haulages) == 0 && len(o.Services) == 0
}

// ============================================================================
// QUOTE OPTION
// ============================================================================

// QuoteOption is one committed, priced alternative of the quote.
type QuoteOption struct {
	ID          string       `json:"id" validate:"required"`
	Name        string       `json:"name" validate:"required,max=120"`
	Description string       `json:"description,omitempty"`
	Seafreights []Seafreight `json:"seafreights" validate:"dive"`
	Haulages    []Haulage    `json:"haulages" validate:"dive"`
	Services    []Service    `json:"services" validate:"dive"`
	Containers  []Container  `json:"containers" validate:"dive"`
	Ports       Ports        `json:"ports"`
	Currency    string       `json:"currency" validate:"omitempty,len=3"`
	IsPreferred bool         `json:"isPreferred"`
	ValidUntil  time.Time    `json:"validUntil"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Totals recomputes the option totals from its line items.
func (o QuoteOption) Totals() Totals {
	return ComputeTotals(o.Seafreights, o.Haulages, o.Services)
}
