package adapters

import (
	"encoding/json"

	"github.com/odyssey-erp/quotewizard/internal/quote"
)

// DraftPayload is the document the draft gateway stores.
type DraftPayload struct {
	RequestQuoteID string    `json:"requestQuoteId,omitempty"`
	SessionID      string    `json:"sessionId,omitempty"`
	Data           DraftData `json:"data"`
}

type DraftData struct {
	Basics        quote.Basics       `json:"basics"`
	CurrentOption quote.OptionDraft  `json:"currentOption"`
	Options       []OptionPayload    `json:"options"`
	Attachments   []quote.Attachment `json:"attachments"`
}

// OptionPayload is a committed option plus its totals. Totals are written for
// readers of the stored document and recomputed when read back.
type OptionPayload struct {
	quote.QuoteOption
	Totals quote.Totals `json:"totals"`
}

// FormToPayload maps a form to the persisted draft document.
func FormToPayload(f quote.DraftQuoteForm) DraftPayload {
	f = quote.Normalize(quote.Clone(f))
	options := make([]OptionPayload, 0, len(f.ExistingOptions))
	for _, o := range f.ExistingOptions {
		options = append(options, OptionPayload{QuoteOption: o, Totals: o.Totals()})
	}
	return DraftPayload{
		RequestQuoteID: f.RequestID,
		Data: DraftData{
			Basics:        f.Basics,
			CurrentOption: f.CurrentOption,
			Options:       options,
			Attachments:   f.Attachments,
		},
	}
}

// JSON encodes the payload.
func (p DraftPayload) JSON() ([]byte, error) {
	return json.Marshal(p)
}

// Payload re-reads the document as an untyped payload, the shape inbound
// adapters consume.
func (p DraftPayload) Payload() (Payload, error) {
	raw, err := p.JSON()
	if err != nil {
		return nil, err
	}
	return ParsePayload(raw)
}
