package draftshttp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/quotewizard/internal/adapters"
	"github.com/odyssey-erp/quotewizard/internal/autosave"
	"github.com/odyssey-erp/quotewizard/internal/drafts"
	"github.com/odyssey-erp/quotewizard/internal/quote"
	"github.com/odyssey-erp/quotewizard/internal/wizard"
)

func TestWizardSessionOverHTTP(t *testing.T) {
	srv, svc := newServiceAPI(t)
	client := NewClient(srv.URL, time.Second)
	ctx := context.Background()

	s, err := wizard.New(wizard.Config{Gateway: client, Debounce: 10 * time.Millisecond, Logger: discardLogger()})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	_, err = s.UpdateBasics(func(b *quote.Basics) {
		b.CargoType = quote.CargoTypeFCL
		b.Incoterm = "FOB"
		b.Origin = quote.Location{City: "Douala", Country: "Cameroon"}
		b.Destination = quote.Location{City: "Antwerp", Country: "Belgium"}
		b.GoodsDescription = "Cocoa beans"
	})
	require.NoError(t, err)
	_, err = s.UpdateCurrentOption(func(o *quote.OptionDraft) {
		o.Seafreights = []quote.Seafreight{{Carrier: "CMA CGM", Currency: "EUR",
			Rates: []quote.SeafreightRate{{ContainerType: "40HC", BasePrice: 1200}}}}
		o.Haulages = []quote.Haulage{{Haulier: "Bolloré", Currency: "EUR", Price: 300}}
	})
	require.NoError(t, err)
	_, err = s.Commit(ctx, "", "")
	require.NoError(t, err)

	id, err := s.Submit(ctx)
	require.NoError(t, err)

	d, err := svc.Draft(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, drafts.StatusSubmitted, d.Status)
	assert.Equal(t, s.ID(), d.SessionID)

	resumed, err := wizard.NewLoader(wizard.Config{Gateway: client}).
		FromDraft(ctx, id, adapters.UserContext{UserID: "u2", Name: "Grace"})
	require.NoError(t, err)
	t.Cleanup(resumed.Close)
	model := resumed.GetCurrentModel()
	require.Len(t, model.ExistingOptions, 1)
	assert.Equal(t, 1500.0, model.ExistingOptions[0].Totals().GrandTotal)
	assert.Equal(t, "Grace", model.Basics.Assignee.Name)

	assert.True(t, resumed.Finalized())

	_, err = resumed.UpdateBasics(func(b *quote.Basics) { b.Incoterm = "CIF" })
	assert.ErrorIs(t, err, quote.ErrFinalized)
	assert.ErrorIs(t, resumed.Delete(ctx, model.ExistingOptions[0].ID), quote.ErrFinalized)
	_, err = resumed.SetPreferred(ctx, model.ExistingOptions[0].ID)
	assert.ErrorIs(t, err, quote.ErrFinalized)
	_, err = resumed.Commit(ctx, "Option 2", "")
	assert.ErrorIs(t, err, quote.ErrFinalized)
	_, err = resumed.Submit(ctx)
	assert.ErrorIs(t, err, quote.ErrFinalized)

	assert.Len(t, resumed.GetCurrentModel().ExistingOptions, 1)
	assert.NotEqual(t, autosave.StatusError, resumed.Autosave().Status)
	d, err = svc.Draft(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, drafts.StatusSubmitted, d.Status)
}
