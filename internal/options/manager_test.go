package options

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/quotewizard/internal/adapters"
	"github.com/odyssey-erp/quotewizard/internal/autosave"
	"github.com/odyssey-erp/quotewizard/internal/quote"
)

var fixedNow = time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)

type recordingSaver struct {
	calls int
	err   error
}

func (s *recordingSaver) SaveNow(context.Context) error {
	s.calls++
	return s.err
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("opt-%d", n)
	}
}

func exampleBasics() quote.Basics {
	return quote.Basics{
		CargoType:        quote.CargoTypeFCL,
		Incoterm:         "FOB",
		Origin:           quote.Location{City: "Douala", Country: "Cameroon"},
		Destination:      quote.Location{City: "Antwerp", Country: "Belgium"},
		GoodsDescription: "Cocoa beans",
		Containers:       []quote.Container{{ContainerType: "40HC", Quantity: 2}},
	}
}

func newManager(t *testing.T, saver Saver) (*Manager, *quote.FormStore) {
	t.Helper()
	store := quote.NewFormStore(quote.DraftQuoteForm{Basics: exampleBasics()})
	m := NewManager(store, saver, Config{
		Validity: 14 * 24 * time.Hour,
		Now:      func() time.Time { return fixedNow },
		NewID:    sequentialIDs(),
	})
	return m, store
}

func compose(t *testing.T, store *quote.FormStore, sea, haul float64, currency string) {
	t.Helper()
	_, err := store.UpdateCurrentOption(func(o *quote.OptionDraft) {
		o.Seafreights = []quote.Seafreight{{
			Carrier:  "CMA CGM",
			Currency: currency,
			Rates:    []quote.SeafreightRate{{ContainerType: "40HC", BasePrice: sea}},
		}}
		o.Haulages = []quote.Haulage{{Haulier: "Bolloré", Currency: currency, Price: haul}}
	})
	require.NoError(t, err)
}

func snapshot(store *quote.FormStore) quote.DraftQuoteForm {
	f, _ := store.Snapshot()
	return f
}

func preferredCount(opts []quote.QuoteOption) int {
	n := 0
	for _, o := range opts {
		if o.IsPreferred {
			n++
		}
	}
	return n
}

func TestCommitExampleScenario(t *testing.T) {
	saver := &recordingSaver{}
	m, store := newManager(t, saver)
	compose(t, store, 1200, 300, "EUR")

	opt, err := m.Commit(context.Background(), "Option 1", "")
	require.NoError(t, err)

	form := snapshot(store)
	require.Len(t, form.ExistingOptions, 1)
	assert.Equal(t, opt, form.ExistingOptions[0])
	assert.Equal(t, 1500.0, form.ExistingOptions[0].Totals().GrandTotal)
	assert.Equal(t, "Option 1", opt.Name)
	assert.Equal(t, "opt-1", opt.ID)
	assert.Equal(t, "EUR", opt.Currency)
	assert.Equal(t, fixedNow, opt.CreatedAt)
	assert.Equal(t, fixedNow.Add(14*24*time.Hour), opt.ValidUntil)
	assert.Equal(t, form.Basics.Containers, opt.Containers)
	assert.True(t, form.CurrentOption.IsEmpty())
	assert.Equal(t, 1, saver.calls)
}

func TestCommitDefaultsNameAndCurrency(t *testing.T) {
	m, store := newManager(t, nil)
	_, err := store.UpdateCurrentOption(func(o *quote.OptionDraft) {
		o.Services = []quote.Service{{Name: "Customs", Price: 80}}
	})
	require.NoError(t, err)

	opt, err := m.Commit(context.Background(), "  ", "")
	require.NoError(t, err)
	assert.Equal(t, "Option 1", opt.Name)
	assert.Equal(t, DefaultCurrency, opt.Currency)
}

func TestFourthCommitIsRejected(t *testing.T) {
	m, store := newManager(t, nil)
	for i := 1; i <= 3; i++ {
		compose(t, store, float64(i*100), 0, "EUR")
		_, err := m.Commit(context.Background(), fmt.Sprintf("Option %d", i), "")
		require.NoError(t, err)
	}
	compose(t, store, 400, 0, "EUR")
	before := snapshot(store)

	_, err := m.Commit(context.Background(), "Option 4", "")
	require.ErrorIs(t, err, quote.ErrCapacityExceeded)

	after := snapshot(store)
	assert.Len(t, after.ExistingOptions, 3)
	assert.Equal(t, before, after, "rejected commit leaves the model unchanged")
}

func TestCapacityHoldsAcrossCommitAndDuplicate(t *testing.T) {
	m, store := newManager(t, nil)
	compose(t, store, 100, 0, "EUR")
	first, err := m.Commit(context.Background(), "Base", "")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, _ = m.Duplicate(context.Background(), first.ID)
		compose(t, store, 1, 1, "EUR")
		_, _ = m.Commit(context.Background(), "", "")
		assert.LessOrEqual(t, len(m.List()), quote.MaxOptions)
	}
	_, err = m.Duplicate(context.Background(), first.ID)
	assert.ErrorIs(t, err, quote.ErrCapacityExceeded)
}

func TestDuplicateCopiesDeeply(t *testing.T) {
	m, store := newManager(t, nil)
	compose(t, store, 1200, 300, "EUR")
	orig, err := m.Commit(context.Background(), "Option 1", "direct")
	require.NoError(t, err)
	_, err = m.SetPreferred(context.Background(), orig.ID)
	require.NoError(t, err)

	cp, err := m.Duplicate(context.Background(), orig.ID)
	require.NoError(t, err)

	assert.Equal(t, "opt-2", cp.ID)
	assert.Equal(t, "Option 1 (copy)", cp.Name)
	assert.False(t, cp.IsPreferred)
	assert.Equal(t, orig.Totals(), cp.Totals())
	assert.Equal(t, 1, preferredCount(m.List()))

	_, err = store.Apply(func(f *quote.DraftQuoteForm) error {
		f.ExistingOptions[1].Seafreights[0].Rates[0].BasePrice = 1
		return nil
	})
	require.NoError(t, err)
	got, err := m.Get(orig.ID)
	require.NoError(t, err)
	assert.Equal(t, 1200.0, got.Seafreights[0].Rates[0].BasePrice)
}

func TestSetPreferredIsExclusive(t *testing.T) {
	m, store := newManager(t, nil)
	var ids []string
	for i := 0; i < 3; i++ {
		compose(t, store, 10, 0, "USD")
		opt, err := m.Commit(context.Background(), "", "")
		require.NoError(t, err)
		ids = append(ids, opt.ID)
	}

	for _, id := range []string{ids[2], ids[0], ids[1], ids[1]} {
		opt, err := m.SetPreferred(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, opt.IsPreferred)
		opts := m.List()
		assert.Equal(t, 1, preferredCount(opts))
		for _, o := range opts {
			assert.Equal(t, o.ID == id, o.IsPreferred)
		}
	}

	_, err := m.SetPreferred(context.Background(), "missing")
	assert.ErrorIs(t, err, quote.ErrOptionNotFound)
	assert.Equal(t, 1, preferredCount(m.List()))
}

func TestDelete(t *testing.T) {
	m, store := newManager(t, nil)
	compose(t, store, 10, 0, "EUR")
	opt, err := m.Commit(context.Background(), "", "")
	require.NoError(t, err)

	assert.ErrorIs(t, m.Delete(context.Background(), "missing"), quote.ErrOptionNotFound)

	_, err = m.Edit(opt.ID)
	require.NoError(t, err)
	require.NoError(t, m.Delete(context.Background(), opt.ID))
	form := snapshot(store)
	assert.Empty(t, form.ExistingOptions)
	assert.Empty(t, form.CurrentOption.EditingID)

	recommitted, err := m.Commit(context.Background(), "", "")
	require.NoError(t, err)
	assert.NotEqual(t, opt.ID, recommitted.ID)
}

func TestEditRecommitReplacesInPlace(t *testing.T) {
	m, store := newManager(t, nil)
	for i := 0; i < 3; i++ {
		compose(t, store, 100, 0, "EUR")
		_, err := m.Commit(context.Background(), fmt.Sprintf("Option %d", i+1), "")
		require.NoError(t, err)
	}
	_, err := m.SetPreferred(context.Background(), "opt-2")
	require.NoError(t, err)

	draft, err := m.Edit("opt-2")
	require.NoError(t, err)
	assert.Equal(t, "opt-2", draft.EditingID)
	assert.Len(t, m.List(), 3, "editing does not remove the committed option")

	_, err = store.UpdateCurrentOption(func(o *quote.OptionDraft) {
		o.Services = append(o.Services, quote.Service{Name: "Insurance", Currency: "EUR", Price: 50})
	})
	require.NoError(t, err)
	assert.Equal(t, 150.0, m.Preview().GrandTotal)

	opt, err := m.Commit(context.Background(), "", "")
	require.NoError(t, err, "re-commit of an edit does not need capacity")

	opts := m.List()
	require.Len(t, opts, 3)
	assert.Equal(t, "opt-2", opts[1].ID)
	assert.Equal(t, opt, opts[1])
	assert.Equal(t, "Option 2", opt.Name)
	assert.True(t, opt.IsPreferred)
	assert.Equal(t, 150.0, opt.Totals().GrandTotal)
}

func TestCancelEditClearsSlot(t *testing.T) {
	m, store := newManager(t, nil)
	compose(t, store, 100, 0, "EUR")
	opt, err := m.Commit(context.Background(), "", "")
	require.NoError(t, err)

	_, err = m.Edit(opt.ID)
	require.NoError(t, err)
	require.NoError(t, m.CancelEdit())
	assert.True(t, snapshot(store).CurrentOption.IsEmpty())
	assert.Empty(t, snapshot(store).CurrentOption.EditingID)

	_, err = m.Edit("missing")
	assert.ErrorIs(t, err, quote.ErrOptionNotFound)
}

func TestCommitRejectsBadCurrencies(t *testing.T) {
	m, store := newManager(t, nil)

	_, err := store.UpdateCurrentOption(func(o *quote.OptionDraft) {
		o.Haulages = []quote.Haulage{{Price: 1, Currency: "EUR"}, {Price: 2, Currency: "usd"}}
	})
	require.NoError(t, err)
	_, err = m.Commit(context.Background(), "", "")
	require.ErrorIs(t, err, quote.ErrMixedCurrency)
	assert.Contains(t, err.Error(), "EUR, USD")

	_, err = store.UpdateCurrentOption(func(o *quote.OptionDraft) {
		o.Haulages = []quote.Haulage{{Price: 1, Currency: "ZZZ"}}
	})
	require.NoError(t, err)
	_, err = m.Commit(context.Background(), "", "")
	require.ErrorIs(t, err, quote.ErrInvalidCurrency)
	assert.Empty(t, m.List())
}

func TestCommitRejectsEmptyOption(t *testing.T) {
	m, _ := newManager(t, nil)
	_, err := m.Commit(context.Background(), "Option 1", "")
	assert.ErrorIs(t, err, quote.ErrEmptyOption)
}

func TestPersistenceFailureKeepsCommit(t *testing.T) {
	saver := &recordingSaver{err: &autosave.PersistenceError{Op: autosave.OpCreate, Err: errors.New("503")}}
	m, store := newManager(t, saver)
	compose(t, store, 1200, 300, "EUR")

	opt, err := m.Commit(context.Background(), "Option 1", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, autosave.ErrSaveFailed)
	assert.Equal(t, "opt-1", opt.ID)
	assert.Len(t, snapshot(store).ExistingOptions, 1)
}

func TestFinalizedFormRejectsOptionChanges(t *testing.T) {
	m, store := newManager(t, nil)
	compose(t, store, 1, 1, "EUR")
	store.Finalize()

	_, err := m.Commit(context.Background(), "", "")
	assert.ErrorIs(t, err, quote.ErrFinalized)
}

type countingGateway struct {
	mu      sync.Mutex
	creates int
	updates []string
}

func (g *countingGateway) CreateDraft(context.Context, adapters.DraftPayload) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.creates++
	time.Sleep(10 * time.Millisecond)
	return "draft-1", nil
}

func (g *countingGateway) UpdateDraft(_ context.Context, id string, _ adapters.DraftPayload) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updates = append(g.updates, id)
	return id, nil
}

func TestBackToBackOptionOperationsCreateOneDraft(t *testing.T) {
	store := quote.NewFormStore(quote.DraftQuoteForm{Basics: exampleBasics()})
	gw := &countingGateway{}
	orch := autosave.New(store, gw, autosave.Config{Debounce: time.Hour})
	t.Cleanup(orch.Close)
	m := NewManager(store, orch, Config{})
	compose(t, store, 1200, 300, "EUR")

	var wg sync.WaitGroup
	opt, err := m.Commit(context.Background(), "Option 1", "")
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Duplicate(context.Background(), opt.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	gw.mu.Lock()
	defer gw.mu.Unlock()
	assert.Equal(t, 1, gw.creates)
	for _, id := range gw.updates {
		assert.Equal(t, "draft-1", id)
	}
	assert.Equal(t, "draft-1", orch.DraftID())
	assert.Len(t, m.List(), 3)
}
