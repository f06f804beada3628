package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/quotewizard/internal/drafts"
	draftshttp "github.com/odyssey-erp/quotewizard/internal/drafts/http"
)

const requestJSON = `{
	"data": {
		"requestQuoteId": "req-1",
		"departure": "Douala, Cameroon",
		"arrival": {"city": "Antwerp", "country": "Belgium"},
		"detail": "Cocoa beans",
		"transportMode": "sea",
		"incoterm": "FOB"
	}
}`

const draftYAML = `
draftId: draft-9
requestQuoteId: req-1
data:
  basics:
    cargoType: FCL
    incoterm: FOB
    origin: {city: Douala, country: Cameroon}
    destination: {city: Antwerp, country: Belgium}
    goodsDescription: Cocoa beans
  options:
    - id: o1
      name: Option 1
      currency: EUR
      isPreferred: true
      seafreights:
        - carrier: CMA CGM
          currency: EUR
          rates: [{containerType: 40HC, basePrice: 1200}]
      haulages: [{haulier: Bollore, currency: EUR, price: 300}]
`

const optionsYAML = `
options:
  - name: Direct
    seafreights:
      - carrier: CMA CGM
        currency: EUR
        rates: [{containerType: 40HC, basePrice: 1200}]
    haulages: [{haulier: Bollore, currency: EUR, price: 300}]
  - name: Transhipment
    preferred: true
    services: [{name: Customs, currency: EUR, price: 150}]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestValidateReportsMissingFields(t *testing.T) {
	out, err := run(t, "", "validate", writeFile(t, "req.json", requestJSON))
	require.NoError(t, err)
	assert.Contains(t, out, "request payload is valid")

	out, err = run(t, `{"data": {"requestQuoteId": "req-2"}}`, "validate", "-")
	require.ErrorIs(t, err, errInvalidPayload)
	assert.Contains(t, out, "missing origin location")
	assert.Contains(t, out, "missing goods description")

	_, err = run(t, "{}", "validate", "--kind", "invoice", "-")
	assert.ErrorContains(t, err, "unknown kind")
}

func TestAdaptWritesYAMLWithJSONFieldNames(t *testing.T) {
	out, err := run(t, "", "adapt", "--user-name", "Ada", "-o", "yaml", writeFile(t, "req.json", requestJSON))
	require.NoError(t, err)
	assert.Contains(t, out, "requestQuoteId: req-1")
	assert.Contains(t, out, "goodsDescription: Cocoa beans")
	assert.Contains(t, out, "name: Ada")

	_, err = run(t, requestJSON, "adapt", "-o", "xml", "-")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestOptionsTableFromYAMLDraft(t *testing.T) {
	out, err := run(t, "", "options", writeFile(t, "draft.yaml", draftYAML))
	require.NoError(t, err)
	assert.Contains(t, out, "Option 1")
	assert.Contains(t, out, "1500.00")
	assert.Contains(t, out, "yes")
}

func newDraftAPI(t *testing.T) (*httptest.Server, *drafts.Service) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := drafts.NewService(drafts.NewMemoryStore(), drafts.Options{Logger: logger})
	r := chi.NewRouter()
	draftshttp.NewHandler(logger, svc).MountRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, svc
}

func TestQuoteComposesAndSubmitsDraft(t *testing.T) {
	srv, svc := newDraftAPI(t)
	ctx := context.Background()
	require.NoError(t, svc.PutRequest(ctx, "req-1", []byte(requestJSON)))

	out, err := run(t, optionsYAML, "quote", "--api", srv.URL, "--request", "req-1", "--submit")
	require.NoError(t, err)
	assert.Contains(t, out, "Request: req-1")
	assert.Contains(t, out, "Direct")
	assert.Contains(t, out, "150.00")

	id := strings.TrimSpace(strings.TrimPrefix(strings.SplitN(out, "\n", 2)[0], "Draft:"))
	d, err := svc.Draft(ctx, id)
	require.NoError(t, err)
	assert.True(t, d.Submitted())
	assert.Equal(t, "req-1", d.RequestID)

	show, err := run(t, "", "show", "--api", srv.URL, id)
	require.NoError(t, err)
	assert.Contains(t, show, "Douala, Cameroon -> Antwerp, Belgium")
	assert.Contains(t, show, "1500.00")

	raw, err := run(t, "", "show", "--raw", "--api", srv.URL, id)
	require.NoError(t, err)
	assert.Contains(t, raw, `"draftId"`)
}

func TestQuoteRequiresRequest(t *testing.T) {
	_, err := run(t, optionsYAML, "quote")
	assert.ErrorContains(t, err, "--request is required")
}

func TestShowMissingDraft(t *testing.T) {
	srv, _ := newDraftAPI(t)
	_, err := run(t, "", "show", "--api", srv.URL, "nope")
	assert.ErrorIs(t, err, drafts.ErrNotFound)
}
