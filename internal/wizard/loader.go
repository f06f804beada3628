package wizard

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/quotewizard/internal/adapters"
	"github.com/odyssey-erp/quotewizard/internal/quote"
)

// Loader resumes sessions from existing drafts and requests. Sessions built
// from upstream data start in readonly mode.
type Loader struct {
	base  Config
	group singleflight.Group
}

// NewLoader uses base as the template for every session it builds.
func NewLoader(base Config) *Loader {
	return &Loader{base: base}
}

// FromDraft resumes a stored draft. Saves update that draft. A submitted
// draft resumes finalized.
func (l *Loader) FromDraft(ctx context.Context, draftID string, user adapters.UserContext) (*Session, error) {
	d, err := l.draftForm(ctx, draftID, user)
	if err != nil {
		return nil, err
	}
	return l.session(d.form, draftID, d.submitted)
}

// FromRequest starts a quote for an upstream request. The first save creates
// the draft.
func (l *Loader) FromRequest(ctx context.Context, requestID string, user adapters.UserContext) (*Session, error) {
	form, err := l.requestForm(ctx, requestID, user)
	if err != nil {
		return nil, err
	}
	return l.session(form, "", false)
}

// FromRequestWithDraft fetches a request and its draft concurrently. The
// draft wins; the request only fills a missing request id.
func (l *Loader) FromRequestWithDraft(ctx context.Context, requestID, draftID string, user adapters.UserContext) (*Session, error) {
	var (
		reqForm quote.DraftQuoteForm
		draft   loadedDraft
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		f, err := l.requestForm(gctx, requestID, user)
		if err != nil {
			return err
		}
		reqForm = f
		return nil
	})
	g.Go(func() error {
		d, err := l.draftForm(gctx, draftID, user)
		if err != nil {
			return err
		}
		draft = d
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if draft.form.RequestID == "" {
		draft.form.RequestID = reqForm.RequestID
	}
	return l.session(draft.form, draftID, draft.submitted)
}

type loadedDraft struct {
	form      quote.DraftQuoteForm
	submitted bool
}

func (l *Loader) draftForm(ctx context.Context, id string, user adapters.UserContext) (loadedDraft, error) {
	raw, err := l.fetch(ctx, "draft:"+id, func(ctx context.Context) ([]byte, error) {
		return l.base.Gateway.FetchDraft(ctx, id)
	})
	if err != nil {
		return loadedDraft{}, fmt.Errorf("wizard: fetch draft %s: %w", id, err)
	}
	p, err := adapters.ParsePayload(raw)
	if err != nil {
		return loadedDraft{}, err
	}
	form, err := adapters.DraftToForm(p, user)
	if err != nil {
		return loadedDraft{}, err
	}
	return loadedDraft{form: form, submitted: adapters.Submitted(p)}, nil
}

func (l *Loader) requestForm(ctx context.Context, id string, user adapters.UserContext) (quote.DraftQuoteForm, error) {
	raw, err := l.fetch(ctx, "request:"+id, func(ctx context.Context) ([]byte, error) {
		return l.base.Gateway.FetchRequest(ctx, id)
	})
	if err != nil {
		return quote.DraftQuoteForm{}, fmt.Errorf("wizard: fetch request %s: %w", id, err)
	}
	p, err := adapters.ParsePayload(raw)
	if err != nil {
		return quote.DraftQuoteForm{}, err
	}
	return adapters.RequestToForm(p, user)
}

// fetch de-duplicates concurrent fetches of one key. The shared bytes are
// only parsed, never mutated.
func (l *Loader) fetch(ctx context.Context, key string, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	if l.base.Gateway == nil {
		return nil, ErrNoGateway
	}
	ch := l.group.DoChan(key, func() (interface{}, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func (l *Loader) session(form quote.DraftQuoteForm, draftID string, submitted bool) (*Session, error) {
	cfg := l.base
	cfg.Initial = form
	cfg.DraftID = draftID
	cfg.Readonly = true
	cfg.Finalized = submitted
	cfg.SessionID = ""
	return New(cfg)
}
