package draftshttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/odyssey-erp/quotewizard/internal/adapters"
	"github.com/odyssey-erp/quotewizard/internal/drafts"
	"github.com/odyssey-erp/quotewizard/internal/platform/httpx"
)

// Client talks to the draft API. It is the gateway wizard sessions use when
// drafts live in another process.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a new client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// APIError is a non-2xx answer. It unwraps to the matching drafts error so
// callers can use errors.Is across the wire.
type APIError struct {
	Status  int
	Problem httpx.ProblemDetail
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("draft api: status %d", e.Status)
	if e.Problem.Detail != "" {
		msg += ": " + e.Problem.Detail
	}
	return msg
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return drafts.ErrNotFound
	case http.StatusConflict:
		return drafts.ErrDraftSubmitted
	case http.StatusLocked:
		return drafts.ErrLocked
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return httpx.ErrValidation
	}
	return nil
}

func (c *Client) CreateDraft(ctx context.Context, p adapters.DraftPayload) (string, error) {
	var ref DraftRef
	if err := c.send(ctx, http.MethodPost, "/drafts", p, &ref); err != nil {
		return "", err
	}
	return ref.DraftID, nil
}

func (c *Client) UpdateDraft(ctx context.Context, id string, p adapters.DraftPayload) (string, error) {
	var ref DraftRef
	if err := c.send(ctx, http.MethodPut, draftPath(id), p, &ref); err != nil {
		return "", err
	}
	return ref.DraftID, nil
}

func (c *Client) FetchDraft(ctx context.Context, id string) ([]byte, error) {
	return c.get(ctx, draftPath(id))
}

func (c *Client) FetchRequest(ctx context.Context, id string) ([]byte, error) {
	return c.get(ctx, "/requests/"+url.PathEscape(id))
}

func (c *Client) SubmitDraft(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodPost, draftPath(id)+"/submit", nil, nil)
}

// PutRequest registers an upstream request document.
func (c *Client) PutRequest(ctx context.Context, id string, raw []byte) error {
	return c.send(ctx, http.MethodPut, "/requests/"+url.PathEscape(id), json.RawMessage(raw), nil)
}

func draftPath(id string) string {
	return "/drafts/" + url.PathEscape(id)
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return nil, apiError(resp)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) send(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return apiError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("draft api: decode %s %s: %w", method, path, err)
	}
	return nil
}

func apiError(resp *http.Response) error {
	e := &APIError{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, httpx.MaxBodyBytes))
	_ = json.Unmarshal(raw, &e.Problem)
	return e
}
