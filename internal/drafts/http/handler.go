package draftshttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/quotewizard/internal/adapters"
	"github.com/odyssey-erp/quotewizard/internal/drafts"
	"github.com/odyssey-erp/quotewizard/internal/platform/httpx"
)

type draftService interface {
	CreateDraft(ctx context.Context, p adapters.DraftPayload) (string, error)
	UpdateDraft(ctx context.Context, id string, p adapters.DraftPayload) (string, error)
	Draft(ctx context.Context, id string) (drafts.Draft, error)
	SubmitDraft(ctx context.Context, id string) error
	FetchRequest(ctx context.Context, id string) ([]byte, error)
	PutRequest(ctx context.Context, id string, raw []byte) error
}

// Handler exposes the draft gateway as a JSON API.
type Handler struct {
	logger  *slog.Logger
	service draftService
}

// DraftRef is the body returned by draft writes.
type DraftRef struct {
	DraftID string        `json:"draftId"`
	Status  drafts.Status `json:"status,omitempty"`
}

// NewHandler constructs the draft API handler.
func NewHandler(logger *slog.Logger, service draftService) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers draft and request routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/drafts", func(r chi.Router) {
		r.Post("/", h.createDraft)
		r.Get("/{id}", h.getDraft)
		r.Put("/{id}", h.updateDraft)
		r.Post("/{id}/submit", h.submitDraft)
	})
	r.Route("/requests", func(r chi.Router) {
		r.Get("/{id}", h.getRequest)
		r.Put("/{id}", h.putRequest)
	})
}

func (h *Handler) createDraft(w http.ResponseWriter, r *http.Request) {
	var p adapters.DraftPayload
	if err := httpx.DecodeJSON(w, r, &p); err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := h.service.CreateDraft(r.Context(), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/drafts/"+id)
	httpx.JSON(w, http.StatusCreated, DraftRef{DraftID: id, Status: drafts.StatusOpen})
}

func (h *Handler) getDraft(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Draft(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	etag := drafts.ETag(d.Fingerprint)
	w.Header().Set("ETag", etag)
	w.Header().Set("X-Draft-Status", string(d.Status))
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	doc, err := drafts.Document(d)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Raw(w, http.StatusOK, doc)
}

// updateDraft honours If-Match so a client can refuse to overwrite a
// document written by another session.
func (h *Handler) updateDraft(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if match := r.Header.Get("If-Match"); match != "" {
		current, err := h.service.Draft(r.Context(), id)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if match != drafts.ETag(current.Fingerprint) {
			httpx.Problem(w, http.StatusPreconditionFailed, "Precondition Failed", "draft changed since it was read")
			return
		}
	}
	var p adapters.DraftPayload
	if err := httpx.DecodeJSON(w, r, &p); err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := h.service.UpdateDraft(r.Context(), id, p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, DraftRef{DraftID: id, Status: drafts.StatusOpen})
}

func (h *Handler) submitDraft(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.SubmitDraft(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, DraftRef{DraftID: id, Status: drafts.StatusSubmitted})
}

func (h *Handler) getRequest(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.FetchRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Raw(w, http.StatusOK, doc)
}

func (h *Handler) putRequest(w http.ResponseWriter, r *http.Request) {
	body, err := httpx.ReadBody(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.service.PutRequest(r.Context(), chi.URLParam(r, "id"), body); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, drafts.ErrMissingID) {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	h.logger.Warn("draft api",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Any("error", err))
	httpx.RespondError(w, err)
}
