package attendance

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-academic/internal/platform/httpx"
)

type attendanceService interface {
	Create(ctx context.Context, input CreateInput) (Log, error)
	Update(ctx context.Context, guid uuid.UUID, input UpdateInput) (Log, error)
	Get(ctx context.Context, guid uuid.UUID) (Log, error)
	List(ctx context.Context, periodGUID, disciplineGUID uuid.UUID, page, perPage int) (Page, error)
}

// Handler exposes attendance logs over HTTP.
type Handler struct {
	logger  *slog.Logger
	service attendanceService
}

// NewHandler builds an attendance Handler.
func NewHandler(logger *slog.Logger, service attendanceService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the discipline-scoped endpoints on a router scoped to /periods.
func (h *Handler) MountRoutes(r chi.Router) {
	const base = "/{guid}/disciplines/{disciplineGuid}/attendance-logs"
	r.Post(base, h.create)
	r.Get(base, h.list)
}

// MountLogRoutes registers the per-log endpoints on a router scoped to /attendance-logs.
func (h *Handler) MountLogRoutes(r chi.Router) {
	r.Get("/{guid}", h.show)
	r.Put("/{guid}", h.update)
}

func scope(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	periodGUID, err := httpx.URLUUID(r, "guid")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	disciplineGUID, err := httpx.URLUUID(r, "disciplineGuid")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return periodGUID, disciplineGUID, nil
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	periodGUID, disciplineGUID, err := scope(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		h.fail(w, r, err)
		return
	}
	input, err := req.input(periodGUID, disciplineGUID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	l, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, l)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	periodGUID, disciplineGUID, err := scope(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := h.service.List(r.Context(), periodGUID, disciplineGUID,
		httpx.QueryInt(r, "page", 1), httpx.QueryInt(r, "perPage", 0))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	guid, err := httpx.URLUUID(r, "guid")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	l, err := h.service.Get(r.Context(), guid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, l)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	guid, err := httpx.URLUUID(r, "guid")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		h.fail(w, r, err)
		return
	}
	input, err := req.input()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	l, err := h.service.Update(r.Context(), guid, input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, l)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.IsServerError(err) {
		h.logger.ErrorContext(r.Context(), "attendance request failed",
			slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
