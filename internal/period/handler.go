package period

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-academic/internal/platform/httpx"
)

type periodService interface {
	Create(ctx context.Context, input CreateInput) (Details, error)
	Update(ctx context.Context, guid uuid.UUID, input UpdateInput) (Details, error)
	Cancel(ctx context.Context, guid uuid.UUID) (Details, error)
	Get(ctx context.Context, guid uuid.UUID) (Details, error)
	GetSimplified(ctx context.Context, guid uuid.UUID) (Simplified, error)
	List(ctx context.Context, filter ListFilter) (Page, error)
	EducatorSchedules(ctx context.Context, employeeGUID uuid.UUID) (EducatorSchedule, error)
}

// Handler exposes period scheduling over HTTP.
type Handler struct {
	logger  *slog.Logger
	service periodService
}

// NewHandler builds a period Handler.
func NewHandler(logger *slog.Logger, service periodService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
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
	details, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, details)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.service.List(r.Context(), ListFilter{
		SearchTerm: q.Get("searchTerm"),
		Status:     Status(q.Get("status")),
		Page:       httpx.QueryInt(r, "page", 1),
		PerPage:    httpx.QueryInt(r, "perPage", 0),
	})
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
	details, err := h.service.Get(r.Context(), guid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, details)
}

func (h *Handler) showSimplified(w http.ResponseWriter, r *http.Request) {
	guid, err := httpx.URLUUID(r, "guid")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := h.service.GetSimplified(r.Context(), guid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
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
	details, err := h.service.Update(r.Context(), guid, input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, details)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	guid, err := httpx.URLUUID(r, "guid")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	details, err := h.service.Cancel(r.Context(), guid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, details)
}

func (h *Handler) educatorSchedules(w http.ResponseWriter, r *http.Request) {
	guid, err := httpx.URLUUID(r, "guid")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := h.service.EducatorSchedules(r.Context(), guid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.IsServerError(err) {
		h.logger.ErrorContext(r.Context(), "period request failed",
			slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
