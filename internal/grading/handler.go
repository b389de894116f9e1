package grading

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-academic/internal/platform/httpx"
)

type gradingService interface {
	GetDisciplineGradeConfig(ctx context.Context, periodGUID, disciplineGUID uuid.UUID) (Config, error)
	UpdateDisciplineGradeConfig(ctx context.Context, periodGUID, disciplineGUID uuid.UUID, input ConfigInput) (Config, error)
	GetStudentsGrades(ctx context.Context, periodGUID, disciplineGUID uuid.UUID) ([]StudentGrade, error)
	UpdateStudentsGrades(ctx context.Context, periodGUID, disciplineGUID uuid.UUID, inputs []StudentGradeInput) ([]StudentGrade, error)
}

// Handler exposes grade schemas and student grades under a period discipline.
type Handler struct {
	logger  *slog.Logger
	service gradingService
}

// NewHandler builds a grading Handler.
func NewHandler(logger *slog.Logger, service gradingService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the grading endpoints on a router scoped to /periods.
func (h *Handler) MountRoutes(r chi.Router) {
	const base = "/{guid}/disciplines/{disciplineGuid}"
	r.Get(base+"/grade-config", h.showConfig)
	r.Put(base+"/grade-config", h.updateConfig)
	r.Get(base+"/grades", h.listGrades)
	r.Put(base+"/grades", h.updateGrades)
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

func (h *Handler) showConfig(w http.ResponseWriter, r *http.Request) {
	periodGUID, disciplineGUID, err := scope(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	cfg, err := h.service.GetDisciplineGradeConfig(r.Context(), periodGUID, disciplineGUID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cfg)
}

func (h *Handler) updateConfig(w http.ResponseWriter, r *http.Request) {
	periodGUID, disciplineGUID, err := scope(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req configRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		h.fail(w, r, err)
		return
	}
	cfg, err := h.service.UpdateDisciplineGradeConfig(r.Context(), periodGUID, disciplineGUID, req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cfg)
}

func (h *Handler) listGrades(w http.ResponseWriter, r *http.Request) {
	periodGUID, disciplineGUID, err := scope(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	grades, err := h.service.GetStudentsGrades(r.Context(), periodGUID, disciplineGUID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, grades)
}

func (h *Handler) updateGrades(w http.ResponseWriter, r *http.Request) {
	periodGUID, disciplineGUID, err := scope(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req gradesRequest
	if err := httpx.DecodeJSON(r, &req.Grades); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		h.fail(w, r, err)
		return
	}
	grades, err := h.service.UpdateStudentsGrades(r.Context(), periodGUID, disciplineGUID, req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, grades)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.IsServerError(err) {
		h.logger.ErrorContext(r.Context(), "grading request failed",
			slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
