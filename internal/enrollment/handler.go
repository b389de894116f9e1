package enrollment

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-academic/internal/platform/httpx"
)

// IdempotencyHeader carries the client key that makes an enroll request safe to retry.
const IdempotencyHeader = "Idempotency-Key"

const idempotencyModule = "enrollment"

type enrollmentService interface {
	EnrollStudents(ctx context.Context, periodGUID uuid.UUID, studentGUIDs []uuid.UUID) ([]RosterEntry, error)
	CancelEnrollment(ctx context.Context, periodGUID, enrollmentGUID uuid.UUID) ([]RosterEntry, error)
	CancelEnrollments(ctx context.Context, periodGUID uuid.UUID, enrollmentGUIDs []uuid.UUID) ([]RosterEntry, error)
	ListPeriodEnrollments(ctx context.Context, periodGUID uuid.UUID) ([]RosterEntry, error)
}

type idempotencyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// Handler exposes enrollment operations under a period.
type Handler struct {
	logger      *slog.Logger
	service     enrollmentService
	idempotency idempotencyStore
}

// NewHandler builds an enrollment Handler. idempotency may be nil.
func NewHandler(logger *slog.Logger, service enrollmentService, idempotency idempotencyStore) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, idempotency: idempotency}
}

// MountRoutes registers the enrollment endpoints on a router scoped to /periods.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/{guid}/enroll", h.enroll)
	r.Get("/{guid}/enrollments", h.list)
	r.Delete("/{guid}/enrollments/{enrollmentGuid}", h.cancelOne)
	r.Post("/{guid}/enrollments/cancel", h.cancelMany)
}

type guidList struct {
	GUIDs []uuid.UUID `json:"guids" validate:"required,min=1,unique"`
}

func decodeGUIDs(r *http.Request) ([]uuid.UUID, error) {
	var list guidList
	if err := httpx.DecodeJSON(r, &list.GUIDs); err != nil {
		return nil, err
	}
	if err := httpx.Validate(list); err != nil {
		return nil, err
	}
	return list.GUIDs, nil
}

func (h *Handler) enroll(w http.ResponseWriter, r *http.Request) {
	periodGUID, err := httpx.URLUUID(r, "guid")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	students, err := decodeGUIDs(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	key := r.Header.Get(IdempotencyHeader)
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), key, idempotencyModule); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	roster, err := h.service.EnrollStudents(r.Context(), periodGUID, students)
	if err != nil {
		if key != "" && h.idempotency != nil {
			if derr := h.idempotency.Delete(r.Context(), key, idempotencyModule); derr != nil {
				h.logger.WarnContext(r.Context(), "release idempotency key", slog.Any("error", derr))
			}
		}
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, roster)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	periodGUID, err := httpx.URLUUID(r, "guid")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	roster, err := h.service.ListPeriodEnrollments(r.Context(), periodGUID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, roster)
}

func (h *Handler) cancelOne(w http.ResponseWriter, r *http.Request) {
	periodGUID, err := httpx.URLUUID(r, "guid")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	enrollmentGUID, err := httpx.URLUUID(r, "enrollmentGuid")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	roster, err := h.service.CancelEnrollment(r.Context(), periodGUID, enrollmentGUID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, roster)
}

func (h *Handler) cancelMany(w http.ResponseWriter, r *http.Request) {
	periodGUID, err := httpx.URLUUID(r, "guid")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	enrollments, err := decodeGUIDs(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	roster, err := h.service.CancelEnrollments(r.Context(), periodGUID, enrollments)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, roster)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.IsServerError(err) {
		h.logger.ErrorContext(r.Context(), "enrollment request failed",
			slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
