package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/odyssey-academic/internal/attendance"
	"github.com/odyssey-erp/odyssey-academic/internal/enrollment"
	"github.com/odyssey-erp/odyssey-academic/internal/grading"
	"github.com/odyssey-erp/odyssey-academic/internal/observability"
	"github.com/odyssey-erp/odyssey-academic/internal/period"
	"github.com/odyssey-erp/odyssey-academic/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-academic/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	PeriodHandler     *period.Handler
	EnrollmentHandler *enrollment.Handler
	GradingHandler    *grading.Handler
	AttendanceHandler *attendance.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
	// RequestLogging toggles chi's request logger; tests leave it off.
	RequestLogging bool
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	if params.RequestLogging {
		r.Use(chimw.Logger)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, http.StatusText(http.StatusNotFound), "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed), "")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/periods", func(r chi.Router) {
		if params.PeriodHandler != nil {
			params.PeriodHandler.MountRoutes(r)
		}
		if params.EnrollmentHandler != nil {
			params.EnrollmentHandler.MountRoutes(r)
		}
		if params.GradingHandler != nil {
			params.GradingHandler.MountRoutes(r)
		}
		if params.AttendanceHandler != nil {
			params.AttendanceHandler.MountRoutes(r)
		}
	})
	if params.AttendanceHandler != nil {
		r.Route("/attendance-logs", params.AttendanceHandler.MountLogRoutes)
	}
	if params.PeriodHandler != nil {
		r.Route("/educators", params.PeriodHandler.MountEducatorRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
