package period

import "github.com/go-chi/chi/v5"

// MountRoutes registers the period endpoints on a router already scoped to /periods.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{guid}", h.show)
	r.Get("/{guid}/simplified", h.showSimplified)
	r.Put("/{guid}", h.update)
	r.Patch("/{guid}/cancel", h.cancel)
}

// MountEducatorRoutes registers the timetable projection on a router scoped to /educators.
func (h *Handler) MountEducatorRoutes(r chi.Router) {
	r.Get("/{guid}/schedules", h.educatorSchedules)
}
