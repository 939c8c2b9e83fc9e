package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	kotel "github.com/kestrel-sh/kestrel/internal/adapter/otel"
	"github.com/kestrel-sh/kestrel/internal/adapter/ws"
)

// NewRouter builds the API router: health, the approval surface, and the
// WebSocket mount.
func NewRouter(h *Handlers, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(kotel.HTTPMiddleware("kestrel"))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"version": "0.1.0"})
		})

		r.Get("/approvals", h.ListApprovals)
		r.Post("/approvals/{id}/resolve", h.ResolveApproval)

		r.Get("/mode", h.GetMode)
		r.Put("/mode", h.SetMode)

		r.Get("/grants", h.ListGrants)
		r.Get("/tools", h.ListTools)

		r.Post("/invocations", h.ScheduleInvocations)
		r.Get("/invocations", h.ListInvocations)
	})

	if hub != nil {
		r.Get("/ws", hub.HandleWS)
	}

	return r
}
