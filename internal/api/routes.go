package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates and configures the chi router
func NewRouter(h *Handlers, corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(CORS(corsOrigins))

	r.Get("/", h.Root)
	r.Get("/healthz", h.Healthz)
	r.Get("/layers", h.ListLayers)

	r.Route("/parcel", func(r chi.Router) {
		r.Post("/normalize", h.NormalizeParcel)
		r.Post("/resolve", h.ResolveParcel)
	})
	r.Get("/parcels/recent", h.RecentParcels)

	r.Post("/intersect", h.Intersect)

	r.Route("/export", func(r chi.Router) {
		r.Post("/geojson", h.ExportGeoJSON)
		r.Post("/kml", h.ExportKML)
	})

	return r
}
