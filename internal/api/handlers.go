package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"lotplan-export/internal/db"
	"lotplan-export/internal/export"
	"lotplan-export/internal/intersect"
	"lotplan-export/internal/layers"
	"lotplan-export/internal/lotplan"
	"lotplan-export/internal/models"
	"lotplan-export/internal/parcel"
)

// Handlers contains HTTP handlers and their dependencies
type Handlers struct {
	db          *db.DB
	resolver    *parcel.Resolver
	intersector *intersect.Intersector
	catalogue   *layers.Catalogue
}

// NewHandlers creates a new Handlers instance. The database may be nil
// when the cache is disabled.
func NewHandlers(database *db.DB, resolver *parcel.Resolver, intersector *intersect.Intersector, catalogue *layers.Catalogue) *Handlers {
	return &Handlers{
		db:          database,
		resolver:    resolver,
		intersector: intersector,
		catalogue:   catalogue,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError mirrors the established error envelope: {"detail": "..."}
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// Root handles GET /
func (h *Handlers) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "Lot/Plan parcel resolution and export API",
		"status":  "ok",
	})
}

// Healthz handles GET /healthz
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ListLayers handles GET /layers
func (h *Handlers) ListLayers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"layers": h.catalogue.All(),
	})
}

// NormalizeParcel handles POST /parcel/normalize
func (h *Handlers) NormalizeParcel(w http.ResponseWriter, r *http.Request) {
	var req models.ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	normalized := lotplan.Normalize(req.Lotplan)
	if len(normalized) == 0 {
		writeError(w, http.StatusBadRequest, "Could not parse lot/plan input")
		return
	}

	writeJSON(w, http.StatusOK, map[string][]string{"normalized": normalized})
}

// ResolveParcel handles POST /parcel/resolve
func (h *Handlers) ResolveParcel(w http.ResponseWriter, r *http.Request) {
	var req models.ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	normalized := lotplan.Normalize(req.Lotplan)
	if len(normalized) == 0 {
		writeError(w, http.StatusBadRequest, "Could not parse lot/plan input")
		return
	}

	result, err := h.resolver.Resolve(r.Context(), normalized)
	if err != nil {
		log.Printf("Parcel resolve failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Intersect handles POST /intersect
func (h *Handlers) Intersect(w http.ResponseWriter, r *http.Request) {
	var req models.IntersectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Parcel == nil {
		writeError(w, http.StatusBadRequest, "parcel geometry is required")
		return
	}

	results, err := h.intersector.Run(r.Context(), req.Parcel, req.LayerIDs)
	if err != nil {
		var unknown *intersect.UnknownLayersError
		var upstream *intersect.UpstreamError
		switch {
		case errors.As(err, &unknown):
			writeError(w, http.StatusBadRequest, unknown.Error())
		case errors.As(err, &upstream):
			log.Printf("Intersect failed: %v", upstream)
			writeError(w, http.StatusBadGateway, upstream.Error())
		default:
			log.Printf("Intersect failed: %v", err)
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	if h.db != nil && req.Lotplan != "" {
		for _, lr := range results {
			if err := h.db.RecordIntersection(req.Lotplan, lr.ID, len(lr.Features)); err != nil {
				log.Printf("Recording intersection failed: %v", err)
			}
		}
	}

	writeJSON(w, http.StatusOK, models.IntersectResult{Layers: results})
}

// ExportGeoJSON handles POST /export/geojson
func (h *Handlers) ExportGeoJSON(w http.ResponseWriter, r *http.Request) {
	var req models.ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fc, err := export.GeoJSON(req.Parcel, req.Layers)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Content-Disposition", `attachment; filename="export.geojson"`)
	json.NewEncoder(w).Encode(fc)
}

// ExportKML handles POST /export/kml
func (h *Handlers) ExportKML(w http.ResponseWriter, r *http.Request) {
	var req models.ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	kmz, err := export.KMZ(req.Parcel, req.Layers)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/vnd.google-earth.kmz")
	w.Header().Set("Content-Disposition", `attachment; filename="export.kmz"`)
	w.Write(kmz)
}

// RecentParcels handles GET /parcels/recent
func (h *Handlers) RecentParcels(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeError(w, http.StatusServiceUnavailable, "parcel cache is disabled")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	parcels, err := h.db.RecentParcels(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"parcels": parcels,
		"count":   len(parcels),
	})
}
