// Package models holds the wire and storage types shared across the
// service. Field names follow the established API contract.
package models

import (
	"time"

	"lotplan-export/internal/geo"
	"lotplan-export/internal/layers"
)

// ResolveRequest asks for a lot/plan reference to be normalised or
// resolved against the cadastre
type ResolveRequest struct {
	Lotplan string `json:"lotplan"`
}

// MatchedLot identifies one cadastral parcel matched during resolution
type MatchedLot struct {
	Lot     string `json:"lot"`
	Plan    string `json:"plan"`
	Lotplan string `json:"lotplan"`
}

// ResolveResult is the outcome of a cadastre lookup. Parcel is nil when
// nothing matched.
type ResolveResult struct {
	Parcel  *geo.Geometry `json:"parcel"`
	Matched []MatchedLot  `json:"matched"`
}

// IntersectRequest asks for a parcel geometry to be intersected with a
// set of configured layers
type IntersectRequest struct {
	Parcel   *geo.Geometry `json:"parcel"`
	LayerIDs []string      `json:"layer_ids"`
	// Lotplan optionally identifies the parcel so the query can be
	// recorded against it
	Lotplan string `json:"lotplan,omitempty"`
}

// LayerFeature is one intersecting feature from a layer
type LayerFeature struct {
	Geometry *geo.Geometry          `json:"geometry"`
	Attrs    map[string]interface{} `json:"attrs"`
	Name     string                 `json:"name"`
}

// LayerResult carries every intersecting feature found in one layer
type LayerResult struct {
	ID       string         `json:"id"`
	Label    string         `json:"label"`
	Features []LayerFeature `json:"features"`
	Style    layers.Style   `json:"style"`
}

// IntersectResult groups the per-layer results of one intersection run
type IntersectResult struct {
	Layers []LayerResult `json:"layers"`
}

// ExportRequest asks for a parcel and its intersected layers to be
// serialised as GeoJSON or KMZ
type ExportRequest struct {
	Parcel *geo.Geometry `json:"parcel"`
	Layers []LayerResult `json:"layers"`
}

// CachedParcel is a resolved parcel stored in the local cache
type CachedParcel struct {
	ID          int64     `db:"id" json:"id"`
	Lotplan     string    `db:"lotplan" json:"lotplan"`
	Lot         string    `db:"lot" json:"lot"`
	Plan        string    `db:"plan" json:"plan"`
	Geometry    string    `db:"geometry" json:"geometry"`
	CentroidLat float64   `db:"centroid_lat" json:"centroid_lat"`
	CentroidLng float64   `db:"centroid_lng" json:"centroid_lng"`
	FetchedAt   time.Time `db:"fetched_at" json:"fetched_at"`
}

// IntersectionRecord notes that a layer was intersected for a lotplan
type IntersectionRecord struct {
	ID           int64     `db:"id" json:"id"`
	Lotplan      string    `db:"lotplan" json:"lotplan"`
	LayerID      string    `db:"layer_id" json:"layer_id"`
	FeatureCount int       `db:"feature_count" json:"feature_count"`
	FetchedAt    time.Time `db:"fetched_at" json:"fetched_at"`
}
