// Package parcel resolves canonical lot/plan identifiers to parcel
// geometry using a cadastre feature layer.
package parcel

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"lotplan-export/internal/arcgis"
	"lotplan-export/internal/db"
	"lotplan-export/internal/geo"
	"lotplan-export/internal/lotplan"
	"lotplan-export/internal/models"
)

// Config identifies the cadastre layer and its attribute fields
type Config struct {
	CadastreURL string
	// Attribute fields on the cadastre layer. LotplanField may be empty
	// when the service has no combined field.
	LotField     string
	PlanField    string
	LotplanField string
	// CacheTTL bounds how long cached resolutions are reused.
	// Zero disables the age check.
	CacheTTL time.Duration
}

// ConfigFromEnv reads the cadastre configuration from the environment
func ConfigFromEnv() Config {
	cfg := Config{
		CadastreURL:  os.Getenv("CADASTRE_URL"),
		LotField:     "lot",
		PlanField:    "plan",
		LotplanField: "lotplan",
		CacheTTL:     24 * time.Hour,
	}
	if v := os.Getenv("CADASTRE_LOT_FIELD"); v != "" {
		cfg.LotField = v
	}
	if v := os.Getenv("CADASTRE_PLAN_FIELD"); v != "" {
		cfg.PlanField = v
	}
	if v, ok := os.LookupEnv("CADASTRE_LOTPLAN_FIELD"); ok {
		cfg.LotplanField = v
	}
	if v := os.Getenv("CACHE_TTL_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil && hours >= 0 {
			cfg.CacheTTL = time.Duration(hours) * time.Hour
		}
	}
	return cfg
}

// Resolver looks up parcels against the cadastre, with an optional local
// cache of previous resolutions
type Resolver struct {
	client *arcgis.Client
	cfg    Config
	cache  *db.DB
}

// NewResolver creates a resolver. The cache may be nil.
func NewResolver(client *arcgis.Client, cfg Config, cache *db.DB) *Resolver {
	return &Resolver{client: client, cfg: cfg, cache: cache}
}

// Resolve fetches the geometry for each canonical identifier and merges
// every matched parcel into one result. Identifiers that match nothing
// are skipped; a result with a nil Parcel means nothing matched at all.
func (r *Resolver) Resolve(ctx context.Context, lotplans []string) (*models.ResolveResult, error) {
	if r.cfg.CadastreURL == "" {
		return nil, fmt.Errorf("CADASTRE_URL not set: a cadastre layer endpoint is required")
	}

	var polygons []geo.Rings
	matched := []models.MatchedLot{}

	for _, lp := range lotplans {
		lot, plan, ok := lotplan.Split(lp)
		if !ok {
			continue
		}
		lot = strings.ToUpper(strings.TrimSpace(lot))
		plan = strings.ReplaceAll(strings.ToUpper(plan), " ", "")
		key := lot + "/" + plan

		if cached := r.fromCache(key); cached != nil {
			polys, err := geo.Polygons(cached)
			if err == nil {
				polygons = append(polygons, polys...)
				matched = append(matched, models.MatchedLot{Lot: lot, Plan: plan, Lotplan: key})
				continue
			}
			log.Printf("Discarding unreadable cached geometry for %s: %v", key, err)
		}

		feats, err := r.queryCadastre(ctx, lot, plan, key)
		if err != nil {
			return nil, err
		}

		var parcelRings []geo.Rings
		for _, f := range feats {
			if f.Geometry == nil || len(f.Geometry.Rings) == 0 {
				continue
			}
			g, err := geo.RingsToGeometry(f.Geometry.Rings)
			if err != nil {
				continue
			}
			polys, err := geo.Polygons(g)
			if err != nil {
				continue
			}
			parcelRings = append(parcelRings, polys...)
			matched = append(matched, models.MatchedLot{
				Lot:     attrString(f.Attributes, r.cfg.LotField, lot),
				Plan:    attrString(f.Attributes, r.cfg.PlanField, plan),
				Lotplan: key,
			})
		}

		if len(parcelRings) == 0 {
			continue
		}
		polygons = append(polygons, parcelRings...)
		r.toCache(key, lot, plan, parcelRings)
	}

	if len(polygons) == 0 {
		return &models.ResolveResult{Parcel: nil, Matched: []models.MatchedLot{}}, nil
	}

	merged, err := geo.MergePolygons(polygons)
	if err != nil {
		return nil, fmt.Errorf("merging parcel geometry: %w", err)
	}

	return &models.ResolveResult{Parcel: merged, Matched: matched}, nil
}

// queryCadastre tries the combined lotplan field first, then falls back
// to lot+plan equality, including a variant that strips spaces stored
// inside plan values.
func (r *Resolver) queryCadastre(ctx context.Context, lot, plan, key string) ([]arcgis.Feature, error) {
	outFields := r.cfg.LotField + "," + r.cfg.PlanField
	if r.cfg.LotplanField != "" {
		outFields += "," + r.cfg.LotplanField
	}

	var wheres []string
	if r.cfg.LotplanField != "" {
		wheres = append(wheres,
			fmt.Sprintf("UPPER(%s) = '%s'", r.cfg.LotplanField, sqlQuote(key)))
	}
	wheres = append(wheres,
		fmt.Sprintf("UPPER(%s) = '%s' AND REPLACE(UPPER(%s), ' ', '') = '%s'",
			r.cfg.LotField, sqlQuote(lot), r.cfg.PlanField, sqlQuote(plan)),
		fmt.Sprintf("UPPER(%s) = '%s' AND UPPER(%s) = '%s'",
			r.cfg.LotField, sqlQuote(lot), r.cfg.PlanField, sqlQuote(plan)),
	)

	var lastErr error
	succeeded := false
	for _, where := range wheres {
		params := url.Values{}
		params.Set("where", where)
		params.Set("outFields", outFields)
		params.Set("returnGeometry", "true")
		params.Set("outSR", strconv.Itoa(geo.WGS84))

		feats, err := r.client.QueryAll(ctx, r.cfg.CadastreURL, params)
		if err != nil {
			lastErr = err
			continue
		}
		succeeded = true
		if len(feats) > 0 {
			return feats, nil
		}
	}

	if !succeeded && lastErr != nil {
		return nil, fmt.Errorf("cadastre lookup for %s: %w", key, lastErr)
	}
	return nil, nil
}

func (r *Resolver) fromCache(key string) *geo.Geometry {
	if r.cache == nil {
		return nil
	}
	cached, err := r.cache.GetParcel(key, r.cfg.CacheTTL)
	if err != nil {
		log.Printf("Parcel cache read failed for %s: %v", key, err)
		return nil
	}
	if cached == nil {
		return nil
	}
	g, err := geo.FromJSON(cached.Geometry)
	if err != nil {
		return nil
	}
	return g
}

func (r *Resolver) toCache(key, lot, plan string, polygons []geo.Rings) {
	if r.cache == nil {
		return
	}
	g, err := geo.MergePolygons(polygons)
	if err != nil {
		return
	}
	geomJSON, err := geo.ToJSON(g)
	if err != nil {
		return
	}
	lat, lng, _ := geo.Centroid(g)
	if err := r.cache.SaveParcel(&models.CachedParcel{
		Lotplan:     key,
		Lot:         lot,
		Plan:        plan,
		Geometry:    geomJSON,
		CentroidLat: lat,
		CentroidLng: lng,
	}); err != nil {
		log.Printf("Parcel cache write failed for %s: %v", key, err)
	}
}

// attrString pulls a string attribute, falling back when the service
// omits the field or returns a non-string
func attrString(attrs map[string]interface{}, field, fallback string) string {
	if v, ok := attrs[field].(string); ok && v != "" {
		return v
	}
	return fallback
}

// sqlQuote escapes single quotes for ArcGIS where clauses
func sqlQuote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
