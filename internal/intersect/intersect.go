// Package intersect queries configured spatial layers for features
// overlapping a parcel geometry.
package intersect

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"

	"lotplan-export/internal/arcgis"
	"lotplan-export/internal/geo"
	"lotplan-export/internal/layers"
	"lotplan-export/internal/models"
)

// UnknownLayersError reports layer ids absent from the catalogue
type UnknownLayersError struct {
	IDs []string
}

func (e *UnknownLayersError) Error() string {
	return fmt.Sprintf("unknown layer ids: %s", strings.Join(e.IDs, ", "))
}

// UpstreamError reports a layer whose spatial queries failed both as a
// polygon and as an envelope
type UpstreamError struct {
	LayerID     string
	PolygonErr  error
	EnvelopeErr error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("layer %q query failed. Polygon error: %v. Envelope error: %v",
		e.LayerID, e.PolygonErr, e.EnvelopeErr)
}

// Intersector runs spatial intersection queries against the catalogue
type Intersector struct {
	client    *arcgis.Client
	catalogue *layers.Catalogue
}

// NewIntersector creates an intersector over a layer catalogue
func NewIntersector(client *arcgis.Client, catalogue *layers.Catalogue) *Intersector {
	return &Intersector{client: client, catalogue: catalogue}
}

// Run intersects the parcel geometry with each requested layer. Each
// layer is queried with the full polygon first; if that fails the query
// is retried with the parcel's bounding envelope, which some services
// accept when a detailed polygon is rejected.
func (ix *Intersector) Run(ctx context.Context, parcel *geo.Geometry, layerIDs []string) ([]models.LayerResult, error) {
	if parcel == nil {
		return nil, fmt.Errorf("parcel geometry is required")
	}

	var missing []string
	requested := make([]layers.Layer, 0, len(layerIDs))
	for _, id := range layerIDs {
		layer, ok := ix.catalogue.Get(id)
		if !ok {
			missing = append(missing, id)
			continue
		}
		requested = append(requested, layer)
	}
	if len(missing) > 0 {
		return nil, &UnknownLayersError{IDs: missing}
	}

	esriPoly, err := geo.ToEsriPolygon(parcel)
	if err != nil {
		return nil, fmt.Errorf("converting parcel geometry: %w", err)
	}
	esriEnv, err := geo.ToEsriEnvelope(parcel)
	if err != nil {
		return nil, fmt.Errorf("converting parcel envelope: %w", err)
	}

	polyJSON, err := json.Marshal(esriPoly)
	if err != nil {
		return nil, fmt.Errorf("encoding parcel geometry: %w", err)
	}
	envJSON, err := json.Marshal(esriEnv)
	if err != nil {
		return nil, fmt.Errorf("encoding parcel envelope: %w", err)
	}

	results := make([]models.LayerResult, 0, len(requested))
	for _, layer := range requested {
		feats, err := ix.queryLayer(ctx, layer, string(polyJSON), string(envJSON))
		if err != nil {
			return nil, err
		}

		results = append(results, models.LayerResult{
			ID:       layer.ID,
			Label:    layer.Label,
			Features: toLayerFeatures(layer, feats),
			Style:    layer.Style,
		})
	}

	return results, nil
}

func (ix *Intersector) queryLayer(ctx context.Context, layer layers.Layer, polyJSON, envJSON string) ([]arcgis.Feature, error) {
	common := url.Values{}
	common.Set("outFields", layer.OutFields())
	common.Set("returnGeometry", "true")
	common.Set("outSR", strconv.Itoa(geo.WGS84))
	common.Set("returnExceededLimitFeatures", "true")
	common.Set("maxRecordCountFactor", "2")
	common.Set("spatialRel", "esriSpatialRelIntersects")

	polyParams := url.Values{}
	for k, vs := range common {
		polyParams[k] = vs
	}
	polyParams.Set("geometry", polyJSON)
	polyParams.Set("geometryType", "esriGeometryPolygon")

	feats, polyErr := ix.client.QueryAll(ctx, layer.URL, polyParams)
	if polyErr == nil {
		return feats, nil
	}
	log.Printf("Polygon query failed for layer %s, retrying with envelope: %v", layer.ID, polyErr)

	envParams := url.Values{}
	for k, vs := range common {
		envParams[k] = vs
	}
	envParams.Set("geometry", envJSON)
	envParams.Set("geometryType", "esriGeometryEnvelope")

	feats, envErr := ix.client.QueryAll(ctx, layer.URL, envParams)
	if envErr == nil {
		return feats, nil
	}

	return nil, &UpstreamError{LayerID: layer.ID, PolygonErr: polyErr, EnvelopeErr: envErr}
}

// toLayerFeatures converts Esri features into the wire shape, skipping
// anything without usable polygon rings
func toLayerFeatures(layer layers.Layer, feats []arcgis.Feature) []models.LayerFeature {
	out := make([]models.LayerFeature, 0, len(feats))
	for _, f := range feats {
		if f.Geometry == nil || len(f.Geometry.Rings) == 0 {
			continue
		}
		g, err := geo.RingsToGeometry(f.Geometry.Rings)
		if err != nil {
			continue
		}
		attrs := f.Attributes
		if attrs == nil {
			attrs = map[string]interface{}{}
		}
		out = append(out, models.LayerFeature{
			Geometry: g,
			Attrs:    attrs,
			Name:     layer.DisplayName(),
		})
	}
	return out
}
