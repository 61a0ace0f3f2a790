// Package export serialises a resolved parcel and its intersected layer
// features as GeoJSON or KMZ downloads.
package export

import (
	"fmt"

	"lotplan-export/internal/geo"
	"lotplan-export/internal/models"
)

// GeoJSON assembles a FeatureCollection holding the parcel outline plus
// every intersected feature, tagged with its source layer
func GeoJSON(parcel *geo.Geometry, layerResults []models.LayerResult) (*geo.FeatureCollection, error) {
	if parcel == nil {
		return nil, fmt.Errorf("parcel geometry is required")
	}

	fc := geo.NewFeatureCollection()
	fc.Features = append(fc.Features, geo.Feature{
		Type:     "Feature",
		Geometry: parcel,
		Properties: map[string]interface{}{
			"kind": "parcel",
			"name": "Parcel",
		},
	})

	for _, layer := range layerResults {
		for _, f := range layer.Features {
			props := make(map[string]interface{}, len(f.Attrs)+3)
			for k, v := range f.Attrs {
				props[k] = v
			}
			props["name"] = f.Name
			props["layer_id"] = layer.ID
			props["layer_label"] = layer.Label

			fc.Features = append(fc.Features, geo.Feature{
				Type:       "Feature",
				Geometry:   f.Geometry,
				Properties: props,
			})
		}
	}

	return fc, nil
}
