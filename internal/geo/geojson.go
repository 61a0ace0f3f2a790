// Package geo converts between GeoJSON geometries and the Esri JSON
// shapes used by ArcGIS REST services. All coordinates are
// longitude/latitude in WGS84 (wkid 4326).
package geo

import (
	"encoding/json"
	"fmt"
)

// Geometry is a GeoJSON geometry with coordinates kept raw so that
// Polygon and MultiPolygon payloads pass through without loss.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Feature is a GeoJSON feature
type Feature struct {
	Type       string                 `json:"type"`
	Geometry   *Geometry              `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

// FeatureCollection is a GeoJSON feature collection
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// NewFeatureCollection creates an empty feature collection
func NewFeatureCollection() *FeatureCollection {
	return &FeatureCollection{Type: "FeatureCollection", Features: []Feature{}}
}

// A ring is a closed sequence of [lng, lat] positions. Rings is one
// polygon: exterior ring first, holes after.
type Rings = [][][]float64

// NewPolygon builds a GeoJSON Polygon geometry from rings
func NewPolygon(rings Rings) (*Geometry, error) {
	coords, err := json.Marshal(rings)
	if err != nil {
		return nil, fmt.Errorf("encoding polygon coordinates: %w", err)
	}
	return &Geometry{Type: "Polygon", Coordinates: coords}, nil
}

// NewMultiPolygon builds a GeoJSON MultiPolygon geometry from a list of
// per-polygon ring sets
func NewMultiPolygon(polygons []Rings) (*Geometry, error) {
	coords, err := json.Marshal(polygons)
	if err != nil {
		return nil, fmt.Errorf("encoding multipolygon coordinates: %w", err)
	}
	return &Geometry{Type: "MultiPolygon", Coordinates: coords}, nil
}

// MergePolygons combines per-parcel ring sets into a single geometry:
// a Polygon for one set, a MultiPolygon otherwise. Shared boundaries are
// not dissolved; the cadastre returns disjoint parcels.
func MergePolygons(polygons []Rings) (*Geometry, error) {
	switch len(polygons) {
	case 0:
		return nil, fmt.Errorf("no polygons to merge")
	case 1:
		return NewPolygon(polygons[0])
	default:
		return NewMultiPolygon(polygons)
	}
}

// Polygons returns the ring sets of a Polygon or MultiPolygon geometry.
func Polygons(g *Geometry) ([]Rings, error) {
	if g == nil {
		return nil, fmt.Errorf("nil geometry")
	}

	switch g.Type {
	case "Polygon":
		var rings Rings
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
			return nil, fmt.Errorf("parsing polygon coordinates: %w", err)
		}
		return []Rings{rings}, nil

	case "MultiPolygon":
		var polys []Rings
		if err := json.Unmarshal(g.Coordinates, &polys); err != nil {
			return nil, fmt.Errorf("parsing multipolygon coordinates: %w", err)
		}
		return polys, nil

	default:
		return nil, fmt.Errorf("unsupported geometry type: %s", g.Type)
	}
}

// Centroid calculates the centroid of a polygon or multipolygon geometry
// as the vertex average of the first exterior ring
func Centroid(g *Geometry) (lat, lng float64, err error) {
	polys, err := Polygons(g)
	if err != nil {
		return 0, 0, err
	}
	if len(polys) == 0 || len(polys[0]) == 0 {
		return 0, 0, fmt.Errorf("empty geometry")
	}

	var sumLng, sumLat float64
	var count int
	for _, pt := range polys[0][0] {
		if len(pt) >= 2 {
			sumLng += pt[0]
			sumLat += pt[1]
			count++
		}
	}
	if count == 0 {
		return 0, 0, fmt.Errorf("no valid coordinates found")
	}

	return sumLat / float64(count), sumLng / float64(count), nil
}

// ToJSON converts a geometry to its JSON string representation
func ToJSON(g *Geometry) (string, error) {
	if g == nil {
		return "", fmt.Errorf("nil geometry")
	}
	data, err := json.Marshal(g)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FromJSON parses a geometry from its JSON string representation
func FromJSON(s string) (*Geometry, error) {
	var g Geometry
	if err := json.Unmarshal([]byte(s), &g); err != nil {
		return nil, fmt.Errorf("parsing geometry: %w", err)
	}
	if g.Type == "" {
		return nil, fmt.Errorf("geometry has no type")
	}
	return &g, nil
}
