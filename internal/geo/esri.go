package geo

import (
	"fmt"
	"math"
)

// WGS84 is the spatial reference used for every query and response.
const WGS84 = 4326

// SpatialReference identifies a coordinate system by well-known ID
type SpatialReference struct {
	WKID int `json:"wkid"`
}

// EsriPolygon is the Esri JSON polygon shape ArcGIS expects as a query
// geometry
type EsriPolygon struct {
	Rings            Rings            `json:"rings"`
	SpatialReference SpatialReference `json:"spatialReference"`
}

// EsriEnvelope is an axis-aligned bounding box in Esri JSON form
type EsriEnvelope struct {
	XMin             float64          `json:"xmin"`
	YMin             float64          `json:"ymin"`
	XMax             float64          `json:"xmax"`
	YMax             float64          `json:"ymax"`
	SpatialReference SpatialReference `json:"spatialReference"`
}

// RingsToGeometry converts Esri rings into a GeoJSON Polygon: first ring
// is the exterior, the rest are holes. Degenerate rings (fewer than 4
// positions, so not closed) are skipped.
func RingsToGeometry(rings Rings) (*Geometry, error) {
	cleaned := make(Rings, 0, len(rings))
	for _, ring := range rings {
		if len(ring) < 4 {
			continue
		}
		cleaned = append(cleaned, ring)
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("no usable rings")
	}
	return NewPolygon(cleaned)
}

// ToEsriPolygon converts a GeoJSON Polygon/MultiPolygon into the Esri
// polygon shape, flattening every ring into one rings array
func ToEsriPolygon(g *Geometry) (*EsriPolygon, error) {
	polys, err := Polygons(g)
	if err != nil {
		return nil, err
	}

	out := Rings{}
	for _, rings := range polys {
		for _, ring := range rings {
			if len(ring) < 4 {
				continue
			}
			out = append(out, ring)
		}
	}

	return &EsriPolygon{
		Rings:            out,
		SpatialReference: SpatialReference{WKID: WGS84},
	}, nil
}

// ToEsriEnvelope converts a GeoJSON Polygon/MultiPolygon into its Esri
// bounding box. A geometry with no coordinates yields a zero envelope.
func ToEsriEnvelope(g *Geometry) (*EsriEnvelope, error) {
	polys, err := Polygons(g)
	if err != nil {
		return nil, err
	}

	xmin, ymin := math.Inf(1), math.Inf(1)
	xmax, ymax := math.Inf(-1), math.Inf(-1)
	found := false
	for _, rings := range polys {
		for _, ring := range rings {
			for _, pt := range ring {
				if len(pt) < 2 {
					continue
				}
				found = true
				xmin = math.Min(xmin, pt[0])
				xmax = math.Max(xmax, pt[0])
				ymin = math.Min(ymin, pt[1])
				ymax = math.Max(ymax, pt[1])
			}
		}
	}
	if !found {
		return &EsriEnvelope{SpatialReference: SpatialReference{WKID: WGS84}}, nil
	}

	return &EsriEnvelope{
		XMin: xmin, YMin: ymin, XMax: xmax, YMax: ymax,
		SpatialReference: SpatialReference{WKID: WGS84},
	}, nil
}
