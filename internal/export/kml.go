package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"math"
	"sort"
	"strings"

	"lotplan-export/internal/geo"
	"lotplan-export/internal/models"
)

const kmlNamespace = "http://www.opengis.net/kml/2.2"

// KML document structure. Only the subset needed for polygon exports.
type kmlRoot struct {
	XMLName  xml.Name    `xml:"kml"`
	Xmlns    string      `xml:"xmlns,attr"`
	Document kmlDocument `xml:"Document"`
}

type kmlDocument struct {
	Name    string      `xml:"name,omitempty"`
	Folders []kmlFolder `xml:"Folder"`
}

type kmlFolder struct {
	Name       string         `xml:"name"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlPlacemark struct {
	Name        string      `xml:"name"`
	Description string      `xml:"description,omitempty"`
	Style       kmlStyle    `xml:"Style"`
	Polygon     *kmlPolygon `xml:"Polygon,omitempty"`
}

type kmlStyle struct {
	LineStyle kmlLineStyle `xml:"LineStyle"`
	PolyStyle kmlPolyStyle `xml:"PolyStyle"`
}

type kmlLineStyle struct {
	Width int `xml:"width"`
}

type kmlPolyStyle struct {
	Color string `xml:"color,omitempty"`
	Fill  int    `xml:"fill"`
}

type kmlPolygon struct {
	Outer kmlBoundary   `xml:"outerBoundaryIs"`
	Inner []kmlBoundary `xml:"innerBoundaryIs,omitempty"`
}

type kmlBoundary struct {
	LinearRing kmlLinearRing `xml:"LinearRing"`
}

type kmlLinearRing struct {
	Coordinates string `xml:"coordinates"`
}

// KMZ renders the parcel and layer features as a KML document and wraps
// it in a KMZ archive: a "Parcel" folder with an unfilled outline, then
// one folder per layer with attribute popups.
func KMZ(parcel *geo.Geometry, layerResults []models.LayerResult) ([]byte, error) {
	if parcel == nil {
		return nil, fmt.Errorf("parcel geometry is required")
	}

	doc := kmlDocument{Name: "Lot/Plan export"}

	parcelFolder := kmlFolder{Name: "Parcel"}
	parcelPolys, err := geo.Polygons(parcel)
	if err != nil {
		return nil, fmt.Errorf("reading parcel geometry: %w", err)
	}
	for i, rings := range parcelPolys {
		poly := ringsToKML(rings)
		if poly == nil {
			continue
		}
		parcelFolder.Placemarks = append(parcelFolder.Placemarks, kmlPlacemark{
			Name: fmt.Sprintf("Parcel %d", i+1),
			Style: kmlStyle{
				LineStyle: kmlLineStyle{Width: 3},
				PolyStyle: kmlPolyStyle{Fill: 0},
			},
			Polygon: poly,
		})
	}
	doc.Folders = append(doc.Folders, parcelFolder)

	for _, layer := range layerResults {
		folder := kmlFolder{Name: folderName(layer)}
		style := featureStyle(layer)

		for _, f := range layer.Features {
			polys, err := geo.Polygons(f.Geometry)
			if err != nil {
				continue
			}
			desc := describeAttrs(f.Attrs)
			name := f.Name
			if name == "" {
				name = folder.Name
			}
			for _, rings := range polys {
				poly := ringsToKML(rings)
				if poly == nil {
					continue
				}
				folder.Placemarks = append(folder.Placemarks, kmlPlacemark{
					Name:        name,
					Description: desc,
					Style:       style,
					Polygon:     poly,
				})
			}
		}

		doc.Folders = append(doc.Folders, folder)
	}

	kmlBytes, err := xml.MarshalIndent(kmlRoot{Xmlns: kmlNamespace, Document: doc}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding KML: %w", err)
	}

	return zipKMZ(append([]byte(xml.Header), kmlBytes...))
}

func folderName(layer models.LayerResult) string {
	if layer.Label != "" {
		return layer.Label
	}
	if layer.ID != "" {
		return layer.ID
	}
	return "Layer"
}

// featureStyle maps the layer's configured opacity and line width onto
// KML styling. KML colors are aabbggrr; opacity becomes the alpha
// channel over a white fill.
func featureStyle(layer models.LayerResult) kmlStyle {
	opacity := layer.Style.PolyOpacity
	if opacity <= 0 {
		opacity = 0.35
	}
	if opacity > 1 {
		opacity = 1
	}
	lineWidth := layer.Style.LineWidth
	if lineWidth <= 0 {
		lineWidth = 1
	}

	return kmlStyle{
		LineStyle: kmlLineStyle{Width: lineWidth},
		PolyStyle: kmlPolyStyle{
			Color: fmt.Sprintf("%02xffffff", int(math.Round(opacity*255))),
			Fill:  1,
		},
	}
}

// describeAttrs renders non-empty attributes as an HTML popup body with
// stable key ordering
func describeAttrs(attrs map[string]interface{}) string {
	keys := make([]string, 0, len(attrs))
	for k, v := range attrs {
		if v == nil || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("<b>%s</b>: %v", k, attrs[k]))
	}
	return strings.Join(lines, "<br/>")
}

// ringsToKML converts one polygon's rings into a KML polygon: first ring
// exterior, rest holes
func ringsToKML(rings geo.Rings) *kmlPolygon {
	if len(rings) == 0 || len(rings[0]) == 0 {
		return nil
	}

	poly := &kmlPolygon{
		Outer: kmlBoundary{LinearRing: kmlLinearRing{Coordinates: ringCoords(rings[0])}},
	}
	for _, hole := range rings[1:] {
		if len(hole) == 0 {
			continue
		}
		poly.Inner = append(poly.Inner, kmlBoundary{
			LinearRing: kmlLinearRing{Coordinates: ringCoords(hole)},
		})
	}
	return poly
}

// ringCoords formats a ring as KML "lng,lat,0" tuples
func ringCoords(ring [][]float64) string {
	var b strings.Builder
	for i, pt := range ring {
		if len(pt) < 2 {
			continue
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%g,%g,0", pt[0], pt[1])
	}
	return b.String()
}

// zipKMZ wraps a KML document in the standard KMZ container
func zipKMZ(kmlBytes []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := zw.Create("doc.kml")
	if err != nil {
		return nil, fmt.Errorf("creating doc.kml: %w", err)
	}
	if _, err := w.Write(kmlBytes); err != nil {
		return nil, fmt.Errorf("writing doc.kml: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing archive: %w", err)
	}

	return buf.Bytes(), nil
}
