package intersect

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotplan-export/internal/arcgis"
	"lotplan-export/internal/geo"
	"lotplan-export/internal/layers"
)

const layerFeature = `{"attributes":{"RISK":"High"},` +
	`"geometry":{"rings":[[[152.2,-27.4],[152.8,-27.4],[152.8,-27.1],[152.2,-27.1],[152.2,-27.4]]]}}`

func testParcel(t *testing.T) *geo.Geometry {
	t.Helper()
	g, err := geo.NewPolygon(geo.Rings{{
		{152.0, -27.5}, {153.0, -27.5}, {153.0, -27.0}, {152.0, -27.0}, {152.0, -27.5},
	}})
	require.NoError(t, err)
	return g
}

func testCatalogue(t *testing.T, urls ...string) *layers.Catalogue {
	t.Helper()
	content := "services:\n"
	for i, u := range urls {
		content += fmt.Sprintf("  - id: layer%d\n    label: Layer %d\n    url: %s\n", i, i, u)
		content += "    fields:\n      include: [RISK]\n    name_template: Risk area\n"
	}
	path := filepath.Join(t.TempDir(), "layers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cat, err := layers.Load(path)
	require.NoError(t, err)
	return cat
}

func TestRunPolygonQuery(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "esriGeometryPolygon", r.PostForm.Get("geometryType"))
		assert.Equal(t, "esriSpatialRelIntersects", r.PostForm.Get("spatialRel"))
		assert.Equal(t, "RISK", r.PostForm.Get("outFields"))
		fmt.Fprintf(w, `{"features":[%s]}`, layerFeature)
	}))
	defer srv.Close()

	ix := NewIntersector(arcgis.NewClient(5*time.Second), testCatalogue(t, srv.URL))
	results, err := ix.Run(context.Background(), testParcel(t), []string{"layer0"})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "layer0", results[0].ID)
	assert.Equal(t, "Layer 0", results[0].Label)
	require.Len(t, results[0].Features, 1)
	assert.Equal(t, "Risk area", results[0].Features[0].Name)
	assert.Equal(t, "High", results[0].Features[0].Attrs["RISK"])
	assert.Equal(t, "Polygon", results[0].Features[0].Geometry.Type)
}

func TestRunFallsBackToEnvelope(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("geometryType") == "esriGeometryPolygon" {
			// Some services reject detailed polygon geometries.
			fmt.Fprint(w, `{"error":{"code":400,"message":"Invalid geometry"}}`)
			return
		}
		assert.Equal(t, "esriGeometryEnvelope", r.PostForm.Get("geometryType"))
		fmt.Fprintf(w, `{"features":[%s]}`, layerFeature)
	}))
	defer srv.Close()

	ix := NewIntersector(arcgis.NewClient(5*time.Second), testCatalogue(t, srv.URL))
	results, err := ix.Run(context.Background(), testParcel(t), []string{"layer0"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Len(t, results[0].Features, 1)
}

func TestRunUpstreamFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"code":500,"message":"Service down"}}`)
	}))
	defer srv.Close()

	ix := NewIntersector(arcgis.NewClient(5*time.Second), testCatalogue(t, srv.URL))
	_, err := ix.Run(context.Background(), testParcel(t), []string{"layer0"})
	require.Error(t, err)

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "layer0", upstream.LayerID)
	assert.Error(t, upstream.PolygonErr)
	assert.Error(t, upstream.EnvelopeErr)
}

func TestRunUnknownLayer(t *testing.T) {
	t.Parallel()

	ix := NewIntersector(arcgis.NewClient(5*time.Second), testCatalogue(t))
	_, err := ix.Run(context.Background(), testParcel(t), []string{"nope"})
	require.Error(t, err)

	var unknown *UnknownLayersError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, []string{"nope"}, unknown.IDs)
}

func TestRunRequiresParcel(t *testing.T) {
	t.Parallel()

	ix := NewIntersector(arcgis.NewClient(5*time.Second), testCatalogue(t))
	_, err := ix.Run(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestRunSkipsFeaturesWithoutRings(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"features":[{"attributes":{"RISK":"Low"}},%s]}`, layerFeature)
	}))
	defer srv.Close()

	ix := NewIntersector(arcgis.NewClient(5*time.Second), testCatalogue(t, srv.URL))
	results, err := ix.Run(context.Background(), testParcel(t), []string{"layer0"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Len(t, results[0].Features, 1)
}
