package geo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(minX, minY, maxX, maxY float64) [][]float64 {
	return [][]float64{
		{minX, minY},
		{maxX, minY},
		{maxX, maxY},
		{minX, maxY},
		{minX, minY},
	}
}

func TestRingsToGeometry(t *testing.T) {
	t.Parallel()

	outer := square(152.0, -27.5, 153.0, -27.0)
	hole := square(152.4, -27.3, 152.6, -27.2)

	g, err := RingsToGeometry(Rings{outer, hole})
	require.NoError(t, err)
	assert.Equal(t, "Polygon", g.Type)

	polys, err := Polygons(g)
	require.NoError(t, err)
	require.Len(t, polys, 1)
	require.Len(t, polys[0], 2)
	assert.Equal(t, outer, polys[0][0])
	assert.Equal(t, hole, polys[0][1])
}

func TestRingsToGeometrySkipsDegenerateRings(t *testing.T) {
	t.Parallel()

	outer := square(152.0, -27.5, 153.0, -27.0)
	degenerate := [][]float64{{152.0, -27.0}, {152.1, -27.0}}

	g, err := RingsToGeometry(Rings{outer, degenerate})
	require.NoError(t, err)

	polys, err := Polygons(g)
	require.NoError(t, err)
	require.Len(t, polys[0], 1)

	_, err = RingsToGeometry(Rings{degenerate})
	assert.Error(t, err)
}

func TestMergePolygons(t *testing.T) {
	t.Parallel()

	a := Rings{square(152.0, -27.5, 153.0, -27.0)}
	b := Rings{square(150.0, -26.5, 151.0, -26.0)}

	single, err := MergePolygons([]Rings{a})
	require.NoError(t, err)
	assert.Equal(t, "Polygon", single.Type)

	multi, err := MergePolygons([]Rings{a, b})
	require.NoError(t, err)
	assert.Equal(t, "MultiPolygon", multi.Type)

	polys, err := Polygons(multi)
	require.NoError(t, err)
	assert.Len(t, polys, 2)

	_, err = MergePolygons(nil)
	assert.Error(t, err)
}

func TestCentroid(t *testing.T) {
	t.Parallel()

	g, err := NewPolygon(Rings{square(152.0, -28.0, 154.0, -26.0)})
	require.NoError(t, err)

	lat, lng, err := Centroid(g)
	require.NoError(t, err)
	// Vertex average: closing point repeats the first corner.
	assert.InDelta(t, -27.2, lat, 0.01)
	assert.InDelta(t, 152.8, lng, 0.01)
}

func TestCentroidUnsupportedType(t *testing.T) {
	t.Parallel()

	_, _, err := Centroid(&Geometry{Type: "Point", Coordinates: json.RawMessage(`[152.0, -27.0]`)})
	assert.Error(t, err)

	_, _, err = Centroid(nil)
	assert.Error(t, err)
}

func TestToEsriPolygon(t *testing.T) {
	t.Parallel()

	a := Rings{square(152.0, -27.5, 153.0, -27.0)}
	b := Rings{square(150.0, -26.5, 151.0, -26.0)}
	g, err := NewMultiPolygon([]Rings{a, b})
	require.NoError(t, err)

	esri, err := ToEsriPolygon(g)
	require.NoError(t, err)
	assert.Equal(t, WGS84, esri.SpatialReference.WKID)
	assert.Len(t, esri.Rings, 2)
}

func TestToEsriEnvelope(t *testing.T) {
	t.Parallel()

	g, err := NewPolygon(Rings{square(152.0, -27.5, 153.0, -27.0)})
	require.NoError(t, err)

	env, err := ToEsriEnvelope(g)
	require.NoError(t, err)
	assert.Equal(t, 152.0, env.XMin)
	assert.Equal(t, -27.5, env.YMin)
	assert.Equal(t, 153.0, env.XMax)
	assert.Equal(t, -27.0, env.YMax)
	assert.Equal(t, WGS84, env.SpatialReference.WKID)
}

func TestToEsriEnvelopeEmptyGeometry(t *testing.T) {
	t.Parallel()

	g, err := NewPolygon(Rings{})
	require.NoError(t, err)

	env, err := ToEsriEnvelope(g)
	require.NoError(t, err)
	assert.Zero(t, env.XMin)
	assert.Zero(t, env.YMax)
}

func TestJSONRoundTrip(t *testing.T) {
	t.Parallel()

	g, err := NewPolygon(Rings{square(152.0, -27.5, 153.0, -27.0)})
	require.NoError(t, err)

	s, err := ToJSON(g)
	require.NoError(t, err)

	back, err := FromJSON(s)
	require.NoError(t, err)
	assert.Equal(t, g.Type, back.Type)
	assert.JSONEq(t, string(g.Coordinates), string(back.Coordinates))

	_, err = FromJSON("{}")
	assert.Error(t, err)
}
