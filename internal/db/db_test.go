package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotplan-export/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestReopenKeepsCachedParcels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	first, err := New(path)
	require.NoError(t, err)
	require.NoError(t, first.SaveParcel(&models.CachedParcel{
		Lotplan: "2/RP53435", Lot: "2", Plan: "RP53435", Geometry: `{"type":"Polygon","coordinates":[]}`,
	}))
	require.NoError(t, first.Close())

	// Reapplying the schema on an existing cache must not disturb it.
	second, err := New(path)
	require.NoError(t, err)
	t.Cleanup(func() { second.Close() })

	got, err := second.GetParcel("2/RP53435", 0)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestSaveAndGetParcel(t *testing.T) {
	database := newTestDB(t)

	p := &models.CachedParcel{
		Lotplan:     "2/RP53435",
		Lot:         "2",
		Plan:        "RP53435",
		Geometry:    `{"type":"Polygon","coordinates":[[[152,-27],[153,-27],[153,-26],[152,-27]]]}`,
		CentroidLat: -26.75,
		CentroidLng: 152.5,
	}
	require.NoError(t, database.SaveParcel(p))

	got, err := database.GetParcel("2/RP53435", 0)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "2", got.Lot)
	assert.Equal(t, "RP53435", got.Plan)
	assert.Equal(t, p.Geometry, got.Geometry)
	assert.InDelta(t, -26.75, got.CentroidLat, 1e-9)

	missing, err := database.GetParcel("999/RP1", 0)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSaveParcelUpsert(t *testing.T) {
	database := newTestDB(t)

	require.NoError(t, database.SaveParcel(&models.CachedParcel{
		Lotplan: "2/RP53435", Lot: "2", Plan: "RP53435", Geometry: `{"type":"Polygon","coordinates":[]}`,
	}))
	require.NoError(t, database.SaveParcel(&models.CachedParcel{
		Lotplan: "2/RP53435", Lot: "2", Plan: "RP53435", Geometry: `{"type":"MultiPolygon","coordinates":[]}`,
	}))

	got, err := database.GetParcel("2/RP53435", 0)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Contains(t, got.Geometry, "MultiPolygon")

	parcels, err := database.RecentParcels(10)
	require.NoError(t, err)
	assert.Len(t, parcels, 1)
}

func TestGetParcelExpiry(t *testing.T) {
	database := newTestDB(t)

	require.NoError(t, database.SaveParcel(&models.CachedParcel{
		Lotplan: "2/RP53435", Lot: "2", Plan: "RP53435", Geometry: `{"type":"Polygon","coordinates":[]}`,
	}))

	// Back-date the row so the TTL check kicks in
	_, err := database.Exec(`UPDATE parcels SET fetched_at = datetime('now', '-2 days')`)
	require.NoError(t, err)

	got, err := database.GetParcel("2/RP53435", 24*time.Hour)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = database.GetParcel("2/RP53435", 0)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestRecentParcelsOrder(t *testing.T) {
	database := newTestDB(t)

	for _, lp := range []string{"1/RP1", "2/RP1", "3/RP1"} {
		require.NoError(t, database.SaveParcel(&models.CachedParcel{
			Lotplan: lp, Lot: lp[:1], Plan: "RP1", Geometry: `{"type":"Polygon","coordinates":[]}`,
		}))
	}

	parcels, err := database.RecentParcels(2)
	require.NoError(t, err)
	require.Len(t, parcels, 2)
	assert.Equal(t, "3/RP1", parcels[0].Lotplan)
	assert.Equal(t, "2/RP1", parcels[1].Lotplan)
}

func TestRecordIntersection(t *testing.T) {
	database := newTestDB(t)

	require.NoError(t, database.RecordIntersection("2/RP53435", "flood", 4))
	require.NoError(t, database.RecordIntersection("2/RP53435", "vegetation", 0))

	var count int
	require.NoError(t, database.Get(&count, `SELECT COUNT(*) FROM intersections WHERE lotplan = ?`, "2/RP53435"))
	assert.Equal(t, 2, count)
}
