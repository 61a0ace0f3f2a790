package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lotplan-export/internal/models"
)

// GetParcel returns a cached parcel by canonical lotplan, or nil when it
// is absent or older than maxAge (maxAge <= 0 disables the age check).
func (db *DB) GetParcel(lotplan string, maxAge time.Duration) (*models.CachedParcel, error) {
	var p models.CachedParcel
	err := db.Get(&p, `
		SELECT id, lotplan, lot, plan, geometry, centroid_lat, centroid_lng, fetched_at
		FROM parcels
		WHERE lotplan = ?`, lotplan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying parcel %s: %w", lotplan, err)
	}

	if maxAge > 0 && time.Since(p.FetchedAt) > maxAge {
		return nil, nil
	}

	return &p, nil
}

// SaveParcel inserts or refreshes a resolved parcel
func (db *DB) SaveParcel(p *models.CachedParcel) error {
	_, err := db.NamedExec(`
		INSERT INTO parcels (lotplan, lot, plan, geometry, centroid_lat, centroid_lng, fetched_at)
		VALUES (:lotplan, :lot, :plan, :geometry, :centroid_lat, :centroid_lng, CURRENT_TIMESTAMP)
		ON CONFLICT(lotplan) DO UPDATE SET
			lot = excluded.lot,
			plan = excluded.plan,
			geometry = excluded.geometry,
			centroid_lat = excluded.centroid_lat,
			centroid_lng = excluded.centroid_lng,
			fetched_at = CURRENT_TIMESTAMP`, p)
	if err != nil {
		return fmt.Errorf("saving parcel %s: %w", p.Lotplan, err)
	}
	return nil
}

// RecentParcels lists the most recently resolved parcels
func (db *DB) RecentParcels(limit int) ([]models.CachedParcel, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	parcels := []models.CachedParcel{}
	err := db.Select(&parcels, `
		SELECT id, lotplan, lot, plan, geometry, centroid_lat, centroid_lng, fetched_at
		FROM parcels
		ORDER BY fetched_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing parcels: %w", err)
	}

	return parcels, nil
}

// RecordIntersection notes that a layer was queried for a parcel
func (db *DB) RecordIntersection(lotplan, layerID string, featureCount int) error {
	_, err := db.Exec(`
		INSERT INTO intersections (lotplan, layer_id, feature_count)
		VALUES (?, ?, ?)`, lotplan, layerID, featureCount)
	if err != nil {
		return fmt.Errorf("recording intersection %s/%s: %w", lotplan, layerID, err)
	}
	return nil
}
