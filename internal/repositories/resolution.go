// package repositories implements SQLite-backed persistence for resolution
// results.
//
// The cache is an optimization only: the external work queue remains the
// source of truth, and a cold cache merely means providers get called again.
package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/bankbunk/apple/internal/models"
)

const resolutionSchema = `
CREATE TABLE IF NOT EXISTS resolutions (
	track_id       TEXT PRIMARY KEY,
	isrc           TEXT NOT NULL,
	url            TEXT NOT NULL DEFAULT '',
	published_date TEXT NOT NULL DEFAULT '',
	genres         TEXT NOT NULL DEFAULT '[]',
	updated_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_resolutions_isrc ON resolutions(isrc);
`

// ResolutionRepository caches per-track resolution outcomes, keyed by
// Spotify track ID. An empty genre list is a cached "not found" and is
// stored so re-runs do not hammer providers for tracks known to be missing.
type ResolutionRepository struct {
	db *sql.DB
}

// NewResolutionRepository creates the repository and ensures its schema.
func NewResolutionRepository(db *sql.DB) (*ResolutionRepository, error) {
	if _, err := db.Exec(resolutionSchema); err != nil {
		return nil, fmt.Errorf("failed to create resolutions schema: %w", err)
	}
	return &ResolutionRepository{db: db}, nil
}

// Get retrieves a cached resolution by track ID. A cache miss returns
// (nil, nil).
func (r *ResolutionRepository) Get(trackID string) (*models.CachedResolution, error) {
	query := `
		SELECT track_id, isrc, url, published_date, genres, updated_at
		FROM resolutions
		WHERE track_id = ?
	`

	var (
		cached models.CachedResolution
		genres string
	)

	err := r.db.QueryRow(query, trackID).Scan(
		&cached.TrackID,
		&cached.ISRC,
		&cached.URL,
		&cached.PublishedDate,
		&genres,
		&cached.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan resolution: %w", err)
	}

	cached.Genres = models.DecodeGenres(genres)
	return &cached, nil
}

// Put inserts or replaces the cached resolution for a track.
func (r *ResolutionRepository) Put(cached models.CachedResolution) error {
	if cached.UpdatedAt == 0 {
		cached.UpdatedAt = time.Now().Unix()
	}

	query := `
		INSERT INTO resolutions (track_id, isrc, url, published_date, genres, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(track_id) DO UPDATE SET
			isrc = excluded.isrc,
			url = excluded.url,
			published_date = excluded.published_date,
			genres = excluded.genres,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Exec(query,
		cached.TrackID,
		cached.ISRC,
		cached.URL,
		cached.PublishedDate,
		models.EncodeGenres(cached.Genres),
		cached.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert resolution: %w", err)
	}

	return nil
}

// Stats summarizes cache contents.
type Stats struct {
	Total    int
	Resolved int // rows with at least one genre
	Misses   int // rows recording a definitive "not found"
}

// Stats counts cached rows, split by whether they carry genres.
func (r *ResolutionRepository) Stats() (*Stats, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN genres != '[]' THEN 1 ELSE 0 END), 0)
		FROM resolutions
	`

	var stats Stats
	if err := r.db.QueryRow(query).Scan(&stats.Total, &stats.Resolved); err != nil {
		return nil, fmt.Errorf("failed to count resolutions: %w", err)
	}

	stats.Misses = stats.Total - stats.Resolved
	return &stats, nil
}

// Clear removes every cached resolution and reports how many were dropped.
func (r *ResolutionRepository) Clear() (int64, error) {
	result, err := r.db.Exec(`DELETE FROM resolutions`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear resolutions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}
