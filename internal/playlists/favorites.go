package playlists

import (
	"context"
	"database/sql"

	dbutil "github.com/llehouerou/pocketwaves/internal/db"
	"github.com/llehouerou/pocketwaves/internal/library"
)

// IsFavorite checks if a track is a favorite.
func (p *Playlists) IsFavorite(ctx context.Context, trackID string) (bool, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM favorites WHERE trackId = ?
	`, p.lib.Codec().ToStableID(trackID)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ToggleFavorite adds a track to favorites if not there, removes it if
// already favorited. Returns the new favorite status (true = now favorited).
func (p *Playlists) ToggleFavorite(ctx context.Context, trackID string) (bool, error) {
	id := p.lib.Codec().ToStableID(trackID)
	var favorite bool
	err := dbutil.WithTx(ctx, p.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM favorites WHERE trackId = ?`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			favorite = false
			return nil
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO favorites (trackId, addedAt) VALUES (?, ?)
		`, id, p.now().UnixMilli()); err != nil {
			return err
		}
		favorite = true
		return nil
	})
	return favorite, err
}

// FavoriteIDs returns the absolute ids of all favorites for fast lookup.
func (p *Playlists) FavoriteIDs(ctx context.Context) (map[string]bool, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT trackId FROM favorites`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	codec := p.lib.Codec()
	favorites := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		favorites[codec.ToAbsolute(id)] = true
	}
	return favorites, rows.Err()
}

// FavoriteTracks returns favorite tracks, most recently added first.
func (p *Playlists) FavoriteTracks(ctx context.Context) ([]library.Track, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT trackId FROM favorites ORDER BY addedAt DESC, rowid DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return p.lib.TracksByIDs(ctx, ids)
}
