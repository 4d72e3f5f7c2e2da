package playlists

import (
	"context"
	"database/sql"

	dbutil "github.com/llehouerou/pocketwaves/internal/db"
	"github.com/llehouerou/pocketwaves/internal/library"
)

// Tracks returns the tracks of a playlist in order.
func (p *Playlists) Tracks(ctx context.Context, playlistID string) ([]library.Track, error) {
	if _, err := p.Get(ctx, playlistID); err != nil {
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT trackId FROM playlist_tracks
		WHERE playlistId = ?
		ORDER BY orderIndex, trackId
	`, playlistID)
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

// TrackCount returns the number of tracks in a playlist.
func (p *Playlists) TrackCount(ctx context.Context, playlistID string) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM playlist_tracks WHERE playlistId = ?
	`, playlistID).Scan(&count)
	return count, err
}

// AddTracks appends tracks to a playlist. Tracks already in the playlist and
// ids unknown to the library are skipped. Returns how many were added.
func (p *Playlists) AddTracks(ctx context.Context, playlistID string, trackIDs []string) (int, error) {
	if _, err := p.Get(ctx, playlistID); err != nil {
		return 0, err
	}
	if len(trackIDs) == 0 {
		return 0, nil
	}

	codec := p.lib.Codec()
	var added int
	err := dbutil.WithTx(ctx, p.db, func(tx *sql.Tx) error {
		added = 0
		// Get current max position
		var maxPos sql.NullInt64
		if err := tx.QueryRowContext(ctx, `
			SELECT MAX(orderIndex) FROM playlist_tracks WHERE playlistId = ?
		`, playlistID).Scan(&maxPos); err != nil {
			return err
		}
		next := 0
		if maxPos.Valid {
			next = int(maxPos.Int64) + 1
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO playlist_tracks (playlistId, trackId, orderIndex)
			SELECT ?, id, ? FROM tracks WHERE id = ?
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, id := range trackIDs {
			res, err := stmt.ExecContext(ctx, playlistID, next, codec.ToStableID(id))
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n > 0 {
				next++
				added++
			}
		}
		return nil
	})
	return added, err
}

// RemoveTrack removes a track from a playlist. Remaining tracks keep their
// relative order.
func (p *Playlists) RemoveTrack(ctx context.Context, playlistID, trackID string) error {
	_, err := p.db.ExecContext(ctx, `
		DELETE FROM playlist_tracks WHERE playlistId = ? AND trackId = ?
	`, playlistID, p.lib.Codec().ToStableID(trackID))
	return err
}

// Contains reports whether the track is in the playlist.
func (p *Playlists) Contains(ctx context.Context, playlistID, trackID string) (bool, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM playlist_tracks WHERE playlistId = ? AND trackId = ?
	`, playlistID, p.lib.Codec().ToStableID(trackID)).Scan(&count)
	return count > 0, err
}
