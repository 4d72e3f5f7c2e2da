package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/llehouerou/pocketwaves/internal/db"
	"github.com/llehouerou/pocketwaves/internal/lyrics"
)

// UpsertTracks inserts or replaces tracks keyed by their stable id, in a
// single transaction.
func (l *Library) UpsertTracks(ctx context.Context, tracks []Track) error {
	if len(tracks) == 0 {
		return nil
	}
	return db.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO tracks (id, title, artist, album, uri, artwork, duration, lrc, trackNumber)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				artist = excluded.artist,
				album = excluded.album,
				uri = excluded.uri,
				artwork = excluded.artwork,
				duration = excluded.duration,
				lrc = excluded.lrc,
				trackNumber = excluded.trackNumber
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i := range tracks {
			t := &tracks[i]
			artwork := ""
			if t.Artwork != "" {
				artwork = l.codec.ToStableID(t.Artwork)
			}
			if _, err := stmt.ExecContext(ctx,
				l.codec.ToStableID(t.ID),
				t.Title,
				t.Artist,
				t.Album,
				l.codec.ToStableID(t.URI),
				db.NullString(artwork),
				db.NullInt64(t.Duration.Milliseconds()),
				db.NullString(t.LRC),
				db.NullInt64(int64(t.TrackNumber)),
			); err != nil {
				return fmt.Errorf("upsert %s: %w", t.ID, err)
			}
		}
		return nil
	})
}

// DeleteTrack removes a track. Playlist memberships, history and favorites
// referencing it cascade.
func (l *Library) DeleteTrack(ctx context.Context, id string) error {
	_, err := l.db.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, l.codec.ToStableID(id))
	return err
}

// DeleteTracks removes tracks in a single transaction and returns how many
// rows were deleted.
func (l *Library) DeleteTracks(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var deleted int
	err := db.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		deleted = 0
		stmt, err := tx.PrepareContext(ctx, `DELETE FROM tracks WHERE id = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, id := range ids {
			res, err := stmt.ExecContext(ctx, l.codec.ToStableID(id))
			if err != nil {
				return err
			}
			n, _ := res.RowsAffected()
			deleted += int(n)
		}
		return nil
	})
	return deleted, err
}

// DeleteTrackAndFile removes the track and its audio file. A lyrics sidecar next
// to the file is removed too. A file that is already gone is not an error.
func (l *Library) DeleteTrackAndFile(ctx context.Context, id string) error {
	t, err := l.TrackByID(ctx, id)
	if err != nil {
		return err
	}

	if isLocalFile(t.URI) {
		if err := os.Remove(t.URI); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", t.URI, err)
		}
		if err := os.Remove(lyrics.SidecarPath(t.URI)); err != nil && !errors.Is(err, os.ErrNotExist) {
			l.log.Warn("remove lyrics sidecar", zap.String("path", t.URI), zap.Error(err))
		}
	}
	return l.DeleteTrack(ctx, t.ID)
}
