package library

import (
	"context"
	"database/sql"
	"time"

	"github.com/llehouerou/pocketwaves/internal/db"
)

// HistoryLimit is the number of distinct tracks kept in playback history.
const HistoryLimit = 200

type HistoryEntry struct {
	Track    Track
	PlayedAt time.Time
}

// RecordHistory marks a track as played now. Replaying a track moves it to
// the front. Only the most recent HistoryLimit tracks are kept.
func (l *Library) RecordHistory(ctx context.Context, trackID string) error {
	playedAt := l.now().UnixMilli()
	return db.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO playback_history (trackId, playedAt) VALUES (?, ?)
			ON CONFLICT(trackId) DO UPDATE SET playedAt = excluded.playedAt
		`, l.codec.ToStableID(trackID), playedAt); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			DELETE FROM playback_history WHERE trackId NOT IN (
				SELECT trackId FROM playback_history
				ORDER BY playedAt DESC, rowid DESC
				LIMIT ?
			)
		`, HistoryLimit)
		return err
	})
}

// RecentlyPlayed returns up to limit history entries, most recent first.
// A non-positive limit returns the whole history.
func (l *Library) RecentlyPlayed(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = HistoryLimit
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT t.id, t.title, t.artist, t.album, t.uri, t.artwork, t.duration, t.lrc, t.trackNumber, h.playedAt
		FROM playback_history h
		JOIN tracks t ON t.id = h.trackId
		ORDER BY h.playedAt DESC, h.rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var playedAt int64
		var e HistoryEntry
		t, err := l.scanTrack(scanFunc(func(dest ...any) error {
			return rows.Scan(append(dest, &playedAt)...)
		}))
		if err != nil {
			return nil, err
		}
		e.Track = t
		e.PlayedAt = time.UnixMilli(playedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ClearHistory removes every history entry.
func (l *Library) ClearHistory(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `DELETE FROM playback_history`)
	return err
}

type scanFunc func(dest ...any) error

func (f scanFunc) Scan(dest ...any) error { return f(dest...) }
