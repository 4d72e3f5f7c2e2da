package library

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/llehouerou/pocketwaves/internal/db"
)

type duplicate struct {
	id       string
	uri      string
	survivor string
}

// Deduplicate collapses tracks sharing title, artist, album and duration.
// The lowest id in each group survives. Losers are deleted and their URIs
// recorded so later syncs do not re-add them. Playlist memberships,
// favorites and history of a loser move to the survivor when the survivor
// has none. It returns the absolute ids of the removed tracks.
func (l *Library) Deduplicate(ctx context.Context) ([]string, error) {
	var removed []string
	err := db.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		removed = nil
		dups, err := findDuplicates(ctx, tx)
		if err != nil {
			return err
		}

		for _, d := range dups {
			if err := collapse(ctx, tx, d); err != nil {
				return err
			}
			removed = append(removed, l.codec.ToAbsolute(d.id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		l.log.Info("removed duplicate tracks", zap.Int("count", len(removed)))
	}
	return removed, nil
}

func findDuplicates(ctx context.Context, tx db.Executor) ([]duplicate, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, uri, survivor FROM (
			SELECT id, uri,
				MIN(id) OVER (PARTITION BY title, artist, album, duration) AS survivor
			FROM tracks
		)
		WHERE id != survivor
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dups []duplicate
	for rows.Next() {
		var d duplicate
		if err := rows.Scan(&d.id, &d.uri, &d.survivor); err != nil {
			return nil, err
		}
		dups = append(dups, d)
	}
	return dups, rows.Err()
}

func collapse(ctx context.Context, tx db.Executor, d duplicate) error {
	stmts := []struct {
		query string
		args  []any
	}{
		{`UPDATE OR IGNORE playlist_tracks SET trackId = ? WHERE trackId = ?`, []any{d.survivor, d.id}},
		{`UPDATE OR IGNORE favorites SET trackId = ? WHERE trackId = ?`, []any{d.survivor, d.id}},
		{`UPDATE OR IGNORE playback_history SET trackId = ? WHERE trackId = ?`, []any{d.survivor, d.id}},
		{`UPDATE duplicates SET survivorId = ? WHERE survivorId = ?`, []any{d.survivor, d.id}},
		{`INSERT OR REPLACE INTO duplicates (uri, survivorId) VALUES (?, ?)`, []any{d.uri, d.survivor}},
		{`DELETE FROM tracks WHERE id = ?`, []any{d.id}},
	}
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s.query, s.args...); err != nil {
			return err
		}
	}
	return nil
}

// suppressedURIs returns absolute URIs collapsed by deduplication, mapped to
// the absolute id of their survivor.
func (l *Library) suppressedURIs(ctx context.Context) (map[string]string, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT uri, survivorId FROM duplicates`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var uri, survivor string
		if err := rows.Scan(&uri, &survivor); err != nil {
			return nil, err
		}
		out[l.codec.ToAbsolute(uri)] = l.codec.ToAbsolute(survivor)
	}
	return out, rows.Err()
}

// forgetDuplicates drops suppression rows for the given absolute URIs.
func (l *Library) forgetDuplicates(ctx context.Context, uris []string) error {
	if len(uris) == 0 {
		return nil
	}
	return db.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		for _, uri := range uris {
			if _, err := tx.ExecContext(ctx, `DELETE FROM duplicates WHERE uri = ?`, l.codec.ToStableID(uri)); err != nil {
				return err
			}
		}
		return nil
	})
}
