package library

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/llehouerou/pocketwaves/internal/db"
)

type storedRow struct {
	id      string
	uri     string
	artwork sql.NullString
}

// MigrateLegacyIDs rewrites stored tracks, folders and suppression rows still
// keyed by an absolute or legacy sandbox path into the stable form. Child
// rows follow through ON UPDATE CASCADE. When the stable id already exists
// the legacy row is dropped. It returns the number of tracks rewritten.
func (l *Library) MigrateLegacyIDs(ctx context.Context) (int, error) {
	var migrated int
	err := db.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		migrated = 0
		rows, err := loadRows(ctx, tx)
		if err != nil {
			return err
		}

		for _, r := range rows {
			newID := l.codec.ToStableID(r.id)
			newURI := l.codec.ToStableID(r.uri)
			newArtwork := r.artwork
			if r.artwork.Valid && r.artwork.String != "" {
				newArtwork.String = l.codec.ToStableID(r.artwork.String)
			}
			if newID == r.id && newURI == r.uri && newArtwork == r.artwork {
				continue
			}

			var exists int
			if newID != r.id {
				if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracks WHERE id = ?`, newID).Scan(&exists); err != nil {
					return err
				}
			}
			if exists > 0 {
				if _, err := tx.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, r.id); err != nil {
					return err
				}
			} else if _, err := tx.ExecContext(ctx,
				`UPDATE tracks SET id = ?, uri = ?, artwork = ? WHERE id = ?`,
				newID, newURI, newArtwork, r.id,
			); err != nil {
				return err
			}
			migrated++
		}

		if err := l.migrateKeys(ctx, tx, "added_folders", "uri"); err != nil {
			return err
		}
		return l.migrateKeys(ctx, tx, "duplicates", "uri")
	})
	if err != nil {
		return 0, err
	}
	if migrated > 0 {
		l.log.Info("migrated legacy track ids", zap.Int("count", migrated))
	}
	return migrated, nil
}

func loadRows(ctx context.Context, tx db.Executor) ([]storedRow, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, uri, artwork FROM tracks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storedRow
	for rows.Next() {
		var r storedRow
		if err := rows.Scan(&r.id, &r.uri, &r.artwork); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// migrateKeys rewrites a text primary key column to stable form. Table and
// column names are fixed by the caller.
func (l *Library) migrateKeys(ctx context.Context, tx db.Executor, table, column string) error {
	rows, err := tx.QueryContext(ctx, `SELECT `+column+` FROM `+table)
	if err != nil {
		return err
	}
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			rows.Close()
			return err
		}
		keys = append(keys, k)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, k := range keys {
		stable := l.codec.ToStableID(k)
		if stable == k {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE OR REPLACE `+table+` SET `+column+` = ? WHERE `+column+` = ?`,
			stable, k,
		); err != nil {
			return err
		}
	}
	return nil
}
