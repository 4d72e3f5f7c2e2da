package state

import (
	"database/sql"
	"fmt"
)

const currentSchemaVersion = 3

// column is an additive migration: a column that older databases may lack.
type column struct {
	table string
	name  string
	decl  string
}

// Columns added after the first release. Existing rows get NULL.
var addedColumns = []column{
	{"tracks", "lrc", "TEXT"},
	{"tracks", "trackNumber", "INTEGER"},
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS tracks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			artist TEXT NOT NULL,
			album TEXT NOT NULL,
			uri TEXT NOT NULL,
			artwork TEXT,
			duration INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_tracks_artist ON tracks(artist);
		CREATE INDEX IF NOT EXISTS idx_tracks_album ON tracks(album);

		CREATE TABLE IF NOT EXISTS playlists (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			createdAt INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS playlist_tracks (
			playlistId TEXT NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
			trackId TEXT NOT NULL REFERENCES tracks(id) ON DELETE CASCADE ON UPDATE CASCADE,
			orderIndex INTEGER NOT NULL,
			PRIMARY KEY (playlistId, trackId)
		);

		CREATE INDEX IF NOT EXISTS idx_playlist_tracks_order ON playlist_tracks(playlistId, orderIndex);

		CREATE TABLE IF NOT EXISTS added_folders (
			uri TEXT PRIMARY KEY,
			addedAt INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS playback_history (
			trackId TEXT PRIMARY KEY REFERENCES tracks(id) ON DELETE CASCADE ON UPDATE CASCADE,
			playedAt INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_history_played_at ON playback_history(playedAt DESC);

		CREATE TABLE IF NOT EXISTS favorites (
			trackId TEXT PRIMARY KEY REFERENCES tracks(id) ON DELETE CASCADE ON UPDATE CASCADE,
			addedAt INTEGER NOT NULL
		);

		-- Files collapsed into a survivor by deduplication.
		CREATE TABLE IF NOT EXISTS duplicates (
			uri TEXT PRIMARY KEY,
			survivorId TEXT NOT NULL REFERENCES tracks(id) ON DELETE CASCADE ON UPDATE CASCADE
		);

		CREATE TABLE IF NOT EXISTS player_settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			shuffle INTEGER NOT NULL DEFAULT 0,
			repeatMode INTEGER NOT NULL DEFAULT 0,
			lyricsVisible INTEGER NOT NULL DEFAULT 0
		);
	`)
	if err != nil {
		return err
	}

	if err := migrate(db); err != nil {
		return err
	}

	_, err = db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, currentSchemaVersion)
	return err
}

// migrate adds any missing columns. Safe to run on every startup.
func migrate(db *sql.DB) error {
	for _, c := range addedColumns {
		ok, err := hasColumn(db, c.table, c.name)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		stmt := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, c.table, c.name, c.decl)
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("add column %s.%s: %w", c.table, c.name, err)
		}
	}
	return nil
}

func hasColumn(db *sql.DB, table, name string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			colName   string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if colName == name {
			return true, nil
		}
	}
	return false, rows.Err()
}

// SchemaVersion returns the recorded schema version.
func (m *Manager) SchemaVersion() (int, error) {
	var v int
	err := m.db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&v)
	return v, err
}
