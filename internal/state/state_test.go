package state

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func TestOpenMemory_CreatesSchema(t *testing.T) {
	m, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer m.Close()

	for _, table := range []string{
		"tracks", "playlists", "playlist_tracks", "added_folders",
		"playback_history", "favorites", "duplicates", "player_settings",
	} {
		var name string
		err := m.DB().QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}

	v, err := m.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != currentSchemaVersion {
		t.Errorf("schema version = %d, want %d", v, currentSchemaVersion)
	}
}

func TestMigrate_AddsMissingColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	// Database written by a release that predates lyrics and track numbers.
	old, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, err = old.Exec(`
		CREATE TABLE tracks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			artist TEXT NOT NULL,
			album TEXT NOT NULL,
			uri TEXT NOT NULL,
			artwork TEXT,
			duration INTEGER
		);
		INSERT INTO tracks (id, title, artist, album, uri) VALUES ('doc:a.mp3', 'A', 'B', 'C', 'doc:a.mp3');
	`)
	if err != nil {
		t.Fatalf("create old schema: %v", err)
	}
	old.Close()

	m, err := OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	for _, c := range addedColumns {
		ok, err := hasColumn(m.DB(), c.table, c.name)
		if err != nil {
			t.Fatalf("hasColumn: %v", err)
		}
		if !ok {
			t.Errorf("column %s.%s not added", c.table, c.name)
		}
	}

	var lrc sql.NullString
	if err := m.DB().QueryRow(`SELECT lrc FROM tracks WHERE id = 'doc:a.mp3'`).Scan(&lrc); err != nil {
		t.Fatalf("select: %v", err)
	}
	if lrc.Valid {
		t.Errorf("migrated row lrc = %q, want NULL", lrc.String)
	}
	m.Close()

	// Running the migrations again is a no-op.
	m, err = OpenPath(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer m.Close()

	var count int
	if err := m.DB().QueryRow(`SELECT COUNT(*) FROM tracks`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestPlayerSettings(t *testing.T) {
	m, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer m.Close()
	ctx := context.Background()

	s, err := m.PlayerSettings(ctx)
	if err != nil {
		t.Fatalf("PlayerSettings: %v", err)
	}
	if s != (PlayerSettings{}) {
		t.Errorf("default settings = %+v, want zero", s)
	}

	want := PlayerSettings{Shuffle: true, RepeatMode: 2, LyricsVisible: true}
	if err := m.SavePlayerSettings(ctx, want); err != nil {
		t.Fatalf("SavePlayerSettings: %v", err)
	}
	want.RepeatMode = 1
	if err := m.SavePlayerSettings(ctx, want); err != nil {
		t.Fatalf("SavePlayerSettings (update): %v", err)
	}

	got, err := m.PlayerSettings(ctx)
	if err != nil {
		t.Fatalf("PlayerSettings: %v", err)
	}
	if got != want {
		t.Errorf("settings = %+v, want %+v", got, want)
	}
}

func TestForeignKeysEnabled(t *testing.T) {
	m, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer m.Close()

	var on int
	if err := m.DB().QueryRow(`PRAGMA foreign_keys`).Scan(&on); err != nil {
		t.Fatalf("pragma: %v", err)
	}
	if on != 1 {
		t.Errorf("foreign_keys = %d, want 1", on)
	}
}
