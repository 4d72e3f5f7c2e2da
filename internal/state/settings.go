package state

import (
	"context"
	"database/sql"
	"errors"
)

// PlayerSettings holds the playback flags that survive restarts.
type PlayerSettings struct {
	Shuffle       bool
	RepeatMode    int
	LyricsVisible bool
}

// PlayerSettings returns the saved flags, or zero values if none were saved.
func (m *Manager) PlayerSettings(ctx context.Context) (PlayerSettings, error) {
	var s PlayerSettings
	err := m.db.QueryRowContext(ctx, `
		SELECT shuffle, repeatMode, lyricsVisible FROM player_settings WHERE id = 1
	`).Scan(&s.Shuffle, &s.RepeatMode, &s.LyricsVisible)
	if errors.Is(err, sql.ErrNoRows) {
		return PlayerSettings{}, nil
	}
	return s, err
}

// SavePlayerSettings stores the flags.
func (m *Manager) SavePlayerSettings(ctx context.Context, s PlayerSettings) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO player_settings (id, shuffle, repeatMode, lyricsVisible)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			shuffle = excluded.shuffle,
			repeatMode = excluded.repeatMode,
			lyricsVisible = excluded.lyricsVisible
	`, s.Shuffle, s.RepeatMode, s.LyricsVisible)
	return err
}
