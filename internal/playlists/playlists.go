// Package playlists stores user playlists and favorites on top of the
// library database.
package playlists

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/llehouerou/pocketwaves/internal/library"
)

// ErrPlaylistNotFound is returned when no playlist has the given id.
var ErrPlaylistNotFound = errors.New("playlist not found")

// Playlist represents a playlist metadata (without tracks).
type Playlist struct {
	ID         string
	Title      string
	CreatedAt  time.Time
	TrackCount int
}

// Playlists provides database operations for playlists.
type Playlists struct {
	db  *sql.DB
	lib *library.Library
	now func() time.Time
}

// New creates a new Playlists instance. Track ids are translated with the
// library's codec.
func New(db *sql.DB, lib *library.Library) *Playlists {
	return &Playlists{db: db, lib: lib, now: time.Now}
}

// Create creates a new playlist and returns its id.
func (p *Playlists) Create(ctx context.Context, title string) (string, error) {
	id := uuid.NewString()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO playlists (id, title, createdAt) VALUES (?, ?, ?)
	`, id, strings.TrimSpace(title), p.now().UnixMilli())
	if err != nil {
		return "", err
	}
	return id, nil
}

// Rename renames a playlist.
func (p *Playlists) Rename(ctx context.Context, id, title string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE playlists SET title = ? WHERE id = ?`, strings.TrimSpace(title), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Delete deletes a playlist and all its memberships.
func (p *Playlists) Delete(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM playlists WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// List returns every playlist, oldest first.
func (p *Playlists) List(ctx context.Context) ([]Playlist, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT p.id, p.title, p.createdAt, COUNT(pt.trackId)
		FROM playlists p
		LEFT JOIN playlist_tracks pt ON pt.playlistId = p.id
		GROUP BY p.id
		ORDER BY p.createdAt, p.title COLLATE NOCASE, p.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var playlists []Playlist
	for rows.Next() {
		pl, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, pl)
	}
	return playlists, rows.Err()
}

// Get returns a playlist by its ID.
func (p *Playlists) Get(ctx context.Context, id string) (*Playlist, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT p.id, p.title, p.createdAt,
			(SELECT COUNT(*) FROM playlist_tracks WHERE playlistId = p.id)
		FROM playlists p
		WHERE p.id = ?
	`, id)

	pl, err := scanPlaylist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlaylistNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pl, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlaylist(s scanner) (Playlist, error) {
	var pl Playlist
	var createdAt int64
	if err := s.Scan(&pl.ID, &pl.Title, &createdAt, &pl.TrackCount); err != nil {
		return Playlist{}, err
	}
	pl.CreatedAt = time.UnixMilli(createdAt)
	return pl, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPlaylistNotFound
	}
	return nil
}
