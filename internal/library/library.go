package library

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/llehouerou/pocketwaves/internal/db"
	"github.com/llehouerou/pocketwaves/internal/pathcodec"
)

// ErrTrackNotFound is returned when a lookup matches no track.
var ErrTrackNotFound = errors.New("track not found")

// Track is a library track. ID, URI and Artwork are absolute in memory and
// stored in stable form.
type Track struct {
	ID          string
	Title       string
	Artist      string
	Album       string
	URI         string
	Artwork     string
	TrackNumber int
	Duration    time.Duration
	LRC         string
}

type Album struct {
	Title      string
	Artist     string
	Artwork    string
	TrackCount int
}

type Library struct {
	db    *sql.DB
	codec *pathcodec.Codec
	log   *zap.Logger
	now   func() time.Time
}

type Option func(*Library)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(l *Library) { l.log = log }
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Library) { l.now = now }
}

func New(sqlDB *sql.DB, codec *pathcodec.Codec, opts ...Option) *Library {
	l := &Library{
		db:    sqlDB,
		codec: codec,
		log:   zap.NewNop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Codec returns the path codec used for stored identifiers.
func (l *Library) Codec() *pathcodec.Codec {
	return l.codec
}

const trackColumns = `id, title, artist, album, uri, artwork, duration, lrc, trackNumber`

type rowScanner interface {
	Scan(dest ...any) error
}

func (l *Library) scanTrack(row rowScanner) (Track, error) {
	var t Track
	var artwork, lrc sql.NullString
	var duration, trackNum sql.NullInt64

	if err := row.Scan(&t.ID, &t.Title, &t.Artist, &t.Album, &t.URI, &artwork, &duration, &lrc, &trackNum); err != nil {
		return Track{}, err
	}
	t.ID = l.codec.ToAbsolute(t.ID)
	t.URI = l.codec.ToAbsolute(t.URI)
	if artwork.Valid && artwork.String != "" {
		t.Artwork = l.codec.ToAbsolute(artwork.String)
	}
	t.Duration = time.Duration(db.NullInt64Value(duration)) * time.Millisecond
	t.LRC = db.NullStringValue(lrc)
	t.TrackNumber = int(db.NullInt64Value(trackNum))
	return t, nil
}

func (l *Library) queryTracks(ctx context.Context, query string, args ...any) ([]Track, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []Track
	for rows.Next() {
		t, err := l.scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// AllTracks returns every track, sorted by title.
func (l *Library) AllTracks(ctx context.Context) ([]Track, error) {
	return l.queryTracks(ctx, `
		SELECT `+trackColumns+` FROM tracks
		ORDER BY title COLLATE NOCASE, id
	`)
}

// TrackByID returns the track with the given id, which may be absolute or
// stable.
func (l *Library) TrackByID(ctx context.Context, id string) (*Track, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT `+trackColumns+` FROM tracks WHERE id = ?
	`, l.codec.ToStableID(id))

	t, err := l.scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTrackNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// TrackExists reports whether a track with the given id is stored.
func (l *Library) TrackExists(ctx context.Context, id string) (bool, error) {
	var n int
	err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracks WHERE id = ?`, l.codec.ToStableID(id)).Scan(&n)
	return n > 0, err
}

// AllTrackURIs returns the absolute URI of every track.
func (l *Library) AllTrackURIs(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT uri FROM tracks ORDER BY uri`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uris []string
	for rows.Next() {
		var uri string
		if err := rows.Scan(&uri); err != nil {
			return nil, err
		}
		uris = append(uris, l.codec.ToAbsolute(uri))
	}
	return uris, rows.Err()
}

// TracksByIDs returns the tracks for ids in the given order. Unknown ids
// are skipped.
func (l *Library) TracksByIDs(ctx context.Context, ids []string) ([]Track, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = l.codec.ToStableID(id)
	}
	found, err := l.queryTracks(ctx, `
		SELECT `+trackColumns+` FROM tracks WHERE id IN (`+db.Placeholders(len(ids))+`)
	`, args...)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]Track, len(found))
	for _, t := range found {
		byID[t.ID] = t
	}
	tracks := make([]Track, 0, len(found))
	for _, id := range ids {
		if t, ok := byID[l.codec.ToAbsolute(id)]; ok {
			tracks = append(tracks, t)
		}
	}
	return tracks, nil
}

// TracksByArtist returns an artist's tracks ordered by album then track number.
func (l *Library) TracksByArtist(ctx context.Context, artist string) ([]Track, error) {
	return l.queryTracks(ctx, `
		SELECT `+trackColumns+` FROM tracks
		WHERE artist = ?
		ORDER BY album COLLATE NOCASE, trackNumber, title COLLATE NOCASE, id
	`, artist)
}

// TracksByAlbum returns the tracks of one album ordered by track number.
// An empty artist matches albums of that name by any artist.
func (l *Library) TracksByAlbum(ctx context.Context, album, artist string) ([]Track, error) {
	return l.queryTracks(ctx, `
		SELECT `+trackColumns+` FROM tracks
		WHERE album = ? AND (? = '' OR artist = ?)
		ORDER BY trackNumber, title COLLATE NOCASE, id
	`, album, artist, artist)
}

func (l *Library) Artists(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT DISTINCT artist FROM tracks ORDER BY artist COLLATE NOCASE
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artists []string
	for rows.Next() {
		var artist string
		if err := rows.Scan(&artist); err != nil {
			return nil, err
		}
		artists = append(artists, artist)
	}
	return artists, rows.Err()
}

func (l *Library) Albums(ctx context.Context) ([]Album, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT album, artist, MAX(artwork), COUNT(*)
		FROM tracks
		GROUP BY album, artist
		ORDER BY album COLLATE NOCASE, artist COLLATE NOCASE
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var albums []Album
	for rows.Next() {
		var a Album
		var artwork sql.NullString
		if err := rows.Scan(&a.Title, &a.Artist, &artwork, &a.TrackCount); err != nil {
			return nil, err
		}
		if artwork.Valid && artwork.String != "" {
			a.Artwork = l.codec.ToAbsolute(artwork.String)
		}
		albums = append(albums, a)
	}
	return albums, rows.Err()
}

func (l *Library) TrackCount(ctx context.Context) (int, error) {
	var count int
	err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracks`).Scan(&count)
	return count, err
}
