package library

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeduplicate_KeepsLowestID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.track("a.mp3", "Song", "Band", "Record", time.Minute)
	b := env.track("b.mp3", "Song", "Band", "Record", time.Minute)
	c := env.track("c.mp3", "Song", "Band", "Record", time.Minute)
	other := env.track("d.mp3", "Song", "Band", "Record", 2*time.Minute)
	mustUpsert(t, env.lib, c, b, a, other)

	removed, err := env.lib.Deduplicate(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{b.ID, c.ID}, removed)

	all, err := env.lib.AllTracks(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, other.ID}, ids(all))

	suppressed, err := env.lib.suppressedURIs(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{b.URI: a.ID, c.URI: a.ID}, suppressed)

	again, err := env.lib.Deduplicate(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestDeduplicate_MovesFavoritesAndPlaylists(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.track("a.mp3", "Song", "Band", "Record", 0)
	b := env.track("b.mp3", "Song", "Band", "Record", 0)
	mustUpsert(t, env.lib, a, b)

	_, err := env.lib.db.ExecContext(ctx, `INSERT INTO playlists (id, title, createdAt) VALUES ('p', 'P', 1)`)
	require.NoError(t, err)
	_, err = env.lib.db.ExecContext(ctx, `INSERT INTO playlist_tracks (playlistId, trackId, orderIndex) VALUES ('p', 'doc:Music/b.mp3', 0)`)
	require.NoError(t, err)
	_, err = env.lib.db.ExecContext(ctx, `INSERT INTO favorites (trackId, addedAt) VALUES ('doc:Music/b.mp3', 1)`)
	require.NoError(t, err)

	_, err = env.lib.Deduplicate(ctx)
	require.NoError(t, err)

	var member, fav string
	require.NoError(t, env.lib.db.QueryRowContext(ctx, `SELECT trackId FROM playlist_tracks`).Scan(&member))
	require.NoError(t, env.lib.db.QueryRowContext(ctx, `SELECT trackId FROM favorites`).Scan(&fav))
	assert.Equal(t, "doc:Music/a.mp3", member)
	assert.Equal(t, "doc:Music/a.mp3", fav)
}

func TestDeduplicate_DistinctMetadataUntouched(t *testing.T) {
	env := newTestEnv(t)
	mustUpsert(t, env.lib,
		env.track("a.mp3", "Song", "Band", "Record", 0),
		env.track("b.mp3", "Song", "Band", "Live", 0),
		env.track("c.mp3", "Song", "Cover Band", "Record", 0),
	)

	removed, err := env.lib.Deduplicate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, removed)
}
