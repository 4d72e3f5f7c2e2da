package playlists

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/llehouerou/pocketwaves/internal/library"
	"github.com/llehouerou/pocketwaves/internal/pathcodec"
	"github.com/llehouerou/pocketwaves/internal/state"
)

type fixture struct {
	pl     *Playlists
	lib    *library.Library
	tracks []library.Track
}

// setup opens an in-memory store with three tracks.
func setup(t *testing.T) *fixture {
	t.Helper()
	m, err := state.OpenMemory()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { m.Close() })

	root := t.TempDir()
	lib := library.New(m.DB(), pathcodec.New(root, t.TempDir()))

	var tracks []library.Track
	for _, name := range []string{"a", "b", "c"} {
		path := filepath.Join(root, "Music", name+".mp3")
		tracks = append(tracks, library.Track{ID: path, URI: path, Title: name, Artist: "X", Album: "Y"})
	}
	if err := lib.UpsertTracks(context.Background(), tracks); err != nil {
		t.Fatalf("UpsertTracks: %v", err)
	}
	return &fixture{pl: New(m.DB(), lib), lib: lib, tracks: tracks}
}

func trackIDs(tracks []library.Track) []string {
	out := make([]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.ID
	}
	return out
}

func equalIDs(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("ids = %v, want %v", got, want)
		}
	}
}

func TestCreateAndGet(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	id, err := f.pl.Create(ctx, "  Road Trip ")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(id) != 36 {
		t.Errorf("id = %q, want a uuid", id)
	}

	got, err := f.pl.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Road Trip" || got.TrackCount != 0 {
		t.Errorf("Get = %+v", got)
	}

	if _, err := f.pl.Get(ctx, "missing"); !errors.Is(err, ErrPlaylistNotFound) {
		t.Errorf("Get(missing) err = %v", err)
	}
}

func TestAddTracks_OrderAndIdempotence(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	id, _ := f.pl.Create(ctx, "P")
	a, b, c := f.tracks[0].ID, f.tracks[1].ID, f.tracks[2].ID

	n, err := f.pl.AddTracks(ctx, id, []string{c, a})
	if err != nil || n != 2 {
		t.Fatalf("AddTracks = %d, %v", n, err)
	}
	n, err = f.pl.AddTracks(ctx, id, []string{a, b, "doc:unknown.mp3"})
	if err != nil || n != 1 {
		t.Fatalf("second AddTracks = %d, %v; want 1 added", n, err)
	}

	tracks, err := f.pl.Tracks(ctx, id)
	if err != nil {
		t.Fatalf("Tracks: %v", err)
	}
	equalIDs(t, trackIDs(tracks), []string{c, a, b})

	count, err := f.pl.TrackCount(ctx, id)
	if err != nil || count != 3 {
		t.Errorf("TrackCount = %d, %v", count, err)
	}

	if _, err := f.pl.AddTracks(ctx, "missing", []string{a}); !errors.Is(err, ErrPlaylistNotFound) {
		t.Errorf("AddTracks(missing) err = %v", err)
	}
}

func TestRemoveTrack(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	id, _ := f.pl.Create(ctx, "P")
	all := trackIDs(f.tracks)
	if _, err := f.pl.AddTracks(ctx, id, all); err != nil {
		t.Fatal(err)
	}

	if err := f.pl.RemoveTrack(ctx, id, all[1]); err != nil {
		t.Fatalf("RemoveTrack: %v", err)
	}
	tracks, _ := f.pl.Tracks(ctx, id)
	equalIDs(t, trackIDs(tracks), []string{all[0], all[2]})

	ok, err := f.pl.Contains(ctx, id, all[1])
	if err != nil || ok {
		t.Errorf("Contains after remove = %v, %v", ok, err)
	}

	// New tracks still append after the highest index.
	if _, err := f.pl.AddTracks(ctx, id, []string{all[1]}); err != nil {
		t.Fatal(err)
	}
	tracks, _ = f.pl.Tracks(ctx, id)
	equalIDs(t, trackIDs(tracks), []string{all[0], all[2], all[1]})
}

func TestRenameDeleteList(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	first, _ := f.pl.Create(ctx, "First")
	second, _ := f.pl.Create(ctx, "Second")
	if _, err := f.pl.AddTracks(ctx, second, trackIDs(f.tracks[:2])); err != nil {
		t.Fatal(err)
	}

	if err := f.pl.Rename(ctx, first, "Renamed"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if err := f.pl.Rename(ctx, "missing", "x"); !errors.Is(err, ErrPlaylistNotFound) {
		t.Errorf("Rename(missing) err = %v", err)
	}

	list, err := f.pl.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len(List) = %d", len(list))
	}
	byID := map[string]Playlist{list[0].ID: list[0], list[1].ID: list[1]}
	if byID[first].Title != "Renamed" || byID[second].TrackCount != 2 {
		t.Errorf("List = %+v", list)
	}

	if err := f.pl.Delete(ctx, second); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := f.pl.Delete(ctx, second); !errors.Is(err, ErrPlaylistNotFound) {
		t.Errorf("second Delete err = %v", err)
	}
	var memberships int
	if err := f.pl.db.QueryRow(`SELECT COUNT(*) FROM playlist_tracks`).Scan(&memberships); err != nil {
		t.Fatal(err)
	}
	if memberships != 0 {
		t.Errorf("memberships after delete = %d", memberships)
	}
}

func TestMembershipCascadesOnTrackDelete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	id, _ := f.pl.Create(ctx, "P")
	if _, err := f.pl.AddTracks(ctx, id, trackIDs(f.tracks)); err != nil {
		t.Fatal(err)
	}

	if err := f.lib.DeleteTrack(ctx, f.tracks[0].ID); err != nil {
		t.Fatal(err)
	}
	tracks, _ := f.pl.Tracks(ctx, id)
	equalIDs(t, trackIDs(tracks), trackIDs(f.tracks[1:]))
}

func TestFavorites(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a, b := f.tracks[0].ID, f.tracks[1].ID

	on, err := f.pl.ToggleFavorite(ctx, a)
	if err != nil || !on {
		t.Fatalf("ToggleFavorite = %v, %v", on, err)
	}
	if _, err := f.pl.ToggleFavorite(ctx, b); err != nil {
		t.Fatal(err)
	}

	ok, err := f.pl.IsFavorite(ctx, a)
	if err != nil || !ok {
		t.Errorf("IsFavorite = %v, %v", ok, err)
	}
	ids, err := f.pl.FavoriteIDs(ctx)
	if err != nil || !ids[a] || !ids[b] || len(ids) != 2 {
		t.Errorf("FavoriteIDs = %v, %v", ids, err)
	}
	favs, err := f.pl.FavoriteTracks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	equalIDs(t, trackIDs(favs), []string{b, a})

	off, err := f.pl.ToggleFavorite(ctx, a)
	if err != nil || off {
		t.Fatalf("second ToggleFavorite = %v, %v", off, err)
	}
	if ok, _ := f.pl.IsFavorite(ctx, a); ok {
		t.Error("track should no longer be a favorite")
	}
}
