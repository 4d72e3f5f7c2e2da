package library

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/llehouerou/pocketwaves/internal/pathcodec"
	"github.com/llehouerou/pocketwaves/internal/state"
	"github.com/llehouerou/pocketwaves/internal/tags"
)

// testEnv bundles an in-memory library rooted at a temp document directory.
type testEnv struct {
	lib       *Library
	docRoot   string
	importDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	m, err := state.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { m.Close() })

	docRoot := t.TempDir()
	cacheRoot := t.TempDir()
	clock := time.UnixMilli(1_700_000_000_000)
	var mu sync.Mutex
	lib := New(m.DB(), pathcodec.New(docRoot, cacheRoot), WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}))
	return &testEnv{lib: lib, docRoot: docRoot, importDir: filepath.Join(docRoot, "Music")}
}

// writeFile creates a file with placeholder content under dir.
func writeFile(t *testing.T, dir, rel string) string {
	t.Helper()
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// fakeExtractor returns canned metadata keyed by file name, or metadata
// derived from the name.
type fakeExtractor struct {
	mu    sync.Mutex
	meta  map[string]tags.Metadata
	calls []string
}

func (f *fakeExtractor) Extract(path, fileName string, _ *tags.ArtworkCache) tags.Metadata {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, path)
	if md, ok := f.meta[fileName]; ok {
		return md
	}
	return tags.Metadata{
		Title:  tags.TitleFromFileName(fileName),
		Artist: tags.UnknownArtist,
		Album:  tags.UnknownAlbum,
	}
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (e *testEnv) track(id, title, artist, album string, d time.Duration) Track {
	path := filepath.Join(e.importDir, id)
	return Track{ID: path, URI: path, Title: title, Artist: artist, Album: album, Duration: d}
}

func mustUpsert(t *testing.T, lib *Library, tracks ...Track) {
	t.Helper()
	if err := lib.UpsertTracks(context.Background(), tracks); err != nil {
		t.Fatalf("UpsertTracks: %v", err)
	}
}

func ids(tracks []Track) []string {
	out := make([]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.ID
	}
	return out
}
