package playback

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/llehouerou/pocketwaves/internal/library"
	"github.com/llehouerou/pocketwaves/internal/state"
)

// mockBackend records calls and lets tests push status reports.
type mockBackend struct {
	mu     sync.Mutex
	calls  []string
	errs   map[string]error
	subs   map[int]func(Status)
	nextID int
}

func newMockBackend() *mockBackend {
	return &mockBackend{errs: make(map[string]error), subs: make(map[int]func(Status))}
}

func (m *mockBackend) record(call, op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	return m.errs[op]
}

func (m *mockBackend) Load(_ context.Context, uri string) error {
	return m.record("load "+uri, "load")
}

func (m *mockBackend) Play(_ context.Context) error { return m.record("play", "play") }

func (m *mockBackend) Pause(_ context.Context) error { return m.record("pause", "pause") }

func (m *mockBackend) Seek(_ context.Context, pos time.Duration) error {
	return m.record(fmt.Sprintf("seek %s", pos), "seek")
}

func (m *mockBackend) Subscribe(fn func(Status)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

func (m *mockBackend) failOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[op] = err
}

func (m *mockBackend) emit(s Status) {
	m.mu.Lock()
	fns := make([]func(Status), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

func (m *mockBackend) takeCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := m.calls
	m.calls = nil
	return calls
}

func (m *mockBackend) subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

type memorySettings struct {
	mu    sync.Mutex
	s     state.PlayerSettings
	saves int
}

func (m *memorySettings) PlayerSettings(context.Context) (state.PlayerSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s, nil
}

func (m *memorySettings) SavePlayerSettings(_ context.Context, s state.PlayerSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = s
	m.saves++
	return nil
}

type memoryFavorites struct {
	set map[string]bool
}

func (m *memoryFavorites) ToggleFavorite(_ context.Context, id string) (bool, error) {
	if m.set == nil {
		m.set = make(map[string]bool)
	}
	m.set[id] = !m.set[id]
	return m.set[id], nil
}

type memoryHistory struct {
	mu  sync.Mutex
	ids []string
}

func (m *memoryHistory) RecordHistory(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = append(m.ids, id)
	return nil
}

func (m *memoryHistory) all() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.ids)
}

func testTracks(names ...string) []library.Track {
	tracks := make([]library.Track, len(names))
	for i, n := range names {
		tracks[i] = library.Track{ID: "/music/" + n + ".mp3", URI: "/music/" + n + ".mp3", Title: n}
	}
	return tracks
}

func queueIDs(tracks []library.Track) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.Title
	}
	return ids
}
