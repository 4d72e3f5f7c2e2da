package player

import (
	"context"
	"sync"
	"time"

	"github.com/llehouerou/pocketwaves/internal/playback"
)

// Mock is a deterministic playback.Backend. Time only moves through Advance,
// which reports status to subscribers.
type Mock struct {
	mu        sync.Mutex
	durations map[string]time.Duration
	def       time.Duration
	loadErr   error
	loaded    string
	position  time.Duration
	playing   bool
	loads     []string
	subs      map[int]func(playback.Status)
	nextID    int
}

var _ playback.Backend = (*Mock)(nil)

// NewMock creates a mock whose tracks last def unless set with SetDuration.
func NewMock(def time.Duration) *Mock {
	return &Mock{
		durations: make(map[string]time.Duration),
		def:       def,
		subs:      make(map[int]func(playback.Status)),
	}
}

func (m *Mock) SetDuration(uri string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations[uri] = d
}

// FailLoads makes every later Load return err. Nil clears it.
func (m *Mock) FailLoads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

func (m *Mock) Load(_ context.Context, uri string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads = append(m.loads, uri)
	if m.loadErr != nil {
		return m.loadErr
	}
	m.loaded = uri
	m.position = 0
	m.playing = false
	return nil
}

func (m *Mock) Play(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded == "" {
		return errNotLoaded
	}
	if m.position >= m.durationLocked() {
		m.position = 0
	}
	m.playing = true
	return nil
}

func (m *Mock) Pause(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded == "" {
		return errNotLoaded
	}
	m.playing = false
	return nil
}

func (m *Mock) Seek(_ context.Context, pos time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded == "" {
		return errNotLoaded
	}
	m.position = min(max(pos, 0), m.durationLocked())
	return nil
}

func (m *Mock) Subscribe(fn func(playback.Status)) func() {
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

// Advance moves a playing track forward by d and reports status. Reaching
// the end stops playback and reports DidJustFinish.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	if m.loaded == "" {
		m.mu.Unlock()
		return
	}
	total := m.durationLocked()
	finished := false
	if m.playing {
		m.position += d
		if m.position >= total {
			m.position = total
			m.playing = false
			finished = true
		}
	}
	st := playback.Status{
		Position:      m.position,
		Duration:      total,
		Playing:       m.playing,
		DidJustFinish: finished,
	}
	fns := make([]func(playback.Status), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

// Loads returns every uri passed to Load, in order.
func (m *Mock) Loads() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.loads...)
}

func (m *Mock) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

func (m *Mock) durationLocked() time.Duration {
	if d, ok := m.durations[m.loaded]; ok {
		return d
	}
	return m.def
}
