package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/pocketwaves/internal/library"
	"github.com/llehouerou/pocketwaves/internal/notify"
	"github.com/llehouerou/pocketwaves/internal/playback"
	"github.com/llehouerou/pocketwaves/internal/player"
)

func sessionTracks() []library.Track {
	return []library.Track{
		{ID: "/music/a.mp3", URI: "/music/a.mp3", Title: "Alpha", Artist: "Band", Duration: time.Minute},
		{ID: "/music/b.mp3", URI: "/music/b.mp3", Title: "Beta", Artist: "Band", Duration: time.Minute},
	}
}

// newSession returns a session whose queue is already playing.
func newSession(t *testing.T, backend playback.Backend) (*session, *bytes.Buffer) {
	t.Helper()
	eng := playback.New(backend, playback.WithSettleDelay(0))
	t.Cleanup(func() { eng.Close() })
	var out bytes.Buffer
	queue := sessionTracks()
	require.NoError(t, eng.PlayQueue(context.Background(), queue[0], queue, "", playback.AllSongs{}))
	return &session{eng: eng, backend: backend, out: &out, lyricIdx: -1}, &out
}

func TestSession_Commands(t *testing.T) {
	mock := player.NewMock(time.Minute)
	s, out := newSession(t, mock)
	ctx := context.Background()

	require.NoError(t, s.handle(ctx, "i"))
	assert.Contains(t, out.String(), "Playing")
	assert.Contains(t, out.String(), "Alpha")

	require.NoError(t, s.handle(ctx, "p"))
	assert.False(t, mock.Playing())
	require.NoError(t, s.handle(ctx, ""))
	assert.True(t, mock.Playing())

	out.Reset()
	require.NoError(t, s.handle(ctx, "r"))
	assert.Equal(t, "Repeat All\n", out.String())

	out.Reset()
	require.NoError(t, s.handle(ctx, "l"))
	assert.Equal(t, "Lyrics on\n", out.String())

	require.NoError(t, s.handle(ctx, "seek 0:30"))
	mock.Advance(0)
	assert.Equal(t, 30*time.Second, s.eng.Snapshot().Position)

	require.NoError(t, s.handle(ctx, "n"))
	assert.Equal(t, "Beta", s.eng.Snapshot().Current.Title)
	require.NoError(t, s.handle(ctx, "b"))
	assert.Equal(t, "Alpha", s.eng.Snapshot().Current.Title)

	out.Reset()
	require.NoError(t, s.handle(ctx, "queue"))
	assert.Contains(t, out.String(), ">   1  Alpha")
	assert.Contains(t, out.String(), "    2  Beta")

	assert.ErrorIs(t, s.handle(ctx, "q"), errQuit)
	assert.Error(t, s.handle(ctx, "seek soon"))
	assert.ErrorContains(t, s.handle(ctx, "dance"), `unknown command "dance"`)
}

// volumeMock adds volume control to the mock backend.
type volumeMock struct {
	*player.Mock
	level float64
}

func (v *volumeMock) Volume() float64 { return v.level }

func (v *volumeMock) SetVolume(level float64) { v.level = min(max(level, 0), 1) }

func TestSession_Volume(t *testing.T) {
	backend := &volumeMock{Mock: player.NewMock(time.Minute), level: 0.5}
	s, out := newSession(t, backend)
	ctx := context.Background()

	require.NoError(t, s.handle(ctx, "+"))
	assert.InDelta(t, 0.6, backend.level, 1e-9)
	require.NoError(t, s.handle(ctx, "-"))
	require.NoError(t, s.handle(ctx, "-"))
	assert.InDelta(t, 0.4, backend.level, 1e-9)
	assert.Equal(t, "Volume 60%\nVolume 50%\nVolume 40%\n", out.String())
}

func TestSession_VolumeUnsupported(t *testing.T) {
	s, out := newSession(t, player.NewMock(time.Minute))

	require.NoError(t, s.handle(context.Background(), "+"))
	assert.Empty(t, out.String())
}

func TestSession_FavoriteWithoutStore(t *testing.T) {
	s, _ := newSession(t, player.NewMock(time.Minute))

	assert.Error(t, s.handle(context.Background(), "f"))
}

func TestSession_RunStopsAtEOF(t *testing.T) {
	mock := player.NewMock(time.Minute)
	eng := playback.New(mock, playback.WithSettleDelay(0))
	defer eng.Close()
	var out bytes.Buffer
	s := &session{eng: eng, backend: mock, out: &out}

	err := s.run(context.Background(), sessionTracks(), "", playback.AllSongs{}, strings.NewReader("n\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"/music/a.mp3", "/music/b.mp3"}, mock.Loads())
}

func TestSession_RunStopsOnCancel(t *testing.T) {
	mock := player.NewMock(time.Minute)
	eng := playback.New(mock, playback.WithSettleDelay(0))
	defer eng.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &session{eng: eng, backend: mock, out: &bytes.Buffer{}}
	// A pipe that never delivers stands in for an idle terminal.
	in, w := io.Pipe()
	defer w.Close()
	require.NoError(t, s.run(ctx, sessionTracks(), "", playback.AllSongs{}, in))
}

func TestPlay_NothingToPlay(t *testing.T) {
	env := newCLIEnv(t)

	r := env.exec("q\n", "play")
	require.Equal(t, 0, r.code, r.err)
	assert.Contains(t, r.out, "Nothing to play")
	assert.Empty(t, env.mock.Loads())
}

func TestPlay_Sources(t *testing.T) {
	env := newCLIEnv(t)
	alpha, beta, gamma := env.seedLibrary()

	r := env.exec("q\n", "play", "gama")
	require.Equal(t, 0, r.code, r.err)
	assert.Equal(t, []string{gamma}, env.mock.Loads())

	id := strings.TrimSpace(env.mustExec("playlist", "create", "Mix"))
	env.mustExec("playlist", "add", id, beta, alpha)

	env.mock = player.NewMock(time.Minute)
	r = env.exec("n\nq\n", "play", "--playlist", id)
	require.Equal(t, 0, r.code, r.err)
	assert.Equal(t, []string{beta, alpha}, env.mock.Loads())

	env.mock = player.NewMock(time.Minute)
	r = env.exec("q\n", "play", "--favorites")
	require.Equal(t, 0, r.code, r.err)
	assert.Contains(t, r.out, "Nothing to play")

	env.mock = player.NewMock(time.Minute)
	r = env.exec("f\nq\n", "play", "--album", "Record")
	require.Equal(t, 0, r.code, r.err)
	assert.Equal(t, []string{alpha}, env.mock.Loads())

	out := env.mustExec("tracks", "--favorites")
	assert.Contains(t, out, "Alpha")
	assert.Contains(t, out, "1 tracks")
}

// recordingNotifier keeps every notification it is asked to show.
type recordingNotifier struct {
	mu     sync.Mutex
	sent   []notify.Notification
	closed []uint32
}

func (r *recordingNotifier) Notify(n notify.Notification) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return 7, nil
}

func (r *recordingNotifier) Close(id uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = append(r.closed, id)
	return nil
}

func TestSession_TrackChangedAnnounces(t *testing.T) {
	rec := &recordingNotifier{}
	s, out := newSession(t, player.NewMock(time.Minute))
	s.announcer = notify.NewAnnouncer(rec, time.Second, nil)

	tracks := sessionTracks()
	s.trackChanged(playback.TrackChange{Current: &tracks[1]})
	s.trackChanged(playback.TrackChange{})

	assert.Equal(t, "> Beta - Band [1:00]\n", out.String())
	require.Len(t, rec.sent, 1)
	assert.Equal(t, "Beta", rec.sent[0].Title)

	require.NoError(t, s.announcer.Close())
	assert.Equal(t, []uint32{7}, rec.closed)
}

func TestPlay_NotifyFlag(t *testing.T) {
	env := newCLIEnv(t)
	env.seedLibrary()
	rec := &recordingNotifier{}
	env.notifier = rec

	r := env.exec("q\n", "play", "--notify", "gama")
	require.Equal(t, 0, r.code, r.err)
	assert.Len(t, env.mock.Loads(), 1)

	// Whatever was shown is taken down when the session ends.
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.sent) > 0 {
		assert.Equal(t, []uint32{7}, rec.closed)
	}
}
