package playback

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestEngine returns an engine without settle delay.
func newTestEngine(t *testing.T, opts ...Option) (*Engine, *mockBackend) {
	t.Helper()
	b := newMockBackend()
	opts = append([]Option{WithSettleDelay(0), WithRand(rand.New(rand.NewPCG(1, 2)))}, opts...)
	e := New(b, opts...)
	t.Cleanup(func() { e.Close() })
	return e, b
}

func TestPlayQueue_StartsTrack(t *testing.T) {
	hist := &memoryHistory{}
	e, b := newTestEngine(t, WithHistory(hist))
	ctx := context.Background()
	tracks := testTracks("a", "b", "c")

	require.NoError(t, e.PlayQueue(ctx, tracks[1], tracks, "", ByAlbum{Album: "Record", Artist: "Band"}))

	snap := e.Snapshot()
	require.NotNil(t, snap.Current)
	assert.Equal(t, "b", snap.Current.Title)
	assert.Equal(t, 1, snap.Index)
	assert.Equal(t, []string{"a", "b", "c"}, queueIDs(snap.Queue))
	assert.Equal(t, snap.Queue, snap.OriginalQueue)
	assert.Equal(t, "Record - Band", snap.Title)
	assert.Equal(t, ByAlbum{Album: "Record", Artist: "Band"}, snap.Origin)
	assert.True(t, snap.Playing())
	assert.Equal(t, []string{"load /music/b.mp3", "play"}, b.takeCalls())
	assert.Equal(t, []string{"/music/b.mp3"}, hist.all())
}

func TestPlay_WaitsForSettleDelay(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		b := newMockBackend()
		e := New(b)
		defer e.Close()
		tracks := testTracks("a")

		start := time.Now()
		require.NoError(t, e.Play(context.Background(), tracks[0]))
		assert.Equal(t, 150*time.Millisecond, time.Since(start))
		assert.Equal(t, []string{"load /music/a.mp3", "play"}, b.takeCalls())
	})
}

func TestPlay_NewerStartWinsDuringSettle(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		b := newMockBackend()
		e := New(b)
		defer e.Close()
		tracks := testTracks("a", "b")
		ctx := context.Background()

		done := make(chan error, 1)
		go func() { done <- e.Play(ctx, tracks[0]) }()
		time.Sleep(50 * time.Millisecond)
		require.NoError(t, e.Play(ctx, tracks[1]))
		require.NoError(t, <-done)

		assert.Equal(t, []string{"load /music/a.mp3", "load /music/b.mp3", "play"}, b.takeCalls())
		assert.Equal(t, "b", e.Snapshot().Current.Title)
	})
}

func TestTogglePlayPause(t *testing.T) {
	e, b := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.TogglePlayPause(ctx))
	assert.Empty(t, b.takeCalls(), "no-op without a current track")

	tracks := testTracks("a")
	require.NoError(t, e.Play(ctx, tracks[0]))
	b.takeCalls()

	require.NoError(t, e.TogglePlayPause(ctx))
	assert.Equal(t, StatePaused, e.Snapshot().State)
	require.NoError(t, e.TogglePlayPause(ctx))
	assert.Equal(t, StatePlaying, e.Snapshot().State)
	assert.Equal(t, []string{"pause", "play"}, b.takeCalls())
}

func TestSeekTo_PositionFollowsBackend(t *testing.T) {
	e, b := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Play(ctx, testTracks("a")[0]))
	b.takeCalls()

	require.NoError(t, e.SeekTo(ctx, 42*time.Second))
	assert.Equal(t, []string{"seek 42s"}, b.takeCalls())
	assert.Zero(t, e.Snapshot().Position, "position is not set directly")

	b.emit(Status{Position: 42 * time.Second, Duration: time.Minute, Playing: true})
	snap := e.Snapshot()
	assert.Equal(t, 42*time.Second, snap.Position)
	assert.Equal(t, time.Minute, snap.Duration)
}

func TestPlayNext(t *testing.T) {
	tracks := testTracks("a", "b", "c")

	t.Run("advances", func(t *testing.T) {
		e, _ := newTestEngine(t)
		ctx := context.Background()
		require.NoError(t, e.PlayQueue(ctx, tracks[0], tracks, "", nil))
		require.NoError(t, e.PlayNext(ctx))
		assert.Equal(t, "b", e.Snapshot().Current.Title)
	})

	t.Run("repeat all wraps", func(t *testing.T) {
		e, _ := newTestEngine(t)
		ctx := context.Background()
		e.ToggleRepeatMode(ctx)
		require.NoError(t, e.PlayQueue(ctx, tracks[2], tracks, "", nil))
		require.NoError(t, e.PlayNext(ctx))
		snap := e.Snapshot()
		assert.Equal(t, "a", snap.Current.Title)
		assert.True(t, snap.Playing())
	})

	t.Run("stops at end without repeat", func(t *testing.T) {
		e, b := newTestEngine(t)
		ctx := context.Background()
		require.NoError(t, e.PlayQueue(ctx, tracks[2], tracks, "", nil))
		b.emit(Status{Position: 10 * time.Second, Playing: true})
		b.takeCalls()

		require.NoError(t, e.PlayNext(ctx))
		snap := e.Snapshot()
		assert.Equal(t, "c", snap.Current.Title)
		assert.False(t, snap.Playing())
		assert.Equal(t, 10*time.Second, snap.Position, "position kept")
		assert.Equal(t, []string{"pause"}, b.takeCalls())
	})

	t.Run("repeat one still advances on manual skip", func(t *testing.T) {
		e, _ := newTestEngine(t)
		ctx := context.Background()
		e.ToggleRepeatMode(ctx)
		e.ToggleRepeatMode(ctx)
		require.NoError(t, e.PlayQueue(ctx, tracks[0], tracks, "", nil))
		require.NoError(t, e.PlayNext(ctx))
		assert.Equal(t, "b", e.Snapshot().Current.Title)
	})
}

func TestPlayPrev(t *testing.T) {
	tracks := testTracks("a", "b", "c")

	t.Run("restarts after threshold", func(t *testing.T) {
		e, b := newTestEngine(t)
		ctx := context.Background()
		require.NoError(t, e.PlayQueue(ctx, tracks[1], tracks, "", nil))
		b.emit(Status{Position: 3*time.Second + time.Millisecond, Playing: true})
		b.takeCalls()

		require.NoError(t, e.PlayPrev(ctx))
		assert.Equal(t, []string{"seek 0s"}, b.takeCalls())
		assert.Equal(t, "b", e.Snapshot().Current.Title)
	})

	t.Run("goes back before threshold", func(t *testing.T) {
		e, b := newTestEngine(t)
		ctx := context.Background()
		require.NoError(t, e.PlayQueue(ctx, tracks[1], tracks, "", nil))
		b.emit(Status{Position: 3 * time.Second, Playing: true})

		require.NoError(t, e.PlayPrev(ctx))
		assert.Equal(t, "a", e.Snapshot().Current.Title)
	})

	t.Run("clamps at first track", func(t *testing.T) {
		e, _ := newTestEngine(t)
		ctx := context.Background()
		require.NoError(t, e.PlayQueue(ctx, tracks[0], tracks, "", nil))
		require.NoError(t, e.PlayPrev(ctx))
		assert.Equal(t, "a", e.Snapshot().Current.Title)
	})

	t.Run("repeat all wraps to last", func(t *testing.T) {
		e, _ := newTestEngine(t)
		ctx := context.Background()
		e.ToggleRepeatMode(ctx)
		require.NoError(t, e.PlayQueue(ctx, tracks[0], tracks, "", nil))
		require.NoError(t, e.PlayPrev(ctx))
		assert.Equal(t, "c", e.Snapshot().Current.Title)
	})
}

func TestOnTrackEnd(t *testing.T) {
	tracks := testTracks("a", "b")

	t.Run("repeat one replays without advancing", func(t *testing.T) {
		hist := &memoryHistory{}
		e, b := newTestEngine(t, WithHistory(hist))
		ctx := context.Background()
		e.ToggleRepeatMode(ctx)
		e.ToggleRepeatMode(ctx)
		require.NoError(t, e.PlayQueue(ctx, tracks[0], tracks, "", nil))
		b.takeCalls()

		require.NoError(t, e.OnTrackEnd(ctx))
		assert.Equal(t, []string{"seek 0s", "play"}, b.takeCalls())
		assert.Equal(t, "a", e.Snapshot().Current.Title)
		assert.Len(t, hist.all(), 2)
	})

	t.Run("stops after last track", func(t *testing.T) {
		e, b := newTestEngine(t)
		ctx := context.Background()
		require.NoError(t, e.PlayQueue(ctx, tracks[1], tracks, "", nil))
		b.takeCalls()

		require.NoError(t, e.OnTrackEnd(ctx))
		snap := e.Snapshot()
		assert.Equal(t, "b", snap.Current.Title)
		assert.False(t, snap.Playing())
		assert.Empty(t, b.takeCalls(), "track 0 is not replayed")
	})

	t.Run("repeat all wraps", func(t *testing.T) {
		e, _ := newTestEngine(t)
		ctx := context.Background()
		e.ToggleRepeatMode(ctx)
		require.NoError(t, e.PlayQueue(ctx, tracks[1], tracks, "", nil))
		require.NoError(t, e.OnTrackEnd(ctx))
		assert.Equal(t, "a", e.Snapshot().Current.Title)
	})
}

func TestBackendFinishAdvances(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		b := newMockBackend()
		e := New(b, WithSettleDelay(0))
		defer e.Close()
		tracks := testTracks("a", "b")
		require.NoError(t, e.PlayQueue(context.Background(), tracks[0], tracks, "", nil))

		b.emit(Status{Position: time.Minute, Duration: time.Minute, DidJustFinish: true})
		synctest.Wait()

		snap := e.Snapshot()
		assert.Equal(t, "b", snap.Current.Title)
		assert.True(t, snap.Playing())
	})
}

func TestToggleShuffle_PinsCurrentTrack(t *testing.T) {
	for _, n := range []int{1, 2, 5, 20} {
		names := make([]string, n)
		for i := range names {
			names[i] = string(rune('a' + i))
		}
		tracks := testTracks(names...)

		for _, pick := range []int{0, n / 2, n - 1} {
			e, _ := newTestEngine(t)
			ctx := context.Background()
			require.NoError(t, e.PlayQueue(ctx, tracks[pick], tracks, "", nil))

			assert.True(t, e.ToggleShuffle(ctx))
			snap := e.Snapshot()
			require.Len(t, snap.Queue, n)
			assert.Equal(t, tracks[pick].ID, snap.Queue[0].ID, "n=%d pick=%d", n, pick)
			assert.ElementsMatch(t, queueIDs(tracks), queueIDs(snap.Queue))
			assert.Equal(t, 0, snap.Index)

			assert.False(t, e.ToggleShuffle(ctx))
			snap = e.Snapshot()
			assert.Equal(t, queueIDs(tracks), queueIDs(snap.Queue), "unshuffle restores order")
			assert.Equal(t, pick, snap.Index)
		}
	}
}

func TestToggleShuffle_PermutesRest(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	tracks := testTracks("a", "b", "c", "d", "e", "f", "g", "h")
	require.NoError(t, e.PlayQueue(ctx, tracks[0], tracks, "", nil))

	changed := false
	for range 10 {
		e.ToggleShuffle(ctx)
		if !slices.Equal(queueIDs(e.Snapshot().Queue), queueIDs(tracks)) {
			changed = true
		}
		e.ToggleShuffle(ctx)
	}
	assert.True(t, changed, "shuffle never changed the order")
}

func TestPlayQueue_ShuffleOn(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	e.ToggleShuffle(ctx)
	tracks := testTracks("a", "b", "c", "d")

	require.NoError(t, e.PlayQueue(ctx, tracks[2], tracks, "", nil))
	snap := e.Snapshot()
	assert.Equal(t, "c", snap.Queue[0].Title)
	assert.Equal(t, queueIDs(tracks), queueIDs(snap.OriginalQueue))
}

func TestToggleRepeatMode_Cycles(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	want := []RepeatMode{RepeatAll, RepeatOne, RepeatOff, RepeatAll}
	for _, w := range want {
		assert.Equal(t, w, e.ToggleRepeatMode(ctx))
	}
}

func TestSettingsPersisted(t *testing.T) {
	store := &memorySettings{}
	store.s.RepeatMode = int(RepeatOne)
	store.s.LyricsVisible = true

	e, _ := newTestEngine(t, WithSettings(store))
	snap := e.Snapshot()
	assert.Equal(t, RepeatOne, snap.Repeat)
	assert.True(t, snap.LyricsVisible)
	assert.False(t, snap.Shuffle)

	ctx := context.Background()
	e.ToggleShuffle(ctx)
	e.ToggleRepeatMode(ctx)
	assert.False(t, e.ToggleLyricsView(ctx))

	assert.Equal(t, 3, store.saves)
	assert.True(t, store.s.Shuffle)
	assert.Equal(t, int(RepeatOff), store.s.RepeatMode)
	assert.False(t, store.s.LyricsVisible)
}

func TestBackendFailure_KeepsQueue(t *testing.T) {
	e, b := newTestEngine(t)
	sub := e.Subscribe()
	ctx := context.Background()
	tracks := testTracks("a", "b")
	boom := errors.New("decoder exploded")
	b.failOn("load", boom)

	err := e.PlayQueue(ctx, tracks[0], tracks, "", nil)
	require.ErrorIs(t, err, boom)

	snap := e.Snapshot()
	assert.Equal(t, StatePaused, snap.State)
	require.NotNil(t, snap.Current)
	assert.Equal(t, "a", snap.Current.Title)
	assert.Len(t, snap.Queue, 2)

	ev := <-sub.Error
	assert.Equal(t, "load", ev.Operation)
	assert.Equal(t, "/music/a.mp3", ev.URI)
	assert.ErrorIs(t, ev.Err, boom)

	// Retry succeeds once the backend recovers.
	b.failOn("load", nil)
	require.NoError(t, e.PlayNext(ctx))
	assert.True(t, e.Snapshot().Playing())
}

func TestToggleFavorite(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.ToggleFavorite(context.Background(), "x")
	assert.Error(t, err)

	favs := &memoryFavorites{}
	e, _ = newTestEngine(t, WithFavorites(favs))
	sub := e.Subscribe()
	on, err := e.ToggleFavorite(context.Background(), "/music/a.mp3")
	require.NoError(t, err)
	assert.True(t, on)
	assert.Equal(t, FavoriteChange{TrackID: "/music/a.mp3", Favorite: true}, <-sub.FavoriteChanged)
}

func TestQueueMutations(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	tracks := testTracks("a", "b", "c", "d", "e")
	require.NoError(t, e.PlayQueue(ctx, tracks[0], tracks[:2], "", nil))

	e.AddToQueue(tracks[2])
	e.InsertNext(tracks[3])
	assert.Equal(t, []string{"a", "d", "b", "c"}, queueIDs(e.Snapshot().Queue))

	require.NoError(t, e.RemoveFromQueue(tracks[1].ID))
	assert.ErrorIs(t, e.RemoveFromQueue(tracks[0].ID), ErrCurrentTrack)
	snap := e.Snapshot()
	assert.Equal(t, []string{"a", "d", "c"}, queueIDs(snap.Queue))
	assert.Equal(t, []string{"a", "d", "c"}, queueIDs(snap.OriginalQueue))

	require.NoError(t, e.PlayNext(ctx))
	assert.Equal(t, "d", e.Snapshot().Current.Title)
}

func TestCurrentLyrics(t *testing.T) {
	e, b := newTestEngine(t)
	track := testTracks("a")[0]
	track.LRC = "[00:01.00]one\n[00:05.00]two"
	require.NoError(t, e.Play(context.Background(), track))

	lyr, line := e.CurrentLyrics()
	require.NotNil(t, lyr)
	assert.Equal(t, -1, line)

	b.emit(Status{Position: 6 * time.Second, Playing: true})
	_, line = e.CurrentLyrics()
	assert.Equal(t, 1, line)

	require.NoError(t, e.Play(context.Background(), testTracks("b")[0]))
	lyr, line = e.CurrentLyrics()
	assert.Nil(t, lyr)
	assert.Equal(t, -1, line)
}

func TestEvents(t *testing.T) {
	e, b := newTestEngine(t)
	sub := e.Subscribe()
	ctx := context.Background()
	tracks := testTracks("a", "b")

	require.NoError(t, e.PlayQueue(ctx, tracks[0], tracks, "Mix", SearchResults{Query: "x"}))

	qc := <-sub.QueueChanged
	assert.Equal(t, "Mix", qc.Title)
	assert.Equal(t, 0, qc.Index)

	tc := <-sub.TrackChanged
	assert.Nil(t, tc.Previous)
	assert.Equal(t, "a", tc.Current.Title)

	assert.Equal(t, StateChange{Previous: StateStopped, Current: StatePaused}, <-sub.StateChanged)
	assert.Equal(t, StateChange{Previous: StatePaused, Current: StatePlaying}, <-sub.StateChanged)

	b.emit(Status{Position: time.Second, Duration: time.Minute, Playing: true})
	assert.Equal(t, PositionChange{Position: time.Second, Duration: time.Minute}, <-sub.PositionChanged)

	e.ToggleRepeatMode(ctx)
	assert.Equal(t, RepeatAll, (<-sub.ModeChanged).RepeatMode)
}

func TestClose(t *testing.T) {
	e, b := newTestEngine(t)
	sub := e.Subscribe()
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	<-sub.Done
	assert.Zero(t, b.subscribers())

	late := e.Subscribe()
	<-late.Done
}

func TestPlay_TrackOutsideQueueIsPinned(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	tracks := testTracks("a", "b", "c")
	require.NoError(t, e.PlayQueue(ctx, tracks[0], tracks, "", AllSongs{}))

	extra := testTracks("x")[0]
	require.NoError(t, e.Play(ctx, extra))
	snap := e.Snapshot()
	assert.Equal(t, []string{"a", "x", "b", "c"}, queueIDs(snap.Queue))
	assert.Equal(t, 1, snap.Index)

	require.NoError(t, e.PlayNext(ctx))
	assert.Equal(t, "b", e.Snapshot().Current.Title, "next continues after the pinned track")

	e.ToggleShuffle(ctx)
	e.ToggleShuffle(ctx)
	assert.Equal(t, []string{"a", "x", "b", "c"}, queueIDs(e.Snapshot().Queue), "unshuffle keeps the pinned track")
}

func TestPlayQueue_TrackOutsideQueueIsPrepended(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	tracks := testTracks("a", "b")
	extra := testTracks("x")[0]

	require.NoError(t, e.PlayQueue(ctx, extra, tracks, "", AllSongs{}))
	snap := e.Snapshot()
	assert.Equal(t, []string{"x", "a", "b"}, queueIDs(snap.Queue))
	assert.Equal(t, snap.Queue, snap.OriginalQueue)
	assert.Equal(t, 0, snap.Index)
}
