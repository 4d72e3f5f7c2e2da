// Package playback owns the current track, the queue and the shuffle and
// repeat rules, and drives an audio Backend.
package playback

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/llehouerou/pocketwaves/internal/library"
	"github.com/llehouerou/pocketwaves/internal/lyrics"
	"github.com/llehouerou/pocketwaves/internal/state"
)

// ErrCurrentTrack is returned when removing the playing track from the queue.
var ErrCurrentTrack = errors.New("cannot remove the current track")

var errNoFavorites = errors.New("no favorites store configured")

// SettingsStore persists the shuffle, repeat and lyrics flags.
type SettingsStore interface {
	PlayerSettings(ctx context.Context) (state.PlayerSettings, error)
	SavePlayerSettings(ctx context.Context, s state.PlayerSettings) error
}

type FavoritesStore interface {
	ToggleFavorite(ctx context.Context, trackID string) (bool, error)
}

// HistoryRecorder is told about every track that starts playing.
type HistoryRecorder interface {
	RecordHistory(ctx context.Context, trackID string) error
}

// Snapshot is a copy of the engine state.
type Snapshot struct {
	Current       *library.Track
	Index         int
	Queue         []library.Track
	OriginalQueue []library.Track
	Title         string
	Origin        Origin
	Shuffle       bool
	Repeat        RepeatMode
	State         State
	Position      time.Duration
	Duration      time.Duration
	LyricsVisible bool
}

// Playing reports whether audio is playing.
func (s Snapshot) Playing() bool { return s.State == StatePlaying }

type Engine struct {
	backend   Backend
	log       *zap.Logger
	settings  SettingsStore
	favorites FavoritesStore
	history   HistoryRecorder
	settle    time.Duration
	restart   time.Duration
	rng       *rand.Rand

	mu            sync.Mutex
	current       *library.Track
	lyrics        *lyrics.Lyrics
	queue         []library.Track
	original      []library.Track
	title         string
	origin        Origin
	shuffle       bool
	repeat        RepeatMode
	playing       bool
	position      time.Duration
	duration      time.Duration
	lyricsVisible bool
	loadSeq       uint64
	closed        bool

	subsMu      sync.Mutex
	subs        []*Subscription
	unsubscribe func()
}

type Option func(*Engine)

func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithSettings loads persisted flags at construction and saves them on toggle.
func WithSettings(s SettingsStore) Option {
	return func(e *Engine) { e.settings = s }
}

func WithFavorites(f FavoritesStore) Option {
	return func(e *Engine) { e.favorites = f }
}

func WithHistory(h HistoryRecorder) Option {
	return func(e *Engine) { e.history = h }
}

// WithSettleDelay sets the pause between loading a track and starting it.
func WithSettleDelay(d time.Duration) Option {
	return func(e *Engine) { e.settle = max(d, 0) }
}

// WithRestartThreshold sets the position after which PlayPrev restarts the
// current track instead of going back.
func WithRestartThreshold(d time.Duration) Option {
	return func(e *Engine) { e.restart = d }
}

// WithRand sets the random source used for shuffling.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// New creates an engine bound to backend.
func New(backend Backend, opts ...Option) *Engine {
	e := &Engine{
		backend: backend,
		log:     zap.NewNop(),
		settle:  150 * time.Millisecond,
		restart: 3 * time.Second,
		origin:  AllSongs{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // shuffle order
	}

	if e.settings != nil {
		s, err := e.settings.PlayerSettings(context.Background())
		if err != nil {
			e.log.Warn("load player settings", zap.Error(err))
		} else {
			e.shuffle = s.Shuffle
			e.repeat = validRepeatMode(s.RepeatMode)
			e.lyricsVisible = s.LyricsVisible
		}
	}

	e.unsubscribe = backend.Subscribe(e.handleStatus)
	return e
}

// Play starts track in the current queue. A track missing from the queue is
// inserted after the current one so next and previous stay relative to it.
func (e *Engine) Play(ctx context.Context, track library.Track) error {
	e.mu.Lock()
	missing := indexOf(e.queue, track.ID) < 0
	var qc QueueChange
	if missing {
		e.queue = insertAfterCurrent(e.queue, e.current, track)
		if indexOf(e.original, track.ID) < 0 {
			e.original = insertAfterCurrent(e.original, e.current, track)
		}
		qc = e.queueChangeLocked(&track)
	}
	e.mu.Unlock()

	if missing {
		e.broadcast(func(s *Subscription) { send(s.queueCh, qc) })
	}
	return e.start(ctx, track)
}

// PlayQueue replaces the queue and starts track. With shuffle on, the new
// queue is shuffled with track first. A track missing from queue is
// prepended to it.
func (e *Engine) PlayQueue(ctx context.Context, track library.Track, queue []library.Track, title string, origin Origin) error {
	if origin == nil {
		origin = AllSongs{}
	}
	if title == "" {
		title = origin.String()
	}

	e.mu.Lock()
	e.original = slices.Clone(queue)
	if indexOf(e.original, track.ID) < 0 {
		e.original = slices.Insert(e.original, 0, track)
	}
	if e.shuffle {
		e.queue = e.shuffled(e.original, &track)
	} else {
		e.queue = slices.Clone(e.original)
	}
	e.title = title
	e.origin = origin
	qc := e.queueChangeLocked(&track)
	e.mu.Unlock()

	e.broadcast(func(s *Subscription) { send(s.queueCh, qc) })
	return e.start(ctx, track)
}

// TogglePlayPause pauses or resumes the current track. It does nothing when
// no track is loaded.
func (e *Engine) TogglePlayPause(ctx context.Context) error {
	e.mu.Lock()
	if e.current == nil {
		e.mu.Unlock()
		return nil
	}
	playing := e.playing
	uri := e.current.URI
	e.mu.Unlock()

	if playing {
		if err := e.backend.Pause(ctx); err != nil {
			return e.fail("pause", uri, err)
		}
		e.setPlaying(false)
		return nil
	}
	if err := e.backend.Play(ctx); err != nil {
		return e.fail("play", uri, err)
	}
	e.setPlaying(true)
	return nil
}

// SeekTo asks the backend to seek. The engine position follows the next
// status report.
func (e *Engine) SeekTo(ctx context.Context, pos time.Duration) error {
	e.mu.Lock()
	if e.current == nil {
		e.mu.Unlock()
		return nil
	}
	uri := e.current.URI
	e.mu.Unlock()

	if err := e.backend.Seek(ctx, max(pos, 0)); err != nil {
		return e.fail("seek", uri, err)
	}
	return nil
}

// PlayNext advances the queue. Past the end it wraps with repeat-all and
// otherwise pauses on the last track.
func (e *Engine) PlayNext(ctx context.Context) error {
	next, ok := e.nextTrack()
	if !ok {
		return e.stop(ctx, true)
	}
	if next == nil {
		return nil
	}
	return e.start(ctx, *next)
}

// PlayPrev restarts the current track once past the restart threshold.
// Otherwise it moves back, wrapping with repeat-all and clamping at the
// first track.
func (e *Engine) PlayPrev(ctx context.Context) error {
	e.mu.Lock()
	if e.current == nil {
		e.mu.Unlock()
		return nil
	}
	if e.position > e.restart || len(e.queue) == 0 {
		uri := e.current.URI
		e.mu.Unlock()
		if err := e.backend.Seek(ctx, 0); err != nil {
			return e.fail("seek", uri, err)
		}
		return nil
	}

	idx := indexOf(e.queue, e.current.ID)
	prev := idx - 1
	if prev < 0 {
		if e.repeat == RepeatAll {
			prev = len(e.queue) - 1
		} else {
			prev = 0
		}
	}
	t := e.queue[prev]
	e.mu.Unlock()
	return e.start(ctx, t)
}

// OnTrackEnd handles the natural end of the current track. Repeat-one
// replays it; otherwise the queue advances, stopping at the end unless
// repeat-all is on.
func (e *Engine) OnTrackEnd(ctx context.Context) error {
	e.mu.Lock()
	if e.current == nil || e.closed {
		e.mu.Unlock()
		return nil
	}
	if e.repeat == RepeatOne {
		t := *e.current
		e.mu.Unlock()
		return e.replay(ctx, t)
	}
	e.mu.Unlock()

	next, ok := e.nextTrack()
	if !ok {
		return e.stop(ctx, false)
	}
	if next == nil {
		return nil
	}
	return e.start(ctx, *next)
}

// nextTrack returns the track after the current one. ok is false when the
// end of the queue was reached without repeat-all; a nil track with ok
// means there is nothing to play.
func (e *Engine) nextTrack() (*library.Track, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil || len(e.queue) == 0 {
		return nil, true
	}
	next := indexOf(e.queue, e.current.ID) + 1
	if next >= len(e.queue) {
		if e.repeat != RepeatAll {
			return nil, false
		}
		next = 0
	}
	t := e.queue[next]
	return &t, true
}

// ToggleShuffle flips shuffle. Turning it on pins the current track first
// and permutes the rest; turning it off restores the original order.
func (e *Engine) ToggleShuffle(ctx context.Context) bool {
	e.mu.Lock()
	e.shuffle = !e.shuffle
	if e.shuffle {
		e.queue = e.shuffled(e.original, e.current)
	} else {
		e.queue = slices.Clone(e.original)
	}
	on := e.shuffle
	qc := e.queueChangeLocked(e.current)
	mc := e.modeChangeLocked()
	e.mu.Unlock()

	e.broadcast(func(s *Subscription) {
		send(s.queueCh, qc)
		send(s.modeCh, mc)
	})
	e.saveSettings(ctx)
	return on
}

// ToggleRepeatMode cycles off, all, one.
func (e *Engine) ToggleRepeatMode(ctx context.Context) RepeatMode {
	e.mu.Lock()
	e.repeat = e.repeat.Next()
	mode := e.repeat
	mc := e.modeChangeLocked()
	e.mu.Unlock()

	e.broadcast(func(s *Subscription) { send(s.modeCh, mc) })
	e.saveSettings(ctx)
	return mode
}

// ToggleLyricsView flips lyrics visibility and returns the new value.
func (e *Engine) ToggleLyricsView(ctx context.Context) bool {
	e.mu.Lock()
	e.lyricsVisible = !e.lyricsVisible
	visible := e.lyricsVisible
	mc := e.modeChangeLocked()
	e.mu.Unlock()

	e.broadcast(func(s *Subscription) { send(s.modeCh, mc) })
	e.saveSettings(ctx)
	return visible
}

// ToggleFavorite flips the favorite flag of a track.
func (e *Engine) ToggleFavorite(ctx context.Context, trackID string) (bool, error) {
	if e.favorites == nil {
		return false, errNoFavorites
	}
	fav, err := e.favorites.ToggleFavorite(ctx, trackID)
	if err != nil {
		return false, fmt.Errorf("toggle favorite: %w", err)
	}
	fc := FavoriteChange{TrackID: trackID, Favorite: fav}
	e.broadcast(func(s *Subscription) { send(s.favoriteCh, fc) })
	return fav, nil
}

// AddToQueue appends tracks to the queue.
func (e *Engine) AddToQueue(tracks ...library.Track) {
	if len(tracks) == 0 {
		return
	}
	e.mu.Lock()
	e.queue = append(e.queue, tracks...)
	e.original = append(e.original, tracks...)
	qc := e.queueChangeLocked(e.current)
	e.mu.Unlock()

	e.broadcast(func(s *Subscription) { send(s.queueCh, qc) })
}

// InsertNext queues track right after the current one.
func (e *Engine) InsertNext(track library.Track) {
	e.mu.Lock()
	e.queue = insertAfterCurrent(e.queue, e.current, track)
	e.original = insertAfterCurrent(e.original, e.current, track)
	qc := e.queueChangeLocked(e.current)
	e.mu.Unlock()

	e.broadcast(func(s *Subscription) { send(s.queueCh, qc) })
}

// RemoveFromQueue removes a track from the queue. The current track cannot
// be removed.
func (e *Engine) RemoveFromQueue(trackID string) error {
	e.mu.Lock()
	if e.current != nil && e.current.ID == trackID {
		e.mu.Unlock()
		return ErrCurrentTrack
	}
	match := func(t library.Track) bool { return t.ID == trackID }
	e.queue = slices.DeleteFunc(e.queue, match)
	e.original = slices.DeleteFunc(e.original, match)
	qc := e.queueChangeLocked(e.current)
	e.mu.Unlock()

	e.broadcast(func(s *Subscription) { send(s.queueCh, qc) })
	return nil
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		Index:         -1,
		Queue:         slices.Clone(e.queue),
		OriginalQueue: slices.Clone(e.original),
		Title:         e.title,
		Origin:        e.origin,
		Shuffle:       e.shuffle,
		Repeat:        e.repeat,
		State:         e.stateLocked(),
		Position:      e.position,
		Duration:      e.duration,
		LyricsVisible: e.lyricsVisible,
	}
	if e.current != nil {
		t := *e.current
		snap.Current = &t
		snap.Index = indexOf(e.queue, t.ID)
	}
	return snap
}

// CurrentLyrics returns the lyrics of the current track and the index of
// the active line, -1 when none is active. Lyrics are nil when the track
// has none.
func (e *Engine) CurrentLyrics() (*lyrics.Lyrics, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lyrics, e.lyrics.LineAt(e.position)
}

// Subscribe creates a new event subscription.
func (e *Engine) Subscribe() *Subscription {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	sub := newSubscription()
	if e.isClosed() {
		sub.close()
		return sub
	}
	e.subs = append(e.subs, sub)
	return sub
}

// Close detaches from the backend and ends all subscriptions.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	if e.unsubscribe != nil {
		e.unsubscribe()
	}

	e.subsMu.Lock()
	for _, sub := range e.subs {
		sub.close()
	}
	e.subs = nil
	e.subsMu.Unlock()
	return nil
}

// start makes track current, loads it, waits for the backend to settle and
// starts playback. A newer start during the settle delay wins.
func (e *Engine) start(ctx context.Context, track library.Track) error {
	e.mu.Lock()
	prev := e.current
	prevState := e.stateLocked()
	t := track
	e.current = &t
	e.lyrics = lyrics.Parse(t.LRC)
	e.position = 0
	e.duration = t.Duration
	e.playing = false
	e.loadSeq++
	seq := e.loadSeq
	tc := TrackChange{Previous: prev, Current: &track, Index: indexOf(e.queue, t.ID)}
	e.mu.Unlock()

	e.broadcast(func(s *Subscription) { send(s.trackCh, tc) })
	if prevState != StatePaused {
		e.emitState(prevState, StatePaused)
	}

	if err := e.backend.Load(ctx, track.URI); err != nil {
		return e.fail("load", track.URI, err)
	}
	if err := sleepCtx(ctx, e.settle); err != nil {
		return e.fail("load", track.URI, err)
	}

	e.mu.Lock()
	stale := seq != e.loadSeq
	e.mu.Unlock()
	if stale {
		return nil
	}

	if err := e.backend.Play(ctx); err != nil {
		return e.fail("play", track.URI, err)
	}
	e.setPlaying(true)
	e.recordHistory(ctx, track.ID)
	return nil
}

// replay restarts the current track from the beginning.
func (e *Engine) replay(ctx context.Context, track library.Track) error {
	if err := e.backend.Seek(ctx, 0); err != nil {
		return e.fail("seek", track.URI, err)
	}
	if err := e.backend.Play(ctx); err != nil {
		return e.fail("play", track.URI, err)
	}
	e.setPlaying(true)
	e.recordHistory(ctx, track.ID)
	return nil
}

// stop leaves the current track selected and marks playback as not playing.
// The position is kept.
func (e *Engine) stop(ctx context.Context, pauseBackend bool) error {
	e.mu.Lock()
	if e.current == nil {
		e.mu.Unlock()
		return nil
	}
	uri := e.current.URI
	e.mu.Unlock()

	if pauseBackend {
		if err := e.backend.Pause(ctx); err != nil {
			return e.fail("pause", uri, err)
		}
	}
	e.setPlaying(false)
	return nil
}

// fail logs a backend failure, marks playback as not playing and notifies
// subscribers. The queue and current track are kept for a retry.
func (e *Engine) fail(op, uri string, err error) error {
	e.log.Error("playback backend failure",
		zap.String("operation", op),
		zap.String("uri", uri),
		zap.Error(err),
	)
	e.setPlaying(false)
	ev := ErrorEvent{Operation: op, URI: uri, Err: err}
	e.broadcast(func(s *Subscription) { send(s.errorCh, ev) })
	return fmt.Errorf("%s %s: %w", op, uri, err)
}

func (e *Engine) setPlaying(playing bool) {
	e.mu.Lock()
	prev := e.stateLocked()
	e.playing = playing
	cur := e.stateLocked()
	e.mu.Unlock()

	if prev != cur {
		e.emitState(prev, cur)
	}
}

// handleStatus receives backend status reports. The backend is the only
// source of the play position.
func (e *Engine) handleStatus(st Status) {
	e.mu.Lock()
	if e.closed || e.current == nil {
		e.mu.Unlock()
		return
	}
	prev := e.stateLocked()
	e.position = st.Position
	if st.Duration > 0 {
		e.duration = st.Duration
	}
	e.playing = st.Playing && !st.DidJustFinish
	cur := e.stateLocked()
	pc := PositionChange{Position: e.position, Duration: e.duration}
	e.mu.Unlock()

	e.broadcast(func(s *Subscription) { send(s.positionCh, pc) })
	if prev != cur {
		e.emitState(prev, cur)
	}

	if st.DidJustFinish {
		// Backend callbacks must not block on backend calls.
		go func() {
			if err := e.OnTrackEnd(context.Background()); err != nil {
				e.log.Warn("advance after track end", zap.Error(err))
			}
		}()
	}
}

func (e *Engine) recordHistory(ctx context.Context, trackID string) {
	if e.history == nil {
		return
	}
	if err := e.history.RecordHistory(ctx, trackID); err != nil {
		e.log.Warn("record history", zap.String("track", trackID), zap.Error(err))
	}
}

func (e *Engine) saveSettings(ctx context.Context) {
	if e.settings == nil {
		return
	}
	e.mu.Lock()
	s := state.PlayerSettings{
		Shuffle:       e.shuffle,
		RepeatMode:    int(e.repeat),
		LyricsVisible: e.lyricsVisible,
	}
	e.mu.Unlock()
	if err := e.settings.SavePlayerSettings(ctx, s); err != nil {
		e.log.Warn("save player settings", zap.Error(err))
	}
}

func (e *Engine) emitState(prev, cur State) {
	sc := StateChange{Previous: prev, Current: cur}
	e.broadcast(func(s *Subscription) { send(s.stateCh, sc) })
}

func (e *Engine) broadcast(fn func(*Subscription)) {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	for _, sub := range e.subs {
		fn(sub)
	}
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *Engine) stateLocked() State {
	switch {
	case e.current == nil:
		return StateStopped
	case e.playing:
		return StatePlaying
	default:
		return StatePaused
	}
}

func (e *Engine) queueChangeLocked(current *library.Track) QueueChange {
	idx := -1
	if current != nil {
		idx = indexOf(e.queue, current.ID)
	}
	return QueueChange{Tracks: slices.Clone(e.queue), Index: idx, Title: e.title, Origin: e.origin}
}

func (e *Engine) modeChangeLocked() ModeChange {
	return ModeChange{RepeatMode: e.repeat, Shuffle: e.shuffle, LyricsVisible: e.lyricsVisible}
}

// shuffled returns a permutation of tracks with current first. The rest is
// shuffled with Fisher-Yates. A current track missing from tracks is
// prepended.
func (e *Engine) shuffled(tracks []library.Track, current *library.Track) []library.Track {
	out := slices.Clone(tracks)
	rest := out
	if current != nil {
		if i := indexOf(out, current.ID); i >= 0 {
			out[0], out[i] = out[i], out[0]
		} else {
			out = slices.Insert(out, 0, *current)
		}
		rest = out[1:]
	}
	for i := len(rest) - 1; i > 0; i-- {
		j := e.rng.IntN(i + 1)
		rest[i], rest[j] = rest[j], rest[i]
	}
	return out
}

func indexOf(tracks []library.Track, id string) int {
	return slices.IndexFunc(tracks, func(t library.Track) bool { return t.ID == id })
}

func insertAfterCurrent(tracks []library.Track, current *library.Track, t library.Track) []library.Track {
	at := len(tracks)
	if current != nil {
		if i := indexOf(tracks, current.ID); i >= 0 {
			at = i + 1
		}
	}
	return slices.Insert(slices.Clone(tracks), at, t)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
