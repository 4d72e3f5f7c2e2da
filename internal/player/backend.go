// Package player plays local audio files through the beep speaker and
// reports progress as playback.Status updates.
package player

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"go.uber.org/zap"

	"github.com/llehouerou/pocketwaves/internal/playback"
)

var errNotLoaded = errors.New("no track loaded")

// Backend implements playback.Backend.
type Backend struct {
	out  output
	log  *zap.Logger
	tick time.Duration

	mu       sync.Mutex
	ctrl     *beep.Ctrl
	volume   *effects.Volume
	streamer beep.StreamSeekCloser
	format   beep.Format
	level    float64
	muted    bool
	reported bool // DidJustFinish already sent for this load

	// Written from the output callback, which runs under the output lock.
	seq      atomic.Uint64
	finished atomic.Bool

	subsMu sync.Mutex
	subs   map[int]func(playback.Status)
	nextID int

	done      chan struct{}
	closeOnce sync.Once
}

var _ playback.Backend = (*Backend)(nil)

type Option func(*Backend)

func WithLogger(log *zap.Logger) Option {
	return func(b *Backend) { b.log = log }
}

// WithTickInterval sets how often status is reported while a track is loaded.
func WithTickInterval(d time.Duration) Option {
	return func(b *Backend) {
		if d > 0 {
			b.tick = d
		}
	}
}

// WithVolume sets the initial volume level between 0 and 1.
func WithVolume(level float64) Option {
	return func(b *Backend) { b.level = clampLevel(level) }
}

func withOutput(o output) Option {
	return func(b *Backend) { b.out = o }
}

// New creates a backend and starts its status ticker.
func New(opts ...Option) *Backend {
	b := &Backend{
		out:   &speakerOutput{},
		log:   zap.NewNop(),
		tick:  250 * time.Millisecond,
		level: 1,
		subs:  make(map[int]func(playback.Status)),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.statusLoop()
	return b
}

// Load stops the current track and opens uri paused at the start.
func (b *Backend) Load(ctx context.Context, uri string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s, format, err := openStream(uri)
	if err != nil {
		return err
	}
	if err := b.out.Init(outputRate); err != nil {
		s.Close()
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.unloadLocked()

	var src beep.Streamer = s
	if format.SampleRate != outputRate {
		src = beep.Resample(4, format.SampleRate, outputRate, s)
	}
	b.streamer = s
	b.format = format
	b.ctrl = &beep.Ctrl{Streamer: src, Paused: true}
	b.volume = &effects.Volume{Streamer: b.ctrl, Base: 2}
	b.applyVolumeLocked()
	b.finished.Store(false)
	b.reported = false
	b.out.Play(b.sequenceLocked())

	b.log.Debug("track loaded",
		zap.String("path", uri),
		zap.Duration("duration", format.SampleRate.D(s.Len())),
	)
	return nil
}

// sequenceLocked wraps the volume stage with an end-of-stream callback bound
// to the current load.
func (b *Backend) sequenceLocked() beep.Streamer {
	seq := b.seq.Add(1)
	return beep.Seq(b.volume, beep.Callback(func() {
		if b.seq.Load() == seq {
			b.finished.Store(true)
		}
	}))
}

// rearmLocked puts a finished track back on the output so that a seek or
// play after the end resumes audio.
func (b *Backend) rearmLocked() {
	if !b.finished.Load() {
		return
	}
	b.finished.Store(false)
	b.reported = false
	b.out.Play(b.sequenceLocked())
}

func (b *Backend) Play(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctrl == nil {
		return errNotLoaded
	}
	if b.finished.Load() {
		b.out.Lock()
		err := b.streamer.Seek(0)
		b.out.Unlock()
		if err != nil {
			return err
		}
		b.rearmLocked()
	}
	b.out.Lock()
	b.ctrl.Paused = false
	b.out.Unlock()
	return nil
}

func (b *Backend) Pause(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctrl == nil {
		return errNotLoaded
	}
	b.out.Lock()
	b.ctrl.Paused = true
	b.out.Unlock()
	return nil
}

// Seek moves to pos, clamped to the track bounds.
func (b *Backend) Seek(ctx context.Context, pos time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.streamer == nil {
		return errNotLoaded
	}

	b.out.Lock()
	n := b.format.SampleRate.N(max(pos, 0))
	n = min(n, max(b.streamer.Len()-1, 0))
	err := b.streamer.Seek(n)
	b.out.Unlock()
	if err != nil {
		return err
	}
	b.rearmLocked()
	return nil
}

// Subscribe registers fn for status reports. The returned func removes it.
func (b *Backend) Subscribe(fn func(playback.Status)) func() {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	return func() {
		b.subsMu.Lock()
		defer b.subsMu.Unlock()
		delete(b.subs, id)
	}
}

// Close stops the ticker and releases the current track.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		close(b.done)
		b.mu.Lock()
		b.unloadLocked()
		b.mu.Unlock()
	})
	return nil
}

func (b *Backend) unloadLocked() {
	if b.streamer == nil {
		return
	}
	// Invalidate the pending callback before clearing.
	b.seq.Add(1)
	b.out.Clear()
	if err := b.streamer.Close(); err != nil {
		b.log.Warn("close stream", zap.Error(err))
	}
	b.streamer = nil
	b.ctrl = nil
	b.volume = nil
}

func (b *Backend) statusLoop() {
	ticker := time.NewTicker(b.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.report()
		case <-b.done:
			return
		}
	}
}

// report sends the current status to every subscriber. Nothing is sent
// while no track is loaded.
func (b *Backend) report() {
	st, ok := b.status()
	if !ok {
		return
	}
	b.subsMu.Lock()
	fns := make([]func(playback.Status), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.subsMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

func (b *Backend) status() (playback.Status, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.streamer == nil {
		return playback.Status{}, false
	}

	b.out.Lock()
	pos := b.format.SampleRate.D(b.streamer.Position())
	length := b.format.SampleRate.D(b.streamer.Len())
	paused := b.ctrl.Paused
	b.out.Unlock()

	finished := b.finished.Load()
	st := playback.Status{
		Position: pos,
		Duration: length,
		Playing:  !paused && !finished,
	}
	if finished && !b.reported {
		st.DidJustFinish = true
		b.reported = true
	}
	return st, true
}
