package library

import (
	"cmp"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/llehouerou/pocketwaves/internal/lyrics"
	"github.com/llehouerou/pocketwaves/internal/tags"
)

// Sync phases reported through ScanProgress.
const (
	PhaseDiscovering   = "discovering"
	PhaseProcessing    = "processing"
	PhaseCleaning      = "cleaning"
	PhaseDeduplicating = "deduplicating"
	PhaseDone          = "done"
)

// ScanProgress reports the progress of a library sync.
type ScanProgress struct {
	Phase       string
	Current     int
	Total       int
	CurrentFile string
	Stats       *SyncStats // Only populated when Phase == "done"
}

// SyncStats holds statistics for a completed sync.
type SyncStats struct {
	Discovered int
	Unchanged  int
	Added      int
	Failed     int
	Removed    int
	Duplicates int
}

// MetadataExtractor reads tags for one audio file.
type MetadataExtractor interface {
	Extract(path, fileName string, cache *tags.ArtworkCache) tags.Metadata
}

// Syncer reconciles the store with the files in the import directory and,
// when configured, a platform media index. One sync runs at a time.
type Syncer struct {
	lib       *Library
	extractor MetadataExtractor
	importDir string
	media     MediaIndex
	log       *zap.Logger

	chunkSize     int
	batchSize     int
	yieldEvery    int
	progressEvery time.Duration

	mu      sync.Mutex
	running atomic.Bool
}

type SyncOption func(*Syncer)

func WithSyncLogger(log *zap.Logger) SyncOption {
	return func(s *Syncer) { s.log = log }
}

// WithChunkSize sets how many files are read concurrently.
func WithChunkSize(n int) SyncOption {
	return func(s *Syncer) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithBatchSize sets how many new tracks are written per transaction.
func WithBatchSize(n int) SyncOption {
	return func(s *Syncer) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithYieldEvery sets how many chunks are processed between scheduler yields.
func WithYieldEvery(n int) SyncOption {
	return func(s *Syncer) {
		if n > 0 {
			s.yieldEvery = n
		}
	}
}

// WithProgressInterval throttles processing progress callbacks.
func WithProgressInterval(d time.Duration) SyncOption {
	return func(s *Syncer) { s.progressEvery = d }
}

func WithMediaIndex(idx MediaIndex) SyncOption {
	return func(s *Syncer) { s.media = idx }
}

func NewSyncer(lib *Library, extractor MetadataExtractor, importDir string, opts ...SyncOption) *Syncer {
	if abs, err := filepath.Abs(importDir); err == nil {
		importDir = abs
	}
	s := &Syncer{
		lib:           lib,
		extractor:     extractor,
		importDir:     importDir,
		log:           zap.NewNop(),
		chunkSize:     10,
		batchSize:     30,
		yieldEvery:    5,
		progressEvery: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Running reports whether a sync is in progress.
func (s *Syncer) Running() bool {
	return s.running.Load()
}

// Sync runs a full reconciliation and returns the resulting tracks sorted by
// title. If a sync is already running it returns an empty list at once.
// onProgress may be nil; it is called from the syncing goroutine.
func (s *Syncer) Sync(ctx context.Context, onProgress func(ScanProgress)) ([]Track, error) {
	if !s.mu.TryLock() {
		s.log.Debug("sync already running")
		return []Track{}, nil
	}
	defer s.mu.Unlock()
	s.running.Store(true)
	defer s.running.Store(false)

	r := newReporter(onProgress, s.progressEvery)
	stats := &SyncStats{}
	started := time.Now()

	// Phase 1: discover files and media assets
	r.report(ScanProgress{Phase: PhaseDiscovering})
	if err := EnsureImportDir(s.importDir); err != nil {
		s.log.Warn("prepare import directory", zap.String("path", s.importDir), zap.Error(err))
	}
	files := Discover(s.importDir)

	assets, mediaOwned := s.assets(ctx)
	discovered := make([]string, 0, len(files)+len(assets))
	discovered = append(discovered, files...)
	assetByURI := make(map[string]Asset, len(assets))
	for _, a := range assets {
		if _, dup := assetByURI[a.URI]; dup {
			continue
		}
		assetByURI[a.URI] = a
		discovered = append(discovered, a.URI)
	}
	stats.Discovered = len(discovered)

	// Phase 2: reconcile with the store and read new files
	existing, err := s.lib.AllTracks(ctx)
	if err != nil {
		return nil, err
	}
	suppressed, err := s.lib.suppressedURIs(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := make(map[string]Track, len(existing))
	var kept []Track
	for _, t := range existing {
		if isLocalFile(t.URI) || mediaOwned {
			snapshot[t.URI] = t
		} else {
			kept = append(kept, t)
		}
	}
	p := reconcile(snapshot, suppressed, discovered)
	stats.Unchanged = len(p.unchanged)

	added, procErr := s.process(ctx, p.fresh, assetByURI, r, stats)
	if procErr != nil {
		return nil, procErr
	}

	// Phase 3: remove tracks whose files are gone
	r.report(ScanProgress{Phase: PhaseCleaning, Total: len(p.missing)})
	if len(p.missing) > 0 {
		ids := make([]string, len(p.missing))
		for i, t := range p.missing {
			ids[i] = t.ID
		}
		n, err := s.lib.DeleteTracks(ctx, ids)
		if err != nil {
			s.log.Error("remove missing tracks", zap.Int("count", len(ids)), zap.Error(err))
			p.unchanged = append(p.unchanged, p.missing...)
		} else {
			stats.Removed = n
		}
	}
	if err := s.lib.forgetDuplicates(ctx, p.forgotten); err != nil {
		s.log.Warn("prune duplicate records", zap.Error(err))
	}

	// Phase 4: collapse duplicates
	r.report(ScanProgress{Phase: PhaseDeduplicating})
	removed, err := s.lib.Deduplicate(ctx)
	if err != nil {
		s.log.Error("deduplicate", zap.Error(err))
	}
	stats.Duplicates = len(removed)

	result := make([]Track, 0, len(kept)+len(p.unchanged)+len(added))
	result = append(result, kept...)
	result = append(result, p.unchanged...)
	result = append(result, added...)
	if len(removed) > 0 {
		gone := make(map[string]bool, len(removed))
		for _, id := range removed {
			gone[id] = true
		}
		result = slices.DeleteFunc(result, func(t Track) bool { return gone[t.ID] })
	}
	sortByTitle(result)

	r.report(ScanProgress{Phase: PhaseDone, Current: len(result), Total: len(result), Stats: stats})
	s.log.Info("library sync complete",
		zap.Int("discovered", stats.Discovered),
		zap.Int("added", stats.Added),
		zap.Int("removed", stats.Removed),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("failed", stats.Failed),
		zap.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

// assets collects media index assets. The second result is false when no
// index is configured or it failed, in which case stored assets are left
// alone.
func (s *Syncer) assets(ctx context.Context) ([]Asset, bool) {
	if s.media == nil {
		return nil, false
	}
	assets, err := collectAssets(ctx, s.media)
	if err != nil {
		s.log.Warn("media index unavailable", zap.Error(err))
		return nil, false
	}
	return assets, true
}

// process reads the fresh files chunk by chunk and writes them in batches.
// A failed batch is logged and dropped. Extraction within a chunk runs
// concurrently; writes are sequential.
func (s *Syncer) process(
	ctx context.Context,
	fresh []string,
	assets map[string]Asset,
	r *reporter,
	stats *SyncStats,
) ([]Track, error) {
	total := len(fresh)
	r.report(ScanProgress{Phase: PhaseProcessing, Total: total})

	cache := tags.NewArtworkCache()
	var added, pending []Track

	flush := func(ctx context.Context) {
		if len(pending) == 0 {
			return
		}
		if err := s.lib.UpsertTracks(ctx, pending); err != nil {
			s.log.Error("write track batch", zap.Int("count", len(pending)), zap.Error(err))
			stats.Failed += len(pending)
		} else {
			added = append(added, pending...)
			stats.Added += len(pending)
		}
		pending = nil
	}

	done := 0
	for chunkIdx, start := 0, 0; start < total; chunkIdx, start = chunkIdx+1, start+s.chunkSize {
		if err := ctx.Err(); err != nil {
			// Keep what was already read.
			flush(context.WithoutCancel(ctx))
			return nil, err
		}

		chunk := fresh[start:min(start+s.chunkSize, total)]
		results := make([]*Track, len(chunk))
		var g errgroup.Group
		for i, uri := range chunk {
			g.Go(func() error {
				if a, ok := assets[uri]; ok {
					t := a.track()
					results[i] = &t
					return nil
				}
				results[i] = s.buildTrack(uri, cache)
				return nil
			})
		}
		_ = g.Wait()

		for i, t := range results {
			done++
			if t == nil {
				stats.Failed++
			} else {
				pending = append(pending, *t)
			}
			r.report(ScanProgress{Phase: PhaseProcessing, Current: done, Total: total, CurrentFile: chunk[i]})
			if len(pending) >= s.batchSize {
				flush(ctx)
			}
		}

		if (chunkIdx+1)%s.yieldEvery == 0 {
			runtime.Gosched()
		}
	}
	flush(ctx)
	return added, nil
}

// buildTrack reads one file. It returns nil when the file vanished.
func (s *Syncer) buildTrack(path string, cache *tags.ArtworkCache) *Track {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		s.log.Warn("skip unreadable file", zap.String("path", path), zap.Error(err))
		return nil
	}

	md := s.extractor.Extract(path, filepath.Base(path), cache)
	return &Track{
		ID:          path,
		URI:         path,
		Title:       md.Title,
		Artist:      md.Artist,
		Album:       md.Album,
		Artwork:     md.Artwork,
		TrackNumber: md.TrackNumber,
		Duration:    md.Duration,
		LRC:         lyrics.ReadSidecar(path),
	}
}

func sortByTitle(tracks []Track) {
	slices.SortStableFunc(tracks, func(a, b Track) int {
		if c := cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// reporter forwards progress, throttling processing updates. Phase changes
// and the last item of a phase are always delivered.
type reporter struct {
	fn        func(ScanProgress)
	sometimes rate.Sometimes
	throttle  bool
	phase     string
}

func newReporter(fn func(ScanProgress), interval time.Duration) *reporter {
	return &reporter{fn: fn, sometimes: rate.Sometimes{Interval: interval}, throttle: interval > 0}
}

func (r *reporter) report(p ScanProgress) {
	if r.fn == nil {
		return
	}
	if !r.throttle || p.Phase != r.phase || p.Current >= p.Total {
		r.phase = p.Phase
		r.fn(p)
		return
	}
	r.sometimes.Do(func() { r.fn(p) })
}
