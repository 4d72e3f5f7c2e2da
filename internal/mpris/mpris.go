//go:build linux

package mpris

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/quarckster/go-mpris-server/pkg/server"
	"github.com/quarckster/go-mpris-server/pkg/types"
	"go.uber.org/zap"

	"github.com/llehouerou/pocketwaves/internal/library"
	"github.com/llehouerou/pocketwaves/internal/playback"
	"github.com/llehouerou/pocketwaves/internal/tags"
)

const busName = "pocketwaves"

// Adapter exposes a playback engine as an MPRIS media player on the session
// bus so media keys and desktop widgets can drive it.
type Adapter struct {
	server *server.Server
	log    *zap.Logger
}

// New registers the player on the session bus. Bus errors are logged; the
// engine keeps working without MPRIS.
func New(ctrl Controller, log *zap.Logger, opts ...Option) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	p := &playerAdapter{ctrl: ctrl}
	for _, opt := range opts {
		opt(p)
	}

	a := &Adapter{
		server: server.NewServer(busName, &rootAdapter{}, p),
		log:    log,
	}
	go func() {
		if err := a.server.Listen(); err != nil {
			a.log.Debug("mpris unavailable", zap.Error(err))
		}
	}()
	return a
}

// Close releases the bus name.
func (a *Adapter) Close() error {
	return a.server.Stop()
}

// rootAdapter implements OrgMprisMediaPlayer2Adapter.
type rootAdapter struct{}

func (r *rootAdapter) Raise() error { return nil }

func (r *rootAdapter) Quit() error { return nil }

func (r *rootAdapter) CanQuit() (bool, error) { return false, nil }

func (r *rootAdapter) CanRaise() (bool, error) { return false, nil }

func (r *rootAdapter) HasTrackList() (bool, error) { return false, nil }

func (r *rootAdapter) Identity() (string, error) { return "Pocketwaves", nil }

//nolint:revive // Method name required by interface.
func (r *rootAdapter) SupportedUriSchemes() ([]string, error) {
	return []string{"file"}, nil
}

func (r *rootAdapter) SupportedMimeTypes() ([]string, error) {
	return []string{tags.MIMEMPEG, tags.MIMEFLAC, "audio/wav"}, nil
}

// playerAdapter implements OrgMprisMediaPlayer2PlayerAdapter plus the loop
// status and shuffle extensions.
type playerAdapter struct {
	ctrl   Controller
	volume VolumeControl
}

func (p *playerAdapter) Next() error {
	return p.ctrl.PlayNext(context.Background())
}

func (p *playerAdapter) Previous() error {
	return p.ctrl.PlayPrev(context.Background())
}

func (p *playerAdapter) Pause() error {
	if !p.ctrl.Snapshot().Playing() {
		return nil
	}
	return p.ctrl.TogglePlayPause(context.Background())
}

func (p *playerAdapter) PlayPause() error {
	return p.ctrl.TogglePlayPause(context.Background())
}

// Stop pauses; the engine keeps its queue and position.
func (p *playerAdapter) Stop() error {
	return p.Pause()
}

func (p *playerAdapter) Play() error {
	snap := p.ctrl.Snapshot()
	if snap.Current == nil || snap.Playing() {
		return nil
	}
	return p.ctrl.TogglePlayPause(context.Background())
}

// Seek moves relative to the current position. Seeking past the end skips
// to the next track.
func (p *playerAdapter) Seek(offset types.Microseconds) error {
	snap := p.ctrl.Snapshot()
	if snap.Current == nil {
		return nil
	}
	target := max(snap.Position+time.Duration(offset)*time.Microsecond, 0)
	if snap.Duration > 0 && target >= snap.Duration {
		return p.ctrl.PlayNext(context.Background())
	}
	return p.ctrl.SeekTo(context.Background(), target)
}

// SetPosition seeks within the current track. Requests for another track
// or outside the track are ignored.
func (p *playerAdapter) SetPosition(trackID string, position types.Microseconds) error {
	snap := p.ctrl.Snapshot()
	if snap.Current == nil || trackID != formatTrackID(snap.Current.ID) {
		return nil
	}
	pos := time.Duration(position) * time.Microsecond
	if pos < 0 || (snap.Duration > 0 && pos > snap.Duration) {
		return nil
	}
	return p.ctrl.SeekTo(context.Background(), pos)
}

//nolint:revive // Method name required by interface.
func (p *playerAdapter) OpenUri(_ string) error { return nil }

func (p *playerAdapter) PlaybackStatus() (types.PlaybackStatus, error) {
	switch p.ctrl.Snapshot().State {
	case playback.StatePlaying:
		return types.PlaybackStatusPlaying, nil
	case playback.StatePaused:
		return types.PlaybackStatusPaused, nil
	default:
		return types.PlaybackStatusStopped, nil
	}
}

func (p *playerAdapter) Rate() (float64, error) { return 1.0, nil }

func (p *playerAdapter) SetRate(_ float64) error { return nil }

func (p *playerAdapter) Metadata() (types.Metadata, error) {
	snap := p.ctrl.Snapshot()
	if snap.Current == nil {
		return types.Metadata{}, nil
	}
	return trackMetadata(*snap.Current, snap.Duration), nil
}

func (p *playerAdapter) Volume() (float64, error) {
	if p.volume == nil {
		return 1.0, nil
	}
	return p.volume.Volume(), nil
}

func (p *playerAdapter) SetVolume(v float64) error {
	if p.volume != nil {
		p.volume.SetVolume(v)
	}
	return nil
}

func (p *playerAdapter) Position() (int64, error) {
	return p.ctrl.Snapshot().Position.Microseconds(), nil
}

func (p *playerAdapter) MinimumRate() (float64, error) { return 1.0, nil }

func (p *playerAdapter) MaximumRate() (float64, error) { return 1.0, nil }

func (p *playerAdapter) CanGoNext() (bool, error) {
	snap := p.ctrl.Snapshot()
	if len(snap.Queue) == 0 {
		return false, nil
	}
	return snap.Repeat == playback.RepeatAll || snap.Index < len(snap.Queue)-1, nil
}

func (p *playerAdapter) CanGoPrevious() (bool, error) {
	return p.ctrl.Snapshot().Current != nil, nil
}

func (p *playerAdapter) CanPlay() (bool, error) {
	return p.ctrl.Snapshot().Current != nil, nil
}

func (p *playerAdapter) CanPause() (bool, error) { return true, nil }

func (p *playerAdapter) CanSeek() (bool, error) { return true, nil }

func (p *playerAdapter) CanControl() (bool, error) { return true, nil }

// LoopStatus implements OrgMprisMediaPlayer2PlayerAdapterLoopStatus.
func (p *playerAdapter) LoopStatus() (types.LoopStatus, error) {
	return loopStatus(p.ctrl.Snapshot().Repeat), nil
}

// SetLoopStatus cycles the repeat mode until it matches status.
func (p *playerAdapter) SetLoopStatus(status types.LoopStatus) error {
	ctx := context.Background()
	for range 3 {
		if loopStatus(p.ctrl.Snapshot().Repeat) == status {
			return nil
		}
		p.ctrl.ToggleRepeatMode(ctx)
	}
	return fmt.Errorf("unsupported loop status %q", status)
}

// Shuffle implements OrgMprisMediaPlayer2PlayerAdapterShuffle.
func (p *playerAdapter) Shuffle() (bool, error) {
	return p.ctrl.Snapshot().Shuffle, nil
}

func (p *playerAdapter) SetShuffle(shuffle bool) error {
	if p.ctrl.Snapshot().Shuffle != shuffle {
		p.ctrl.ToggleShuffle(context.Background())
	}
	return nil
}

func loopStatus(m playback.RepeatMode) types.LoopStatus {
	switch m {
	case playback.RepeatOne:
		return types.LoopStatusTrack
	case playback.RepeatAll:
		return types.LoopStatusPlaylist
	default:
		return types.LoopStatusNone
	}
}

func trackMetadata(t library.Track, duration time.Duration) types.Metadata {
	if duration <= 0 {
		duration = t.Duration
	}
	meta := types.Metadata{
		TrackId:     dbus.ObjectPath(formatTrackID(t.ID)),
		Length:      types.Microseconds(duration.Microseconds()),
		Title:       t.Title,
		Artist:      []string{t.Artist},
		Album:       t.Album,
		TrackNumber: t.TrackNumber,
	}
	art := t.Artwork
	if art == "" {
		art = tags.FolderArt(t.URI)
	}
	if art != "" {
		meta.ArtUrl = "file://" + art
	}
	return meta
}

func formatTrackID(id string) string {
	h := fnv.New64a()
	h.Write([]byte(id))
	return fmt.Sprintf("/org/mpris/MediaPlayer2/Track/%x", h.Sum64())
}
