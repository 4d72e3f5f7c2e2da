// Package mpris publishes the playback engine over the MPRIS D-Bus
// interface.
package mpris

import (
	"context"
	"time"

	"github.com/llehouerou/pocketwaves/internal/playback"
)

// Controller is the part of *playback.Engine the adapter drives.
type Controller interface {
	TogglePlayPause(ctx context.Context) error
	PlayNext(ctx context.Context) error
	PlayPrev(ctx context.Context) error
	SeekTo(ctx context.Context, pos time.Duration) error
	ToggleShuffle(ctx context.Context) bool
	ToggleRepeatMode(ctx context.Context) playback.RepeatMode
	Snapshot() playback.Snapshot
}

var _ Controller = (*playback.Engine)(nil)

// VolumeControl is implemented by backends with adjustable output.
type VolumeControl interface {
	Volume() float64
	SetVolume(level float64)
}
