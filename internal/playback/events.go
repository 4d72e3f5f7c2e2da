package playback

import (
	"time"

	"github.com/llehouerou/pocketwaves/internal/library"
)

// StateChange is emitted when playback state changes.
type StateChange struct {
	Previous State
	Current  State
}

// TrackChange is emitted when playback starts on a track.
//
// Emitted by Play, PlayQueue, PlayNext, PlayPrev and automatic advance at
// the end of a track. Not emitted by repeat-one replays, seeks or pause.
type TrackChange struct {
	Previous *library.Track
	Current  *library.Track
	Index    int // position in the queue, -1 when the track is not queued
}

// QueueChange is emitted when the queue contents or order change.
type QueueChange struct {
	Tracks []library.Track
	Index  int
	Title  string
	Origin Origin
}

// ModeChange is emitted when repeat, shuffle or lyrics visibility changes.
type ModeChange struct {
	RepeatMode    RepeatMode
	Shuffle       bool
	LyricsVisible bool
}

// PositionChange is emitted for every backend status update.
type PositionChange struct {
	Position time.Duration
	Duration time.Duration
}

// FavoriteChange is emitted after a favorite toggle.
type FavoriteChange struct {
	TrackID  string
	Favorite bool
}

// ErrorEvent is emitted when a backend call fails.
type ErrorEvent struct {
	Operation string // e.g., "load", "play", "seek"
	URI       string // track URI if applicable
	Err       error
}
