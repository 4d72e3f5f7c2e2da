package playback

import (
	"context"
	"time"
)

// Status is a snapshot reported by the audio backend.
type Status struct {
	Position      time.Duration
	Duration      time.Duration
	Playing       bool
	DidJustFinish bool // true once when the loaded track reaches its end
}

// Backend decodes and outputs audio. Status callbacks may arrive on any
// goroutine.
type Backend interface {
	Load(ctx context.Context, uri string) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Seek(ctx context.Context, pos time.Duration) error
	Subscribe(fn func(Status)) (unsubscribe func())
}
