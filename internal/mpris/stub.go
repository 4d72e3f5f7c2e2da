//go:build !linux

package mpris

import "go.uber.org/zap"

// Adapter is a no-op on non-Linux platforms.
type Adapter struct{}

// Option configures an Adapter.
type Option func()

func WithVolume(_ VolumeControl) Option { return func() {} }

// New returns a no-op adapter on non-Linux platforms.
func New(_ Controller, _ *zap.Logger, _ ...Option) *Adapter {
	return &Adapter{}
}

func (a *Adapter) Close() error { return nil }
