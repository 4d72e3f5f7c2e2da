//go:build linux

package mpris

// Option configures an Adapter.
type Option func(*playerAdapter)

// WithVolume exposes the backend volume as the MPRIS Volume property.
func WithVolume(v VolumeControl) Option {
	return func(p *playerAdapter) { p.volume = v }
}
