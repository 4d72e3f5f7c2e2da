package player

import "math"

// SetVolume sets the volume level, clamped to 0..1. While muted the level is
// stored and applied on unmute.
func (b *Backend) SetVolume(level float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.level = clampLevel(level)
	b.applyVolumeLocked()
}

func (b *Backend) Volume() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.level
}

func (b *Backend) SetMuted(muted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.muted = muted
	b.applyVolumeLocked()
}

func (b *Backend) Muted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.muted
}

func (b *Backend) applyVolumeLocked() {
	if b.volume == nil {
		return
	}
	b.out.Lock()
	b.volume.Volume = levelToVolume(b.level)
	b.volume.Silent = b.muted || b.level <= 0
	b.out.Unlock()
}

func clampLevel(level float64) float64 {
	return min(max(level, 0), 1)
}

// levelToVolume maps a linear level to beep's base-2 exponent: 1 is 0,
// 0.5 is -1, 0.25 is -2.
func levelToVolume(level float64) float64 {
	if level <= 0 {
		return -10
	}
	if level >= 1 {
		return 0
	}
	return math.Log2(level)
}
