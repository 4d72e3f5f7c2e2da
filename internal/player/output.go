package player

import (
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// outputRate is the rate the speaker runs at. Tracks at other rates are
// resampled.
const outputRate = beep.SampleRate(44100)

// output is where decoded audio goes. Lock guards every streamer that was
// handed to Play; callbacks inside those streamers run with it held.
type output interface {
	Init(rate beep.SampleRate) error
	Play(s beep.Streamer)
	Clear()
	Lock()
	Unlock()
}

// speakerOutput drives the system audio device.
type speakerOutput struct {
	once sync.Once
	err  error
}

func (o *speakerOutput) Init(rate beep.SampleRate) error {
	o.once.Do(func() {
		o.err = speaker.Init(rate, rate.N(time.Second/10))
	})
	return o.err
}

func (*speakerOutput) Play(s beep.Streamer) { speaker.Play(s) }
func (*speakerOutput) Clear()               { speaker.Clear() }
func (*speakerOutput) Lock()                { speaker.Lock() }
func (*speakerOutput) Unlock()              { speaker.Unlock() }

// pullOutput mixes streamers without a device. Samples advance only when
// Pull is called.
type pullOutput struct {
	mu    sync.Mutex
	mixer beep.Mixer
}

func (*pullOutput) Init(beep.SampleRate) error { return nil }

func (o *pullOutput) Play(s beep.Streamer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.mixer.Add(s)
}

func (o *pullOutput) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.mixer.Clear()
}

func (o *pullOutput) Lock()   { o.mu.Lock() }
func (o *pullOutput) Unlock() { o.mu.Unlock() }

// Pull streams n samples through the mixer and discards them.
func (o *pullOutput) Pull(n int) {
	buf := make([][2]float64, 512)
	o.mu.Lock()
	defer o.mu.Unlock()
	for n > 0 {
		k := min(n, len(buf))
		o.mixer.Stream(buf[:k])
		n -= k
	}
}
