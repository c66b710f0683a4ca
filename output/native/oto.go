package native

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/richinsley/goshadersound/audio"
	"github.com/richinsley/goshadersound/output"
)

// oto allows one context per process; every Oto device shares it.
var (
	otoCtx      *oto.Context
	otoRate     int
	otoInitOnce sync.Once
	otoInitErr  error
)

func ensureOtoContext(sampleRate int) (*oto.Context, int, error) {
	otoInitOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: audio.Channels,
			Format:       oto.FormatFloat32LE,
			BufferSize:   40 * time.Millisecond,
		}
		var readyChan chan struct{}
		otoCtx, readyChan, otoInitErr = oto.NewContext(op)
		if otoInitErr != nil {
			return
		}
		<-readyChan
		otoRate = sampleRate
		log.Printf("Audio output initialized: %dHz, %d channels", sampleRate, audio.Channels)
	})
	if otoInitErr == nil && otoRate != sampleRate {
		log.Printf("Warning: oto context already running at %dHz, ignoring requested %dHz", otoRate, sampleRate)
	}
	return otoCtx, otoRate, otoInitErr
}

// Oto is the default device: a pull-mode oto player reading float32 frames
// straight from the mixer.
type Oto struct {
	mu     sync.Mutex
	ctx    *oto.Context
	player *oto.Player
	rate   int
	clock  *output.PausableClock
}

func NewOto(opts output.Options) (*Oto, error) {
	ctx, rate, err := ensureOtoContext(output.RateOrDefault(opts.SampleRate))
	if err != nil {
		return nil, fmt.Errorf("oto audio not available: %w", err)
	}
	return &Oto{ctx: ctx, rate: rate, clock: output.NewPausableClock(opts.Clock)}, nil
}

func (o *Oto) Start(m *audio.Mixer) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player != nil {
		return fmt.Errorf("oto output already started")
	}
	o.player = o.ctx.NewPlayer(m)
	// ~50ms of float32 stereo keeps gain changes and restarts responsive.
	o.player.SetBufferSize(o.rate / 20 * audio.Channels * 4)
	return nil
}

func (o *Oto) SampleRate() int { return o.rate }
func (o *Oto) Now() float64    { return o.clock.Seconds() }
func (o *Oto) Running() bool   { return o.clock.Running() }

func (o *Oto) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player == nil {
		return fmt.Errorf("oto output not started")
	}
	if o.clock.Resume() {
		o.player.Play()
	}
	return nil
}

func (o *Oto) Suspend() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player != nil && o.clock.Suspend() {
		o.player.Pause()
	}
	return nil
}

func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.clock.Suspend()
	if o.player == nil {
		return nil
	}
	err := o.player.Close()
	o.player = nil
	return err
}
