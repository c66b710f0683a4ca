package native

import (
	"fmt"
	"log"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/richinsley/goshadersound/audio"
	"github.com/richinsley/goshadersound/output"
)

// PortAudio drives the mixer from the PortAudio callback of the default
// output device.
type PortAudio struct {
	mu     sync.Mutex
	stream *portaudio.Stream
	rate   int
	clock  *output.PausableClock
	closed bool
}

// NewPortAudio initializes PortAudio and, when no rate was requested, adopts
// the default output device's preferred sample rate.
func NewPortAudio(opts output.Options) (*PortAudio, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	rate := opts.SampleRate
	if rate <= 0 {
		dev, err := portaudio.DefaultOutputDevice()
		if err != nil {
			portaudio.Terminate()
			return nil, fmt.Errorf("failed to get default output device: %w", err)
		}
		rate = int(dev.DefaultSampleRate)
		log.Printf("Using default output device %q at %dHz", dev.Name, rate)
	}
	return &PortAudio{rate: rate, clock: output.NewPausableClock(opts.Clock)}, nil
}

func (p *PortAudio) Start(m *audio.Mixer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream != nil {
		return fmt.Errorf("portaudio output already started")
	}
	stream, err := portaudio.OpenDefaultStream(0, audio.Channels, float64(p.rate), 0, func(out []float32) {
		m.Mix(out)
	})
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}
	p.stream = stream
	return nil
}

func (p *PortAudio) SampleRate() int { return p.rate }
func (p *PortAudio) Now() float64    { return p.clock.Seconds() }
func (p *PortAudio) Running() bool   { return p.clock.Running() }

func (p *PortAudio) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil {
		return fmt.Errorf("portaudio output not started")
	}
	if !p.clock.Resume() {
		return nil
	}
	if err := p.stream.Start(); err != nil {
		p.clock.Suspend()
		return fmt.Errorf("failed to start stream: %w", err)
	}
	return nil
}

func (p *PortAudio) Suspend() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil || !p.clock.Suspend() {
		return nil
	}
	return p.stream.Stop()
}

func (p *PortAudio) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.stream != nil {
		if p.clock.Suspend() {
			if err := p.stream.Stop(); err != nil {
				log.Printf("Warning: failed to stop portaudio stream: %v", err)
			}
		}
		if err := p.stream.Close(); err != nil {
			log.Printf("Warning: failed to close portaudio stream: %v", err)
		}
		p.stream = nil
	}
	return portaudio.Terminate()
}
