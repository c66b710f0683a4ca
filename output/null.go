package output

import (
	"fmt"
	"sync"
	"time"

	"github.com/richinsley/goshadersound/audio"
)

const nullTick = 10 * time.Millisecond

// Null consumes the mix in real time and discards it. Voices advance and end
// exactly as they would on a sound card, which makes it the device for
// headless runs and tests.
type Null struct {
	mu      sync.Mutex
	rate    int
	clock   *PausableClock
	mixer   *audio.Mixer
	stop    chan struct{}
	done    chan struct{}
	pulled  int64
	scratch []float32
}

func NewNull(opts Options) *Null {
	return &Null{
		rate:  RateOrDefault(opts.SampleRate),
		clock: NewPausableClock(opts.Clock),
	}
}

func (n *Null) Start(m *audio.Mixer) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.mixer != nil {
		return fmt.Errorf("null output already started")
	}
	n.mixer = m
	n.stop = make(chan struct{})
	n.done = make(chan struct{})
	go n.run()
	return nil
}

func (n *Null) run() {
	defer close(n.done)
	ticker := time.NewTicker(nullTick)
	defer ticker.Stop()
	for {
		select {
		case <-n.stop:
			return
		case <-ticker.C:
			n.Pump()
		}
	}
}

// Pump pulls every frame due according to the device clock. The background
// loop calls it periodically; tests driving a manual clock call it directly.
func (n *Null) Pump() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.mixer == nil {
		return
	}
	due := int64(n.clock.Seconds()*float64(n.rate)) - n.pulled
	for due > 0 {
		frames := due
		if frames > int64(n.rate) {
			frames = int64(n.rate)
		}
		if cap(n.scratch) < int(frames)*audio.Channels {
			n.scratch = make([]float32, int(frames)*audio.Channels)
		}
		n.mixer.Mix(n.scratch[:int(frames)*audio.Channels])
		n.pulled += frames
		due -= frames
	}
}

func (n *Null) SampleRate() int { return n.rate }
func (n *Null) Now() float64    { return n.clock.Seconds() }
func (n *Null) Running() bool   { return n.clock.Running() }

func (n *Null) Resume() error {
	n.clock.Resume()
	return nil
}

func (n *Null) Suspend() error {
	n.clock.Suspend()
	return nil
}

func (n *Null) Close() error {
	n.mu.Lock()
	stop, done := n.stop, n.done
	n.stop = nil
	n.mu.Unlock()
	n.clock.Suspend()
	if stop != nil {
		close(stop)
		<-done
	}
	return nil
}
