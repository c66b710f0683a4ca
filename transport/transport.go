// Package transport is the playback state machine over a rendered track:
// play from a position, stop, seek, loop and gain, reconciled against the
// output device clock by periodic polling.
//
// Position is never pushed by the audio path. Whoever owns the transport
// calls Poll at a fixed cadence (Run does this on a ticker); loop restarts and
// end-of-window stops happen there, so their precision is one poll interval.
package transport

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/richinsley/goshadersound/audio"
)

const (
	// DefaultRampDuration is the fade-in applied to every new voice.
	DefaultRampDuration = 40 * time.Millisecond

	// GainGlide is how long a gain change takes to reach its target.
	GainGlide = 5 * time.Millisecond

	// DefaultPollInterval is roughly one display frame.
	DefaultPollInterval = 16 * time.Millisecond
)

// Clock is a device clock in seconds.
type Clock interface {
	Now() float64
}

// Output is the part of an audio device the transport drives.
type Output interface {
	Clock
	Running() bool
	Resume() error
}

// Options are the transport's feature flags and limits.
type Options struct {
	Duration     float64 // upper bound of the playback window before a track exists
	Autoplay     bool
	Loop         bool
	Seekable     bool
	MaxGain      float64
	InitialGain  float64
	RampDuration time.Duration
}

func DefaultOptions(duration float64) Options {
	return Options{
		Duration:     duration,
		Seekable:     true,
		MaxGain:      2,
		InitialGain:  1,
		RampDuration: DefaultRampDuration,
	}
}

// State is a snapshot for display.
type State struct {
	Ready    bool
	Loading  bool
	Playing  bool
	Seeking  bool
	Loop     bool
	Position float64
	Start    float64
	End      float64
	Gain     float64
	Duration float64
}

// Transport is safe for concurrent use.
type Transport struct {
	mu    sync.Mutex
	opts  Options
	out   Output
	mixer *audio.Mixer

	buf       *audio.Buffer
	loading   bool
	pending   bool
	pendingAt float64

	voice      *audio.Voice
	anchorReal float64
	anchorPos  float64
	position   float64
	seeking    bool

	loop       bool
	gain       float64
	start, end float64
}

func New(out Output, mixer *audio.Mixer, opts Options) *Transport {
	if opts.MaxGain <= 0 {
		opts.MaxGain = 1
	}
	if opts.RampDuration < 0 {
		opts.RampDuration = 0
	}
	t := &Transport{
		opts:  opts,
		out:   out,
		mixer: mixer,
		loop:  opts.Loop,
		start: 0,
		end:   math.Max(opts.Duration, 0),
	}
	t.gain = clamp(opts.InitialGain, 0, opts.MaxGain)
	mixer.SetGain(float32(t.gain))
	return t
}

func (t *Transport) ready() bool {
	return t.buf != nil && !t.loading
}

// limit is the largest valid position.
func (t *Transport) limit() float64 {
	if t.buf != nil {
		return t.buf.Duration()
	}
	return math.Max(t.opts.Duration, 0)
}

func (t *Transport) rawPosition() float64 {
	if t.voice == nil || t.seeking {
		return t.position
	}
	return t.anchorPos + (t.out.Now() - t.anchorReal)
}

// Play starts a voice at `at`, clamped into the playback window, replacing
// any active voice. Before the first track is ready it does nothing, or, with
// Autoplay, remembers the request until Publish.
func (t *Transport) Play(at float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready() {
		if t.opts.Autoplay {
			t.pending = true
			t.pendingAt = at
		}
		return nil
	}
	return t.playLocked(at)
}

func (t *Transport) playLocked(at float64) error {
	if t.voice != nil {
		t.mixer.StopVoice(t.voice)
		t.voice = nil
	}

	at = clamp(at, t.start, t.end)
	t.voice = t.mixer.Start(t.buf, at, t.end-at)

	rampFrames := int(math.Round(t.opts.RampDuration.Seconds() * float64(t.mixer.SampleRate())))
	t.mixer.RampGain(0, float32(t.gain), rampFrames)

	var err error
	if !t.out.Running() {
		if err = t.out.Resume(); err != nil {
			err = fmt.Errorf("failed to resume audio output: %w", err)
		}
	}

	t.anchorReal = t.out.Now()
	t.anchorPos = at
	t.position = at
	return err
}

// Stop halts the active voice. The position freezes where it was. Calling it
// without an active voice changes nothing.
func (t *Transport) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Transport) stopLocked() {
	if t.voice == nil {
		return
	}
	t.position = clamp(t.rawPosition(), 0, t.limit())
	t.mixer.StopVoice(t.voice)
	t.voice = nil
}

// BeginSeek freezes the reported position while the user drags.
func (t *Transport) BeginSeek() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.opts.Seekable || !t.ready() || t.seeking {
		return
	}
	t.position = clamp(t.rawPosition(), 0, t.limit())
	t.seeking = true
}

// SeekTo moves the frozen position during a drag.
func (t *Transport) SeekTo(to float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.seeking {
		return
	}
	t.position = clamp(to, t.start, t.end)
}

// EndSeek releases a drag at `to`. An active voice restarts there if the
// device is running; otherwise playback stops and the position stays at `to`.
func (t *Transport) EndSeek(to float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.seeking {
		return nil
	}
	t.seeking = false
	to = clamp(to, t.start, t.end)

	if t.voice != nil && t.out.Running() {
		return t.playLocked(to)
	}
	if t.voice != nil {
		t.mixer.StopVoice(t.voice)
		t.voice = nil
	}
	t.position = to
	return nil
}

// Seek is a complete drag in one call.
func (t *Transport) Seek(to float64) error {
	t.BeginSeek()
	return t.EndSeek(to)
}

func (t *Transport) SetLoop(loop bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.loop = loop
}

// SetGain clamps g to [0, MaxGain] and glides the live output there from its
// current value, so a change during the fade-in does not click.
func (t *Transport) SetGain(g float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if math.IsNaN(g) {
		return
	}
	t.gain = clamp(g, 0, t.opts.MaxGain)
	glideFrames := int(math.Round(GainGlide.Seconds() * float64(t.mixer.SampleRate())))
	t.mixer.GlideGain(float32(t.gain), glideFrames)
}

// SetWindow sets the playback window from two edges in either order. Both
// are clamped to the track.
func (t *Transport) SetWindow(a, b float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setWindowLocked(a, b)
}

func (t *Transport) setWindowLocked(a, b float64) {
	if math.IsNaN(a) || math.IsNaN(b) {
		return
	}
	lim := t.limit()
	a, b = clamp(a, 0, lim), clamp(b, 0, lim)
	t.start, t.end = math.Min(a, b), math.Max(a, b)
}

// CurrentPosition is the playback position in seconds: live while a voice
// runs and no drag is in progress, frozen otherwise.
func (t *Transport) CurrentPosition() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return clamp(t.rawPosition(), 0, t.limit())
}

// Poll reconciles the transport with the device clock and returns the
// current position. Past the window end a looping voice restarts at the
// window start; a non-looping one stops with the position at the end.
func (t *Transport) Poll() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.voice == nil || t.seeking {
		return t.position
	}

	pos := t.rawPosition()
	if pos > t.end {
		if t.loop {
			if err := t.playLocked(t.start); err != nil {
				log.Printf("Warning: loop restart failed: %v", err)
			}
			return t.position
		}
		t.mixer.StopVoice(t.voice)
		t.voice = nil
		t.position = t.end
		return t.position
	}
	t.position = clamp(pos, 0, t.limit())
	return t.position
}

// BeginLoad gates the transport while a new track renders. A voice on the
// previous track keeps playing, but no new operation is accepted.
func (t *Transport) BeginLoad() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.loading = true
}

// AbortLoad ends a failed load. The previous track, if any, is playable again.
func (t *Transport) AbortLoad() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.loading = false
	t.pending = false
}

// Publish installs a freshly rendered track. The old voice stops, the window
// is clamped to the new track, and a pending or automatic play starts.
func (t *Transport) Publish(buf *audio.Buffer) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.voice != nil {
		t.mixer.StopVoice(t.voice)
		t.voice = nil
	}
	t.buf = buf
	t.loading = false
	t.setWindowLocked(t.start, t.end)
	t.position = clamp(t.position, t.start, t.end)

	pending, at := t.pending, t.pendingAt
	t.pending = false
	switch {
	case pending:
		return t.playLocked(at)
	case t.opts.Autoplay:
		return t.playLocked(t.start)
	}
	return nil
}

func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return State{
		Ready:    t.ready(),
		Loading:  t.loading,
		Playing:  t.voice != nil,
		Seeking:  t.seeking,
		Loop:     t.loop,
		Position: clamp(t.rawPosition(), 0, t.limit()),
		Start:    t.start,
		End:      t.end,
		Gain:     t.gain,
		Duration: t.limit(),
	}
}

// Run polls every interval until ctx is done.
func (t *Transport) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Poll()
		}
	}
}

// clamp maps NaN to lo.
func clamp(v, lo, hi float64) float64 {
	if v < lo || math.IsNaN(v) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
