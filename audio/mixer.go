package audio

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"
)

// Channels is the interleaved channel count of everything the Mixer emits.
const Channels = 2

// Voice is one scheduled playback of a region of a Buffer. It plays once and
// then ends; it can not be restarted.
type Voice struct {
	buf   *Buffer
	pos   int
	end   int
	ended atomic.Bool
}

// Ended reports whether the voice reached the end of its region or was
// stopped.
func (v *Voice) Ended() bool {
	return v == nil || v.ended.Load()
}

// Mixer is the pull side of the output path. Devices call Mix (or Read) from
// their audio callback; the transport schedules at most one Voice on it.
type Mixer struct {
	mu         sync.Mutex
	sampleRate int
	voice      *Voice
	gain       GainParam
	frames     int64

	tap     *SharedAudioBuffer
	scratch []float32
}

func NewMixer(sampleRate int) *Mixer {
	return &Mixer{
		sampleRate: sampleRate,
		gain:       NewGainParam(1),
		tap:        NewSharedAudioBuffer(DefaultWindowSize),
	}
}

func (m *Mixer) SampleRate() int { return m.sampleRate }

// Tap returns the window of most recently mixed samples, for metering.
func (m *Mixer) Tap() *SharedAudioBuffer { return m.tap }

// FramesMixed is the number of frames handed to the device so far.
func (m *Mixer) FramesMixed() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

// Start schedules buf to play from offset seconds for duration seconds,
// replacing any current voice.
func (m *Mixer) Start(buf *Buffer, offset, duration float64) *Voice {
	rate := float64(buf.SampleRate())
	start := clampFrame(int(math.Round(offset*rate)), buf.Len())
	end := clampFrame(start+int(math.Round(duration*rate)), buf.Len())

	v := &Voice{buf: buf, pos: start, end: end}
	if start >= end {
		v.ended.Store(true)
	}

	m.mu.Lock()
	if m.voice != nil {
		m.voice.ended.Store(true)
	}
	m.voice = v
	m.mu.Unlock()
	return v
}

// StopVoice silences v if it is still the current voice. Stopping a voice
// that already ended is a no-op.
func (m *Mixer) StopVoice(v *Voice) {
	if v == nil {
		return
	}
	v.ended.Store(true)
	m.mu.Lock()
	if m.voice == v {
		m.voice = nil
	}
	m.mu.Unlock()
}

// SetGain jumps to g, cancelling any ramp in progress.
func (m *Mixer) SetGain(g float32) {
	m.mu.Lock()
	m.gain.Set(g)
	m.mu.Unlock()
}

// RampGain ramps linearly from `from` to `to` over the next `frames` frames.
func (m *Mixer) RampGain(from, to float32, frames int) {
	m.mu.Lock()
	m.gain.RampFrom(m.frames, from, to, frames)
	m.mu.Unlock()
}

// GlideGain ramps from whatever the gain is right now, mid-ramp included, to
// `to` over the next `frames` frames.
func (m *Mixer) GlideGain(to float32, frames int) {
	m.mu.Lock()
	m.gain.RampFrom(m.frames, m.gain.ValueAt(m.frames), to, frames)
	m.mu.Unlock()
}

// Gain is the value the gain settles at once any ramp completes.
func (m *Mixer) Gain() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gain.Target()
}

// Mix fills out with interleaved stereo frames. It never allocates.
func (m *Mixer) Mix(out []float32) {
	n := len(out) / Channels

	m.mu.Lock()
	v := m.voice
	for i := 0; i < n; i++ {
		var l, r float32
		if v != nil && !v.ended.Load() {
			l, r = v.buf.Frame(v.pos)
			v.pos++
			if v.pos >= v.end {
				v.ended.Store(true)
			}
			g := m.gain.ValueAt(m.frames + int64(i))
			l *= g
			r *= g
		}
		out[i*Channels] = l
		out[i*Channels+1] = r
	}
	if v != nil && v.ended.Load() {
		m.voice = nil
	}
	m.frames += int64(n)
	m.mu.Unlock()

	m.tap.Write(out[:n*Channels])
}

// Read implements io.Reader, producing float32 little-endian interleaved
// stereo. Devices that pull bytes (oto, the ffmpeg pipe) use this.
func (m *Mixer) Read(p []byte) (int, error) {
	const frameBytes = 4 * Channels
	n := len(p) / frameBytes
	if n == 0 {
		return 0, nil
	}
	if cap(m.scratch) < n*Channels {
		m.scratch = make([]float32, n*Channels)
	}
	samples := m.scratch[:n*Channels]
	m.Mix(samples)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
	return n * frameBytes, nil
}

func clampFrame(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}
