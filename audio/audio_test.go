package audio

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/richinsley/goshadersound/codec"
)

func filledBuffer(sampleRate int, duration float64) *Buffer {
	b := NewBuffer(sampleRate, duration)
	for i := range b.left {
		b.left[i] = float32(i)
		b.right[i] = -float32(i)
	}
	return b
}

func TestNewBufferLength(t *testing.T) {
	b := NewBuffer(8, 4)
	if b.Len() != 32 {
		t.Fatalf("Len() = %d, want 32", b.Len())
	}
	if b.Duration() != 4 {
		t.Errorf("Duration() = %v, want 4", b.Duration())
	}
	if len(b.Left()) != len(b.Right()) {
		t.Error("channels differ in length")
	}
}

func TestWriteBlockTruncates(t *testing.T) {
	b := NewBuffer(10, 1)
	pixels := make([]byte, 4*codec.BytesPerPixel)
	for i := 0; i < 4; i++ {
		codec.EncodePixel(1, -1, pixels[i*4:])
	}

	if n := b.WriteBlock(8, pixels); n != 2 {
		t.Fatalf("WriteBlock at 8 wrote %d frames, want 2", n)
	}
	if l, r := b.Frame(9); l != 1 || r != -1 {
		t.Errorf("Frame(9) = (%v,%v), want (1,-1)", l, r)
	}
	if l, _ := b.Frame(7); l != 0 {
		t.Errorf("Frame(7) = %v, want untouched 0", l)
	}
	if n := b.WriteBlock(10, pixels); n != 0 {
		t.Errorf("WriteBlock past end wrote %d frames", n)
	}
}

func TestGainParamRamp(t *testing.T) {
	g := NewGainParam(1)
	g.RampFrom(100, 0, 1, 10)

	cases := []struct {
		frame int64
		want  float32
	}{
		{50, 0},
		{100, 0},
		{105, 0.5},
		{110, 1},
		{500, 1},
	}
	for _, c := range cases {
		if got := g.ValueAt(c.frame); math.Abs(float64(got-c.want)) > 1e-6 {
			t.Errorf("ValueAt(%d) = %v, want %v", c.frame, got, c.want)
		}
	}

	g.Set(0.25)
	if got := g.ValueAt(105); got != 0.25 {
		t.Errorf("Set did not cancel the ramp: ValueAt = %v", got)
	}
}

func TestMixerPlaysRegionThenEnds(t *testing.T) {
	m := NewMixer(10)
	buf := filledBuffer(10, 1)

	v := m.Start(buf, 0.2, 0.3) // frames 2,3,4
	out := make([]float32, 5*Channels)
	m.Mix(out)

	want := []float32{2, -2, 3, -3, 4, -4, 0, 0, 0, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out = %v, want %v", out, want)
		}
	}
	if !v.Ended() {
		t.Error("voice should have ended")
	}
	if m.FramesMixed() != 5 {
		t.Errorf("FramesMixed() = %d, want 5", m.FramesMixed())
	}
}

func TestMixerRegionClampedToBuffer(t *testing.T) {
	m := NewMixer(10)
	buf := filledBuffer(10, 1)

	v := m.Start(buf, 0.8, 100)
	out := make([]float32, 4*Channels)
	m.Mix(out)
	if out[0] != 8 || out[2] != 9 || out[4] != 0 {
		t.Errorf("out = %v", out)
	}
	if !v.Ended() {
		t.Error("voice should end at the buffer end")
	}

	if v := m.Start(buf, 2, 1); !v.Ended() {
		t.Error("voice starting past the end should be ended immediately")
	}
}

func TestMixerStartReplacesVoice(t *testing.T) {
	m := NewMixer(10)
	buf := filledBuffer(10, 1)

	first := m.Start(buf, 0, 1)
	second := m.Start(buf, 0.5, 1)
	if !first.Ended() {
		t.Error("replaced voice should be ended")
	}
	out := make([]float32, Channels)
	m.Mix(out)
	if out[0] != 5 {
		t.Errorf("mixed %v, want frame 5 from the second voice", out)
	}

	m.StopVoice(second)
	m.StopVoice(second)
	m.Mix(out)
	if out[0] != 0 || out[1] != 0 {
		t.Errorf("stopped voice still audible: %v", out)
	}
}

func TestMixerGain(t *testing.T) {
	m := NewMixer(10)
	buf := NewBuffer(10, 1)
	for i := range buf.left {
		buf.left[i], buf.right[i] = 1, 1
	}

	m.Start(buf, 0, 1)
	m.RampGain(0, 1, 4)
	out := make([]float32, 6*Channels)
	m.Mix(out)

	want := []float32{0, 0.25, 0.5, 0.75, 1, 1}
	for i, w := range want {
		if math.Abs(float64(out[i*2]-w)) > 1e-6 {
			t.Errorf("frame %d = %v, want %v", i, out[i*2], w)
		}
	}

	m.SetGain(2)
	m.Mix(out[:2])
	if out[0] != 2 {
		t.Errorf("gain 2 gave %v", out[0])
	}
	if m.Gain() != 2 {
		t.Errorf("Gain() = %v", m.Gain())
	}
}

func TestMixerGlideGainStartsFromCurrentValue(t *testing.T) {
	m := NewMixer(10)
	buf := NewBuffer(10, 1)
	for i := range buf.left {
		buf.left[i], buf.right[i] = 1, 1
	}

	m.Start(buf, 0, 1)
	m.RampGain(0, 1, 4)
	out := make([]float32, 2*Channels)
	m.Mix(out)

	// Two frames into the fade-in the gain is 0.5; gliding down to 0 must
	// start there rather than jump.
	m.GlideGain(0, 2)
	out = make([]float32, 4*Channels)
	m.Mix(out)
	want := []float32{0.5, 0.25, 0, 0}
	for i, w := range want {
		if math.Abs(float64(out[i*2]-w)) > 1e-6 {
			t.Errorf("frame %d = %v, want %v", i, out[i*2], w)
		}
	}
	if m.Gain() != 0 {
		t.Errorf("Gain() = %v, want 0", m.Gain())
	}
}

func TestMixerRead(t *testing.T) {
	m := NewMixer(10)
	buf := filledBuffer(10, 1)
	m.Start(buf, 0.1, 1)

	p := make([]byte, 2*Channels*4+3)
	n, err := m.Read(p)
	if err != nil {
		t.Fatal(err)
	}
	if n != 16 {
		t.Fatalf("Read returned %d bytes, want 16", n)
	}
	got := math.Float32frombits(binary.LittleEndian.Uint32(p[8:]))
	if got != 2 {
		t.Errorf("second frame left = %v, want 2", got)
	}
}

func TestMixerFeedsTap(t *testing.T) {
	m := NewMixer(10)
	buf := filledBuffer(10, 1)
	m.Start(buf, 0, 1)

	out := make([]float32, DefaultWindowSize)
	m.Mix(out)
	if m.Tap().TotalSamplesWritten() != DefaultWindowSize {
		t.Errorf("tap saw %d samples", m.Tap().TotalSamplesWritten())
	}
	peek := m.Tap().WindowPeek()
	if peek[2] != 1 || peek[3] != -1 {
		t.Errorf("tap window starts %v", peek[:4])
	}
}

func TestSharedAudioBufferSwapsOnFullWindow(t *testing.T) {
	b := NewSharedAudioBuffer(4)
	b.Write([]float32{1, 2, 3})
	if p := b.WindowPeek(); p[0] != 0 {
		t.Errorf("incomplete window visible: %v", p)
	}
	b.Write([]float32{4, 5, 6, 7, 8, 9})
	p := b.WindowPeek()
	want := []float32{5, 6, 7, 8}
	for i := range want {
		if p[i] != want[i] {
			t.Fatalf("WindowPeek() = %v, want %v", p, want)
		}
	}
}

func TestDownmixStereoToMono(t *testing.T) {
	mono := DownmixStereoToMono([]float32{1, 0, -1, -1, 0.5})
	if len(mono) != 2 || mono[0] != 0.5 || mono[1] != -1 {
		t.Errorf("DownmixStereoToMono = %v", mono)
	}
}
