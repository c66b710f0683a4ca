package transport

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/richinsley/goshadersound/audio"
	"github.com/richinsley/goshadersound/codec"
)

const eps = 1e-9

type fakeOutput struct {
	mu      sync.Mutex
	now     float64
	running bool
	resumes int
}

func (f *fakeOutput) Now() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeOutput) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeOutput) Resume() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = true
	f.resumes++
	return nil
}

func (f *fakeOutput) advance(d float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		f.now += d
	}
}

// newTransport returns a transport over a published silent track.
func newTransport(t *testing.T, rate int, duration float64, mutate func(*Options)) (*Transport, *fakeOutput, *audio.Mixer) {
	t.Helper()
	opts := DefaultOptions(duration)
	if mutate != nil {
		mutate(&opts)
	}
	out := &fakeOutput{}
	mixer := audio.NewMixer(rate)
	tr := New(out, mixer, opts)
	if err := tr.Publish(audio.NewBuffer(rate, duration)); err != nil {
		t.Fatal(err)
	}
	return tr, out, mixer
}

func near(a, b float64) bool { return math.Abs(a-b) < eps }

func TestPlayBeforeReadyIsNoOp(t *testing.T) {
	out := &fakeOutput{}
	tr := New(out, audio.NewMixer(100), DefaultOptions(10))

	if err := tr.Play(3); err != nil {
		t.Fatal(err)
	}
	tr.Seek(5)
	st := tr.State()
	if st.Ready || st.Playing || st.Seeking {
		t.Errorf("state changed before ready: %+v", st)
	}
	if out.resumes != 0 {
		t.Error("device resumed before a track was ready")
	}
	if tr.Poll() != 0 {
		t.Error("Poll moved the position without a voice")
	}
}

func TestSeekRestartsRunningVoice(t *testing.T) {
	tr, out, _ := newTransport(t, 100, 180, nil)
	tr.SetWindow(0, 150)

	if err := tr.Play(50); err != nil {
		t.Fatal(err)
	}
	out.advance(1)
	if got := tr.CurrentPosition(); !near(got, 51) {
		t.Fatalf("position after 1s = %v, want 51", got)
	}

	if err := tr.Seek(120); err != nil {
		t.Fatal(err)
	}
	if !tr.State().Playing {
		t.Fatal("voice should have been restarted")
	}
	out.advance(0.25)
	if got := tr.CurrentPosition(); !near(got, 120.25) {
		t.Errorf("position = %v, want 120.25", got)
	}
}

func TestPlayRampsGainFromZero(t *testing.T) {
	const rate = 1000
	out := &fakeOutput{}
	mixer := audio.NewMixer(rate)
	tr := New(out, mixer, DefaultOptions(1))

	buf := audio.NewBuffer(rate, 1)
	pixels := make([]byte, buf.Len()*codec.BytesPerPixel)
	for i := 0; i < buf.Len(); i++ {
		codec.EncodePixel(1, 1, pixels[i*codec.BytesPerPixel:])
	}
	buf.WriteBlock(0, pixels)
	if err := tr.Publish(buf); err != nil {
		t.Fatal(err)
	}

	tr.SetGain(0.3)
	if err := tr.Play(0); err != nil {
		t.Fatal(err)
	}

	// 40ms at 1kHz is a 40 frame ramp.
	mix := make([]float32, 60*audio.Channels)
	mixer.Mix(mix)

	if mix[0] > 0.01 {
		t.Errorf("first frame %v, want ~0", mix[0])
	}
	if got := mix[20*audio.Channels]; math.Abs(float64(got)-0.15) > 1e-3 {
		t.Errorf("mid-ramp frame %v, want ~0.15", got)
	}
	for i := 40; i < 60; i++ {
		if got := mix[i*audio.Channels]; math.Abs(float64(got)-0.3) > 1e-6 {
			t.Fatalf("frame %d = %v, want 0.3 after the ramp", i, got)
		}
	}
	for i := 1; i < 60; i++ {
		if mix[i*audio.Channels] < mix[(i-1)*audio.Channels] {
			t.Fatalf("ramp not monotonic at frame %d", i)
		}
	}
}

func TestStopIsIdempotent(t *testing.T) {
	tr, out, _ := newTransport(t, 100, 10, nil)
	tr.Play(2)
	out.advance(1.5)

	tr.Stop()
	first := tr.State()
	if first.Playing || !near(first.Position, 3.5) {
		t.Fatalf("after Stop: %+v", first)
	}

	out.advance(1)
	tr.Stop()
	if second := tr.State(); second != first {
		t.Errorf("second Stop changed state: %+v -> %+v", first, second)
	}
}

func TestPlayClampsIntoWindow(t *testing.T) {
	tr, _, _ := newTransport(t, 100, 60, nil)
	tr.SetWindow(10, 20)

	cases := []struct{ at, want float64 }{
		{5, 10},
		{10, 10},
		{14.5, 14.5},
		{20, 20},
		{25, 20},
		{math.NaN(), 10},
	}
	for _, c := range cases {
		tr.Play(c.at)
		got := tr.CurrentPosition()
		if !near(got, c.want) {
			t.Errorf("Play(%v) position = %v, want %v", c.at, got, c.want)
		}
		if got < 10 || got > 20 {
			t.Errorf("Play(%v) left the window: %v", c.at, got)
		}
	}
}

func TestLoopRestartsAtWindowStart(t *testing.T) {
	tr, out, _ := newTransport(t, 100, 10, func(o *Options) { o.Loop = true })
	tr.SetWindow(1, 2)
	tr.Play(1)

	out.advance(1.2)
	if got := tr.Poll(); !near(got, 1) {
		t.Fatalf("Poll after passing the end = %v, want restart at 1", got)
	}
	if !tr.State().Playing {
		t.Fatal("looping voice should keep playing")
	}

	interval := DefaultPollInterval.Seconds()
	out.advance(interval)
	if got := tr.Poll(); math.Abs(got-1) > interval+eps {
		t.Errorf("position %v drifted more than one poll interval from 1", got)
	}
}

func TestNoLoopStopsAtWindowEnd(t *testing.T) {
	tr, out, _ := newTransport(t, 100, 10, nil)
	tr.SetWindow(1, 2)
	tr.Play(1.5)

	out.advance(0.6)
	if got := tr.Poll(); got != 2 {
		t.Errorf("Poll = %v, want 2", got)
	}
	if tr.State().Playing {
		t.Error("voice should have stopped at the window end")
	}

	out.advance(5)
	if got := tr.Poll(); got != 2 {
		t.Errorf("stopped position moved to %v", got)
	}
}

func TestSetLoopAffectsNextPoll(t *testing.T) {
	tr, out, _ := newTransport(t, 100, 10, nil)
	tr.SetWindow(0, 1)
	tr.Play(0)
	tr.SetLoop(true)
	out.advance(1.1)
	if got := tr.Poll(); got != 0 {
		t.Errorf("Poll = %v, want loop restart at 0", got)
	}
	if !tr.State().Loop {
		t.Error("State().Loop = false")
	}
}

func TestSetWindowSwapsAndClamps(t *testing.T) {
	tr, _, _ := newTransport(t, 100, 60, nil)

	tr.SetWindow(30, 10)
	if st := tr.State(); st.Start != 10 || st.End != 30 {
		t.Errorf("window = [%v, %v], want [10, 30]", st.Start, st.End)
	}

	tr.SetWindow(-5, 500)
	if st := tr.State(); st.Start != 0 || st.End != 60 {
		t.Errorf("window = [%v, %v], want [0, 60]", st.Start, st.End)
	}
}

func TestSetGainClamps(t *testing.T) {
	tr, _, mixer := newTransport(t, 100, 10, nil)

	tr.SetGain(5)
	if g := tr.State().Gain; g != 2 {
		t.Errorf("gain = %v, want MaxGain 2", g)
	}
	if mixer.Gain() != 2 {
		t.Errorf("mixer gain = %v", mixer.Gain())
	}

	tr.SetGain(-1)
	if g := tr.State().Gain; g != 0 {
		t.Errorf("gain = %v, want 0", g)
	}

	tr.SetGain(0.5)
	tr.SetGain(math.NaN())
	if g := tr.State().Gain; g != 0.5 {
		t.Errorf("NaN changed gain to %v", g)
	}
}

func TestSetGainDuringFadeInGlides(t *testing.T) {
	const rate = 1000
	out := &fakeOutput{}
	mixer := audio.NewMixer(rate)
	tr := New(out, mixer, DefaultOptions(1))

	buf := audio.NewBuffer(rate, 1)
	pixels := make([]byte, buf.Len()*codec.BytesPerPixel)
	for i := 0; i < buf.Len(); i++ {
		codec.EncodePixel(1, 1, pixels[i*codec.BytesPerPixel:])
	}
	buf.WriteBlock(0, pixels)
	if err := tr.Publish(buf); err != nil {
		t.Fatal(err)
	}
	if err := tr.Play(0); err != nil {
		t.Fatal(err)
	}

	// Halfway through the 40 frame fade-in the gain is about 0.5.
	mixer.Mix(make([]float32, 20*audio.Channels))
	tr.SetGain(2)

	mix := make([]float32, 10*audio.Channels)
	mixer.Mix(mix)
	if got := mix[0]; math.Abs(float64(got)-0.5) > 0.01 {
		t.Errorf("first frame after SetGain = %v, want ~0.5 (no jump)", got)
	}
	for i := 1; i < 10; i++ {
		prev, cur := mix[(i-1)*audio.Channels], mix[i*audio.Channels]
		if cur < prev || cur-prev > 0.35 {
			t.Fatalf("frame %d: %v -> %v is not a short glide", i, prev, cur)
		}
	}
	// 5ms at 1kHz.
	for i := 5; i < 10; i++ {
		if got := mix[i*audio.Channels]; math.Abs(float64(got)-2) > 1e-3 {
			t.Errorf("frame %d = %v, want 2 after the glide", i, got)
		}
	}
}

func TestSeekFreezesPositionDuringDrag(t *testing.T) {
	tr, out, _ := newTransport(t, 100, 30, nil)
	tr.Play(2)
	out.advance(1)

	tr.BeginSeek()
	out.advance(5)
	if got := tr.CurrentPosition(); !near(got, 3) {
		t.Errorf("position during drag = %v, want frozen 3", got)
	}
	if got := tr.Poll(); !near(got, 3) {
		t.Errorf("Poll during drag = %v, want 3", got)
	}

	tr.SeekTo(7)
	if got := tr.CurrentPosition(); got != 7 {
		t.Errorf("position after SeekTo = %v, want 7", got)
	}

	tr.EndSeek(7)
	out.advance(0.5)
	if got := tr.CurrentPosition(); !near(got, 7.5) {
		t.Errorf("position after release = %v, want 7.5", got)
	}
}

func TestEndSeekWithoutVoiceOnlyMoves(t *testing.T) {
	tr, out, _ := newTransport(t, 100, 30, nil)

	tr.Seek(12)
	if st := tr.State(); st.Playing || st.Position != 12 {
		t.Errorf("state after seek while stopped: %+v", st)
	}
	if out.resumes != 0 {
		t.Error("seek without a voice resumed the device")
	}
}

func TestSeekDisabled(t *testing.T) {
	tr, out, _ := newTransport(t, 100, 30, func(o *Options) { o.Seekable = false })
	tr.Play(1)
	out.advance(1)
	tr.Seek(20)
	if got := tr.CurrentPosition(); !near(got, 2) {
		t.Errorf("position = %v, want 2 (seek ignored)", got)
	}
}

func TestAutoplayPendingRunsOnPublish(t *testing.T) {
	out := &fakeOutput{}
	opts := DefaultOptions(10)
	opts.Autoplay = true
	tr := New(out, audio.NewMixer(100), opts)

	tr.BeginLoad()
	tr.Play(3)
	if tr.State().Playing {
		t.Fatal("play during load should be deferred")
	}

	if err := tr.Publish(audio.NewBuffer(100, 10)); err != nil {
		t.Fatal(err)
	}
	st := tr.State()
	if !st.Playing || st.Position != 3 {
		t.Errorf("after publish: %+v, want playing at 3", st)
	}

	tr.SetWindow(4, 8)
	tr.BeginLoad()
	tr.Publish(audio.NewBuffer(100, 10))
	if st := tr.State(); !st.Playing || st.Position != 4 {
		t.Errorf("autoplay after reload: %+v, want playing at window start 4", st)
	}
}

func TestFailedLoadKeepsPreviousTrack(t *testing.T) {
	tr, _, _ := newTransport(t, 100, 10, nil)

	tr.BeginLoad()
	tr.Play(1)
	if st := tr.State(); st.Ready || st.Playing {
		t.Fatalf("transport accepted play during load: %+v", st)
	}

	tr.AbortLoad()
	tr.Play(1)
	if st := tr.State(); !st.Ready || !st.Playing {
		t.Errorf("previous track not playable after a failed load: %+v", st)
	}
}

func TestPublishStopsOldVoice(t *testing.T) {
	tr, _, _ := newTransport(t, 100, 10, nil)
	tr.Play(5)
	tr.BeginLoad()
	if !tr.State().Playing {
		t.Fatal("voice should keep playing while the next track renders")
	}
	tr.Publish(audio.NewBuffer(100, 10))
	if tr.State().Playing {
		t.Error("old voice survived publish")
	}
}

func TestRunPollsUntilCancelled(t *testing.T) {
	tr, out, _ := newTransport(t, 100, 10, nil)
	tr.SetWindow(0, 1)
	tr.Play(0)
	out.advance(2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.Run(ctx, time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for tr.State().Playing && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	if tr.State().Playing {
		t.Error("Run never polled the voice to a stop")
	}
}
