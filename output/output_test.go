package output

import (
	"go/parser"
	"go/token"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/richinsley/goshadersound/audio"
)

type manualClock struct{ t time.Time }

func (c *manualClock) now() time.Time          { return c.t }
func (c *manualClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestPausableClock(t *testing.T) {
	mc := &manualClock{t: time.Unix(1000, 0)}
	c := NewPausableClock(mc.now)

	mc.advance(time.Second)
	if c.Seconds() != 0 {
		t.Errorf("suspended clock advanced to %v", c.Seconds())
	}

	if !c.Resume() {
		t.Error("first resume should report a change")
	}
	if c.Resume() {
		t.Error("second resume should be a no-op")
	}
	mc.advance(1500 * time.Millisecond)
	if got := c.Seconds(); got != 1.5 {
		t.Errorf("Seconds() = %v, want 1.5", got)
	}

	c.Suspend()
	mc.advance(10 * time.Second)
	if got := c.Seconds(); got != 1.5 {
		t.Errorf("Seconds() while suspended = %v, want 1.5", got)
	}

	c.Resume()
	mc.advance(500 * time.Millisecond)
	if got := c.Seconds(); got != 2 {
		t.Errorf("Seconds() = %v, want 2", got)
	}
}

func TestNullPullsInRealTime(t *testing.T) {
	mc := &manualClock{t: time.Unix(0, 0)}
	dev := NewNull(Options{SampleRate: 100, Clock: mc.now})
	m := audio.NewMixer(dev.SampleRate())

	// Pump directly; no background goroutine is needed for this.
	dev.mixer = m

	if dev.Running() {
		t.Fatal("device should start suspended")
	}
	mc.advance(time.Second)
	dev.Pump()
	if m.FramesMixed() != 0 {
		t.Errorf("suspended device pulled %d frames", m.FramesMixed())
	}

	dev.Resume()
	mc.advance(250 * time.Millisecond)
	dev.Pump()
	if m.FramesMixed() != 25 {
		t.Errorf("pulled %d frames after 250ms at 100Hz, want 25", m.FramesMixed())
	}
	if math.Abs(dev.Now()-0.25) > 1e-9 {
		t.Errorf("Now() = %v, want 0.25", dev.Now())
	}

	mc.advance(3 * time.Second)
	dev.Pump()
	if m.FramesMixed() != 325 {
		t.Errorf("pulled %d frames, want 325", m.FramesMixed())
	}
}

func TestNullStartClose(t *testing.T) {
	dev := NewNull(Options{})
	if dev.SampleRate() != DefaultSampleRate {
		t.Errorf("SampleRate() = %d, want %d", dev.SampleRate(), DefaultSampleRate)
	}
	m := audio.NewMixer(dev.SampleRate())
	if err := dev.Start(m); err != nil {
		t.Fatal(err)
	}
	if err := dev.Start(m); err == nil {
		t.Error("second Start should fail")
	}
	if err := dev.Close(); err != nil {
		t.Fatal(err)
	}
	if err := dev.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

// Sessions, the bridge and the TUI are tested against Null; they must build
// without a C toolchain or audio headers.
func TestOutputPackageIsCgoFree(t *testing.T) {
	files, err := filepath.Glob("*.go")
	if err != nil {
		t.Fatal(err)
	}
	fset := token.NewFileSet()
	for _, name := range files {
		if strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(fset, name, nil, parser.ImportsOnly)
		if err != nil {
			t.Fatal(err)
		}
		for _, imp := range f.Imports {
			path, _ := strconv.Unquote(imp.Path.Value)
			if path == "C" || strings.HasPrefix(path, "github.com/gordonklaus/portaudio") || strings.HasPrefix(path, "github.com/ebitengine/oto") {
				t.Errorf("%s imports %s; cgo devices belong in output/native", name, path)
			}
		}
	}
}
