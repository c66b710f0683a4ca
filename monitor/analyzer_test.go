package monitor

import (
	"math"
	"testing"

	"github.com/richinsley/goshadersound/audio"
)

func TestBandEdges(t *testing.T) {
	edges := bandEdges(512, 8)
	want := []int{1, 2, 5, 10, 23, 49, 108, 235, 512}
	for i := range want {
		if edges[i] != want[i] {
			t.Fatalf("bandEdges(512, 8) = %v, want %v", edges, want)
		}
	}

	// More bands than bins still yields a monotonic, bounded set.
	edges = bandEdges(4, 8)
	for i := 1; i < len(edges); i++ {
		if edges[i] < edges[i-1] || edges[i] > 4 {
			t.Fatalf("bandEdges(4, 8) = %v", edges)
		}
	}
}

func TestSnapshotOfSine(t *testing.T) {
	tap := audio.NewSharedAudioBuffer(audio.DefaultWindowSize)
	frames := audio.DefaultWindowSize / 2
	stereo := make([]float32, audio.DefaultWindowSize)
	for i := 0; i < frames; i++ {
		v := float32(math.Sin(2 * math.Pi * 64 * float64(i) / float64(frames)))
		stereo[i*2], stereo[i*2+1] = v, v
	}
	tap.Write(stereo)

	a := NewAnalyzer(tap, 8)
	a.SetSmoothing(0)
	snap := a.Snapshot()

	if math.Abs(float64(snap.Peak)-1) > 1e-3 {
		t.Errorf("Peak = %v, want 1", snap.Peak)
	}
	if math.Abs(float64(snap.RMS)-math.Sqrt2/2) > 1e-3 {
		t.Errorf("RMS = %v, want %v", snap.RMS, math.Sqrt2/2)
	}
	if len(snap.Waveform) != frames {
		t.Errorf("Waveform has %d samples, want %d", len(snap.Waveform), frames)
	}

	// Bin 64 lands in band 5, [49, 108).
	loudest := 0
	for i, v := range snap.Bands {
		if v > snap.Bands[loudest] {
			loudest = i
		}
	}
	if loudest != 5 || snap.Bands[5] != 1 {
		t.Errorf("Bands = %v, want band 5 at full scale", snap.Bands)
	}
	if snap.Bands[0] > 0.1 {
		t.Errorf("low band leaked: %v", snap.Bands[0])
	}
}

func TestSnapshotOfSilence(t *testing.T) {
	a := NewAnalyzer(audio.NewSharedAudioBuffer(0), 4)
	snap := a.Snapshot()
	if snap.Peak != 0 || snap.RMS != 0 {
		t.Errorf("silence measured as peak %v rms %v", snap.Peak, snap.RMS)
	}
	for i, v := range snap.Bands {
		if v != 0 {
			t.Errorf("band %d = %v on silence", i, v)
		}
	}
}
