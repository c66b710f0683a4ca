// Package monitor turns the mixer's output tap into level and spectrum
// readings for display.
package monitor

import (
	"math"
	"sync"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"github.com/richinsley/goshadersound/audio"
)

const (
	minDecibels = -100.0
	maxDecibels = -30.0

	defaultSmoothing = 0.8
)

// Snapshot is one reading of the most recent output window.
type Snapshot struct {
	Peak     float32   // max |sample|
	RMS      float32
	Bands    []float32 // log-spaced spectrum bands scaled to [0, 1]
	Waveform []float32 // mono samples of the window
}

// Analyzer reads the tap without consuming it, so any number of analyzers
// can watch the same mixer.
type Analyzer struct {
	tap   *audio.SharedAudioBuffer
	bands int

	mu        sync.Mutex
	smoothing float64
	lastDB    []float64
	window    []float64
}

func NewAnalyzer(tap *audio.SharedAudioBuffer, bands int) *Analyzer {
	if bands <= 0 {
		bands = 16
	}
	return &Analyzer{tap: tap, bands: bands, smoothing: defaultSmoothing}
}

// SetSmoothing sets the temporal smoothing factor in [0, 1). Zero disables it.
func (a *Analyzer) SetSmoothing(f float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.smoothing = math.Max(0, math.Min(f, 0.99))
}

// Snapshot analyzes the last complete window of the tap.
func (a *Analyzer) Snapshot() Snapshot {
	mono := audio.DownmixStereoToMono(a.tap.WindowPeek())
	snap := Snapshot{Waveform: mono}

	var sum float64
	for _, s := range mono {
		v := float64(s)
		if abs := float32(math.Abs(v)); abs > snap.Peak {
			snap.Peak = abs
		}
		sum += v * v
	}
	if len(mono) > 0 {
		snap.RMS = float32(math.Sqrt(sum / float64(len(mono))))
	}
	snap.Bands = a.spectrum(mono)
	return snap
}

func (a *Analyzer) spectrum(mono []float32) []float32 {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(mono)
	bands := make([]float32, a.bands)
	if n < 2 {
		return bands
	}
	if len(a.window) != n {
		a.window = window.Blackman(n)
		a.lastDB = make([]float64, n/2)
		for i := range a.lastDB {
			a.lastDB[i] = minDecibels
		}
	}

	samples := make([]float64, n)
	for i, s := range mono {
		samples[i] = float64(s) * a.window[i]
	}
	fftResult := fft.FFTReal(samples)

	bins := n / 2
	scaled := make([]float32, bins)
	for i := 0; i < bins; i++ {
		re, im := real(fftResult[i]), imag(fftResult[i])
		magnitude := math.Sqrt(re*re+im*im) * (2.0 / float64(n))
		db := 20 * math.Log10(magnitude+1e-9)

		a.lastDB[i] = a.smoothing*a.lastDB[i] + (1-a.smoothing)*db
		scaled[i] = scaleDB(a.lastDB[i])
	}

	edges := bandEdges(bins, a.bands)
	for b := 0; b < a.bands; b++ {
		for i := edges[b]; i < edges[b+1]; i++ {
			if scaled[i] > bands[b] {
				bands[b] = scaled[i]
			}
		}
	}
	return bands
}

func scaleDB(db float64) float32 {
	switch {
	case db < minDecibels:
		return 0
	case db > maxDecibels:
		return 1
	}
	return float32((db - minDecibels) / (maxDecibels - minDecibels))
}

// bandEdges splits bins 1..bins-1 into log-spaced groups; band b covers
// [edges[b], edges[b+1]). The DC bin is skipped.
func bandEdges(bins, bands int) []int {
	edges := make([]int, bands+1)
	for k := 0; k <= bands; k++ {
		e := int(math.Round(math.Pow(float64(bins), float64(k)/float64(bands))))
		if k > 0 && e <= edges[k-1] {
			e = edges[k-1] + 1
		}
		if e > bins {
			e = bins
		}
		edges[k] = e
	}
	return edges
}
