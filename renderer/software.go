package renderer

import (
	"fmt"

	"github.com/richinsley/goshadersound/codec"
)

// SoundFunc is a sound program written in Go: the stereo sample for sample
// index s at time t seconds.
type SoundFunc func(s int, t float64) (left, right float64)

// Software rasterizes a SoundFunc on the CPU with exactly the footer's time
// mapping and sample encoding. It stands in for a GPU in tests and on
// machines with no GL.
type Software struct {
	Sound SoundFunc

	// Check, when set, plays the role of the shader compiler: a non-nil
	// error rejects the source with the error's text as the log.
	Check func(source string) error
}

func (s *Software) Compile(source string, width, height int) (Program, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid surface size %dx%d", width, height)
	}
	if s.Check != nil {
		if err := s.Check(source); err != nil {
			return nil, &CompileError{Stage: "fragment", Log: err.Error()}
		}
	}
	sound := s.Sound
	if sound == nil {
		sound = func(int, float64) (float64, float64) { return 0, 0 }
	}
	return &softwareProgram{sound: sound, width: width, height: height}, nil
}

func (s *Software) Close() error { return nil }

type softwareProgram struct {
	sound         SoundFunc
	width, height int
}

func (p *softwareProgram) Draw(u Uniforms, dst []byte) error {
	n := p.width * p.height
	if len(dst) < n*codec.BytesPerPixel {
		return fmt.Errorf("readback buffer too small: %d bytes for %d pixels", len(dst), n)
	}
	rate := float64(u.SampleRate)
	for j := 0; j < n; j++ {
		t := float64(u.BlockOffset) + float64(j)/rate
		l, r := p.sound(int(u.SampleOffset)+j, t)
		codec.EncodePixel(l, r, dst[j*codec.BytesPerPixel:])
	}
	return nil
}

func (p *softwareProgram) Release() {}
