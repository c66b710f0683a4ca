package audio

import (
	"math"

	"github.com/richinsley/goshadersound/codec"
)

// Buffer is a rendered stereo track. Its length is fixed when it is created;
// the renderer fills it block by block and hands it over complete, after
// which it is only read.
type Buffer struct {
	sampleRate int
	left       []float32
	right      []float32
}

// NewBuffer allocates a silent buffer of round(sampleRate*duration) frames.
func NewBuffer(sampleRate int, duration float64) *Buffer {
	n := int(math.Round(float64(sampleRate) * duration))
	if n < 0 {
		n = 0
	}
	return &Buffer{
		sampleRate: sampleRate,
		left:       make([]float32, n),
		right:      make([]float32, n),
	}
}

// WriteBlock decodes an RGBA8 readback into the buffer starting at frame
// offset. Pixels past the end of the buffer are dropped. It returns the
// number of frames written.
func (b *Buffer) WriteBlock(offset int, pixels []byte) int {
	if offset < 0 || offset >= len(b.left) {
		return 0
	}
	return codec.DecodeInto(pixels, b.left[offset:], b.right[offset:])
}

func (b *Buffer) Len() int        { return len(b.left) }
func (b *Buffer) SampleRate() int { return b.sampleRate }

// Duration is the length in seconds.
func (b *Buffer) Duration() float64 {
	if b.sampleRate == 0 {
		return 0
	}
	return float64(len(b.left)) / float64(b.sampleRate)
}

// Frame returns the stereo sample at index i.
func (b *Buffer) Frame(i int) (left, right float32) {
	return b.left[i], b.right[i]
}

// Left and Right expose the channel data. Callers must not modify them.
func (b *Buffer) Left() []float32  { return b.left }
func (b *Buffer) Right() []float32 { return b.right }
