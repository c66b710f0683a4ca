package renderer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/richinsley/goshadersound/audio"
	"github.com/richinsley/goshadersound/codec"
	"github.com/richinsley/goshadersound/diagnostics"
	"github.com/richinsley/goshadersound/shader"
)

// Config fixes the geometry of a render cycle.
type Config struct {
	SampleRate int
	Duration   float64 // seconds
	Width      int
	Height     int
}

// SamplesPerBlock is the number of stereo samples one pass produces.
func (c Config) SamplesPerBlock() int {
	return c.Width * c.Height
}

// BufferLength is the frame count of the rendered track.
func (c Config) BufferLength() int {
	return int(math.Round(float64(c.SampleRate) * c.Duration))
}

// NumBlocks is the number of passes needed to cover the track. The last
// pass may be partial.
func (c Config) NumBlocks() int {
	spb := c.SamplesPerBlock()
	if spb <= 0 {
		return 0
	}
	return (c.BufferLength() + spb - 1) / spb
}

// BlockOffset is the time origin of pass i, in seconds.
func (c Config) BlockOffset(i int) float64 {
	return float64(i) * float64(c.SamplesPerBlock()) / float64(c.SampleRate)
}

func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	case c.Duration <= 0 || math.IsInf(c.Duration, 0) || math.IsNaN(c.Duration):
		return fmt.Errorf("duration must be a positive number of seconds, got %v", c.Duration)
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("render surface must be non-empty, got %dx%d", c.Width, c.Height)
	}
	return nil
}

// BlockRenderer turns sound shader source into a complete audio.Buffer by
// rasterizing it one block at a time.
type BlockRenderer struct {
	raster Rasterizer
	cfg    Config
	diag   *diagnostics.Channel

	// Progress, if set, is called after each finished pass.
	Progress func(block, total int)
}

func NewBlockRenderer(r Rasterizer, cfg Config, diag *diagnostics.Channel) (*BlockRenderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if diag == nil {
		diag = diagnostics.New()
	}
	return &BlockRenderer{raster: r, cfg: cfg, diag: diag}, nil
}

func (br *BlockRenderer) Config() Config { return br.cfg }

func (br *BlockRenderer) Diagnostics() *diagnostics.Channel { return br.diag }

// Render runs a full render cycle. The returned buffer is complete; on any
// error no buffer is returned. Compile failures are also reported to the
// diagnostics channel. Cancellation is honored between passes.
func (br *BlockRenderer) Render(ctx context.Context, userShader string) (*audio.Buffer, error) {
	br.diag.Clear()

	source := shader.GenerateSoundShaderSource(userShader, br.cfg.Width)
	prog, err := br.raster.Compile(source, br.cfg.Width, br.cfg.Height)
	if err != nil {
		var ce *CompileError
		if errors.As(err, &ce) {
			br.diag.Report(ce.Log)
		}
		return nil, err
	}
	defer prog.Release()

	spb := br.cfg.SamplesPerBlock()
	numBlocks := br.cfg.NumBlocks()
	buf := audio.NewBuffer(br.cfg.SampleRate, br.cfg.Duration)
	pixels := make([]byte, spb*codec.BytesPerPixel)

	for i := 0; i < numBlocks; i++ {
		if err := ctx.Err(); err != nil {
			log.Printf("Render cancelled after %d of %d blocks.", i, numBlocks)
			return nil, err
		}

		u := Uniforms{
			BlockOffset:  float32(br.cfg.BlockOffset(i)),
			SampleOffset: int32(i * spb),
			SampleRate:   float32(br.cfg.SampleRate),
		}
		if err := prog.Draw(u, pixels); err != nil {
			return nil, fmt.Errorf("failed to render block %d: %w", i, err)
		}
		buf.WriteBlock(i*spb, pixels)

		if br.Progress != nil {
			br.Progress(i+1, numBlocks)
		}
	}
	return buf, nil
}
