package renderer

import "fmt"

// Uniforms are the per-pass inputs of the composed sound program.
type Uniforms struct {
	BlockOffset  float32
	SampleOffset int32
	SampleRate   float32
}

// Rasterizer compiles composed sound programs for a fixed-size offscreen
// surface. Implementations own whatever device state that takes.
type Rasterizer interface {
	// Compile builds source into a program drawing onto a width x height
	// surface. A program the driver rejects is reported as *CompileError.
	Compile(source string, width, height int) (Program, error)
	Close() error
}

// Program is a compiled, linked sound program.
type Program interface {
	// Draw rasterizes one pass and reads back width*height RGBA8 pixels into
	// dst, bottom row first, the order glReadPixels returns them in.
	Draw(u Uniforms, dst []byte) error
	Release()
}

// CompileError is a rejected program. Log is the driver or translator
// output, unmodified.
type CompileError struct {
	Stage string
	Log   string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("failed to compile %s shader: %s", e.Stage, e.Log)
}
