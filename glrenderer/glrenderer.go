// Package glrenderer is the OpenGL implementation of renderer.Rasterizer.
//
// All GL calls run on one goroutine locked to its OS thread, which owns the
// context for the life of the rasterizer. Public methods marshal work onto
// that thread and wait for it, so they may be called from any goroutine.
package glrenderer

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"strings"
	"sync"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/richinsley/goshadersound/graphics"
	"github.com/richinsley/goshadersound/renderer"
	"github.com/richinsley/goshadersound/shader"
	xlate "github.com/richinsley/goshadersound/translator"
)

var (
	glInitOnce sync.Once
	glInitErr  error
)

var quadVertices = []float32{
	-1.0, 1.0, -1.0, -1.0, 1.0, -1.0,
	-1.0, 1.0, 1.0, -1.0, 1.0, 1.0,
}

var errClosed = errors.New("gl rasterizer is closed")

// Rasterizer renders sound programs into an RGBA8 framebuffer object.
type Rasterizer struct {
	context graphics.Context

	mu     sync.Mutex
	closed bool
	calls  chan func()
	done   chan struct{}

	// owned by the GL thread
	quadVAO   uint32
	vbo       uint32
	fbo       uint32
	textureID uint32
	width     int
	height    int
}

// New starts the GL thread and initializes bindings and the quad geometry.
// Close releases the GL objects and detaches ctx from the GL thread; the
// caller still owns ctx and must shut it down, on the main thread for GLFW,
// after Close returns.
func New(ctx graphics.Context) (*Rasterizer, error) {
	r := &Rasterizer{
		context: ctx,
		calls:   make(chan func()),
		done:    make(chan struct{}),
	}
	ready := make(chan error, 1)
	go r.loop(ready)
	if err := <-ready; err != nil {
		return nil, err
	}
	log.Println("GL sound rasterizer initialized successfully on its dedicated thread.")
	return r, nil
}

func (r *Rasterizer) loop(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(r.done)

	r.context.MakeCurrent()
	glInitOnce.Do(func() {
		glInitErr = gl.Init()
	})
	if glInitErr != nil {
		r.context.DetachCurrent()
		ready <- fmt.Errorf("sound rasterizer gl.Init failed: %w", glInitErr)
		return
	}

	gl.GenVertexArrays(1, &r.quadVAO)
	gl.GenBuffers(1, &r.vbo)
	gl.BindVertexArray(r.quadVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(quadVertices)*4, gl.Ptr(quadVertices), gl.STATIC_DRAW)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, 2*4, gl.PtrOffset(0))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)
	ready <- nil

	for fn := range r.calls {
		fn()
	}

	r.deleteTarget()
	gl.DeleteBuffers(1, &r.vbo)
	gl.DeleteVertexArrays(1, &r.quadVAO)
	r.context.DetachCurrent()
	log.Println("GL sound rasterizer resources cleaned up.")
}

// do runs fn on the GL thread and waits for it.
func (r *Rasterizer) do(fn func()) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return errClosed
	}
	finished := make(chan struct{})
	r.calls <- func() {
		defer close(finished)
		fn()
	}
	r.mu.Unlock()
	<-finished
	return nil
}

// ensureTarget (re)allocates the FBO and its texture when the surface size
// changes. The same target is reused across loads.
func (r *Rasterizer) ensureTarget(width, height int) error {
	if r.fbo != 0 && r.width == width && r.height == height {
		return nil
	}
	r.deleteTarget()

	gl.GenFramebuffers(1, &r.fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, r.fbo)
	gl.GenTextures(1, &r.textureID)
	gl.BindTexture(gl.TEXTURE_2D, r.textureID)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(width), int32(height), 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, r.textureID, 0)
	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	if status != gl.FRAMEBUFFER_COMPLETE {
		r.deleteTarget()
		return fmt.Errorf("sound rasterizer FBO is not complete (status 0x%x)", status)
	}
	r.width, r.height = width, height
	return nil
}

func (r *Rasterizer) deleteTarget() {
	if r.fbo != 0 {
		gl.DeleteFramebuffers(1, &r.fbo)
		r.fbo = 0
	}
	if r.textureID != 0 {
		gl.DeleteTextures(1, &r.textureID)
		r.textureID = 0
	}
	r.width, r.height = 0, 0
}

// Compile translates the WebGL2 source for this context, then compiles and
// links it on the GL thread.
func (r *Rasterizer) Compile(source string, width, height int) (renderer.Program, error) {
	isGLES := r.context.IsGLES()
	fs, err := xlate.TranslateFragment(source, isGLES)
	if err != nil {
		return nil, &renderer.CompileError{Stage: "fragment", Log: err.Error()}
	}

	p := &program{r: r, width: width, height: height}
	var compileErr error
	err = r.do(func() {
		if compileErr = r.ensureTarget(width, height); compileErr != nil {
			return
		}
		p.id, compileErr = newProgram(shader.GenerateVertexShader(isGLES), fs.Code)
		if compileErr != nil {
			return
		}
		p.sampleRateLoc = uniformLocation(p.id, fs, shader.UniformSampleRate)
		p.blockOffsetLoc = uniformLocation(p.id, fs, shader.UniformBlockOffset)
		p.sampleOffsetLoc = uniformLocation(p.id, fs, shader.UniformSampleOffset)
	})
	if err != nil {
		return nil, err
	}
	if compileErr != nil {
		return nil, compileErr
	}
	if p.blockOffsetLoc == -1 || p.sampleRateLoc == -1 {
		log.Println("Warning: blockOffset or iSampleRate uniform not found in the sound program. Output will not advance in time.")
	}
	return p, nil
}

// Close stops the GL thread after it deletes its objects and shuts the
// context down. It is safe to call more than once.
func (r *Rasterizer) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.calls)
	r.mu.Unlock()
	<-r.done
	return nil
}

func uniformLocation(prog uint32, fs *xlate.Fragment, name string) int32 {
	mapped, ok := fs.MappedName(name)
	if !ok {
		return -1
	}
	return gl.GetUniformLocation(prog, gl.Str(mapped+"\x00"))
}

type program struct {
	r             *Rasterizer
	id            uint32
	width, height int

	sampleRateLoc   int32
	blockOffsetLoc  int32
	sampleOffsetLoc int32
}

func (p *program) Draw(u renderer.Uniforms, dst []byte) error {
	if len(dst) < p.width*p.height*4 {
		return fmt.Errorf("readback buffer too small: %d bytes for %dx%d", len(dst), p.width, p.height)
	}
	var drawErr error
	err := p.r.do(func() {
		if drawErr = p.r.ensureTarget(p.width, p.height); drawErr != nil {
			return
		}
		gl.BindFramebuffer(gl.FRAMEBUFFER, p.r.fbo)
		gl.UseProgram(p.id)

		gl.Uniform1f(p.sampleRateLoc, u.SampleRate)
		gl.Uniform1f(p.blockOffsetLoc, u.BlockOffset)
		gl.Uniform1i(p.sampleOffsetLoc, u.SampleOffset)

		gl.Viewport(0, 0, int32(p.width), int32(p.height))
		gl.BindVertexArray(p.r.quadVAO)
		gl.DrawArrays(gl.TRIANGLES, 0, 6)
		gl.BindVertexArray(0)

		gl.ReadBuffer(gl.COLOR_ATTACHMENT0)
		gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
		gl.ReadPixels(0, 0, int32(p.width), int32(p.height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(&dst[0]))
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)

		if code := gl.GetError(); code != gl.NO_ERROR {
			drawErr = fmt.Errorf("gl error 0x%x while rendering sound block", code)
		}
	})
	if err != nil {
		return err
	}
	return drawErr
}

func (p *program) Release() {
	if p.id == 0 {
		return
	}
	id := p.id
	p.id = 0
	// A closed rasterizer already deleted its context, and the program with it.
	_ = p.r.do(func() {
		gl.DeleteProgram(id)
	})
}

func newProgram(vertexShaderSource, fragmentShaderSource string) (uint32, error) {
	vertexShader, err := compileShader(vertexShaderSource, gl.VERTEX_SHADER, "vertex")
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(vertexShader)

	fragmentShader, err := compileShader(fragmentShaderSource, gl.FRAGMENT_SHADER, "fragment")
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(fragmentShader)

	program := gl.CreateProgram()
	gl.AttachShader(program, vertexShader)
	gl.AttachShader(program, fragmentShader)
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		logText := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(logText))
		gl.DeleteProgram(program)
		return 0, &renderer.CompileError{Stage: "link", Log: strings.TrimRight(logText, "\x00")}
	}
	return program, nil
}

func compileShader(source string, shaderType uint32, stage string) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		logText := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(logText))
		gl.DeleteShader(shader)
		return 0, &renderer.CompileError{Stage: stage, Log: strings.TrimRight(logText, "\x00")}
	}
	return shader, nil
}
