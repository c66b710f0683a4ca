package graphics

// Context is an OpenGL context owned by exactly one OS thread at a time.
// Implementations are a hidden GLFW window and an EGL pbuffer.
type Context interface {
	MakeCurrent()
	DetachCurrent()
	IsGLES() bool
	Shutdown()
}

// Teardown returns a func that shuts ctx down and then runs each of after in
// order. Run it on the thread that created ctx, once every user of ctx has
// released it.
func Teardown(ctx Context, after ...func()) func() {
	return func() {
		if ctx != nil {
			ctx.Shutdown()
		}
		for _, fn := range after {
			fn()
		}
	}
}
