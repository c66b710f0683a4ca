// Package session owns everything one preview needs: the rasterizer, the
// block renderer, the live mix, the output device, the transport and the
// diagnostics channel. Nothing here is global, so any number of sessions can
// run side by side and each tears down cleanly.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/richinsley/goshadersound/audio"
	"github.com/richinsley/goshadersound/diagnostics"
	"github.com/richinsley/goshadersound/output"
	"github.com/richinsley/goshadersound/renderer"
	"github.com/richinsley/goshadersound/transport"
)

// ErrLoadInFlight rejects a load that arrives while another is rendering.
var ErrLoadInFlight = errors.New("a shader load is already in progress")

type Config struct {
	// Render geometry. SampleRate is ignored: the device decides it.
	Render       renderer.Config
	Transport    transport.Options
	PollInterval time.Duration
}

type Session struct {
	ID string

	cfg       Config
	raster    renderer.Rasterizer
	renderer  *renderer.BlockRenderer
	mixer     *audio.Mixer
	device    output.Device
	transport *transport.Transport
	diag      *diagnostics.Channel

	loading   atomic.Bool
	progress  atomic.Pointer[func(block, total int)]
	mu        sync.Mutex
	source    string
	closeOnce sync.Once
	closeErr  error
}

// New builds a session around a rasterizer and an output device, both of
// which it takes ownership of.
func New(raster renderer.Rasterizer, dev output.Device, cfg Config) (*Session, error) {
	cfg.Render.SampleRate = dev.SampleRate()
	if cfg.Transport.Duration == 0 {
		cfg.Transport.Duration = cfg.Render.Duration
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = transport.DefaultPollInterval
	}

	diag := diagnostics.New()
	br, err := renderer.NewBlockRenderer(raster, cfg.Render, diag)
	if err != nil {
		return nil, fmt.Errorf("invalid render configuration: %w", err)
	}

	mixer := audio.NewMixer(cfg.Render.SampleRate)
	if err := dev.Start(mixer); err != nil {
		return nil, fmt.Errorf("failed to start audio output: %w", err)
	}

	s := &Session{
		ID:        uuid.NewString(),
		cfg:       cfg,
		raster:    raster,
		renderer:  br,
		mixer:     mixer,
		device:    dev,
		transport: transport.New(dev, mixer, cfg.Transport),
		diag:      diag,
	}
	br.Progress = s.reportProgress
	log.Printf("Session %s created: %dHz, %.0fs track, %dx%d surface (%d blocks).",
		s.ID, cfg.Render.SampleRate, cfg.Render.Duration, cfg.Render.Width, cfg.Render.Height, cfg.Render.NumBlocks())
	return s, nil
}

// Load renders src and, on success, publishes it to the transport. Only one
// load may run at a time; a second one fails with ErrLoadInFlight instead of
// racing the first. A failed load leaves the previous track in place.
func (s *Session) Load(ctx context.Context, src string) error {
	if !s.loading.CompareAndSwap(false, true) {
		return ErrLoadInFlight
	}
	defer s.loading.Store(false)

	s.transport.BeginLoad()
	start := time.Now()
	buf, err := s.renderer.Render(ctx, src)
	if err != nil {
		s.transport.AbortLoad()
		return err
	}
	log.Printf("Session %s rendered %d blocks in %v.", s.ID, s.cfg.Render.NumBlocks(), time.Since(start).Round(time.Millisecond))

	s.mu.Lock()
	s.source = src
	s.mu.Unlock()

	if err := s.transport.Publish(buf); err != nil {
		log.Printf("Warning: session %s could not start playback: %v", s.ID, err)
	}
	return nil
}

// Loading reports whether a render is in progress.
func (s *Session) Loading() bool { return s.loading.Load() }

// Run drives the transport's polling loop until ctx is done.
func (s *Session) Run(ctx context.Context) {
	s.transport.Run(ctx, s.cfg.PollInterval)
}

// SetProgress installs a per-block progress callback. It may be swapped or
// cleared with nil at any time, including during a render.
func (s *Session) SetProgress(fn func(block, total int)) {
	if fn == nil {
		s.progress.Store(nil)
		return
	}
	s.progress.Store(&fn)
}

func (s *Session) reportProgress(block, total int) {
	if fn := s.progress.Load(); fn != nil {
		(*fn)(block, total)
	}
}

func (s *Session) Transport() *transport.Transport   { return s.transport }
func (s *Session) Diagnostics() *diagnostics.Channel { return s.diag }
func (s *Session) Mixer() *audio.Mixer               { return s.mixer }
func (s *Session) RenderConfig() renderer.Config     { return s.cfg.Render }
func (s *Session) PollInterval() time.Duration       { return s.cfg.PollInterval }
func (s *Session) ErrorText() string                 { return s.diag.Text() }

// Source is the most recently loaded shader source.
func (s *Session) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Close stops playback, then releases the rendering surface and the device.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.transport.Stop()
		var errs []error
		if err := s.raster.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close rasterizer: %w", err))
		}
		if err := s.device.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close audio output: %w", err))
		}
		s.closeErr = errors.Join(errs...)
		log.Printf("Session %s closed.", s.ID)
	})
	return s.closeErr
}
