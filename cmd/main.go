package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/richinsley/goshadersound/api"
	"github.com/richinsley/goshadersound/bridge"
	"github.com/richinsley/goshadersound/discovery"
	"github.com/richinsley/goshadersound/glfwcontext"
	"github.com/richinsley/goshadersound/glrenderer"
	"github.com/richinsley/goshadersound/graphics"
	"github.com/richinsley/goshadersound/headless"
	"github.com/richinsley/goshadersound/options"
	"github.com/richinsley/goshadersound/output"
	"github.com/richinsley/goshadersound/output/native"
	"github.com/richinsley/goshadersound/session"
	"github.com/richinsley/goshadersound/ui"
)

func init() {
	runtime.LockOSThread()
}

// readSource returns the shader named on the command line, or "" if none.
func readSource(opts *options.SoundOptions) (src, title string, err error) {
	switch {
	case *opts.ShaderFile != "":
		data, err := os.ReadFile(*opts.ShaderFile)
		if err != nil {
			return "", "", fmt.Errorf("failed to read shader file: %w", err)
		}
		return string(data), filepath.Base(*opts.ShaderFile), nil
	case *opts.ShaderID != "":
		log.Printf("Fetching shader with ID: %s", *opts.ShaderID)
		resp, err := api.ShaderFromID(*opts.APIKey, *opts.ShaderID, true)
		if err != nil {
			return "", "", fmt.Errorf("error fetching shader from ID: %w", err)
		}
		args, err := api.SoundSource(resp)
		if err != nil {
			return "", "", err
		}
		return args.Source(), args.Title, nil
	}
	return "", "", nil
}

// newGraphicsContext returns the context and the func that destroys it. The
// teardown must run on the main thread after the rasterizer is closed.
func newGraphicsContext(opts *options.SoundOptions) (graphics.Context, func(), error) {
	if *opts.Headless {
		ctx, err := headless.New(*opts.Width, *opts.Height)
		if err != nil {
			return nil, nil, err
		}
		return ctx, graphics.Teardown(ctx), nil
	}
	if err := glfwcontext.InitGraphics(); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize GLFW: %w", err)
	}
	ctx, err := glfwcontext.New(*opts.Width, *opts.Height)
	if err != nil {
		glfwcontext.TerminateGraphics()
		return nil, nil, fmt.Errorf("failed to create GL window: %w", err)
	}
	return ctx, graphics.Teardown(ctx, glfwcontext.TerminateGraphics), nil
}

// push sends the shader to a running bridge and waits for the render result.
func push(opts *options.SoundOptions) error {
	src, _, err := readSource(opts)
	if err != nil {
		return err
	}
	if src == "" {
		return errors.New("-push needs -shader or -shadertoy")
	}

	url := *opts.Connect
	if url == "" {
		hosts, err := discovery.Browse(3 * time.Second)
		if err != nil {
			return err
		}
		if len(hosts) == 0 {
			return errors.New("no bridge found via mDNS, use -connect")
		}
		url = hosts[0].URL()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c, err := bridge.Dial(ctx, url)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.SetShader(src); err != nil {
		return err
	}
	d, err := c.WaitRendered()
	if err != nil {
		return err
	}
	log.Printf("Bridge at %s rendered a %.1fs track", url, d)
	return nil
}

func main() {
	opts := options.Bind(flag.CommandLine)
	flag.Parse()

	if *opts.Help {
		fmt.Println("Sound shader preview")
		flag.PrintDefaults()
		return
	}

	if *opts.Push {
		if err := push(opts); err != nil {
			log.Fatalf("Push failed: %v", err)
		}
		return
	}

	f, err := os.OpenFile(*opts.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()
	if *opts.TUI {
		// The TUI owns the terminal: log only to file.
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stderr, f))
	}

	src, title, err := readSource(opts)
	if err != nil {
		log.Fatalf("%v", err)
	}

	gctx, terminate, err := newGraphicsContext(opts)
	if err != nil {
		log.Fatalf("Failed to create graphics context: %v", err)
	}
	// Deferred before the session so the window is destroyed here, on the
	// main thread, after the GL thread has let go of it.
	defer terminate()

	raster, err := glrenderer.New(gctx)
	if err != nil {
		log.Fatalf("Failed to create rasterizer: %v", err)
	}

	dev, err := native.New(*opts.Output, output.Options{
		SampleRate:  *opts.SampleRate,
		AudioDevice: *opts.AudioDevice,
		FFmpegPath:  *opts.FFmpegPath,
	})
	if err != nil {
		raster.Close()
		log.Fatalf("Failed to open audio output: %v", err)
	}

	sess, err := session.New(raster, dev, opts.SessionConfig())
	if err != nil {
		raster.Close()
		dev.Close()
		log.Fatalf("Failed to create session: %v", err)
	}
	defer sess.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *opts.Listen != "" {
		l, err := net.Listen("tcp", *opts.Listen)
		if err != nil {
			log.Fatalf("Failed to listen on %s: %v", *opts.Listen, err)
		}
		srv := bridge.NewServer(sess, opts.AllowedOrigins()...)
		go func() {
			if err := srv.Serve(l); err != nil {
				log.Printf("Bridge stopped: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		if *opts.MDNS {
			bound := l.Addr().(*net.TCPAddr)
			adv, err := discovery.Advertise(discovery.Config{
				Instance: "goshadersound-" + sess.ID[:8],
				IP:       bound.IP,
				Port:     bound.Port,
				Path:     bridge.Path,
			})
			if err != nil {
				log.Printf("Warning: mDNS advertisement failed: %v", err)
			} else {
				defer adv.Stop()
			}
		}
	}

	if *opts.TUI {
		load := ui.FileLoader(sess, func() (string, error) {
			src, _, err := readSource(opts)
			if err == nil && src == "" {
				err = errors.New("no shader file to reload")
			}
			return src, err
		})
		if err := ui.Run(sess, load, title, src != ""); err != nil {
			log.Printf("%v", err)
		}
		return
	}

	if src != "" {
		go func() {
			if err := sess.Load(ctx, src); err != nil {
				log.Printf("Shader load failed: %v", err)
				return
			}
			log.Printf("Loaded %s", title)
		}()
	}
	log.Println("Running; press Ctrl+C to stop.")
	sess.Run(ctx)
	log.Println("Shutting down.")
}
