package output

import (
	"context"
	"fmt"
	"io"
	"log"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/richinsley/goshadersound/audio"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

const ffmpegChunkFrames = 1024

// FFmpeg pipes the mix as raw f32le into an ffmpeg process that plays it on
// an OS audio output. The pipe has no back pressure from the sound card, so
// writes are paced against the device clock.
type FFmpeg struct {
	mu         sync.Mutex
	opts       Options
	rate       int
	clock      *PausableClock
	cmd        *exec.Cmd
	pipeWriter *io.PipeWriter
	cancel     context.CancelFunc
	done       chan struct{}
}

func NewFFmpeg(opts Options) (*FFmpeg, error) {
	if _, _, err := outputArgs(opts.AudioDevice); err != nil {
		return nil, err
	}
	return &FFmpeg{
		opts:  opts,
		rate:  RateOrDefault(opts.SampleRate),
		clock: NewPausableClock(opts.Clock),
	}, nil
}

func outputArgs(device string) (string, ffmpeg.KwArgs, error) {
	args := ffmpeg.KwArgs{}
	switch runtime.GOOS {
	case "darwin":
		args["f"] = "audiotoolbox"
		if device != "" {
			args["audio_device_index"] = device
		}
		return "-", args, nil
	case "linux":
		args["f"] = "pulse"
		if device == "" {
			device = "default"
		}
		return device, args, nil
	default:
		return "", nil, fmt.Errorf("ffmpeg audio output is not supported on %s", runtime.GOOS)
	}
}

func (f *FFmpeg) Start(m *audio.Mixer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cmd != nil {
		return fmt.Errorf("ffmpeg output already started")
	}

	device, args, err := outputArgs(f.opts.AudioDevice)
	if err != nil {
		return err
	}

	pipeReader, pipeWriter := io.Pipe()
	stream := ffmpeg.Input("pipe:", ffmpeg.KwArgs{
		"f":  "f32le",
		"ar": strconv.Itoa(f.rate),
		"ac": strconv.Itoa(audio.Channels),
	}).Output(device, args).WithInput(pipeReader).ErrorToStdOut()
	if f.opts.FFmpegPath != "" {
		stream.SetFfmpegPath(f.opts.FFmpegPath)
	}

	f.cmd = stream.Compile()
	f.pipeWriter = pipeWriter
	if err := f.cmd.Start(); err != nil {
		f.cmd = nil
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	go func(cmd *exec.Cmd) {
		if err := cmd.Wait(); err != nil {
			log.Printf("FFmpeg audio output finished with error: %v", err)
		}
		pipeReader.Close()
	}(f.cmd)

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.done = make(chan struct{})
	go f.pump(ctx, m, pipeWriter)
	return nil
}

// pump writes mixed chunks while the device runs, sleeping whenever it is
// ahead of the device clock.
func (f *FFmpeg) pump(ctx context.Context, m *audio.Mixer, w io.Writer) {
	defer close(f.done)
	chunk := make([]byte, ffmpegChunkFrames*audio.Channels*4)
	var framesSent int64
	// keep roughly one chunk queued ahead of real time
	lead := int64(ffmpegChunkFrames)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !f.clock.Running() {
			time.Sleep(5 * time.Millisecond)
			continue
		}

		expected := int64(f.clock.Seconds()*float64(f.rate)) + lead
		if framesSent >= expected {
			ahead := framesSent - expected + 1
			time.Sleep(time.Duration(float64(ahead) * float64(time.Second) / float64(f.rate)))
			continue
		}

		n, _ := m.Read(chunk)
		if _, err := w.Write(chunk[:n]); err != nil {
			if ctx.Err() == nil {
				log.Printf("Error writing to ffmpeg audio pipe: %v", err)
			}
			return
		}
		framesSent += int64(n / (audio.Channels * 4))
	}
}

func (f *FFmpeg) SampleRate() int { return f.rate }
func (f *FFmpeg) Now() float64    { return f.clock.Seconds() }
func (f *FFmpeg) Running() bool   { return f.clock.Running() }

func (f *FFmpeg) Resume() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cmd == nil {
		return fmt.Errorf("ffmpeg output not started")
	}
	f.clock.Resume()
	return nil
}

func (f *FFmpeg) Suspend() error {
	f.clock.Suspend()
	return nil
}

func (f *FFmpeg) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock.Suspend()
	if f.cancel != nil {
		f.cancel()
	}
	// closing the pipe unblocks a pump stuck in Write
	if f.pipeWriter != nil {
		f.pipeWriter.Close()
		f.pipeWriter = nil
	}
	if f.done != nil {
		<-f.done
		f.done = nil
	}
	if f.cmd != nil && f.cmd.Process != nil {
		err := f.cmd.Process.Kill()
		f.cmd = nil
		return err
	}
	return nil
}
