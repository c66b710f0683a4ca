package options

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/richinsley/goshadersound/renderer"
	"github.com/richinsley/goshadersound/session"
	"github.com/richinsley/goshadersound/transport"
)

type SoundOptions struct {
	ShaderFile  *string
	ShaderID    *string // Shadertoy ID or URL whose sound pass is loaded
	APIKey      *string
	Help        *bool
	Duration    *float64
	Width       *int
	Height      *int
	SampleRate  *int // 0 uses the output device's rate
	Output      *string
	AudioDevice *string // FFmpeg audio output device string.
	FFmpegPath  *string
	Headless    *bool
	Listen      *string // bridge websocket address, "" disables the bridge
	MDNS        *bool
	AllowOrigin *string // comma separated extra browser origins for the bridge
	Push        *bool   // send ShaderFile to a running bridge and exit
	Connect     *string // bridge URL for Push, "" discovers one via mDNS
	TUI         *bool
	LogFile     *string // log destination while the TUI owns the terminal
	Autoplay    *bool
	Loop        *bool
	Seekable    *bool
	Gain        *float64
	MaxGain     *float64
	Poll        *time.Duration
}

// Bind registers every option on fs.
func Bind(fs *flag.FlagSet) *SoundOptions {
	return &SoundOptions{
		ShaderFile:  fs.String("shader", "", "Path of a sound shader file to load at start"),
		ShaderID:    fs.String("shadertoy", "", "Shadertoy ID or URL whose sound pass to load"),
		APIKey:      fs.String("apikey", os.Getenv("SHADERTOY_KEY"), "Shadertoy API key"),
		Help:        fs.Bool("help", false, "Show help message"),
		Duration:    fs.Float64("duration", 180, "Track duration in seconds"),
		Width:       fs.Int("width", 512, "Render surface width"),
		Height:      fs.Int("height", 512, "Render surface height"),
		SampleRate:  fs.Int("samplerate", 0, "Requested output sample rate (0 = device default)"),
		Output:      fs.String("output", "oto", "Audio output: oto, portaudio, ffmpeg or null"),
		AudioDevice: fs.String("audio-device", "", "FFmpeg audio output device"),
		FFmpegPath:  fs.String("ffmpeg", "", "Path to the ffmpeg binary"),
		Headless:    fs.Bool("headless", false, "Render through an EGL pbuffer instead of a hidden window"),
		Listen:      fs.String("listen", "127.0.0.1:8765", "Bridge websocket address (empty disables)"),
		MDNS:        fs.Bool("mdns", false, "Advertise the bridge via mDNS (listen on a LAN address to be reachable from other hosts)"),
		AllowOrigin: fs.String("allow-origin", "", "Comma-separated browser origins the bridge accepts besides localhost; a trailing * matches a prefix"),
		Push:        fs.Bool("push", false, "Send -shader to a running bridge and exit"),
		Connect:     fs.String("connect", "", "Bridge URL for -push (empty discovers via mDNS)"),
		TUI:         fs.Bool("tui", true, "Show terminal transport controls"),
		LogFile:     fs.String("log", "goshadersound.log", "Log file used while the TUI is shown"),
		Autoplay:    fs.Bool("autoplay", false, "Play from the window start after every render"),
		Loop:        fs.Bool("loop", false, "Loop the playback window"),
		Seekable:    fs.Bool("seekable", true, "Allow seeking"),
		Gain:        fs.Float64("gain", 1.0, "Initial gain"),
		MaxGain:     fs.Float64("maxgain", 2.0, "Upper gain limit"),
		Poll:        fs.Duration("poll", transport.DefaultPollInterval, "Transport polling interval"),
	}
}

// AllowedOrigins splits -allow-origin into its entries.
func (o *SoundOptions) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(*o.AllowOrigin, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func (o *SoundOptions) RenderConfig() renderer.Config {
	return renderer.Config{
		SampleRate: *o.SampleRate,
		Duration:   *o.Duration,
		Width:      *o.Width,
		Height:     *o.Height,
	}
}

func (o *SoundOptions) TransportOptions() transport.Options {
	opts := transport.DefaultOptions(*o.Duration)
	opts.Autoplay = *o.Autoplay
	opts.Loop = *o.Loop
	opts.Seekable = *o.Seekable
	opts.InitialGain = *o.Gain
	opts.MaxGain = *o.MaxGain
	return opts
}

func (o *SoundOptions) SessionConfig() session.Config {
	return session.Config{
		Render:       o.RenderConfig(),
		Transport:    o.TransportOptions(),
		PollInterval: *o.Poll,
	}
}
