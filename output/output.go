// Package output contains the audio devices that pull the live mix and need
// no cgo: the ffmpeg pipe and the null device. The system audio devices live
// in output/native.
//
// Every device behaves like a WebAudio AudioContext: it is created
// suspended, its clock only advances while it runs, and Resume/Suspend
// start and pause both the clock and the pulling of audio.
package output

import (
	"time"

	"github.com/richinsley/goshadersound/audio"
)

// DefaultSampleRate is used by devices that cannot report a preferred rate.
const DefaultSampleRate = 44100

// Device is an audio sink that pulls from an audio.Mixer.
type Device interface {
	// Start attaches the mixer. The device remains suspended.
	Start(m *audio.Mixer) error
	SampleRate() int
	// Now is the device clock in seconds.
	Now() float64
	Running() bool
	Resume() error
	Suspend() error
	Close() error
}

// Options configure device construction. Zero values select defaults.
type Options struct {
	SampleRate  int
	AudioDevice string // ffmpeg output device name
	FFmpegPath  string
	Clock       func() time.Time
}

// RateOrDefault maps an unset rate to DefaultSampleRate.
func RateOrDefault(rate int) int {
	if rate > 0 {
		return rate
	}
	return DefaultSampleRate
}
