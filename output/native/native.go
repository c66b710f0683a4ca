// Package native holds the audio devices that talk to the system sound
// stack through cgo, oto and PortAudio, and the factory that picks a device
// by name. Code that only needs the pure Go devices imports output instead.
package native

import (
	"fmt"

	"github.com/richinsley/goshadersound/output"
)

// Names lists the devices New understands.
var Names = []string{"oto", "portaudio", "ffmpeg", "null"}

// New creates the named device.
func New(name string, opts output.Options) (output.Device, error) {
	var (
		dev output.Device
		err error
	)
	switch name {
	case "", "oto":
		dev, err = NewOto(opts)
	case "portaudio":
		dev, err = NewPortAudio(opts)
	case "ffmpeg":
		dev, err = output.NewFFmpeg(opts)
	case "null":
		dev = output.NewNull(opts)
	default:
		err = fmt.Errorf("unknown audio output %q (want one of %v)", name, Names)
	}
	if err != nil {
		return nil, err
	}
	return dev, nil
}
