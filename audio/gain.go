package audio

// GainParam is a gain value with optional linear automation, in the manner of
// a WebAudio AudioParam: Set jumps immediately, RampFrom schedules a straight
// line between two values over a frame range. Frames are counted on the
// mixer's clock. GainParam is not safe for concurrent use; the Mixer guards it.
type GainParam struct {
	value      float32
	from       float32
	rampStart  int64
	rampFrames int64
}

func NewGainParam(v float32) GainParam {
	return GainParam{value: v}
}

// Set cancels any ramp and holds v from now on.
func (g *GainParam) Set(v float32) {
	g.value = v
	g.rampFrames = 0
}

// RampFrom schedules a linear ramp from `from` at frame `at` to `to` after
// `frames` frames. A non-positive length is the same as Set(to).
func (g *GainParam) RampFrom(at int64, from, to float32, frames int) {
	if frames <= 0 {
		g.Set(to)
		return
	}
	g.from = from
	g.value = to
	g.rampStart = at
	g.rampFrames = int64(frames)
}

// Target is the value the parameter settles at.
func (g *GainParam) Target() float32 {
	return g.value
}

// ValueAt evaluates the parameter at an absolute frame.
func (g *GainParam) ValueAt(frame int64) float32 {
	if g.rampFrames == 0 {
		return g.value
	}
	d := frame - g.rampStart
	if d <= 0 {
		return g.from
	}
	if d >= g.rampFrames {
		return g.value
	}
	return g.from + (g.value-g.from)*float32(d)/float32(g.rampFrames)
}
