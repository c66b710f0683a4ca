// Package codec packs normalized audio samples into RGBA8 pixels and back.
//
// A sound shader writes each stereo sample as one pixel: the left channel is
// a 16-bit value split across R (low byte) and G (high byte), the right
// channel across B and A. The shader footer produced by package shader is the
// encoder; Decode is what the pixel readback runs.
package codec

import "math"

const (
	// BytesPerPixel is the RGBA8 stride of one stereo sample.
	BytesPerPixel = 4

	maxValue = 65535

	// MaxRoundTripError bounds |Decode(Encode(y)) - y| for y in [-1, 1].
	// The footer quantizes with floor(u*65536) while Decode divides by 65535,
	// so the error is 1/65535 in the normalized [0, 1] domain and twice that
	// once mapped back to [-1, 1].
	MaxRoundTripError = 2.0 / maxValue
)

// Decode combines a low/high byte pair into a sample in [-1, 1].
func Decode(lo, hi byte) float32 {
	v := float32(lo) + float32(hi)*256.0
	return v/maxValue*2.0 - 1.0
}

// DecodePixel decodes one RGBA8 pixel into its left and right samples.
func DecodePixel(px []byte) (left, right float32) {
	_ = px[3]
	return Decode(px[0], px[1]), Decode(px[2], px[3])
}

// Quantize maps a sample to the 16-bit value the footer computes,
// clamped to [0, 65535]. NaN maps to the midpoint.
func Quantize(y float64) uint16 {
	if math.IsNaN(y) {
		y = 0
	}
	v := math.Floor((0.5 + 0.5*y) * 65536.0)
	if v < 0 {
		v = 0
	} else if v > maxValue {
		v = maxValue
	}
	return uint16(v)
}

// Encode splits a sample into the low and high bytes the rasterizer stores
// after writing mod(v,256)/255 and floor(v/256)/255 to an 8-bit channel.
func Encode(y float64) (lo, hi byte) {
	v := Quantize(y)
	return byte(v & 0xff), byte(v >> 8)
}

// EncodePixel writes a stereo sample into dst[0:4] in L-low, L-high,
// R-low, R-high order.
func EncodePixel(left, right float64, dst []byte) {
	_ = dst[3]
	dst[0], dst[1] = Encode(left)
	dst[2], dst[3] = Encode(right)
}

// DecodeInto decodes every pixel of an RGBA8 readback into left/right,
// stopping at whichever runs out first. It returns the number of samples
// written.
func DecodeInto(pixels []byte, left, right []float32) int {
	n := len(pixels) / BytesPerPixel
	if len(left) < n {
		n = len(left)
	}
	if len(right) < n {
		n = len(right)
	}
	for i := 0; i < n; i++ {
		left[i], right[i] = DecodePixel(pixels[i*BytesPerPixel : i*BytesPerPixel+BytesPerPixel])
	}
	return n
}
