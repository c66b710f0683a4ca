package codec

import (
	"math"
	"testing"
)

func TestDecodeExtremes(t *testing.T) {
	if got := Decode(0, 0); got != -1 {
		t.Errorf("Decode(0,0) = %v, want -1", got)
	}
	if got := Decode(255, 255); got != 1 {
		t.Errorf("Decode(255,255) = %v, want 1", got)
	}
}

func TestRoundTripWithinBound(t *testing.T) {
	const steps = 20000
	for i := 0; i <= steps; i++ {
		y := -1.0 + 2.0*float64(i)/steps
		lo, hi := Encode(y)
		got := float64(Decode(lo, hi))
		if diff := math.Abs(got - y); diff > MaxRoundTripError+1e-7 {
			t.Fatalf("round trip of %v gave %v (error %g > %g)", y, got, diff, MaxRoundTripError)
		}
	}
}

func TestEncodeClampsOutOfRange(t *testing.T) {
	cases := []struct {
		y      float64
		lo, hi byte
	}{
		{1.0, 255, 255},
		{1.5, 255, 255},
		{-1.0, 0, 0},
		{-7, 0, 0},
		{math.NaN(), 0, 128},
	}
	for _, c := range cases {
		lo, hi := Encode(c.y)
		if lo != c.lo || hi != c.hi {
			t.Errorf("Encode(%v) = (%d,%d), want (%d,%d)", c.y, lo, hi, c.lo, c.hi)
		}
	}
}

func TestPixelChannelOrder(t *testing.T) {
	px := make([]byte, 4)
	EncodePixel(1, -1, px)
	if px[0] != 255 || px[1] != 255 || px[2] != 0 || px[3] != 0 {
		t.Fatalf("unexpected pixel layout %v", px)
	}
	l, r := DecodePixel(px)
	if l != 1 || r != -1 {
		t.Errorf("DecodePixel = (%v,%v), want (1,-1)", l, r)
	}
}

func TestDecodeIntoTruncates(t *testing.T) {
	pixels := make([]byte, 8*BytesPerPixel)
	for i := 0; i < 8; i++ {
		EncodePixel(0.5, -0.5, pixels[i*4:])
	}
	left := make([]float32, 5)
	right := make([]float32, 5)
	if n := DecodeInto(pixels, left, right); n != 5 {
		t.Fatalf("DecodeInto wrote %d samples, want 5", n)
	}
	for i := range left {
		if math.Abs(float64(left[i])-0.5) > MaxRoundTripError {
			t.Errorf("left[%d] = %v", i, left[i])
		}
		if math.Abs(float64(right[i])+0.5) > MaxRoundTripError {
			t.Errorf("right[%d] = %v", i, right[i])
		}
	}
}
