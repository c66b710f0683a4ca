package native

import (
	"testing"

	"github.com/richinsley/goshadersound/output"
)

func TestNewUnknownDevice(t *testing.T) {
	if _, err := New("speaker", output.Options{}); err == nil {
		t.Error("New with an unknown name should fail")
	}
	dev, err := New("null", output.Options{SampleRate: 8000})
	if err != nil {
		t.Fatal(err)
	}
	if dev.SampleRate() != 8000 {
		t.Errorf("SampleRate() = %d", dev.SampleRate())
	}
}
