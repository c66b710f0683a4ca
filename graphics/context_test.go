package graphics

import (
	"reflect"
	"testing"
)

type recordingContext struct {
	events *[]string
}

func (c recordingContext) MakeCurrent()   { *c.events = append(*c.events, "current") }
func (c recordingContext) DetachCurrent() { *c.events = append(*c.events, "detach") }
func (c recordingContext) IsGLES() bool   { return false }
func (c recordingContext) Shutdown()      { *c.events = append(*c.events, "shutdown") }

func TestTeardownShutsDownBeforeTerminating(t *testing.T) {
	var events []string
	ctx := recordingContext{events: &events}

	down := Teardown(ctx, func() { events = append(events, "terminate") })
	if len(events) != 0 {
		t.Fatalf("Teardown ran eagerly: %v", events)
	}
	down()

	want := []string{"shutdown", "terminate"}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
}

func TestTeardownWithoutContext(t *testing.T) {
	ran := false
	Teardown(nil, func() { ran = true })()
	if !ran {
		t.Error("after func not run for a nil context")
	}
}
