package output

import (
	"sync"
	"time"
)

// PausableClock measures how long a device has been running. It stands still
// while the device is suspended. Every device, here and in output/native,
// keeps its clock with one.
type PausableClock struct {
	mu        sync.Mutex
	now       func() time.Time
	running   bool
	elapsed   time.Duration
	resumedAt time.Time
}

func NewPausableClock(now func() time.Time) *PausableClock {
	if now == nil {
		now = time.Now
	}
	return &PausableClock{now: now}
}

func (c *PausableClock) Seconds() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.elapsed
	if c.running {
		d += c.now().Sub(c.resumedAt)
	}
	return d.Seconds()
}

func (c *PausableClock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Resume starts the clock and reports whether it was stopped.
func (c *PausableClock) Resume() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return false
	}
	c.running = true
	c.resumedAt = c.now()
	return true
}

// Suspend stops the clock and reports whether it was running.
func (c *PausableClock) Suspend() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return false
	}
	c.elapsed += c.now().Sub(c.resumedAt)
	c.running = false
	return true
}
