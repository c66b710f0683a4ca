// Package diagnostics carries the one piece of user-facing error state a
// render produces: the compiler's text for the last failed load.
package diagnostics

import "sync"

// Channel holds the current error text. An empty string means no error.
// It is safe for concurrent use.
type Channel struct {
	mu   sync.Mutex
	text string
	subs []func(text string)
}

func New() *Channel {
	return &Channel{}
}

// Clear empties the error text. Subscribers are notified only when there was
// something to clear.
func (c *Channel) Clear() {
	c.mu.Lock()
	changed := c.text != ""
	c.text = ""
	subs := c.subs
	c.mu.Unlock()

	if changed {
		for _, fn := range subs {
			fn("")
		}
	}
}

// Report replaces the error text with the given compiler output, verbatim.
func (c *Channel) Report(text string) {
	c.mu.Lock()
	c.text = text
	subs := c.subs
	c.mu.Unlock()

	for _, fn := range subs {
		fn(text)
	}
}

// Text returns the current error text.
func (c *Channel) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// Subscribe registers fn to be called after every change. fn runs on the
// goroutine that made the change and must not call back into the Channel's
// Subscribe.
func (c *Channel) Subscribe(fn func(text string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs[:len(c.subs):len(c.subs)], fn)
}
