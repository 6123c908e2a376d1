// Package lamport provides a Lamport logical clock.
//
// The clock is a single monotonic counter. Tick advances it for a local
// event; Merge folds in a timestamp received from another process so that
// the next local event is ordered after it.
package lamport

import "sync"

// Clock is a Lamport logical clock. The zero value is ready to use.
type Clock struct {
	mu sync.Mutex
	t  int64
}

// New creates a clock starting at zero.
func New() *Clock {
	return &Clock{}
}

// Tick increments the counter and returns the new value.
func (c *Clock) Tick() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t++
	return c.t
}

// Merge sets the counter to max(current, received) + 1 and returns it.
func (c *Clock) Merge(received int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if received > c.t {
		c.t = received
	}
	c.t++
	return c.t
}

// Now returns the current value without advancing it.
func (c *Clock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}
