// Package sim drives the settlement through Mars time. A sol is split into
// 1000 millisols; an orbit (the Martian year) lasts 668.6 sols.
package sim

import "sync"

const (
	// MillisolsPerSol is the number of time units in one Mars day.
	MillisolsPerSol = 1000.0

	// SolsPerOrbit is the length of the Martian year in sols.
	SolsPerOrbit = 668.6
)

// Clock tracks accumulated Mars time for the whole simulation. It is
// advanced by the driver and read by every malfunction manager, so reads
// are guarded for concurrent report/HTTP access.
type Clock struct {
	mu        sync.RWMutex
	millisols float64
}

// NewClock returns a clock starting at mission time zero.
func NewClock() *Clock {
	return &Clock{}
}

// Advance moves the clock forward and returns the new total. Negative
// elapsed time is ignored.
func (c *Clock) Advance(elapsed float64) float64 {
	if elapsed <= 0 {
		c.mu.RLock()
		defer c.mu.RUnlock()
		return c.millisols
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.millisols += elapsed
	return c.millisols
}

// TotalMillisols returns the accumulated mission time.
func (c *Clock) TotalMillisols() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.millisols
}

// MarsSol returns the current sol number, counted from zero.
func (c *Clock) MarsSol() int {
	return int(c.TotalMillisols() / MillisolsPerSol)
}

// Orbit returns the current orbit number, counted from zero.
func (c *Clock) Orbit() int {
	return int(float64(c.MarsSol()) / SolsPerOrbit)
}
