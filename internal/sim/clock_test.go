package sim

import "testing"

func TestClockAdvance(t *testing.T) {
	c := NewClock()

	if got := c.TotalMillisols(); got != 0 {
		t.Errorf("TotalMillisols = %.1f at start, want 0", got)
	}

	if got := c.Advance(250); got != 250 {
		t.Errorf("Advance returned %.1f, want 250", got)
	}
	if got := c.Advance(250); got != 500 {
		t.Errorf("Advance returned %.1f, want 500", got)
	}
}

func TestClockIgnoresNonPositiveElapsed(t *testing.T) {
	c := NewClock()
	c.Advance(100)
	c.Advance(0)
	c.Advance(-50)
	if got := c.TotalMillisols(); got != 100 {
		t.Errorf("TotalMillisols = %.1f, want 100", got)
	}
}

func TestClockMarsSol(t *testing.T) {
	cases := []struct {
		millisols float64
		sol       int
	}{
		{0, 0},
		{999, 0},
		{1000, 1},
		{2500, 2},
		{668_600, 668},
	}
	for _, tc := range cases {
		c := NewClock()
		c.Advance(tc.millisols)
		if got := c.MarsSol(); got != tc.sol {
			t.Errorf("MarsSol at %.0f millisols = %d, want %d", tc.millisols, got, tc.sol)
		}
	}
}

func TestClockOrbit(t *testing.T) {
	c := NewClock()
	if got := c.Orbit(); got != 0 {
		t.Errorf("Orbit = %d at start, want 0", got)
	}

	// Sol 668 is still orbit 0; sol 669 starts orbit 1.
	c.Advance(668 * MillisolsPerSol)
	if got := c.Orbit(); got != 0 {
		t.Errorf("Orbit at sol 668 = %d, want 0", got)
	}
	c.Advance(1 * MillisolsPerSol)
	if got := c.Orbit(); got != 1 {
		t.Errorf("Orbit at sol 669 = %d, want 1", got)
	}
}
