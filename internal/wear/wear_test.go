package wear

import (
	"math"
	"testing"
)

func assertApprox(t *testing.T, name string, got, want, tolerance float64) {
	t.Helper()
	if math.Abs(got-want) > tolerance {
		t.Errorf("%s = %.4f, want ~%.4f (tolerance %.4f)", name, got, want, tolerance)
	}
}

func TestNewModelStartsAtFullCondition(t *testing.T) {
	m := NewModel(1000)
	if got := m.Condition(); got != 100 {
		t.Errorf("Condition() = %.2f, want 100", got)
	}
	if got := m.RemainingServiceLife(); got != 1000 {
		t.Errorf("RemainingServiceLife() = %.2f, want 1000", got)
	}
}

func TestActiveTimePassingWearsDown(t *testing.T) {
	m := NewModel(1000)
	m.ActiveTimePassing(600)
	assertApprox(t, "Condition", m.Condition(), 40, 0.001)
}

func TestConditionNeverNegative(t *testing.T) {
	m := NewModel(1000)
	m.ActiveTimePassing(5000)
	if got := m.Condition(); got != 0 {
		t.Errorf("Condition() after over-use = %.2f, want 0", got)
	}
	if got := m.RemainingServiceLife(); got != 0 {
		t.Errorf("RemainingServiceLife() = %.2f, want 0", got)
	}
}

func TestConditionMonotonicUnderUse(t *testing.T) {
	m := NewModel(500)
	prev := m.Condition()
	for _, elapsed := range []float64{10, 0, 35.5, 120, 1, 0.25, 300, 90} {
		m.ActiveTimePassing(elapsed)
		cur := m.Condition()
		if cur > prev {
			t.Fatalf("condition increased from %.4f to %.4f after use", prev, cur)
		}
		if cur < 0 {
			t.Fatalf("condition went negative: %.4f", cur)
		}
		prev = cur
	}
}

func TestNegativeElapsedIgnored(t *testing.T) {
	m := NewModel(1000)
	m.ActiveTimePassing(-50)
	if got := m.Condition(); got != 100 {
		t.Errorf("Condition() after negative elapsed = %.2f, want 100", got)
	}
}

func TestMaintenanceBonusBounded(t *testing.T) {
	// Always roll the maximum bonus
	m := NewModelWithRand(1000, func() float64 { return 0.999999 })
	m.ActiveTimePassing(600)
	before := m.RemainingServiceLife()

	m.OnMaintenanceCompleted()
	after := m.RemainingServiceLife()

	if after <= before {
		t.Errorf("maintenance did not extend service life: %.4f -> %.4f", before, after)
	}
	// At most 0.5% extension per cycle
	if after > before*(1+MaintenanceBonusMax) {
		t.Errorf("bonus exceeded bound: %.4f -> %.4f", before, after)
	}
}

func TestMaintenanceNeverExceedsBaseLife(t *testing.T) {
	m := NewModelWithRand(1000, func() float64 { return 0.999999 })
	m.ActiveTimePassing(1)

	for range 10_000 {
		m.OnMaintenanceCompleted()
	}

	if got := m.RemainingServiceLife(); got > m.BaseServiceLife() {
		t.Errorf("RemainingServiceLife() = %.4f exceeds base %.4f", got, m.BaseServiceLife())
	}
	if got := m.Condition(); got > 100 {
		t.Errorf("Condition() = %.4f exceeds 100", got)
	}
}

func TestAccidentModifier(t *testing.T) {
	tests := []struct {
		name   string
		use    float64
		factor float64
		want   float64
	}{
		{"new unit", 0, 5, 0},
		{"half worn", 500, 5, 2.5},
		{"fully worn", 1000, 5, 5},
		{"half worn unit factor", 500, 1, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModel(1000)
			m.ActiveTimePassing(tt.use)
			assertApprox(t, "AccidentModifier", m.AccidentModifier(tt.factor), tt.want, 0.001)
		})
	}
}

func TestNonPositiveServiceLifeDefaults(t *testing.T) {
	m := NewModel(0)
	if m.BaseServiceLife() <= 0 {
		t.Errorf("BaseServiceLife() = %.2f, want positive", m.BaseServiceLife())
	}
	if got := m.Condition(); got != 100 {
		t.Errorf("Condition() = %.2f, want 100", got)
	}
}
