// Package wear tracks the remaining service life of settlement equipment.
// Condition starts at 100% for a new unit and only falls with active use;
// completed maintenance buys back a small, bounded life extension.
package wear

import "math/rand"

// MaintenanceBonusMax bounds the relative service-life extension granted by
// one completed maintenance cycle.
const MaintenanceBonusMax = 0.005

// Model tracks one unit's service life in millisols of active use.
type Model struct {
	base      float64
	remaining float64
	bonusRand func() float64 // returns [0,1)
}

// NewModel creates a wear model for a unit with the given nominal service
// life. A non-positive service life is treated as 1 to keep the condition
// ratio defined.
func NewModel(baseServiceLife float64) *Model {
	return NewModelWithRand(baseServiceLife, rand.Float64)
}

// NewModelWithRand is NewModel with an injected random source for the
// maintenance bonus roll.
func NewModelWithRand(baseServiceLife float64, bonusRand func() float64) *Model {
	if baseServiceLife <= 0 {
		baseServiceLife = 1
	}
	if bonusRand == nil {
		bonusRand = rand.Float64
	}
	return &Model{
		base:      baseServiceLife,
		remaining: baseServiceLife,
		bonusRand: bonusRand,
	}
}

// ActiveTimePassing wears the unit down by the elapsed active-use time.
// Remaining life never goes below zero.
func (m *Model) ActiveTimePassing(elapsed float64) {
	if elapsed <= 0 {
		return
	}
	m.remaining -= elapsed
	if m.remaining < 0 {
		m.remaining = 0
	}
}

// Condition returns the wear condition percentage: 100 is factory new,
// 0 is worn out.
func (m *Model) Condition() float64 {
	return clamp(m.remaining/m.base*100, 0, 100)
}

// BaseServiceLife returns the nominal service life the unit started with.
func (m *Model) BaseServiceLife() float64 { return m.base }

// RemainingServiceLife returns the active-use time left before wear-out.
func (m *Model) RemainingServiceLife() float64 { return m.remaining }

// OnMaintenanceCompleted extends the remaining service life by a small
// random bonus, capped so the unit can never become better than new.
func (m *Model) OnMaintenanceCompleted() {
	m.remaining *= 1.0 + m.bonusRand()*MaintenanceBonusMax
	if m.remaining > m.base {
		m.remaining = m.base
	}
}

// AccidentModifier scales an external accident roll by how worn the unit
// is: zero when new, approaching factor as the unit wears out.
func (m *Model) AccidentModifier(factor float64) float64 {
	return (100 - m.Condition()) / 100 * factor
}
