package malfunction

import (
	"fmt"

	"github.com/larsnaesbye/mars-sim2-sub002/internal/events"
)

// AddMaintenanceWorkTime accumulates maintenance work. When the required
// work for a cycle is reached: both maintenance timers reset, a fresh set
// of replacement parts is rolled, and the wear model gets its bounded
// service-life bonus. Work beyond the threshold is discarded.
func (m *Manager) AddMaintenanceWorkTime(workTime float64) {
	if workTime <= 0 {
		return
	}

	var out []events.Event

	m.mu.Lock()
	m.rollOrbit()
	m.maintWorkCompleted += workTime
	if m.maintWorkCompleted >= m.maintWorkRequired {
		m.maintWorkCompleted = 0
		m.timeSinceMaint = 0
		m.effectiveSinceMaint = 0
		m.determineNewMaintenanceParts()
		m.maintenancesThisOrbit++
		m.wearModel.OnMaintenanceCompleted()

		out = append(out, m.newEvent(events.MaintenanceCompleted, events.SeverityInfo,
			fmt.Sprintf("maintenance cycle completed on %s", m.owner.EntityName())))
	}
	m.mu.Unlock()

	m.publish(out)
}

// ApplyMaintenancePart consumes quantity of a required replacement part.
// It fails without side effects when the part is not currently required,
// the quantity is not positive, or the quantity exceeds the outstanding
// requirement.
func (m *Manager) ApplyMaintenancePart(part string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidQuantity, quantity)
	}

	var out []events.Event

	m.mu.Lock()
	outstanding, ok := m.partsNeeded[part]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrPartNotRequired, part)
	}
	if quantity > outstanding {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q needs %d, got %d", ErrQuantityExceedsRequirement, part, outstanding, quantity)
	}

	if outstanding == quantity {
		delete(m.partsNeeded, part)
	} else {
		m.partsNeeded[part] = outstanding - quantity
	}
	e := m.newEvent(events.PartsReplaced, events.SeverityInfo,
		fmt.Sprintf("replaced %d x %s on %s", quantity, part, m.owner.EntityName()))
	e.Metadata = map[string]string{"part": part}
	out = append(out, e)
	m.mu.Unlock()

	m.publish(out)
	return nil
}

// MaintenanceParts returns a copy of the outstanding replacement part
// requirements.
func (m *Manager) MaintenanceParts() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int, len(m.partsNeeded))
	for part, qty := range m.partsNeeded {
		out[part] = qty
	}
	return out
}

// TimeSinceLastMaintenance returns the time elapsed since the last
// completed maintenance cycle, active or not.
func (m *Manager) TimeSinceLastMaintenance() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.timeSinceMaint
}

// EffectiveTimeSinceLastMaintenance returns the active-use time since the
// last completed maintenance cycle; this drives the failure probability.
func (m *Manager) EffectiveTimeSinceLastMaintenance() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.effectiveSinceMaint
}

// MaintenanceWorkTime returns the work required per maintenance cycle.
func (m *Manager) MaintenanceWorkTime() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maintWorkRequired
}

// MaintenanceWorkTimeCompleted returns the work accumulated toward the
// current cycle.
func (m *Manager) MaintenanceWorkTimeCompleted() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maintWorkCompleted
}

// determineNewMaintenanceParts rolls a fresh replacement-part requirement
// from the catalog rules matching the unit's scopes. Lock held.
func (m *Manager) determineNewMaintenanceParts() {
	parts := make(map[string]int)
	for _, rule := range m.catalog.MaintenancePartRules(m.scopes) {
		if m.rnd.Float64()*100 < rule.Probability {
			parts[rule.Part] += 1 + m.rnd.Intn(rule.MaxNumber)
		}
	}
	m.partsNeeded = parts
}
