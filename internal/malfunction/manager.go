package malfunction

import (
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"

	"golang.org/x/time/rate"

	"github.com/larsnaesbye/mars-sim2-sub002/internal/events"
	"github.com/larsnaesbye/mars-sim2-sub002/internal/medical"
	"github.com/larsnaesbye/mars-sim2-sub002/internal/wear"
)

// Params configures a Manager for one unit.
type Params struct {
	// BaseServiceLife is the unit's nominal active-use life in millisols.
	BaseServiceLife float64

	// MaintenanceWorkTime is the work required per maintenance cycle.
	MaintenanceWorkTime float64

	// Scopes are the subsystem tags selecting which templates apply.
	Scopes []string

	// Tuning overrides the default failure-model calibration.
	Tuning *Tuning

	// Rand overrides the random source, for deterministic tests.
	Rand Rand
}

// Manager owns the wear state and active malfunctions of one unit. All
// mutation happens synchronously inside the owning unit's time pulse;
// queries return snapshots so report code can read concurrently.
type Manager struct {
	owner   Malfunctionable
	catalog Catalog
	sink    EventSink
	clock   Clock
	tuning  Tuning
	rnd     Rand

	depletionWarn *rate.Limiter

	mu          sync.RWMutex
	wearModel   *wear.Model
	scopes      []string
	active      []*Instance
	lifeSupport map[string]float64

	timeSinceMaint      float64
	effectiveSinceMaint float64
	maintWorkRequired   float64
	maintWorkCompleted  float64
	partsNeeded         map[string]int

	currentOrbit          int
	orbitsObserved        int
	malfunctionsThisOrbit int
	malfunctionsLastOrbit int
	maintenancesThisOrbit int
	maintenancesLastOrbit int
}

// NewManager creates the malfunction manager for a unit. The owner
// reference is non-owning: the unit owns the manager, not the other way
// around.
func NewManager(owner Malfunctionable, catalog Catalog, sink EventSink, clock Clock, p Params) *Manager {
	tuning := DefaultTuning()
	if p.Tuning != nil {
		tuning = *p.Tuning
	}
	rnd := p.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(rand.Int63()))
	}
	if p.BaseServiceLife <= 0 {
		p.BaseServiceLife = 1
	}
	if p.MaintenanceWorkTime <= 0 {
		p.MaintenanceWorkTime = 1
	}

	m := &Manager{
		owner:             owner,
		catalog:           catalog,
		sink:              sink,
		clock:             clock,
		tuning:            tuning,
		rnd:               rnd,
		depletionWarn:     rate.NewLimiter(rate.Every(tuning.DepletionWarnInterval), 1),
		wearModel:         wear.NewModelWithRand(p.BaseServiceLife, rnd.Float64),
		maintWorkRequired: p.MaintenanceWorkTime,
		partsNeeded:       make(map[string]int),
		lifeSupport:       nominalLifeSupport(),
	}
	if clock != nil {
		m.currentOrbit = clock.Orbit()
	}
	for _, s := range p.Scopes {
		m.AddScopeString(s)
	}
	return m
}

// OnTimePulse advances the manager by the elapsed Mars time. When the unit
// is actively used it wears down and accumulates maintenance neglect, which
// together drive a probabilistic failure roll. Unresolved malfunctions
// drain resources and degrade life support; completed repairs are resolved
// and announced.
func (m *Manager) OnTimePulse(elapsed float64, activelyUsed bool) {
	if elapsed <= 0 {
		return
	}

	var out []events.Event

	m.mu.Lock()
	m.rollOrbit()

	if activelyUsed {
		m.wearModel.ActiveTimePassing(elapsed)
		m.effectiveSinceMaint += elapsed
	}

	neglect := m.effectiveSinceMaint * m.tuning.MaintenanceMalfunctionFactor
	worn := (100 - m.wearModel.Condition()) / 100 * m.tuning.WearMalfunctionFactor
	chance := elapsed * neglect * worn
	if chance > 0 && m.rnd.Float64()*100 < chance {
		_, evs := m.spawnFromCatalog()
		out = append(out, evs...)
	}

	for _, inst := range m.active {
		if inst.IsFixed() {
			continue
		}
		out = append(out, m.depleteResources(inst, elapsed)...)
	}

	m.recomputeLifeSupport()
	out = append(out, m.resolveFixed()...)

	m.timeSinceMaint += elapsed
	m.mu.Unlock()

	m.publish(out)
}

// TriggerMalfunction injects a malfunction deterministically, bypassing the
// probability roll. Scripted failures (meteorite strikes, training drills)
// use this path. Returns the new instance, or nil for a nil template.
func (m *Manager) TriggerMalfunction(tmpl *Template, emitEvent bool) *Instance {
	if tmpl == nil {
		return nil
	}

	m.mu.Lock()
	m.rollOrbit()
	inst, out := m.addMalfunction(tmpl, emitEvent)
	m.recomputeLifeSupport()
	m.mu.Unlock()

	m.publish(out)
	return inst
}

// CreateCascadingFailures models a compounding accident: it repeatedly
// rolls a geometrically decaying chance of one more malfunction. The
// triggering actor's personality modifies the decay; actors without the
// trait are neutral. Every affected person takes a stress hit if the burst
// produced at least one malfunction. Returns how many malfunctions fired.
func (m *Manager) CreateCascadingFailures(location, actorName string, trait PersonalityTrait) int {
	modifier := 1.0
	if trait != nil {
		if mod := trait.PersonalityMalfunctionModifier(); mod > 0 {
			modifier = mod
		}
	}

	var out []events.Event
	count := 0

	m.mu.Lock()
	m.rollOrbit()
	chance := m.tuning.CascadeInitialChance
	for m.rnd.Float64()*100 < chance {
		inst, evs := m.spawnFromCatalog()
		if inst == nil {
			break
		}
		out = append(out, evs...)
		count++
		chance /= m.tuning.CascadeDecayDivisor * modifier
	}
	m.recomputeLifeSupport()
	m.mu.Unlock()

	if count > 0 {
		for _, p := range m.owner.AffectedPeople() {
			p.AddStress(m.tuning.CascadeStress)
		}
		e := m.newEvent(events.CascadingFailure, events.SeverityWarning,
			fmt.Sprintf("%d compounding failure(s) at %s", count, location))
		e.Actor = actorName
		e.Location = location
		out = append(out, e)
	}

	m.publish(out)
	return count
}

// AddScopeString adds a subsystem tag to the unit, widening which
// templates and maintenance parts apply. Tags are normalized to lower
// case; re-adding an existing tag is a no-op.
func (m *Manager) AddScopeString(scope string) {
	norm := normalizeScopes([]string{scope})
	if len(norm) == 0 {
		return
	}
	scope = norm[0]

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.scopes {
		if s == scope {
			return
		}
	}
	m.scopes = append(m.scopes, scope)
	m.determineNewMaintenanceParts()
}

// ── Queries ────────────────────────────────────────────────────────────────

// HasMalfunction reports whether any malfunction is active.
func (m *Manager) HasMalfunction() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active) > 0
}

// HasInsideMalfunction reports whether any active malfunction still needs
// inside repair work.
func (m *Manager) HasInsideMalfunction() bool {
	return m.hasWork(WorkInside)
}

// HasEVAMalfunction reports whether any active malfunction still needs EVA
// repair work.
func (m *Manager) HasEVAMalfunction() bool {
	return m.hasWork(WorkEVA)
}

func (m *Manager) hasWork(w WorkType) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, inst := range m.active {
		if inst.NeedsWork(w) {
			return true
		}
	}
	return false
}

// Malfunctions returns a snapshot of the active malfunctions in insertion
// order. The returned slice is the caller's; the instances synchronize
// internally.
func (m *Manager) Malfunctions() []*Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Instance, len(m.active))
	copy(out, m.active)
	return out
}

// MostSeriousMalfunction returns the unfixed malfunction with the highest
// severity, or nil. Ties go to the earliest raised.
func (m *Manager) MostSeriousMalfunction() *Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *Instance
	for _, inst := range m.active {
		if inst.IsFixed() {
			continue
		}
		if best == nil || inst.Severity() > best.Severity() {
			best = inst
		}
	}
	return best
}

// MostSeriousMalfunctionInNeed returns the highest-severity malfunction
// that still needs the given work and has an open repairer slot, or nil.
func (m *Manager) MostSeriousMalfunctionInNeed(w WorkType) *Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *Instance
	for _, inst := range m.active {
		if !inst.NeedsWork(w) || inst.NumRepairerSlotsEmpty(w) == 0 {
			continue
		}
		if best == nil || inst.Severity() > best.Severity() {
			best = inst
		}
	}
	return best
}

// InsideMalfunctions returns malfunctions needing inside work, most severe
// first.
func (m *Manager) InsideMalfunctions() []*Instance {
	return m.malfunctionsNeeding(WorkInside)
}

// EVAMalfunctions returns malfunctions needing EVA work, most severe first.
func (m *Manager) EVAMalfunctions() []*Instance {
	return m.malfunctionsNeeding(WorkEVA)
}

func (m *Manager) malfunctionsNeeding(w WorkType) []*Instance {
	m.mu.RLock()
	var out []*Instance
	for _, inst := range m.active {
		if inst.NeedsWork(w) {
			out = append(out, inst)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity() > out[j].Severity()
	})
	return out
}

// WearCondition returns the unit's wear condition percentage, 100 for new.
func (m *Manager) WearCondition() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.wearModel.Condition()
}

// WearConditionAccidentModifier scales external accident rolls by how worn
// the unit is.
func (m *Manager) WearConditionAccidentModifier() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.wearModel.AccidentModifier(m.tuning.WearAccidentFactor)
}

// LifeSupportModifier returns the flow modifier for a life-support
// channel: 100 nominal, 0 fully cut. Unknown channels report nominal.
func (m *Manager) LifeSupportModifier(tag string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if mod, ok := m.lifeSupport[tag]; ok {
		return mod
	}
	return 100
}

// OxygenFlowModifier returns the oxygen channel's flow modifier.
func (m *Manager) OxygenFlowModifier() float64 {
	return m.LifeSupportModifier(LifeSupportOxygen)
}

// WaterFlowModifier returns the water channel's flow modifier.
func (m *Manager) WaterFlowModifier() float64 {
	return m.LifeSupportModifier(LifeSupportWater)
}

// AirPressureModifier returns the air-pressure channel's flow modifier.
func (m *Manager) AirPressureModifier() float64 {
	return m.LifeSupportModifier(LifeSupportAirPressure)
}

// TemperatureModifier returns the temperature channel's flow modifier.
func (m *Manager) TemperatureModifier() float64 {
	return m.LifeSupportModifier(LifeSupportTemperature)
}

// Scopes returns a copy of the unit's subsystem tags.
func (m *Manager) Scopes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.scopes))
	copy(out, m.scopes)
	return out
}

// EstimatedMalfunctionsPerOrbit estimates the failure rate from the
// current and previous orbit counters. Non-authoritative.
func (m *Manager) EstimatedMalfunctionsPerOrbit() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.orbitsObserved == 0 {
		return float64(m.malfunctionsThisOrbit)
	}
	return (float64(m.malfunctionsLastOrbit) + float64(m.malfunctionsThisOrbit)) / 2
}

// EstimatedMaintenancesPerOrbit estimates the maintenance rate from the
// current and previous orbit counters. Non-authoritative.
func (m *Manager) EstimatedMaintenancesPerOrbit() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.orbitsObserved == 0 {
		return float64(m.maintenancesThisOrbit)
	}
	return (float64(m.maintenancesLastOrbit) + float64(m.maintenancesThisOrbit)) / 2
}

// ── Internals (lock held) ──────────────────────────────────────────────────

// spawnFromCatalog asks the catalog for a template matching the unit's
// scopes and raises it. A catalog with no matching template is a
// configuration gap: logged, and the pulse proceeds as if the roll failed.
func (m *Manager) spawnFromCatalog() (*Instance, []events.Event) {
	tmpl := m.catalog.PickMalfunction(m.scopes)
	if tmpl == nil {
		log.Printf("malfunction: no template matches scopes %v for %s", m.scopes, m.owner.EntityName())
		return nil, nil
	}
	return m.addMalfunction(tmpl, true)
}

// addMalfunction instantiates a template, registers part demand, inflicts
// medical complaints on affected people, and builds the raise events.
func (m *Manager) addMalfunction(tmpl *Template, emitEvent bool) (*Instance, []events.Event) {
	severity := tmpl.SeverityMin
	if spread := tmpl.SeverityMax - tmpl.SeverityMin; spread > 0 {
		severity += m.rnd.Intn(spread + 1)
	}

	parts := make(map[string]int)
	for _, spec := range tmpl.Parts {
		if m.rnd.Float64()*100 < spec.Probability {
			parts[spec.Name] = 1 + m.rnd.Intn(spec.MaxNumber)
		}
	}

	inst := newInstance(m.catalog.NextIncidentID(), tmpl, severity, parts, m.sol())
	m.active = append(m.active, inst)
	m.malfunctionsThisOrbit++

	for part, qty := range parts {
		m.catalog.RecordPartFailure(part, qty)
	}

	out := make([]events.Event, 0, 2)
	if emitEvent {
		kind := events.MalfunctionRaised
		if tmpl.Impact {
			kind = events.MeteoriteImpact
		}
		e := m.newEvent(kind, raiseSeverity(tmpl, severity),
			fmt.Sprintf("%s (severity %d) in %s", tmpl.Name, severity, m.owner.EntityName()))
		e.Incident = inst.incident
		out = append(out, e)
	}

	out = append(out, m.inflictComplaints(inst)...)
	return inst, out
}

// inflictComplaints rolls the template's medical complaint table against
// every affected person.
func (m *Manager) inflictComplaints(inst *Instance) []events.Event {
	if len(inst.tmpl.MedicalComplaints) == 0 {
		return nil
	}

	var out []events.Event
	sol := m.sol()
	for _, person := range m.owner.AffectedPeople() {
		for name, prob := range inst.tmpl.MedicalComplaints {
			if m.rnd.Float64()*100 >= prob {
				continue
			}
			person.AddMedicalComplaint(medical.Complaint{
				Name:       name,
				IncidentID: inst.incident,
				Sol:        sol,
			})
			e := m.newEvent(events.MedicalComplaint, events.SeverityWarning,
				fmt.Sprintf("%s suffered %s from %s", person.PersonName(), name, inst.Name()))
			e.Incident = inst.incident
			e.Actor = person.PersonName()
			out = append(out, e)
		}
	}
	return out
}

// depleteResources drains the owner's stores for one unresolved
// malfunction, scaled down as repair progresses. Depletion saturates at
// the stored amount; warnings are rate-limited.
func (m *Manager) depleteResources(inst *Instance, elapsed float64) []events.Event {
	effects := inst.ResourceEffects()
	if len(effects) == 0 {
		return nil
	}

	remaining := (100 - inst.PercentageFixed()) / 100
	var out []events.Event
	for resource, perMillisol := range effects {
		amount := perMillisol * elapsed * remaining
		if amount <= 0 {
			continue
		}
		actual := m.owner.Retrieve(resource, amount)
		if actual <= 0 {
			continue
		}
		if m.depletionWarn.Allow() {
			log.Printf("malfunction: %s losing %s to %s (%.2f units this pulse)",
				m.owner.EntityName(), resource, inst.Name(), actual)
			e := m.newEvent(events.ResourceDepleted, events.SeverityWarning,
				fmt.Sprintf("%s draining %s from %s", inst.Name(), resource, m.owner.EntityName()))
			e.Incident = inst.incident
			e.Metadata = map[string]string{"resource": resource}
			out = append(out, e)
		}
	}
	return out
}

// recomputeLifeSupport rebuilds the flow modifiers from every unresolved
// malfunction's effects, weighted by how much of the repair remains.
// Contributions aggregate additively; a fully repaired malfunction
// contributes nothing, so channels return to 100 the pulse their last
// contributor is fixed.
func (m *Manager) recomputeLifeSupport() {
	mods := nominalLifeSupport()
	for _, inst := range m.active {
		remaining := (100 - inst.PercentageFixed()) / 100
		if remaining <= 0 {
			continue
		}
		for tag, reduction := range inst.LifeSupportEffects() {
			if _, ok := mods[tag]; !ok {
				mods[tag] = 100
			}
			mods[tag] -= reduction * remaining
		}
	}
	for tag, mod := range mods {
		if mod < 0 {
			mods[tag] = 0
		} else if mod > 100 {
			mods[tag] = 100
		}
	}
	m.lifeSupport = mods
}

// resolveFixed removes completed malfunctions and builds their fixed
// events, crediting the most productive repairer.
func (m *Manager) resolveFixed() []events.Event {
	var out []events.Event
	keep := m.active[:0]
	for _, inst := range m.active {
		if !inst.IsFixed() {
			keep = append(keep, inst)
			continue
		}
		e := m.newEvent(events.MalfunctionFixed, events.SeverityInfo,
			fmt.Sprintf("%s in %s repaired", inst.Name(), m.owner.EntityName()))
		e.Incident = inst.incident
		e.Actor = inst.MostProductiveRepairer()
		out = append(out, e)
	}
	m.active = keep
	return out
}

// rollOrbit shifts the per-orbit statistics when the orbit counter
// changes.
func (m *Manager) rollOrbit() {
	if m.clock == nil {
		return
	}
	orbit := m.clock.Orbit()
	if orbit == m.currentOrbit {
		return
	}
	m.malfunctionsLastOrbit = m.malfunctionsThisOrbit
	m.maintenancesLastOrbit = m.maintenancesThisOrbit
	m.malfunctionsThisOrbit = 0
	m.maintenancesThisOrbit = 0
	m.orbitsObserved += orbit - m.currentOrbit
	m.currentOrbit = orbit
}

func (m *Manager) sol() int {
	if m.clock == nil {
		return 0
	}
	return m.clock.MarsSol()
}

func (m *Manager) newEvent(t events.EventType, sev events.Severity, msg string) events.Event {
	e := events.Event{
		Type:       t,
		Severity:   sev,
		Entity:     m.owner.EntityName(),
		Settlement: m.owner.SettlementName(),
		Location:   m.owner.LocationName(),
		Message:    msg,
	}
	if m.clock != nil {
		e.Sol = m.clock.MarsSol()
		e.Orbit = m.clock.Orbit()
	}
	return e
}

// publish sends events after the manager lock is released, so subscribers
// may query the manager from their handlers.
func (m *Manager) publish(out []events.Event) {
	if m.sink == nil {
		return
	}
	for _, e := range out {
		m.sink.Publish(e)
	}
}

// raiseSeverity maps a new malfunction to an event severity: failures
// that cut into life support, or roll very severe, are critical.
func raiseSeverity(tmpl *Template, severity int) events.Severity {
	if len(tmpl.LifeSupportEffects) > 0 || severity >= 75 {
		return events.SeverityCritical
	}
	return events.SeverityWarning
}

func nominalLifeSupport() map[string]float64 {
	mods := make(map[string]float64, len(lifeSupportTags))
	for _, tag := range lifeSupportTags {
		mods[tag] = 100
	}
	return mods
}
