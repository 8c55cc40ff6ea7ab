package sim

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/larsnaesbye/mars-sim2-sub002/internal/entity"
	"github.com/larsnaesbye/mars-sim2-sub002/internal/history"
	"github.com/larsnaesbye/mars-sim2-sub002/internal/malfunction"
)

// Unit pairs a settlement asset with its malfunction manager.
type Unit struct {
	Entity  *entity.Unit
	Manager *malfunction.Manager

	// ActiveUse reports whether the unit counts as actively used for the
	// current pulse. Nil means always active.
	ActiveUse func() bool
}

// MalfunctionStatus summarizes one active malfunction for reports.
type MalfunctionStatus struct {
	Incident    int64   `json:"incident"`
	Name        string  `json:"name"`
	Severity    int     `json:"severity"`
	PctFixed    float64 `json:"pct_fixed"`
	NeedsEVA    bool    `json:"needs_eva"`
	NeedsInside bool    `json:"needs_inside"`
}

// UnitStatus is the report row for one unit.
type UnitStatus struct {
	Name            string              `json:"name"`
	Kind            string              `json:"kind"`
	Condition       float64             `json:"condition"`
	TimeSinceMaint  float64             `json:"time_since_maintenance"`
	MaintWorkDone   float64             `json:"maintenance_work_completed"`
	MaintWorkNeeded float64             `json:"maintenance_work_required"`
	MaintParts      map[string]int      `json:"maintenance_parts,omitempty"`
	LifeSupport     map[string]float64  `json:"life_support"`
	Malfunctions    []MalfunctionStatus `json:"malfunctions,omitempty"`
	Resources       map[string]float64  `json:"resources,omitempty"`
}

// Driver advances every unit's manager on a fixed cadence and persists
// periodic wear snapshots for trend estimation.
type Driver struct {
	clock *Clock
	store *history.Store // optional

	tickMillisols     float64
	interval          time.Duration
	snapshotEverySols int

	mu              sync.RWMutex
	units           []*Unit
	lastSnapshotSol int
}

// NewDriver creates a driver. A nil store disables snapshot persistence.
func NewDriver(clock *Clock, store *history.Store, tickMillisols float64, interval time.Duration, snapshotEverySols int) *Driver {
	if tickMillisols <= 0 {
		tickMillisols = 5
	}
	if interval <= 0 {
		interval = time.Second
	}
	if snapshotEverySols <= 0 {
		snapshotEverySols = 1
	}
	return &Driver{
		clock:             clock,
		store:             store,
		tickMillisols:     tickMillisols,
		interval:          interval,
		snapshotEverySols: snapshotEverySols,
		lastSnapshotSol:   -1,
	}
}

// Add registers a unit with the driver.
func (d *Driver) Add(u *Unit) {
	d.mu.Lock()
	d.units = append(d.units, u)
	d.mu.Unlock()
}

// Unit looks a unit up by entity name.
func (d *Driver) Unit(name string) *Unit {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, u := range d.units {
		if u.Entity.EntityName() == name {
			return u
		}
	}
	return nil
}

// Run pulses the simulation until the context is cancelled.
func (d *Driver) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	log.Printf("sim: driver running, %g millisols per %s", d.tickMillisols, d.interval)
	for {
		select {
		case <-ticker.C:
			d.Pulse()
		case <-ctx.Done():
			log.Printf("sim: driver stopped at sol %d", d.clock.MarsSol())
			return
		}
	}
}

// Pulse advances the clock one tick and delivers the elapsed time to every
// manager. Exposed so tests and scripted scenarios can step the simulation
// deterministically.
func (d *Driver) Pulse() {
	d.clock.Advance(d.tickMillisols)

	d.mu.RLock()
	units := make([]*Unit, len(d.units))
	copy(units, d.units)
	d.mu.RUnlock()

	for _, u := range units {
		active := u.ActiveUse == nil || u.ActiveUse()
		u.Manager.OnTimePulse(d.tickMillisols, active)
	}

	d.maybeSnapshot(units)
}

// maybeSnapshot persists wear conditions once per configured sol interval.
func (d *Driver) maybeSnapshot(units []*Unit) {
	if d.store == nil {
		return
	}
	sol := d.clock.MarsSol()

	d.mu.Lock()
	due := sol != d.lastSnapshotSol && sol%d.snapshotEverySols == 0
	if due {
		d.lastSnapshotSol = sol
	}
	d.mu.Unlock()
	if !due {
		return
	}

	for _, u := range units {
		snap := history.ConditionSnapshot{
			Entity:    u.Entity.EntityName(),
			Sol:       sol,
			Condition: u.Manager.WearCondition(),
		}
		if err := d.store.StoreConditionSnapshot(snap); err != nil {
			log.Printf("sim: store condition snapshot for %s: %v", snap.Entity, err)
		}
	}
}

// Status reports every unit's current state.
func (d *Driver) Status() []UnitStatus {
	d.mu.RLock()
	units := make([]*Unit, len(d.units))
	copy(units, d.units)
	d.mu.RUnlock()

	out := make([]UnitStatus, 0, len(units))
	for _, u := range units {
		m := u.Manager
		status := UnitStatus{
			Name:            u.Entity.EntityName(),
			Kind:            u.Entity.Kind,
			Condition:       m.WearCondition(),
			TimeSinceMaint:  m.TimeSinceLastMaintenance(),
			MaintWorkDone:   m.MaintenanceWorkTimeCompleted(),
			MaintWorkNeeded: m.MaintenanceWorkTime(),
			MaintParts:      m.MaintenanceParts(),
			Resources:       u.Entity.Inventory().Snapshot(),
			LifeSupport: map[string]float64{
				malfunction.LifeSupportOxygen:      m.OxygenFlowModifier(),
				malfunction.LifeSupportWater:       m.WaterFlowModifier(),
				malfunction.LifeSupportAirPressure: m.AirPressureModifier(),
				malfunction.LifeSupportTemperature: m.TemperatureModifier(),
			},
		}
		for _, inst := range m.Malfunctions() {
			status.Malfunctions = append(status.Malfunctions, MalfunctionStatus{
				Incident:    inst.IncidentID(),
				Name:        inst.Name(),
				Severity:    inst.Severity(),
				PctFixed:    inst.PercentageFixed(),
				NeedsEVA:    inst.NeedsWork(malfunction.WorkEVA),
				NeedsInside: inst.NeedsWork(malfunction.WorkInside),
			})
		}
		out = append(out, status)
	}
	return out
}
