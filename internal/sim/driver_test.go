package sim

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/larsnaesbye/mars-sim2-sub002/internal/entity"
	"github.com/larsnaesbye/mars-sim2-sub002/internal/history"
	"github.com/larsnaesbye/mars-sim2-sub002/internal/malfunction"
)

func newTestStore(t *testing.T) *history.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s, err := history.OpenDB(db)
	if err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return s
}

func newTestUnit(clock *Clock, name string) *Unit {
	e := entity.NewBuilding(name, "New Plymouth", map[string]float64{"oxygen": 100})
	mgr := malfunction.NewManager(e, malfunction.NewCatalog(nil, nil, nil), nil, clock, malfunction.Params{
		BaseServiceLife:     1000,
		MaintenanceWorkTime: 100,
		Scopes:              []string{"building"},
	})
	return &Unit{Entity: e, Manager: mgr}
}

func TestPulseAdvancesClockAndWearsUnits(t *testing.T) {
	clock := NewClock()
	d := NewDriver(clock, nil, 5, time.Second, 1)
	d.Add(newTestUnit(clock, "Lander Habitat"))

	d.Pulse()
	d.Pulse()

	if got := clock.TotalMillisols(); got != 10 {
		t.Errorf("TotalMillisols = %.1f after two pulses, want 10", got)
	}
	u := d.Unit("Lander Habitat")
	if u == nil {
		t.Fatal("Unit lookup failed")
	}
	if got := u.Manager.WearCondition(); got != 99 {
		t.Errorf("WearCondition = %.2f, want 99", got)
	}
}

func TestPulseRespectsActiveUse(t *testing.T) {
	clock := NewClock()
	d := NewDriver(clock, nil, 5, time.Second, 1)
	u := newTestUnit(clock, "Ranger 1")
	u.ActiveUse = func() bool { return false }
	d.Add(u)

	d.Pulse()

	if got := u.Manager.WearCondition(); got != 100 {
		t.Errorf("WearCondition = %.2f for idle unit, want 100", got)
	}
	if got := u.Manager.TimeSinceLastMaintenance(); got != 5 {
		t.Errorf("TimeSinceLastMaintenance = %.1f, want 5 (calendar time still passes)", got)
	}
}

func TestPulsePersistsConditionSnapshots(t *testing.T) {
	clock := NewClock()
	store := newTestStore(t)
	// Each pulse is half a sol, snapshots due every sol.
	d := NewDriver(clock, store, 500, time.Second, 1)
	d.Add(newTestUnit(clock, "Lander Habitat"))

	d.Pulse() // sol 0
	d.Pulse() // sol 1
	d.Pulse() // still sol 1, no second snapshot

	points, err := store.ConditionHistory("Lander Habitat", 0)
	if err != nil {
		t.Fatalf("ConditionHistory: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("got %d snapshots, want 2 (sols 0 and 1)", len(points))
	}
	if points[0].Sol != 0 || points[1].Sol != 1 {
		t.Errorf("snapshot sols = %.0f, %.0f, want 0, 1", points[0].Sol, points[1].Sol)
	}
}

func TestStatusReportsUnits(t *testing.T) {
	clock := NewClock()
	d := NewDriver(clock, nil, 5, time.Second, 1)
	u := newTestUnit(clock, "Lander Habitat")
	d.Add(u)

	tmpl := &malfunction.Template{
		Name:        "air leak",
		Scopes:      []string{"building"},
		Probability: 10,
		SeverityMin: 80,
		SeverityMax: 80,
		RepairWork:  map[malfunction.WorkType]float64{malfunction.WorkInside: 50},
		LifeSupportEffects: map[string]float64{
			malfunction.LifeSupportOxygen: 30,
		},
	}
	u.Manager.TriggerMalfunction(tmpl, false)

	status := d.Status()
	if len(status) != 1 {
		t.Fatalf("got %d status rows, want 1", len(status))
	}
	s := status[0]
	if s.Name != "Lander Habitat" || s.Kind != entity.KindBuilding {
		t.Errorf("identity = %s/%s", s.Name, s.Kind)
	}
	if s.Condition != 100 {
		t.Errorf("Condition = %.1f, want 100", s.Condition)
	}
	if got := s.LifeSupport[malfunction.LifeSupportOxygen]; got != 70 {
		t.Errorf("oxygen modifier = %.1f, want 70", got)
	}
	if len(s.Malfunctions) != 1 {
		t.Fatalf("got %d malfunction rows, want 1", len(s.Malfunctions))
	}
	mf := s.Malfunctions[0]
	if mf.Name != "air leak" || mf.Severity != 80 || !mf.NeedsInside || mf.NeedsEVA {
		t.Errorf("malfunction row = %+v", mf)
	}
	if got := s.Resources["oxygen"]; got != 100 {
		t.Errorf("resources oxygen = %.1f, want 100", got)
	}
}

func TestDefaultsAppliedToDriverParams(t *testing.T) {
	d := NewDriver(NewClock(), nil, 0, 0, 0)
	if d.tickMillisols != 5 || d.interval != time.Second || d.snapshotEverySols != 1 {
		t.Errorf("defaults = %g/%s/%d", d.tickMillisols, d.interval, d.snapshotEverySols)
	}
}
