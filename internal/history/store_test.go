package history

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/larsnaesbye/mars-sim2-sub002/internal/events"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := OpenDB(db)
	if err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return s
}

func sampleEvent(entity string, sol int) events.Event {
	return events.Event{
		Type:       events.MalfunctionRaised,
		Severity:   events.SeverityCritical,
		Entity:     entity,
		Settlement: "New Plymouth",
		Incident:   7,
		Sol:        sol,
		Orbit:      1,
		Message:    "air leak (severity 80) in " + entity,
		Timestamp:  time.Date(2043, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRecordAndQueryEvents(t *testing.T) {
	s := newTestStore(t)

	if err := s.RecordEvent(sampleEvent("Lander Habitat", 10)); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	if err := s.RecordEvent(sampleEvent("Ranger 1", 11)); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}

	recent, err := s.RecentEvents(10)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d events, want 2", len(recent))
	}
	// Newest first
	if recent[0].Entity != "Ranger 1" || recent[1].Entity != "Lander Habitat" {
		t.Errorf("order wrong: %s, %s", recent[0].Entity, recent[1].Entity)
	}

	r := recent[1]
	if r.Type != string(events.MalfunctionRaised) || r.Severity != "critical" {
		t.Errorf("type/severity = %q/%q", r.Type, r.Severity)
	}
	if r.Incident != 7 || r.Sol != 10 || r.Orbit != 1 {
		t.Errorf("stamping = incident %d sol %d orbit %d", r.Incident, r.Sol, r.Orbit)
	}
	if r.Timestamp.IsZero() {
		t.Error("timestamp not round-tripped")
	}
}

func TestEventsForEntityFilters(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 3; i++ {
		if err := s.RecordEvent(sampleEvent("Lander Habitat", 10+i)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.RecordEvent(sampleEvent("Ranger 1", 12)); err != nil {
		t.Fatal(err)
	}

	evs, err := s.EventsForEntity("Lander Habitat", 0)
	if err != nil {
		t.Fatalf("EventsForEntity: %v", err)
	}
	if len(evs) != 3 {
		t.Fatalf("got %d events, want 3", len(evs))
	}
	for _, e := range evs {
		if e.Entity != "Lander Habitat" {
			t.Errorf("foreign entity in result: %s", e.Entity)
		}
	}
}

func TestRecentEventsLimit(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		if err := s.RecordEvent(sampleEvent("Lander Habitat", i)); err != nil {
			t.Fatal(err)
		}
	}

	evs, err := s.RecentEvents(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 2 {
		t.Errorf("got %d events with limit 2", len(evs))
	}
	if evs[0].Sol != 4 {
		t.Errorf("newest sol = %d, want 4", evs[0].Sol)
	}
}

func TestRecordEventMetadata(t *testing.T) {
	s := newTestStore(t)
	e := sampleEvent("Lander Habitat", 10)
	e.Type = events.ResourceDepleted
	e.Metadata = map[string]string{"resource": "oxygen"}

	if err := s.RecordEvent(e); err != nil {
		t.Fatal(err)
	}
	evs, err := s.RecentEvents(1)
	if err != nil {
		t.Fatal(err)
	}
	if evs[0].Metadata != `{"resource":"oxygen"}` {
		t.Errorf("metadata = %q", evs[0].Metadata)
	}
}

func TestAttachBusRecordsPublishedEvents(t *testing.T) {
	s := newTestStore(t)
	bus := events.NewBus()
	s.AttachBus(bus)

	bus.Publish(sampleEvent("Lander Habitat", 10))

	evs, err := s.RecentEvents(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 1 {
		t.Fatalf("got %d events via bus, want 1", len(evs))
	}
}

func TestConditionSnapshotUpsert(t *testing.T) {
	s := newTestStore(t)

	if err := s.StoreConditionSnapshot(ConditionSnapshot{Entity: "Ranger 1", Sol: 10, Condition: 95}); err != nil {
		t.Fatal(err)
	}
	// Same sol overwrites instead of duplicating
	if err := s.StoreConditionSnapshot(ConditionSnapshot{Entity: "Ranger 1", Sol: 10, Condition: 94}); err != nil {
		t.Fatal(err)
	}
	if err := s.StoreConditionSnapshot(ConditionSnapshot{Entity: "Ranger 1", Sol: 11, Condition: 93}); err != nil {
		t.Fatal(err)
	}

	points, err := s.ConditionHistory("Ranger 1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 2 {
		t.Fatalf("got %d points, want 2", len(points))
	}
	if points[0].Sol != 10 || points[0].Condition != 94 {
		t.Errorf("first point = %+v, want sol 10 condition 94", points[0])
	}
	if points[1].Sol != 11 {
		t.Errorf("points not ordered oldest first: %+v", points)
	}
}

func TestConditionHistorySinceSol(t *testing.T) {
	s := newTestStore(t)
	for sol := 1; sol <= 10; sol++ {
		if err := s.StoreConditionSnapshot(ConditionSnapshot{Entity: "Ranger 1", Sol: sol, Condition: 100 - float64(sol)}); err != nil {
			t.Fatal(err)
		}
	}

	points, err := s.ConditionHistory("Ranger 1", 6)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 5 {
		t.Errorf("got %d points since sol 6, want 5", len(points))
	}
}

func TestWearTrend(t *testing.T) {
	s := newTestStore(t)

	// Not enough data yet
	proj, err := s.WearTrend("Ranger 1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if proj != nil {
		t.Errorf("projection from empty history = %+v, want nil", proj)
	}

	// A steady decline of 0.5% per sol from 90%
	for sol := 0; sol < 20; sol++ {
		if err := s.StoreConditionSnapshot(ConditionSnapshot{
			Entity:    "Ranger 1",
			Sol:       sol,
			Condition: 90 - 0.5*float64(sol),
		}); err != nil {
			t.Fatal(err)
		}
	}

	proj, err = s.WearTrend("Ranger 1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if proj == nil {
		t.Fatal("no projection from 20 points")
	}
	if proj.SolsRemaining == nil {
		t.Fatal("declining history produced no wear-out estimate")
	}
	// 80.5% left at sol 19, 0.5%/sol → about 161 sols
	if *proj.SolsRemaining < 150 || *proj.SolsRemaining > 175 {
		t.Errorf("SolsRemaining = %.1f, want ~161", *proj.SolsRemaining)
	}
}
