package notify

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/larsnaesbye/mars-sim2-sub002/internal/events"
)

// mockSender records calls for assertion.
type mockSender struct {
	mu       sync.Mutex
	calls    []string
	failNext bool
}

func (m *mockSender) Send(url, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, message)
	if m.failNext {
		m.failNext = false
		return fmt.Errorf("mock send error")
	}
	return nil
}

func (m *mockSender) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockSender) lastCall() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return ""
	}
	return m.calls[len(m.calls)-1]
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// setupDispatcherTest creates an in-memory DB, bus, mock sender, and
// dispatcher with the given channels.
func setupDispatcherTest(t *testing.T, channels []Channel) (*sql.DB, *events.Bus, *mockSender, *Dispatcher) {
	t.Helper()
	db := setupTestDB(t)
	bus := events.NewBus()
	sender := &mockSender{}
	d := NewDispatcher(db, bus, channels, sender)
	return db, bus, sender, d
}

func criticalEvent(entity string) events.Event {
	return events.Event{
		Type:       events.MalfunctionRaised,
		Severity:   events.SeverityCritical,
		Entity:     entity,
		Settlement: "New Plymouth",
		Sol:        42,
		Message:    "air leak (severity 85) in " + entity,
	}
}

func TestDispatcherSendsOnMatchingSeverity(t *testing.T) {
	_, bus, sender, d := setupDispatcherTest(t, []Channel{
		{Name: "ops", ShoutrrrURL: "generic://example.com", MinSeverity: events.SeverityCritical},
	})

	d.Start()
	defer d.Stop()

	bus.Publish(criticalEvent("Lander Habitat"))

	// Give the async goroutine time to process
	time.Sleep(100 * time.Millisecond)

	if sender.callCount() != 1 {
		t.Errorf("expected 1 send, got %d", sender.callCount())
	}
	msg := sender.lastCall()
	if !strings.Contains(msg, "New Plymouth") || !strings.Contains(msg, "sol 42") {
		t.Errorf("message missing settlement/sol: %q", msg)
	}
}

func TestDispatcherFiltersBelowMinSeverity(t *testing.T) {
	_, bus, sender, d := setupDispatcherTest(t, []Channel{
		{Name: "ops", ShoutrrrURL: "generic://example.com", MinSeverity: events.SeverityCritical},
	})

	d.Start()
	defer d.Stop()

	e := criticalEvent("Lander Habitat")
	e.Type = events.MaintenanceCompleted
	e.Severity = events.SeverityInfo
	bus.Publish(e)

	time.Sleep(100 * time.Millisecond)

	if sender.callCount() != 0 {
		t.Errorf("expected 0 sends for info event, got %d", sender.callCount())
	}
}

func TestDispatcherCooldownSuppressesRepeats(t *testing.T) {
	_, bus, sender, d := setupDispatcherTest(t, []Channel{
		{Name: "ops", ShoutrrrURL: "generic://example.com", Cooldown: time.Hour},
	})

	d.Start()
	defer d.Stop()

	bus.Publish(criticalEvent("Lander Habitat"))
	bus.Publish(criticalEvent("Lander Habitat"))

	time.Sleep(100 * time.Millisecond)

	if sender.callCount() != 1 {
		t.Errorf("expected 1 send within cooldown, got %d", sender.callCount())
	}
}

func TestDispatcherCooldownIsPerEventType(t *testing.T) {
	_, bus, sender, d := setupDispatcherTest(t, []Channel{
		{Name: "ops", ShoutrrrURL: "generic://example.com", Cooldown: time.Hour},
	})

	d.Start()
	defer d.Stop()

	bus.Publish(criticalEvent("Lander Habitat"))
	fixed := criticalEvent("Lander Habitat")
	fixed.Type = events.MalfunctionFixed
	bus.Publish(fixed)

	time.Sleep(100 * time.Millisecond)

	if sender.callCount() != 2 {
		t.Errorf("expected 2 sends for distinct event types, got %d", sender.callCount())
	}
}

func TestDispatcherFanOutToMultipleChannels(t *testing.T) {
	_, bus, sender, d := setupDispatcherTest(t, []Channel{
		{Name: "ops", ShoutrrrURL: "generic://ops.example.com"},
		{Name: "oncall", ShoutrrrURL: "generic://oncall.example.com", MinSeverity: events.SeverityCritical},
	})

	d.Start()
	defer d.Stop()

	bus.Publish(criticalEvent("Lander Habitat"))

	time.Sleep(100 * time.Millisecond)

	if sender.callCount() != 2 {
		t.Errorf("expected both channels to fire, got %d sends", sender.callCount())
	}
}

func TestDispatcherRecordsHistory(t *testing.T) {
	db, bus, sender, d := setupDispatcherTest(t, []Channel{
		{Name: "ops", ShoutrrrURL: "generic://example.com"},
	})

	d.Start()
	bus.Publish(criticalEvent("Lander Habitat"))
	d.Stop() // drains before returning

	if sender.callCount() != 1 {
		t.Fatalf("expected 1 send, got %d", sender.callCount())
	}

	recs, err := History(db, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 history record, got %d", len(recs))
	}
	r := recs[0]
	if r.Status != "sent" || r.Channel != "ops" || r.Entity != "Lander Habitat" {
		t.Errorf("record = %+v", r)
	}
	if r.SentAt.IsZero() {
		t.Error("sent_at not recorded")
	}
}

func TestDispatcherRecordsFailure(t *testing.T) {
	db, bus, sender, d := setupDispatcherTest(t, []Channel{
		{Name: "ops", ShoutrrrURL: "generic://example.com"},
	})
	sender.failNext = true

	d.Start()
	bus.Publish(criticalEvent("Lander Habitat"))
	d.Stop()

	recs, err := History(db, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 history record, got %d", len(recs))
	}
	if recs[0].Status != "failed" || recs[0].ErrorMessage == "" {
		t.Errorf("failure not recorded: %+v", recs[0])
	}
}

func TestDispatcherNilDBSkipsHistory(t *testing.T) {
	bus := events.NewBus()
	sender := &mockSender{}
	d := NewDispatcher(nil, bus, []Channel{{Name: "ops", ShoutrrrURL: "generic://example.com"}}, sender)

	d.Start()
	bus.Publish(criticalEvent("Lander Habitat"))
	d.Stop()

	if sender.callCount() != 1 {
		t.Errorf("expected 1 send without history, got %d", sender.callCount())
	}
}

func TestFormatMessage(t *testing.T) {
	e := criticalEvent("Lander Habitat")
	msg := formatMessage(e)
	want := "[critical] [New Plymouth] sol 42: air leak (severity 85) in Lander Habitat"
	if msg != want {
		t.Errorf("formatMessage = %q, want %q", msg, want)
	}

	e.Settlement = ""
	msg = formatMessage(e)
	if strings.Contains(msg, "[]") || !strings.HasPrefix(msg, "[critical] sol 42:") {
		t.Errorf("settlement-less message = %q", msg)
	}
}
