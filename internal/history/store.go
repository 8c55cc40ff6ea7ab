// Package history persists the structured record of what went wrong and
// when: every malfunction raised and fixed, maintenance cycles, and
// periodic wear-condition snapshots used for trend estimation.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/larsnaesbye/mars-sim2-sub002/internal/events"
	"github.com/larsnaesbye/mars-sim2-sub002/internal/wear"
)

const timeFormat = "2006-01-02 15:04:05"

// EventRecord is a row of the incident log.
type EventRecord struct {
	ID         int64     `json:"id,omitempty"`
	Type       string    `json:"type"`
	Severity   string    `json:"severity"`
	Entity     string    `json:"entity"`
	Settlement string    `json:"settlement,omitempty"`
	Incident   int64     `json:"incident,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	Sol        int       `json:"sol"`
	Orbit      int       `json:"orbit"`
	Message    string    `json:"message"`
	Metadata   string    `json:"metadata,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ConditionSnapshot is a point-in-time wear-condition record for a unit.
type ConditionSnapshot struct {
	ID        int64   `json:"id,omitempty"`
	Entity    string  `json:"entity"`
	Sol       int     `json:"sol"`
	Condition float64 `json:"condition"`
}

// Store wraps the simulation database.
type Store struct {
	db *sql.DB
}

// Open initializes the database at path and creates the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("history: create directory %s: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open database at %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("history: connect: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		log.Printf("history: could not enable WAL mode: %v", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenDB wraps an existing connection (used by tests) and creates the
// schema.
func OpenDB(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying connection for sibling packages sharing the
// same file.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) migrate() error {
	statements := []struct {
		label string
		sql   string
	}{
		{"incident_log", `
			CREATE TABLE IF NOT EXISTS incident_log (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				type       TEXT    NOT NULL,
				severity   TEXT    NOT NULL,
				entity     TEXT    NOT NULL,
				settlement TEXT,
				incident   INTEGER DEFAULT 0,
				actor      TEXT,
				sol        INTEGER NOT NULL,
				orbit      INTEGER NOT NULL,
				message    TEXT    NOT NULL,
				metadata   TEXT,
				timestamp  DATETIME DEFAULT CURRENT_TIMESTAMP
			);`},
		{"incident_log indexes", `
			CREATE INDEX IF NOT EXISTS idx_incidents_entity ON incident_log(entity);
			CREATE INDEX IF NOT EXISTS idx_incidents_sol    ON incident_log(sol);`},
		{"condition_history", `
			CREATE TABLE IF NOT EXISTS condition_history (
				id        INTEGER PRIMARY KEY AUTOINCREMENT,
				entity    TEXT    NOT NULL,
				sol       INTEGER NOT NULL,
				condition REAL    NOT NULL,
				UNIQUE(entity, sol)
			);`},
		{"condition_history indexes", `
			CREATE INDEX IF NOT EXISTS idx_condition_entity ON condition_history(entity);`},
	}

	for _, st := range statements {
		if _, err := s.db.Exec(st.sql); err != nil {
			return fmt.Errorf("history migration failed at [%s]: %w", st.label, err)
		}
	}
	return nil
}

// AttachBus subscribes the store to the event bus so every simulation
// event lands in the incident log.
func (s *Store) AttachBus(bus *events.Bus) {
	bus.Subscribe(func(e events.Event) {
		if err := s.RecordEvent(e); err != nil {
			log.Printf("history: record %s event: %v", e.Type, err)
		}
	})
}

// RecordEvent appends an event to the incident log.
func (s *Store) RecordEvent(e events.Event) error {
	metadata := ""
	if len(e.Metadata) > 0 {
		if data, err := json.Marshal(e.Metadata); err == nil {
			metadata = string(data)
		}
	}

	_, err := s.db.Exec(`
		INSERT INTO incident_log (type, severity, entity, settlement, incident, actor, sol, orbit, message, metadata, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, string(e.Type), e.Severity.String(), e.Entity, e.Settlement, e.Incident,
		e.Actor, e.Sol, e.Orbit, e.Message, metadata, e.Timestamp.UTC().Format(timeFormat))
	return err
}

// RecentEvents returns the newest limit rows of the incident log.
func (s *Store) RecentEvents(limit int) ([]EventRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, type, severity, entity, settlement, incident, actor, sol, orbit, message, metadata, timestamp
		FROM incident_log
		ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// EventsForEntity returns the incident log for one unit, newest first.
func (s *Store) EventsForEntity(entity string, limit int) ([]EventRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, type, severity, entity, settlement, incident, actor, sol, orbit, message, metadata, timestamp
		FROM incident_log
		WHERE entity = ?
		ORDER BY id DESC LIMIT ?
	`, entity, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// StoreConditionSnapshot records a unit's wear condition for a sol.
// Re-recording the same sol overwrites.
func (s *Store) StoreConditionSnapshot(snap ConditionSnapshot) error {
	_, err := s.db.Exec(`
		INSERT INTO condition_history (entity, sol, condition)
		VALUES (?, ?, ?)
		ON CONFLICT(entity, sol) DO UPDATE SET condition = excluded.condition
	`, snap.Entity, snap.Sol, snap.Condition)
	return err
}

// ConditionHistory returns a unit's condition snapshots since the given
// sol, oldest first, as trend input.
func (s *Store) ConditionHistory(entity string, sinceSol int) ([]wear.ConditionPoint, error) {
	rows, err := s.db.Query(`
		SELECT sol, condition FROM condition_history
		WHERE entity = ? AND sol >= ?
		ORDER BY sol ASC
	`, entity, sinceSol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []wear.ConditionPoint
	for rows.Next() {
		var sol int
		var condition float64
		if err := rows.Scan(&sol, &condition); err != nil {
			continue
		}
		points = append(points, wear.ConditionPoint{Sol: float64(sol), Condition: condition})
	}
	return points, rows.Err()
}

// WearTrend projects a unit's wear-out from its recorded history.
// Returns nil with no error when there is not enough data.
func (s *Store) WearTrend(entity string, sinceSol int) (*wear.TrendProjection, error) {
	points, err := s.ConditionHistory(entity, sinceSol)
	if err != nil {
		return nil, err
	}
	return wear.PredictTrend(points), nil
}

func scanEvents(rows *sql.Rows) ([]EventRecord, error) {
	var records []EventRecord
	for rows.Next() {
		var r EventRecord
		var settlement, actor, metadata sql.NullString
		var ts string
		if err := rows.Scan(&r.ID, &r.Type, &r.Severity, &r.Entity, &settlement,
			&r.Incident, &actor, &r.Sol, &r.Orbit, &r.Message, &metadata, &ts); err != nil {
			continue
		}
		r.Settlement = settlement.String
		r.Actor = actor.String
		r.Metadata = metadata.String
		r.Timestamp, _ = time.Parse(timeFormat, ts)
		records = append(records, r)
	}
	return records, rows.Err()
}
