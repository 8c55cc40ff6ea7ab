package events

import "time"

// EventType identifies the kind of event being published.
type EventType string

const (
	// Malfunction lifecycle events
	MalfunctionRaised EventType = "malfunction_raised"
	MalfunctionFixed  EventType = "malfunction_fixed"
	MeteoriteImpact   EventType = "meteorite_impact"
	CascadingFailure  EventType = "cascading_failure"

	// Maintenance events
	MaintenanceCompleted EventType = "maintenance_completed"
	PartsReplaced        EventType = "parts_replaced"

	// Side effects on the settlement
	ResourceDepleted EventType = "resource_depleted"
	MedicalComplaint EventType = "medical_complaint"
)

// Severity indicates the urgency of an event.
type Severity int

const (
	SeverityInfo     Severity = 0
	SeverityWarning  Severity = 1
	SeverityCritical Severity = 2
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Event is the payload published through the bus.
// Incident is zero for events not tied to a specific malfunction occurrence.
type Event struct {
	Type       EventType         `json:"type"`
	Severity   Severity          `json:"severity"`
	Entity     string            `json:"entity,omitempty"`
	Settlement string            `json:"settlement,omitempty"`
	Location   string            `json:"location,omitempty"`
	Incident   int64             `json:"incident,omitempty"`
	Actor      string            `json:"actor,omitempty"`
	Sol        int               `json:"sol"`
	Orbit      int               `json:"orbit"`
	Message    string            `json:"message"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}
