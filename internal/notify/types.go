package notify

import (
	"time"

	"github.com/larsnaesbye/mars-sim2-sub002/internal/events"
)

// Channel is a configured Shoutrrr destination.
type Channel struct {
	Name        string
	ShoutrrrURL string

	// MinSeverity filters events; only events at or above it are sent.
	MinSeverity events.Severity

	// Cooldown is the minimum wall-clock gap between repeated alerts of
	// the same event type on this channel. Zero disables the cooldown.
	Cooldown time.Duration
}

// Record is a row from notification_history.
type Record struct {
	ID           int64     `json:"id"`
	Channel      string    `json:"channel"`
	EventType    string    `json:"event_type"`
	Entity       string    `json:"entity,omitempty"`
	Message      string    `json:"message"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	SentAt       time.Time `json:"sent_at,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
