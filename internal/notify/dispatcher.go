// Package notify forwards simulation alerts to the outside world via
// Shoutrrr. A settlement with a meteorite strike should page somebody.
package notify

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nicholas-fedor/shoutrrr"

	"github.com/larsnaesbye/mars-sim2-sub002/internal/events"
)

// Sender abstracts message dispatch so the dispatcher can be tested
// without hitting real services.
type Sender interface {
	Send(shoutrrrURL, message string) error
}

// ShoutrrrSender dispatches via the Shoutrrr library.
type ShoutrrrSender struct{}

func (ShoutrrrSender) Send(url, message string) error {
	return shoutrrr.Send(url, message)
}

// Dispatcher subscribes to the event bus, filters by severity, enforces
// per-channel cooldowns, and dispatches via Shoutrrr. Delivery runs on its
// own goroutine so a slow webhook cannot stall a simulation pulse.
type Dispatcher struct {
	db       *sql.DB // optional history; nil disables recording
	bus      *events.Bus
	sender   Sender
	channels []Channel

	mu        sync.Mutex
	cooldowns map[string]time.Time // "channel:event_type" → last dispatch

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher wired to the given bus. A nil sender
// uses Shoutrrr; a nil db disables history recording.
func NewDispatcher(db *sql.DB, bus *events.Bus, channels []Channel, sender Sender) *Dispatcher {
	if sender == nil {
		sender = ShoutrrrSender{}
	}
	return &Dispatcher{
		db:        db,
		bus:       bus,
		sender:    sender,
		channels:  channels,
		cooldowns: make(map[string]time.Time),
		stopCh:    make(chan struct{}),
	}
}

// Start subscribes to all events and begins dispatching.
func (d *Dispatcher) Start() {
	ch := make(chan events.Event, 256)

	d.bus.Subscribe(func(e events.Event) {
		select {
		case ch <- e:
		default:
			log.Printf("notify: event queue full, dropping %s event", e.Type)
		}
	})

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case e := <-ch:
				d.handle(e)
			case <-d.stopCh:
				// Drain remaining events
				for {
					select {
					case e := <-ch:
						d.handle(e)
					default:
						return
					}
				}
			}
		}
	}()
}

// Stop signals the dispatcher goroutine to finish and waits for it.
func (d *Dispatcher) Stop() {
	close(d.stopCh)
	d.wg.Wait()
}

// handle processes a single event against all channels.
func (d *Dispatcher) handle(e events.Event) {
	for _, ch := range d.channels {
		if e.Severity < ch.MinSeverity {
			continue
		}
		if !d.cooldownAllows(ch, e) {
			continue
		}
		d.dispatch(ch, e)
	}
}

// cooldownAllows checks and advances the channel's per-event-type
// cooldown.
func (d *Dispatcher) cooldownAllows(ch Channel, e events.Event) bool {
	if ch.Cooldown <= 0 {
		return true
	}

	key := fmt.Sprintf("%s:%s", ch.Name, e.Type)
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.cooldowns[key]; ok && now.Sub(last) < ch.Cooldown {
		return false
	}
	d.cooldowns[key] = now
	return true
}

// dispatch sends the notification and records the result.
func (d *Dispatcher) dispatch(ch Channel, e events.Event) {
	msg := formatMessage(e)
	err := d.sender.Send(ch.ShoutrrrURL, msg)

	rec := &Record{
		Channel:   ch.Name,
		EventType: string(e.Type),
		Entity:    e.Entity,
		Message:   msg,
	}

	if err != nil {
		rec.Status = "failed"
		rec.ErrorMessage = err.Error()
		log.Printf("notify: send to %s failed: %v", ch.Name, err)
	} else {
		rec.Status = "sent"
		rec.SentAt = time.Now().UTC()
	}

	if d.db == nil {
		return
	}
	if _, dbErr := RecordNotification(d.db, rec); dbErr != nil {
		log.Printf("notify: record history: %v", dbErr)
	}
}

// formatMessage builds a human-readable notification string.
func formatMessage(e events.Event) string {
	msg := fmt.Sprintf("[%s] sol %d: %s", e.Severity, e.Sol, e.Message)
	if e.Settlement != "" {
		msg = fmt.Sprintf("[%s] [%s] sol %d: %s", e.Severity, e.Settlement, e.Sol, e.Message)
	}
	return msg
}
