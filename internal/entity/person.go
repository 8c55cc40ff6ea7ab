package entity

import (
	"sync"

	"github.com/google/uuid"

	"github.com/larsnaesbye/mars-sim2-sub002/internal/medical"
)

// Person is a settler who can be affected by malfunctions and repair them.
// Only the traits the malfunction subsystem touches are modeled here.
type Person struct {
	ID         uuid.UUID
	Name       string
	Settlement string

	// Neuroticism is the 0-100 personality trait score driving how badly
	// an accident compounds under this person's watch. 50 is average.
	Neuroticism float64

	mu         sync.Mutex
	stress     float64
	complaints []medical.Complaint
}

// NewPerson creates a settler with the given neuroticism trait score.
func NewPerson(name, settlement string, neuroticism float64) *Person {
	return &Person{
		ID:          uuid.New(),
		Name:        name,
		Settlement:  settlement,
		Neuroticism: clampPct(neuroticism),
	}
}

// PersonName returns the settler's name for event records.
func (p *Person) PersonName() string { return p.Name }

// PersonalityMalfunctionModifier converts neuroticism into the cascade
// decay modifier. An average settler (score 50) yields 1.0; a highly
// neurotic one yields a smaller modifier, slowing the decay and so
// compounding more failures.
func (p *Person) PersonalityMalfunctionModifier() float64 {
	return 1.0 + (50.0-p.Neuroticism)/100.0
}

// AddMedicalComplaint records a health problem caused by a malfunction.
func (p *Person) AddMedicalComplaint(c medical.Complaint) {
	p.mu.Lock()
	p.complaints = append(p.complaints, c)
	p.mu.Unlock()
}

// AddStress raises (or lowers) the settler's stress level, clamped to
// [0,100].
func (p *Person) AddStress(delta float64) {
	p.mu.Lock()
	p.stress = clampPct(p.stress + delta)
	p.mu.Unlock()
}

// Stress returns the current stress level.
func (p *Person) Stress() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stress
}

// Complaints returns a copy of the settler's medical complaints.
func (p *Person) Complaints() []medical.Complaint {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]medical.Complaint, len(p.complaints))
	copy(out, p.complaints)
	return out
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
