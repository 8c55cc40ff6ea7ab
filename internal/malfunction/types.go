// Package malfunction implements the failure-injection and maintenance core
// of the settlement simulation. Each malfunctionable unit (building,
// vehicle, robot, EVA suit) owns one Manager that ages the unit's wear
// state, rolls for new malfunctions, drains resources for unresolved ones,
// and tracks the maintenance cycle with its replacement parts.
package malfunction

import (
	"errors"
	"time"

	"github.com/larsnaesbye/mars-sim2-sub002/internal/events"
	"github.com/larsnaesbye/mars-sim2-sub002/internal/medical"
)

// WorkType is the category of repair work a malfunction needs.
type WorkType int

const (
	// WorkInside is shirt-sleeve repair work done inside a pressurized unit.
	WorkInside WorkType = iota
	// WorkEVA is repair work requiring a spacesuit.
	WorkEVA
)

// WorkTypes lists all categories in a stable order.
var WorkTypes = []WorkType{WorkInside, WorkEVA}

func (w WorkType) String() string {
	switch w {
	case WorkInside:
		return "inside"
	case WorkEVA:
		return "eva"
	default:
		return "unknown"
	}
}

// Life-support channels a malfunction can degrade. Flow modifiers are
// percentages: 100 is nominal flow, 0 is fully cut.
const (
	LifeSupportOxygen      = "oxygen"
	LifeSupportWater       = "water"
	LifeSupportAirPressure = "air pressure"
	LifeSupportTemperature = "temperature"
)

// lifeSupportTags is the set of channels every manager tracks.
var lifeSupportTags = []string{
	LifeSupportOxygen,
	LifeSupportWater,
	LifeSupportAirPressure,
	LifeSupportTemperature,
}

// Errors of the invalid-argument class. Everything else in this package is
// absorbed locally: a failed probability roll or a catalog with no matching
// template simply produces no malfunction.
var (
	ErrPartNotRequired            = errors.New("part is not currently required")
	ErrInvalidQuantity            = errors.New("quantity must be positive")
	ErrQuantityExceedsRequirement = errors.New("quantity exceeds outstanding requirement")
	ErrUnknownWorkType            = errors.New("unknown work type")
	ErrUnknownTemplate            = errors.New("unknown malfunction template")
)

// PartSpec describes a repair part a malfunction template may require.
// When a malfunction fires, each spec is rolled: with the given probability
// the part is needed, in a quantity of 1..MaxNumber.
type PartSpec struct {
	Name        string
	MaxNumber   int
	Probability float64 // percent
}

// Template is the immutable description of one kind of malfunction,
// supplied by the catalog.
type Template struct {
	Name   string
	Scopes []string // lower-cased subsystem tags

	// Probability is the relative pick weight among eligible templates.
	Probability float64

	// Severity range rolled at instantiation; 1 (nuisance) to 100
	// (catastrophic). Severity orders concurrent malfunctions for repair.
	SeverityMin int
	SeverityMax int

	// RepairWork maps each needed work category to the work time
	// (millisols) required to fix it. Absent categories need no work.
	RepairWork map[WorkType]float64

	// RepairerCapacity bounds how many distinct repairers can work a
	// category at once. Zero means DefaultRepairerCapacity.
	RepairerCapacity map[WorkType]int

	// ResourceEffects drains the owning unit's stores: units of resource
	// lost per millisol while the malfunction is completely unrepaired.
	ResourceEffects map[string]float64

	// LifeSupportEffects reduces life-support flow: percentage points
	// removed from the channel's modifier while completely unrepaired.
	LifeSupportEffects map[string]float64

	// MedicalComplaints is the percent chance, per affected person, of
	// each complaint being inflicted when the malfunction fires.
	MedicalComplaints map[string]float64

	// Parts a repair may consume.
	Parts []PartSpec

	// Impact marks templates representing external impacts (meteorite
	// strikes); these raise a distinct event type when triggered.
	Impact bool
}

// DefaultRepairerCapacity is the repairer slot bound for templates that do
// not specify one.
const DefaultRepairerCapacity = 2

// appliesTo reports whether the template matches any of the given scopes.
// Both sides are expected lower-cased.
func (t *Template) appliesTo(scopes []string) bool {
	for _, have := range scopes {
		for _, want := range t.Scopes {
			if have == want {
				return true
			}
		}
	}
	return false
}

// capacity returns the repairer slot bound for a work category.
func (t *Template) capacity(w WorkType) int {
	if c := t.RepairerCapacity[w]; c > 0 {
		return c
	}
	return DefaultRepairerCapacity
}

// MaintenancePartRule describes a part that scheduled maintenance may
// require for units matching its scopes.
type MaintenancePartRule struct {
	Part        string
	Scopes      []string
	Probability float64 // percent chance the part is needed per cycle
	MaxNumber   int
}

// Rand is the random source seam. *math/rand.Rand satisfies it; tests
// inject deterministic sequences.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// ResourceHolder is the owning unit's store, with saturating retrieval:
// Retrieve returns the amount actually removed, never more than stored.
type ResourceHolder interface {
	AmountStored(resource string) float64
	Retrieve(resource string, amount float64) float64
}

// AffectedPerson is a settler exposed to the unit's malfunctions.
type AffectedPerson interface {
	PersonName() string
	AddMedicalComplaint(c medical.Complaint)
	AddStress(delta float64)
}

// PersonalityTrait supplies the cascade modifier for a triggering actor.
// Actors without the capability default to neutral (1.0).
type PersonalityTrait interface {
	PersonalityMalfunctionModifier() float64
}

// Malfunctionable is the owning unit as seen by its manager. The manager
// holds this as a non-owning back-reference; the unit owns the manager.
type Malfunctionable interface {
	EntityName() string
	SettlementName() string
	LocationName() string
	AffectedPeople() []AffectedPerson
	ResourceHolder
}

// Clock supplies Mars time for event stamping and per-orbit statistics.
type Clock interface {
	MarsSol() int
	Orbit() int
}

// EventSink receives structured notifications. *events.Bus satisfies it.
type EventSink interface {
	Publish(e events.Event)
}

// Tuning collects the empirically calibrated constants of the failure
// model. The formula shapes are fixed; the values are configuration.
type Tuning struct {
	// WearMalfunctionFactor scales the wear contribution to the per-pulse
	// failure chance.
	WearMalfunctionFactor float64

	// MaintenanceMalfunctionFactor scales the maintenance-neglect
	// contribution to the per-pulse failure chance.
	MaintenanceMalfunctionFactor float64

	// WearAccidentFactor scales the accident modifier exposed to external
	// accident rolls.
	WearAccidentFactor float64

	// CascadeInitialChance is the percent chance of the first compounding
	// failure in a cascading burst.
	CascadeInitialChance float64

	// CascadeDecayDivisor divides the chance after each compounding
	// failure, together with the actor's personality modifier.
	CascadeDecayDivisor float64

	// CascadeStress is added to every affected person's stress after a
	// burst that produced at least one malfunction.
	CascadeStress float64

	// DepletionWarnInterval rate-limits resource-leak warnings.
	DepletionWarnInterval time.Duration
}

// DefaultTuning returns the calibration used by the simulation.
func DefaultTuning() Tuning {
	return Tuning{
		WearMalfunctionFactor:        9.0,
		MaintenanceMalfunctionFactor: 1e-9,
		WearAccidentFactor:           5.0,
		CascadeInitialChance:         10.0,
		CascadeDecayDivisor:          3.0,
		CascadeStress:                10.0,
		DepletionWarnInterval:        30 * time.Second,
	}
}
