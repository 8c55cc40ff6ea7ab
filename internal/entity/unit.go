// Package entity models the settlement units the malfunction subsystem acts
// on: buildings, vehicles, robots, EVA suits, and the settlers inside them.
// Task selection, mapping, and construction live elsewhere; a unit here is
// a name, an inventory, and the people it currently shelters.
package entity

import (
	"sync"

	"github.com/google/uuid"

	"github.com/larsnaesbye/mars-sim2-sub002/internal/malfunction"
)

// Unit kinds. The kind decides which malfunction scopes the driver attaches
// to the unit's manager.
const (
	KindBuilding = "building"
	KindVehicle  = "vehicle"
	KindRobot    = "robot"
	KindEVASuit  = "eva suit"
)

// Unit is a malfunctionable settlement asset. It owns its inventory and a
// non-owning list of the people currently affected by its condition.
type Unit struct {
	ID         uuid.UUID
	Kind       string
	name       string
	settlement string
	location   string
	inv        *Inventory

	mu     sync.RWMutex
	people []*Person
}

func newUnit(kind, name, settlement, location string, stock map[string]float64) *Unit {
	return &Unit{
		ID:         uuid.New(),
		Kind:       kind,
		name:       name,
		settlement: settlement,
		location:   location,
		inv:        NewInventory(stock),
	}
}

// NewBuilding creates a settlement building with the given resource stock.
func NewBuilding(name, settlement string, stock map[string]float64) *Unit {
	return newUnit(KindBuilding, name, settlement, settlement, stock)
}

// NewVehicle creates a vehicle parked at the settlement.
func NewVehicle(name, settlement string, stock map[string]float64) *Unit {
	return newUnit(KindVehicle, name, settlement, settlement, stock)
}

// NewRobot creates a robot unit.
func NewRobot(name, settlement string) *Unit {
	return newUnit(KindRobot, name, settlement, settlement, nil)
}

// NewEVASuit creates an EVA suit with its own life-support stock.
func NewEVASuit(name, settlement string, stock map[string]float64) *Unit {
	return newUnit(KindEVASuit, name, settlement, settlement, stock)
}

// EntityName returns the unit's nickname.
func (u *Unit) EntityName() string { return u.name }

// SettlementName returns the owning settlement.
func (u *Unit) SettlementName() string { return u.settlement }

// LocationName returns the unit's immediate location description.
func (u *Unit) LocationName() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.location
}

// SetLocation updates the unit's immediate location description.
func (u *Unit) SetLocation(loc string) {
	u.mu.Lock()
	u.location = loc
	u.mu.Unlock()
}

// Inventory exposes the unit's resource store.
func (u *Unit) Inventory() *Inventory { return u.inv }

// AmountStored implements the resource-holder capability.
func (u *Unit) AmountStored(resource string) float64 {
	return u.inv.AmountStored(resource)
}

// Retrieve implements the resource-holder capability with saturating
// semantics.
func (u *Unit) Retrieve(resource string, amount float64) float64 {
	return u.inv.Retrieve(resource, amount)
}

// AddOccupant registers a person as affected by this unit's condition.
// Adding the same person twice is a no-op.
func (u *Unit) AddOccupant(p *Person) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, cur := range u.people {
		if cur == p {
			return
		}
	}
	u.people = append(u.people, p)
}

// RemoveOccupant deregisters a person.
func (u *Unit) RemoveOccupant(p *Person) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for i, cur := range u.people {
		if cur == p {
			u.people = append(u.people[:i], u.people[i+1:]...)
			return
		}
	}
}

// Occupants returns a copy of the people currently attached to the unit.
func (u *Unit) Occupants() []*Person {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]*Person, len(u.people))
	copy(out, u.people)
	return out
}

// AffectedPeople implements the malfunctionable capability.
func (u *Unit) AffectedPeople() []malfunction.AffectedPerson {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]malfunction.AffectedPerson, len(u.people))
	for i, p := range u.people {
		out[i] = p
	}
	return out
}
