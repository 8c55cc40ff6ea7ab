package entity

import "sync"

// Amount resources tracked by settlement inventories. The name is the
// identity; templates reference these strings directly.
const (
	ResourceOxygen   = "oxygen"
	ResourceWater    = "water"
	ResourceFood     = "food"
	ResourceMethane  = "methane"
	ResourceHydrogen = "hydrogen"
)

// Inventory is a simple amount-resource store with saturating retrieval.
// A single pulse mutates it from one goroutine, but report handlers read
// concurrently, so access is guarded.
type Inventory struct {
	mu     sync.RWMutex
	stored map[string]float64
}

// NewInventory creates an inventory preloaded with the given amounts.
func NewInventory(initial map[string]float64) *Inventory {
	stored := make(map[string]float64, len(initial))
	for name, amount := range initial {
		if amount > 0 {
			stored[name] = amount
		}
	}
	return &Inventory{stored: stored}
}

// AmountStored returns the quantity currently held for a resource.
func (inv *Inventory) AmountStored(resource string) float64 {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.stored[resource]
}

// Retrieve removes up to amount of a resource and returns how much was
// actually removed. The store never goes negative: requests beyond the
// current stock are capped at the stock.
func (inv *Inventory) Retrieve(resource string, amount float64) float64 {
	if amount <= 0 {
		return 0
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()

	have := inv.stored[resource]
	if amount >= have {
		delete(inv.stored, resource)
		return have
	}
	inv.stored[resource] = have - amount
	return amount
}

// Store adds amount of a resource.
func (inv *Inventory) Store(resource string, amount float64) {
	if amount <= 0 {
		return
	}
	inv.mu.Lock()
	inv.stored[resource] += amount
	inv.mu.Unlock()
}

// Snapshot returns a copy of the current stock levels.
func (inv *Inventory) Snapshot() map[string]float64 {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	out := make(map[string]float64, len(inv.stored))
	for name, amount := range inv.stored {
		out[name] = amount
	}
	return out
}
