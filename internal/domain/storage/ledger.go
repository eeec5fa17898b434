// Package storage implements the Storage System of spec.md §4.5: a
// quantity ledger over the resource catalog, bounded by total volume and
// weight capacity. Inputs are withdrawn at task start; outputs are
// deposited (and may block with ErrStorageFull) at task completion.
package storage

import (
	"sync"

	"github.com/solarforge/replicator/internal/domain/resourcecat"
)

// Ledger is the factory's shared resource store: a map of resource symbol
// to quantity on hand, bounded by aggregate volume and weight caps.
type Ledger struct {
	mu          sync.Mutex
	catalog     *resourcecat.Catalog
	quantities  map[string]float64
	volumeCap   float64
	weightCap   float64
	usedVolume  float64
	usedWeight  float64
}

// NewLedger builds an empty ledger against catalog, bounded by the given
// aggregate volume and weight capacities.
func NewLedger(catalog *resourcecat.Catalog, volumeCap, weightCap float64) *Ledger {
	return &Ledger{
		catalog:    catalog,
		quantities: make(map[string]float64),
		volumeCap:  volumeCap,
		weightCap:  weightCap,
	}
}

// Quantity returns the current on-hand quantity of a resource.
func (l *Ledger) Quantity(resourceSymbol string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.quantities[resourceSymbol]
}

// Has reports whether at least `quantity` of resourceSymbol is on hand.
// Software resources (resourcecat.KindSoftware) only need to be present
// (quantity >= 1) per spec.md §9's software-consumption decision; they are
// never decremented by Withdraw.
func (l *Ledger) Has(resourceSymbol string, quantity float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.quantities[resourceSymbol] >= quantity
}

// Withdraw removes quantity units of resourceSymbol from the ledger.
// Software resources are a no-op check-only withdrawal: presence is
// required but nothing is decremented.
func (l *Ledger) Withdraw(resourceSymbol string, quantity float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, ok := l.catalog.Lookup(resourceSymbol)
	if !ok {
		return &ErrUnknownResource{ResourceSymbol: resourceSymbol}
	}
	if res.Kind() == resourcecat.KindSoftware {
		if l.quantities[resourceSymbol] < 1 {
			return &ErrInsufficientQuantity{ResourceSymbol: resourceSymbol, Requested: 1, Available: l.quantities[resourceSymbol]}
		}
		return nil
	}

	have := l.quantities[resourceSymbol]
	if have < quantity {
		return &ErrInsufficientQuantity{ResourceSymbol: resourceSymbol, Requested: quantity, Available: have}
	}
	l.quantities[resourceSymbol] = have - quantity
	l.usedVolume -= res.UnitVolume() * quantity
	l.usedWeight -= res.UnitWeight() * quantity
	if l.usedVolume < 0 {
		l.usedVolume = 0
	}
	if l.usedWeight < 0 {
		l.usedWeight = 0
	}
	return nil
}

// Refund is Withdraw's inverse, used when a task fails mid-execution and
// its consumed inputs must be returned to the ledger (spec.md §7,
// ModuleFailed handling).
func (l *Ledger) Refund(resourceSymbol string, quantity float64) error {
	return l.Deposit(resourceSymbol, quantity)
}

// Deposit adds quantity units of resourceSymbol to the ledger. Returns
// ErrStorageFull if the deposit would exceed the aggregate volume or
// weight capacity; the deposit is rejected entirely in that case (the
// caller's task remains blocked rather than partially depositing).
func (l *Ledger) Deposit(resourceSymbol string, quantity float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, ok := l.catalog.Lookup(resourceSymbol)
	if !ok {
		return &ErrUnknownResource{ResourceSymbol: resourceSymbol}
	}
	if res.Kind() == resourcecat.KindSoftware {
		l.quantities[resourceSymbol] += quantity
		return nil
	}

	addVolume := res.UnitVolume() * quantity
	addWeight := res.UnitWeight() * quantity
	if l.volumeCap > 0 && l.usedVolume+addVolume > l.volumeCap {
		return &ErrStorageFull{ResourceSymbol: resourceSymbol, Quantity: quantity, Reason: "volume"}
	}
	if l.weightCap > 0 && l.usedWeight+addWeight > l.weightCap {
		return &ErrStorageFull{ResourceSymbol: resourceSymbol, Quantity: quantity, Reason: "weight"}
	}
	l.quantities[resourceSymbol] += quantity
	l.usedVolume += addVolume
	l.usedWeight += addWeight
	return nil
}

// UsedVolume and UsedWeight expose current aggregate usage for metrics.
func (l *Ledger) UsedVolume() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.usedVolume
}

func (l *Ledger) UsedWeight() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.usedWeight
}

// Snapshot returns a copy of every non-zero resource quantity, for the
// output log's periodic metrics series.
func (l *Ledger) Snapshot() map[string]float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]float64, len(l.quantities))
	for k, v := range l.quantities {
		if v != 0 {
			out[k] = v
		}
	}
	return out
}
