// Package resourcecat defines the catalog of resource kinds that flow
// through the factory: raw materials, intermediates, finished products, and
// software artifacts.
package resourcecat

import "fmt"

// Kind distinguishes the handling rules a resource is subject to.
type Kind int

const (
	// KindMaterial is a physical good with volume and weight that occupies
	// storage capacity.
	KindMaterial Kind = iota
	// KindSoftware is a non-physical artifact: it gates dispatch of tasks
	// that require it but is never consumed and never occupies storage
	// capacity.
	KindSoftware
	// KindEnergy is the energy pseudo-resource; it is tracked by the energy
	// system, not the storage ledger.
	KindEnergy
)

func (k Kind) String() string {
	switch k {
	case KindMaterial:
		return "material"
	case KindSoftware:
		return "software"
	case KindEnergy:
		return "energy"
	default:
		return "unknown"
	}
}

// Resource is a single catalog entry: an immutable description of a
// material, software artifact, or the energy pseudo-resource.
type Resource struct {
	symbol      string
	kind        Kind
	unitVolume  float64
	unitWeight  float64
	description string
}

// NewResource builds a catalog entry. symbol must be non-empty; unitVolume
// and unitWeight must be non-negative (software and energy resources
// conventionally declare zero for both).
func NewResource(symbol string, kind Kind, unitVolume, unitWeight float64, description string) (*Resource, error) {
	if symbol == "" {
		return nil, fmt.Errorf("resourcecat: symbol must not be empty")
	}
	if unitVolume < 0 || unitWeight < 0 {
		return nil, fmt.Errorf("resourcecat: resource %q has negative unit volume/weight", symbol)
	}
	return &Resource{
		symbol:      symbol,
		kind:        kind,
		unitVolume:  unitVolume,
		unitWeight:  unitWeight,
		description: description,
	}, nil
}

func (r *Resource) Symbol() string      { return r.symbol }
func (r *Resource) Kind() Kind          { return r.kind }
func (r *Resource) UnitVolume() float64 { return r.unitVolume }
func (r *Resource) UnitWeight() float64 { return r.unitWeight }
func (r *Resource) Description() string { return r.description }

func (r *Resource) String() string {
	return fmt.Sprintf("Resource(%s, kind=%s, vol=%.3f, wt=%.3f)", r.symbol, r.kind, r.unitVolume, r.unitWeight)
}

// Catalog is the registry of every declared resource, keyed by symbol.
// It is built once at configuration load time and treated as read-only for
// the lifetime of a simulation run.
type Catalog struct {
	resources map[string]*Resource
}

// NewCatalog builds an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{resources: make(map[string]*Resource)}
}

// Register adds a resource to the catalog. Returns an error if the symbol
// is already registered.
func (c *Catalog) Register(r *Resource) error {
	if _, exists := c.resources[r.symbol]; exists {
		return fmt.Errorf("resourcecat: duplicate resource symbol %q", r.symbol)
	}
	c.resources[r.symbol] = r
	return nil
}

// Lookup returns the resource for symbol, or false if it is not declared.
func (c *Catalog) Lookup(symbol string) (*Resource, bool) {
	r, ok := c.resources[symbol]
	return r, ok
}

// MustLookup is a convenience for call sites that have already validated
// the symbol exists (e.g. after config validation); it panics otherwise.
func (c *Catalog) MustLookup(symbol string) *Resource {
	r, ok := c.resources[symbol]
	if !ok {
		panic(fmt.Sprintf("resourcecat: symbol %q not registered", symbol))
	}
	return r
}

// Len returns the number of registered resources.
func (c *Catalog) Len() int { return len(c.resources) }

// Symbols returns every registered symbol, unordered.
func (c *Catalog) Symbols() []string {
	out := make([]string, 0, len(c.resources))
	for s := range c.resources {
		out = append(out, s)
	}
	return out
}
