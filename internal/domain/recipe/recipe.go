// Package recipe holds the production recipe graph: each recipe names the
// module type that executes it, the inputs it consumes, the outputs it
// yields, a base duration, and an optional learning-curve factor.
package recipe

import "fmt"

// Input is one consumed quantity of a resource.
type Input struct {
	ResourceSymbol string
	Quantity       float64
}

// Output is one produced quantity of a resource. It carries no quality
// field: the tick loop scales the deposited quantity by the executing
// module's throughput factor when the task completes.
type Output struct {
	ResourceSymbol string
	Quantity       float64
}

// Recipe describes how to transform Inputs into Outputs given one free slot
// on a module of type ModuleType.
type Recipe struct {
	id                string
	moduleType        string
	inputs            []Input
	outputs           []Output
	baseDurationS     float64
	learningFactor    float64 // 1.0 = no learning curve; <1.0 speeds up with repeats
	cleanroomClass    float64
	hasCleanroomClass bool
}

// New builds a Recipe. id and moduleType must be non-empty, baseDurationS
// must be positive, and learningFactor must be in (0, 1] — a factor of
// exactly 1.0 disables the learning curve.
func New(id, moduleType string, inputs []Input, outputs []Output, baseDurationS, learningFactor float64) (*Recipe, error) {
	if id == "" {
		return nil, fmt.Errorf("recipe: id must not be empty")
	}
	if moduleType == "" {
		return nil, fmt.Errorf("recipe %s: moduleType must not be empty", id)
	}
	if baseDurationS <= 0 {
		return nil, fmt.Errorf("recipe %s: baseDurationS must be positive, got %f", id, baseDurationS)
	}
	if learningFactor <= 0 || learningFactor > 1 {
		return nil, fmt.Errorf("recipe %s: learningFactor must be in (0, 1], got %f", id, learningFactor)
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("recipe %s: must declare at least one output", id)
	}
	return &Recipe{
		id:             id,
		moduleType:     moduleType,
		inputs:         append([]Input(nil), inputs...),
		outputs:        append([]Output(nil), outputs...),
		baseDurationS:  baseDurationS,
		learningFactor: learningFactor,
	}, nil
}

func (r *Recipe) ID() string             { return r.id }
func (r *Recipe) ModuleType() string     { return r.moduleType }
func (r *Recipe) Inputs() []Input        { return append([]Input(nil), r.inputs...) }
func (r *Recipe) Outputs() []Output      { return append([]Output(nil), r.outputs...) }
func (r *Recipe) BaseDurationS() float64 { return r.baseDurationS }

// CleanroomClass returns the recipe's declared contamination tolerance
// (spec.md §4.1's optional cleanroom_class) and whether it declared one at
// all. A recipe with no declared class is not cleanroom-gated.
func (r *Recipe) CleanroomClass() (float64, bool) { return r.cleanroomClass, r.hasCleanroomClass }

// SetCleanroomClass records the recipe's required contamination
// tolerance, set by the config loader when a recipe declares
// cleanroom_class.
func (r *Recipe) SetCleanroomClass(class float64) {
	r.cleanroomClass = class
	r.hasCleanroomClass = true
}

// EffectiveDuration returns the duration of this recipe's nth execution
// (completions is the count of PRIOR completions of this same recipe,
// zero-indexed), per the learning-curve convention: factor < 1 speeds the
// task up geometrically with repeated completions.
func (r *Recipe) EffectiveDuration(completions int) float64 {
	if completions <= 0 || r.learningFactor == 1.0 {
		return r.baseDurationS
	}
	mult := 1.0
	for i := 0; i < completions; i++ {
		mult *= r.learningFactor
	}
	return r.baseDurationS * mult
}

// Registry is the full set of declared recipes, plus a by-output index
// used by the Requirements Resolver to find a producing recipe for a
// demanded resource.
type Registry struct {
	byID         map[string]*Recipe
	byOutputGood map[string][]*Recipe
}

// NewRegistry builds an empty recipe registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:         make(map[string]*Recipe),
		byOutputGood: make(map[string][]*Recipe),
	}
}

// Add registers a recipe. Returns an error on a duplicate id.
func (reg *Registry) Add(r *Recipe) error {
	if _, exists := reg.byID[r.id]; exists {
		return fmt.Errorf("recipe registry: duplicate recipe id %q", r.id)
	}
	reg.byID[r.id] = r
	for _, out := range r.outputs {
		reg.byOutputGood[out.ResourceSymbol] = append(reg.byOutputGood[out.ResourceSymbol], r)
	}
	return nil
}

// Get returns the recipe for id, or false if not found.
func (reg *Registry) Get(id string) (*Recipe, bool) {
	r, ok := reg.byID[id]
	return r, ok
}

// ProducersOf returns every recipe that produces the given resource symbol
// as an output, in registration order.
func (reg *Registry) ProducersOf(resourceSymbol string) []*Recipe {
	return append([]*Recipe(nil), reg.byOutputGood[resourceSymbol]...)
}

// Len returns the number of registered recipes.
func (reg *Registry) Len() int { return len(reg.byID) }
