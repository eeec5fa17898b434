// Package resolver implements the Requirements Resolver: a recursive
// recipe-graph expansion from a demanded output quantity down to the raw
// material and task requirements needed to produce it, with cycle
// detection and a bounded LRU memoization cache. Grounded on the
// BOM-explosion-with-cache shape of the MRP engine in the reference pack
// and generalized to this engine's single-producer recipe graph.
package resolver

import (
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru"

	"github.com/solarforge/replicator/internal/domain/recipe"
	"github.com/solarforge/replicator/internal/domain/task"
)

// cacheKey identifies a memoized expansion: a resource symbol plus a
// quantity rounded to a fixed precision, so near-identical repeated
// requests within a tick share a cache entry.
type cacheKey struct {
	resource string
	qty      int64 // quantity rounded to 1e-3 units
}

func roundQty(q float64) int64 {
	return int64(math.Round(q * 1000))
}

// Requirement is one leaf or intermediate production need discovered during
// expansion: produce quantity units of resource via recipeID.
type Requirement struct {
	ResourceSymbol string
	Quantity       float64
	RecipeID       string
}

// Plan is the result of resolving a demand: the ordered list of production
// requirements (dependencies before dependents) needed to satisfy it.
type Plan struct {
	Requirements []Requirement
}

// Resolver expands recipe graphs on demand, memoizing sub-expansions in a
// bounded LRU cache keyed by (resource, quantity).
type Resolver struct {
	recipes *recipe.Registry
	cache   *lru.Cache
}

// New builds a Resolver backed by recipes, with a memoization cache holding
// at most cacheSize entries.
func New(recipes *recipe.Registry, cacheSize int) (*Resolver, error) {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	c, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("resolver: building LRU cache: %w", err)
	}
	return &Resolver{recipes: recipes, cache: c}, nil
}

// Resolve expands the recipe graph needed to produce quantity units of
// resourceSymbol, returning a dependency-ordered Plan. It detects cycles in
// the recipe graph (a resource whose production chain depends on itself)
// and returns task.ErrCircularDependency in that case.
func (r *Resolver) Resolve(resourceSymbol string, quantity float64) (*Plan, error) {
	visited := make(map[string]bool)
	path := make([]string, 0, 8)
	reqs, err := r.expand(resourceSymbol, quantity, visited, path)
	if err != nil {
		return nil, err
	}
	return &Plan{Requirements: reqs}, nil
}

func (r *Resolver) expand(resourceSymbol string, quantity float64, visited map[string]bool, path []string) ([]Requirement, error) {
	if visited[resourceSymbol] {
		return nil, task.ErrCircularDependency{ResourceSymbol: resourceSymbol, Path: append(append([]string(nil), path...), resourceSymbol)}
	}

	key := cacheKey{resource: resourceSymbol, qty: roundQty(quantity)}
	if cached, ok := r.cache.Get(key); ok {
		return append([]Requirement(nil), cached.([]Requirement)...), nil
	}

	producers := r.recipes.ProducersOf(resourceSymbol)
	if len(producers) == 0 {
		// Raw material with no producing recipe: it is a leaf requirement,
		// satisfied directly from storage/extraction, not production.
		out := []Requirement{{ResourceSymbol: resourceSymbol, Quantity: quantity}}
		r.cache.Add(key, out)
		return out, nil
	}

	rec := producers[0]

	visited[resourceSymbol] = true
	path = append(path, resourceSymbol)

	var out []Requirement
	for _, in := range rec.Inputs() {
		subQty := in.Quantity * (quantity / outputQuantityOf(rec, resourceSymbol))
		subReqs, err := r.expand(in.ResourceSymbol, subQty, visited, path)
		if err != nil {
			return nil, err
		}
		out = append(out, subReqs...)
	}
	out = append(out, Requirement{ResourceSymbol: resourceSymbol, Quantity: quantity, RecipeID: rec.ID()})

	delete(visited, resourceSymbol)

	r.cache.Add(key, out)
	return out, nil
}

func outputQuantityOf(rec *recipe.Recipe, resourceSymbol string) float64 {
	for _, out := range rec.Outputs() {
		if out.ResourceSymbol == resourceSymbol {
			return out.Quantity
		}
	}
	return 1
}

// CacheLen returns the number of entries currently held in the memoization
// cache (test/diagnostic use).
func (r *Resolver) CacheLen() int { return r.cache.Len() }
