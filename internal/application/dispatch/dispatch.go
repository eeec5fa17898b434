// Package dispatch implements the Dispatch Engine of spec.md §4.7: at most
// K task starts per tick, each gated by six ordered precondition checks.
package dispatch

import (
	"github.com/solarforge/replicator/internal/domain/energy"
	"github.com/solarforge/replicator/internal/domain/module"
	"github.com/solarforge/replicator/internal/domain/recipe"
	"github.com/solarforge/replicator/internal/domain/storage"
	"github.com/solarforge/replicator/internal/domain/task"
)

// DefaultMaxStartsPerTick is K in spec.md §4.7.
const DefaultMaxStartsPerTick = 5

// Engine dispatches ready tasks onto module instances, subject to the
// ordered precondition checks of spec.md §4.7.
type Engine struct {
	recipes          *recipe.Registry
	modules          *module.Registry
	ledger           *storage.Ledger
	energyState      *energy.State
	maxStartsPerTick int
	contaminationFn  func() float64
}

// New builds a dispatch engine.
func New(recipes *recipe.Registry, modules *module.Registry, ledger *storage.Ledger, energyState *energy.State, maxStartsPerTick int) *Engine {
	if maxStartsPerTick <= 0 {
		maxStartsPerTick = DefaultMaxStartsPerTick
	}
	return &Engine{recipes: recipes, modules: modules, ledger: ledger, energyState: energyState, maxStartsPerTick: maxStartsPerTick}
}

// SetContaminationFn wires the contamination subsystem's current score
// into precondition check 5, per spec.md §4.7 step 5. Left nil (the
// default), the contamination subsystem is treated as disabled and no
// recipe is cleanroom-gated, matching a spec document that never enables
// it.
func (e *Engine) SetContaminationFn(fn func() float64) {
	e.contaminationFn = fn
}

// Decision is the per-task outcome of attempting dispatch.
type Decision struct {
	Task      *task.Task
	Started   bool
	Cause     task.BlockCause
	Module    *module.Instance
	Recipe    *recipe.Recipe
	Duration  float64
}

// EnergyDemandFunc is a configurable hook the tick orchestrator sets so the
// dispatch engine can ask "would starting this task push total active
// demand over what the energy system can fund."
type EnergyDemandFunc func(rec *recipe.Recipe) float64

// TryDispatch attempts to start candidates, in the order given (the caller
// is responsible for ordering by priority — typically queue.PopReady calls
// in sequence), starting at most e.maxStartsPerTick of them. Candidates
// past that budget are not evaluated; each gets a not-started Decision with
// task.BlockNone so the caller can hold it for a later tick.
// simHour/dtHours/completions/activeDemandKW are supplied by the
// tick orchestrator for energy funding and learning-curve checks.
func (e *Engine) TryDispatch(candidates []*task.Task, simHour, dtHours float64, completionsOf func(recipeID string) int, activeDemandKW float64, demandFn EnergyDemandFunc) []Decision {
	decisions := make([]Decision, 0, len(candidates))
	started := 0

	for _, t := range candidates {
		if started >= e.maxStartsPerTick {
			decisions = append(decisions, Decision{Task: t, Started: false, Cause: task.BlockNone})
			continue
		}
		d := e.evaluate(t, simHour, dtHours, completionsOf, activeDemandKW, demandFn)
		decisions = append(decisions, d)
		if d.Started {
			started++
			activeDemandKW += demandFn(d.Recipe)
		}
	}
	return decisions
}

func (e *Engine) evaluate(t *task.Task, simHour, dtHours float64, completionsOf func(recipeID string) int, activeDemandKW float64, demandFn EnergyDemandFunc) Decision {
	rec, ok := e.recipes.Get(t.RecipeID())
	if !ok {
		return Decision{Task: t, Started: false, Cause: task.BlockModuleUnavailable}
	}

	// Check 1: module type has a running instance.
	instances := e.modules.InstancesOfType(rec.ModuleType())
	var candidate *module.Instance
	for _, inst := range instances {
		if inst.State() == module.StateRunning && inst.FreeSlots() > 0 {
			candidate = inst
			break
		}
	}
	if candidate == nil {
		return Decision{Task: t, Started: false, Cause: task.BlockModuleUnavailable, Recipe: rec}
	}

	// Check 2: free slot (folded into the scan above, re-verify explicitly).
	if candidate.FreeSlots() <= 0 {
		return Decision{Task: t, Started: false, Cause: task.BlockModuleUnavailable, Recipe: rec}
	}

	// Check 3: inputs present in storage.
	for _, in := range rec.Inputs() {
		if !e.ledger.Has(in.ResourceSymbol, in.Quantity) {
			return Decision{Task: t, Started: false, Cause: task.BlockInsufficientResources, Recipe: rec}
		}
	}

	// Check 4: energy fundable for the task's duration.
	demandKW := demandFn(rec)
	if !e.energyState.CanFund(activeDemandKW+demandKW, simHour, dtHours) {
		return Decision{Task: t, Started: false, Cause: task.BlockInsufficientEnergy, Recipe: rec}
	}

	// Check 5: cleanroom/contamination — if this recipe declares a required
	// cleanroom_class and the contamination subsystem is wired, the current
	// contamination score must not exceed that tolerance.
	if cls, ok := rec.CleanroomClass(); ok && e.contaminationFn != nil {
		if e.contaminationFn() > cls {
			return Decision{Task: t, Started: false, Cause: task.BlockModuleUnavailable, Recipe: rec}
		}
	}

	// Check 6: required software present (checked, never consumed).
	for _, sw := range candidate.Type().RequiredSoftware {
		if !e.ledger.Has(sw, 1) {
			return Decision{Task: t, Started: false, Cause: task.BlockInsufficientResources, Recipe: rec}
		}
	}

	// All checks passed: withdraw inputs, acquire the slot, start the task.
	for _, in := range rec.Inputs() {
		_ = e.ledger.Withdraw(in.ResourceSymbol, in.Quantity)
	}
	_ = candidate.AcquireSlot()

	duration := rec.EffectiveDuration(completionsOf(rec.ID())) * candidateSlowdown(candidate)
	_ = t.Start(candidate.ID(), 0, duration)

	return Decision{Task: t, Started: true, Module: candidate, Recipe: rec, Duration: duration}
}

func candidateSlowdown(inst *module.Instance) float64 {
	factor := inst.EffectiveThroughputFactor()
	if factor <= 0 {
		return 1e9 // effectively never finishes; caller should not have dispatched to a fully worn module
	}
	return 1 / factor
}
