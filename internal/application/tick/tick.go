// Package tick implements the Tick Loop orchestrator of spec.md §4.8: a
// fixed-dt, strictly-ordered 8-phase advance of the whole simulation,
// with concurrent dispatch of independent optional subsystems within the
// module-tick phase.
package tick

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"golang.org/x/sync/errgroup"

	log "github.com/sirupsen/logrus"

	"github.com/solarforge/replicator/internal/application/dispatch"
	"github.com/solarforge/replicator/internal/application/queue"
	"github.com/solarforge/replicator/internal/application/subsystems"
	"github.com/solarforge/replicator/internal/domain/energy"
	"github.com/solarforge/replicator/internal/domain/event"
	"github.com/solarforge/replicator/internal/domain/module"
	"github.com/solarforge/replicator/internal/domain/recipe"
	"github.com/solarforge/replicator/internal/domain/storage"
	"github.com/solarforge/replicator/internal/domain/task"
)

// Config holds the static tick-loop parameters.
type Config struct {
	DtSeconds       float64
	MaxSimHours     float64
	MetricsEveryHrs float64

	// RNGSeed derives the failure clock of every module instance grown
	// mid-simulation by the self-replication growth mechanic (§4.4).
	RNGSeed int64
	// TargetModuleTypes names the module type symbols (declared by the
	// configuration's goals) whose production at least once each
	// terminates the simulation per §4.8/§2. Empty disables this
	// termination path, leaving MaxSimHours/ctx-cancel as the only exits.
	TargetModuleTypes []string
}

// MetricsSnapshot is one entry in the periodic metrics series of spec.md §6.
type MetricsSnapshot struct {
	SimHour        float64
	BatteryFrac    float64
	ActiveTasks    int
	BlockedTasks   int
	CompletedTasks int
	StorageUsed    map[string]float64
}

// Orchestrator owns the full simulation state and advances it tick by tick.
type Orchestrator struct {
	cfg          Config
	recipes      *recipe.Registry
	modules      *module.Registry
	ledger       *storage.Ledger
	energyState  *energy.State
	queue        *queue.Queue
	bus          *event.Bus
	dispatcher   *dispatch.Engine
	subsystems   []subsystems.Subsystem
	demandFn     dispatch.EnergyDemandFunc
	completions  map[string]int
	activeDemand float64
	curSimHour   float64
	curTick      int64
	lastMetrics  float64
	Metrics      []MetricsSnapshot
	registeredTasks []*task.Task
	rng                  *rand.Rand
	producedModuleCounts map[string]int
	log                  *log.Entry
}

// New builds an Orchestrator wired to the given subsystem components.
func New(cfg Config, recipes *recipe.Registry, modules *module.Registry, ledger *storage.Ledger, energyState *energy.State, q *queue.Queue, bus *event.Bus, dispatcher *dispatch.Engine, demandFn dispatch.EnergyDemandFunc, subs []subsystems.Subsystem, logger *log.Entry) *Orchestrator {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Orchestrator{
		cfg:                  cfg,
		recipes:              recipes,
		modules:              modules,
		ledger:               ledger,
		energyState:          energyState,
		queue:                q,
		bus:                  bus,
		dispatcher:           dispatcher,
		subsystems:           subs,
		demandFn:             demandFn,
		completions:          make(map[string]int),
		producedModuleCounts: make(map[string]int),
		rng:                  rand.New(rand.NewSource(cfg.RNGSeed)),
		log:                  logger,
	}
}

// ErrSimulationTimeout is returned when maxWallTime (tracked by the caller,
// not this package) has elapsed; this package only returns it if the
// caller passes a context that has been cancelled for that reason, so the
// orchestrator can flush a partial log per spec.md §7.
type ErrSimulationTimeout struct {
	SimHour float64
}

func (e ErrSimulationTimeout) Error() string {
	return fmt.Sprintf("simulation timeout at sim-hour %.2f", e.SimHour)
}

// Run advances the simulation until every target module type has been
// produced at least once, MaxSimHours is reached, or ctx is cancelled,
// returning ErrSimulationTimeout in the latter case (not a fatal error —
// callers flush partial output and exit 0 per spec.md §6).
func (o *Orchestrator) Run(ctx context.Context) error {
	dtHours := o.cfg.DtSeconds / 3600.0

	for o.curSimHour < o.cfg.MaxSimHours {
		select {
		case <-ctx.Done():
			return ErrSimulationTimeout{SimHour: o.curSimHour}
		default:
		}
		if err := o.Step(ctx, dtHours); err != nil {
			return err
		}
		if o.allTargetModulesProduced() {
			return nil
		}
	}
	return nil
}

// allTargetModulesProduced reports whether every module type named in
// cfg.TargetModuleTypes has had at least one instance produced by a
// completed task, per spec.md §4.8/§2's self-replication termination
// condition. False (never terminates early) when no target types are
// configured, so configs without goal-derived targets fall back to
// MaxSimHours/ctx-cancel exits only.
func (o *Orchestrator) allTargetModulesProduced() bool {
	if len(o.cfg.TargetModuleTypes) == 0 {
		return false
	}
	for _, sym := range o.cfg.TargetModuleTypes {
		if o.producedModuleCounts[sym] < 1 {
			return false
		}
	}
	return true
}

// Step advances the simulation by exactly one tick, running the 8 phases
// of spec.md §4.8 in order.
func (o *Orchestrator) Step(ctx context.Context, dtHours float64) error {
	// Phase 1: energy generation/consumption.
	batteryFrac := o.energyState.Tick(o.activeDemand, o.curSimHour, dtHours)

	// Phase 2: advance running tasks.
	finished := make([]*task.Task, 0)
	for _, t := range o.runningTasks() {
		if t.Advance(o.cfg.DtSeconds) {
			finished = append(finished, t)
		}
	}

	// Phase 3: complete finished tasks.
	for _, t := range finished {
		o.completeTask(t)
	}

	// Phase 4: blocked-task rescan (O(|blocked|), not O(n^3)).
	for _, t := range o.queue.RescanBlocked() {
		if o.queue.DependenciesSatisfied(t.DependsOn()) {
			if err := t.MarkReady(o.curTick); err == nil {
				o.queue.PromoteFromBlocked(t)
			}
		}
	}

	// Phase 5: dispatch up to K starts this tick.
	candidates := o.drainReady()
	decisions := o.dispatcher.TryDispatch(candidates, o.curSimHour, dtHours, o.completionsOf, o.activeDemand, o.demandFn)
	o.activeDemand = 0
	for _, d := range decisions {
		if d.Started {
			o.activeDemand += o.demandFn(d.Recipe)
			o.publish(event.KindTaskDispatched, map[string]any{"task_id": d.Task.ID(), "module": d.Module.ID()})
		} else {
			_ = d.Task.MarkBlocked(d.Cause)
			o.queue.MarkBlocked(d.Task, d.Cause)
			o.publish(event.KindTaskBlocked, map[string]any{"task_id": d.Task.ID(), "cause": d.Cause.String()})
		}
	}

	// Phase 6: module state tick, and any optional subsystems, concurrently
	// per independent layer (the registered subsystems have no
	// cross-dependencies within a tick by construction, so they form a
	// single layer dispatched via errgroup).
	o.tickModules(dtHours)
	if err := o.tickSubsystemsConcurrently(ctx, dtHours); err != nil {
		return err
	}

	// Phase 7: periodic metrics, every MetricsEveryHrs sim-hours.
	if o.curSimHour-o.lastMetrics >= o.cfg.MetricsEveryHrs {
		o.Metrics = append(o.Metrics, MetricsSnapshot{
			SimHour:        o.curSimHour,
			BatteryFrac:    batteryFrac,
			ActiveTasks:    len(o.runningTasks()),
			BlockedTasks:   o.queue.BlockedLen(),
			CompletedTasks: o.queue.CompletedLen(),
			StorageUsed:    o.ledger.Snapshot(),
		})
		o.lastMetrics = o.curSimHour
		o.publish(event.KindMetricsTick, map[string]any{"sim_hour": o.curSimHour})
	}

	// Phase 8: event bus drain is implicit — subscribers pull from their own
	// channels; the orchestrator only needs to surface a fatal overflow.
	// publish() logs each Publish error, so the bus's cumulative counters
	// are checked here against the same 10% drop tolerance the bus uses.
	if published, dropped := o.bus.Stats(); published > 0 && float64(dropped)/float64(published) > 0.10 {
		return event.ErrEventQueueOverflow{Dropped: dropped, Published: published}
	}

	o.curTick++
	o.curSimHour += dtHours
	return nil
}

func (o *Orchestrator) runningTasks() []*task.Task {
	out := make([]*task.Task, 0)
	for _, t := range o.allTasks() {
		if t.Status() == task.StatusRunning {
			out = append(out, t)
		}
	}
	return out
}

func (o *Orchestrator) allTasks() []*task.Task {
	// The queue only directly indexes ready/blocked/completed-id state;
	// Enqueue/EnqueueBlocked register every task into q.all, so Get-based
	// iteration is done by the caller holding the ids. The orchestrator
	// keeps its own authoritative task list via RegisterTask.
	return o.registeredTasks
}

// RegisterTask adds t to the orchestrator's authoritative task list. Call
// this once per task at creation time, in addition to enqueuing it into
// the queue.
func (o *Orchestrator) RegisterTask(t *task.Task) {
	o.registeredTasks = append(o.registeredTasks, t)
}

// Tasks returns every task registered with this orchestrator, for output
// log assembly.
func (o *Orchestrator) Tasks() []*task.Task {
	return append([]*task.Task(nil), o.registeredTasks...)
}

func (o *Orchestrator) completeTask(t *task.Task) {
	rec, ok := o.recipes.Get(t.RecipeID())
	if !ok {
		return
	}
	inst, ok := o.modules.Instance(t.ModuleInstance())
	if !ok {
		return
	}
	inst.ReleaseSlot()

	quality := inst.EffectiveThroughputFactor()
	outputs := make(map[string]float64, len(rec.Outputs()))
	for _, out := range rec.Outputs() {
		qty := math.Floor(out.Quantity * quality)
		outputs[out.ResourceSymbol] = qty
		if err := o.ledger.Deposit(out.ResourceSymbol, qty); err != nil {
			_ = t.MarkBlocked(task.BlockStorageFull)
			o.queue.MarkBlocked(t, task.BlockStorageFull)
			o.publish(event.KindStorageFull, map[string]any{"task_id": t.ID(), "resource": out.ResourceSymbol})
			return
		}
	}
	_ = t.Complete(outputs)
	o.queue.Complete(t.ID())
	o.completions[rec.ID()]++
	o.growModulesProduced(outputs)
	o.publish(event.KindTaskCompleted, map[string]any{"task_id": t.ID()})
}

// growModulesProduced implements spec.md §4.4's self-replication growth
// mechanic: a completed task whose output is a "<TYPE>_MODULE" resource
// grows the module registry's instance count for TYPE by the produced
// quantity, and counts toward the §4.8 termination condition.
func (o *Orchestrator) growModulesProduced(outputs map[string]float64) {
	for sym, qty := range outputs {
		typeSym, ok := module.TypeSymbolForResource(sym)
		if !ok {
			continue
		}
		n := int(qty)
		if n <= 0 {
			continue
		}
		if _, err := o.modules.Grow(typeSym, n, o.rng.Int63, o.log); err != nil {
			o.log.WithError(err).WithField("module_type", typeSym).Error("failed to grow module registry on production")
			continue
		}
		o.producedModuleCounts[typeSym] += n
		o.publish(event.KindModuleProduced, map[string]any{"module_type": typeSym, "count": n})
	}
}

func (o *Orchestrator) drainReady() []*task.Task {
	out := make([]*task.Task, 0)
	for {
		t := o.queue.PopReady()
		if t == nil {
			break
		}
		out = append(out, t)
	}
	return out
}

func (o *Orchestrator) completionsOf(recipeID string) int {
	return o.completions[recipeID]
}

func (o *Orchestrator) tickModules(dtHours float64) {
	for _, inst := range o.modules.AllInstances() {
		wasFailed := inst.State() == module.StateFailed
		failedNow := inst.Tick(dtHours)
		if failedNow {
			o.failTasksOn(inst)
			o.publish(event.KindModuleFailed, map[string]any{"module_id": inst.ID()})
		}
		if wasFailed && inst.State() == module.StateRunning {
			o.publish(event.KindModuleRepaired, map[string]any{"module_id": inst.ID()})
		}
	}
}

func (o *Orchestrator) failTasksOn(inst *module.Instance) {
	for _, t := range o.allTasks() {
		if t.Status() == task.StatusRunning && t.ModuleInstance() == inst.ID() {
			rec, ok := o.recipes.Get(t.RecipeID())
			if ok {
				for _, in := range rec.Inputs() {
					_ = o.ledger.Refund(in.ResourceSymbol, in.Quantity)
				}
			}
			err := t.Fail()
			if err == nil {
				o.queue.MarkBlocked(t, task.BlockModuleUnavailable)
				_ = t.MarkBlocked(task.BlockModuleUnavailable)
			}
			o.publish(event.KindTaskFailed, map[string]any{"task_id": t.ID()})
		}
	}
}

func (o *Orchestrator) tickSubsystemsConcurrently(ctx context.Context, dtHours float64) error {
	if len(o.subsystems) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range o.subsystems {
		s := s
		g.Go(func() error {
			return s.Tick(gctx, dtHours)
		})
	}
	return g.Wait()
}

func (o *Orchestrator) publish(kind event.Kind, payload map[string]any) {
	if err := o.bus.Publish(event.New(kind, o.curTick, payload)); err != nil {
		o.log.WithError(err).Error("event bus overflow")
	}
}
