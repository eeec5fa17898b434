// Package buildsim assembles a fully wired simulation (catalog, recipe
// registry, module registry, ledger, energy state, queue, event bus,
// dispatch engine, tick orchestrator) from a resolved simconfig.Document.
package buildsim

import (
	"fmt"
	"math/rand"

	log "github.com/sirupsen/logrus"

	"github.com/solarforge/replicator/internal/application/dispatch"
	"github.com/solarforge/replicator/internal/application/queue"
	"github.com/solarforge/replicator/internal/application/resolver"
	"github.com/solarforge/replicator/internal/application/subsystems"
	"github.com/solarforge/replicator/internal/application/tick"
	"github.com/solarforge/replicator/internal/domain/energy"
	"github.com/solarforge/replicator/internal/domain/event"
	"github.com/solarforge/replicator/internal/domain/module"
	"github.com/solarforge/replicator/internal/domain/recipe"
	"github.com/solarforge/replicator/internal/domain/resourcecat"
	"github.com/solarforge/replicator/internal/domain/storage"
	"github.com/solarforge/replicator/internal/domain/task"
	"github.com/solarforge/replicator/internal/infrastructure/simconfig"
)

// Built bundles every top-level component of a wired simulation, so the
// CLI layer can both run it and inspect it for the output log.
type Built struct {
	Catalog      *resourcecat.Catalog
	Recipes      *recipe.Registry
	Modules      *module.Registry
	Ledger       *storage.Ledger
	EnergyState  *energy.State
	Queue        *queue.Queue
	Bus          *event.Bus
	Subsystems   []subsystems.Subsystem
	Resolver     *resolver.Resolver
	Orchestrator *tick.Orchestrator
}

// moduleKindFromDoc maps a document-level resource kind string to the
// resourcecat.Kind enum, defaulting unknown values to material.
func moduleKindFromDoc(k string) resourcecat.Kind {
	switch k {
	case "software":
		return resourcecat.KindSoftware
	case "energy":
		return resourcecat.KindEnergy
	default:
		return resourcecat.KindMaterial
	}
}

// From builds a Built simulation from doc, seeded by seedOverride if
// non-zero (otherwise doc.Seed), with structured logging through logger.
// The optional subsystems declared under doc.Modular are constructed only
// when modular is true, matching the run command's --modular flag.
func From(doc *simconfig.Document, seedOverride int64, logger *log.Logger, modular bool) (*Built, error) {
	seed := doc.Seed
	if seedOverride != 0 {
		seed = seedOverride
	}
	masterRNG := rand.New(rand.NewSource(seed))
	entry := log.NewEntry(logger)

	catalog := resourcecat.NewCatalog()
	for _, rd := range doc.Resources {
		res, err := resourcecat.NewResource(rd.Symbol, moduleKindFromDoc(rd.Kind), rd.UnitVolume, rd.UnitWeight, rd.Description)
		if err != nil {
			return nil, err
		}
		if err := catalog.Register(res); err != nil {
			return nil, err
		}
	}

	recipes := recipe.NewRegistry()
	for _, rd := range doc.Recipes {
		inputs := make([]recipe.Input, 0, len(rd.Inputs))
		for _, in := range rd.Inputs {
			inputs = append(inputs, recipe.Input{ResourceSymbol: in.Resource, Quantity: in.Quantity})
		}
		outputs := make([]recipe.Output, 0, len(rd.Outputs))
		for _, out := range rd.Outputs {
			outputs = append(outputs, recipe.Output{ResourceSymbol: out.Resource, Quantity: out.Quantity})
		}
		learning := rd.LearningFactor
		if learning == 0 {
			learning = 1.0
		}
		r, err := recipe.New(rd.ID, rd.ModuleType, inputs, outputs, rd.BaseDurationS, learning)
		if err != nil {
			return nil, err
		}
		if rd.CleanroomClass != nil {
			r.SetCleanroomClass(*rd.CleanroomClass)
		}
		if err := recipes.Add(r); err != nil {
			return nil, err
		}
	}

	modules := module.NewRegistry()
	for _, md := range doc.ModuleTypes {
		typ := &module.Type{
			Symbol:              md.Symbol,
			Slots:               md.Slots,
			MTBFHours:           md.MTBFHours,
			MaintenanceEveryHrs: md.MaintenanceEveryHours,
			MaintenanceDurHrs:   md.MaintenanceDurHours,
			WearPerTaskHour:     md.WearPerTaskHour,
			RequiredSoftware:    md.RequiredSoftware,
			Cleanroom:           md.Cleanroom,
		}
		if err := modules.RegisterType(typ); err != nil {
			return nil, err
		}
		for i := 0; i < md.InitialInstances; i++ {
			instSeed := masterRNG.Int63()
			inst := module.NewInstance(fmt.Sprintf("%s-%d", md.Symbol, i), typ, instSeed, entry)
			if err := modules.AddInstance(inst); err != nil {
				return nil, err
			}
		}
	}

	ledger := storage.NewLedger(catalog, doc.Storage.VolumeCap, doc.Storage.WeightCap)
	for _, stock := range doc.InitialStock {
		if err := ledger.Deposit(stock.Resource, stock.Quantity); err != nil {
			return nil, err
		}
	}

	energyState := energy.New(energy.Config{
		PeakGenerationKW:    doc.Energy.PeakGenerationKW,
		DayLengthHours:      doc.Energy.DayLengthHours,
		BatteryCapacityKWh:  doc.Energy.BatteryCapacityKWh,
		ChargeEfficiency:    doc.Energy.ChargeEfficiency,
		DischargeEfficiency: doc.Energy.DischargeEfficiency,
		MinReserveFraction:  doc.Energy.MinReserveFraction,
		BaseLoadKW:          doc.Energy.BaseLoadKW,
	}, nil)

	q := queue.New()
	bus := event.NewBus()

	dispatcher := dispatch.New(recipes, modules, ledger, energyState, doc.Tick.MaxStartsPerTick)

	demandFn := dispatch.EnergyDemandFunc(func(rec *recipe.Recipe) float64 {
		// Every recipe with a positive base duration draws a flat 1 kW
		// while active (0 otherwise); demand does not vary with duration.
		// Absent a dedicated per-recipe power field in the spec document,
		// this keeps total demand bounded by the number of concurrently
		// active tasks rather than growing unbounded with catalog size.
		if rec.BaseDurationS() <= 0 {
			return 0
		}
		return 1.0
	})

	var subs []subsystems.Subsystem
	if modular {
		subs = buildSubsystems(doc.Modular, modules, q, ledger, dispatcher)
	}

	res, err := resolver.New(recipes, 1024)
	if err != nil {
		return nil, err
	}

	orch := tick.New(tick.Config{
		DtSeconds:         doc.Tick.DtSeconds,
		MaxSimHours:       doc.Tick.MaxHours,
		MetricsEveryHrs:   doc.Tick.MetricsEveryHrs,
		RNGSeed:           masterRNG.Int63(),
		TargetModuleTypes: targetModuleTypes(doc, recipes),
	}, recipes, modules, ledger, energyState, q, bus, dispatcher, demandFn, subs, entry)

	return &Built{
		Catalog:      catalog,
		Recipes:      recipes,
		Modules:      modules,
		Ledger:       ledger,
		EnergyState:  energyState,
		Queue:        q,
		Bus:          bus,
		Subsystems:   subs,
		Resolver:     res,
		Orchestrator: orch,
	}, nil
}

// targetModuleTypes derives the self-replication termination targets of
// spec.md §4.8 from the document's declared goals: each goal recipe's
// output resource is mapped to the module type it grows via the
// "<TYPE>_MODULE" naming convention.
func targetModuleTypes(doc *simconfig.Document, recipes *recipe.Registry) []string {
	var targets []string
	for _, g := range doc.Goals {
		rec, ok := recipes.Get(g.RecipeID)
		if !ok {
			continue
		}
		for _, out := range rec.Outputs() {
			if sym, ok := module.TypeSymbolForResource(out.ResourceSymbol); ok {
				targets = append(targets, sym)
			}
		}
	}
	return targets
}

// buildSubsystems constructs whichever optional subsystems the resolved
// document declares, wiring each one's feedback closures to the already-
// built module registry, queue, and storage ledger, and (for
// contamination) the dispatch engine's cleanroom precondition.
func buildSubsystems(md simconfig.ModularDoc, modules *module.Registry, q *queue.Queue, ledger *storage.Ledger, dispatcher *dispatch.Engine) []subsystems.Subsystem {
	var subs []subsystems.Subsystem

	if t := md.Thermal; t != nil {
		activeLoad := func() float64 {
			total := 0
			for _, inst := range modules.AllInstances() {
				total += inst.ActiveSlots()
			}
			return float64(total)
		}
		subs = append(subs, subsystems.NewThermal(t.StartC, t.TargetC, t.PassiveCoolPerHr, t.HeatPerActiveHr, activeLoad))
	}

	if w := md.Waste; w != nil {
		lastCompleted := 0
		generated := func() float64 {
			cur := q.CompletedLen()
			delta := cur - lastCompleted
			if delta < 0 {
				delta = 0
			}
			lastCompleted = cur
			return float64(delta) * w.KgPerCompletion
		}
		subs = append(subs, subsystems.NewWaste(w.ReprocessRate, generated))
	}

	if md.SoftwareStaging != nil {
		deploy := func(resourceSymbol string) {
			_ = ledger.Deposit(resourceSymbol, 1)
		}
		subs = append(subs, subsystems.NewSoftwareStaging(deploy))
	}

	if c := md.Contamination; c != nil {
		events := func() int {
			n := 0
			for _, inst := range modules.AllInstances() {
				if inst.Type().Cleanroom {
					n += inst.ActiveSlots()
				}
			}
			return n
		}
		contamination := subsystems.NewContamination(c.DecayPerHr, c.RisePerEvent, events)
		subs = append(subs, contamination)
		dispatcher.SetContaminationFn(contamination.Score)
	}

	if md.Transport != nil {
		deposit := func(resourceSymbol string, qty float64) {
			_ = ledger.Deposit(resourceSymbol, qty)
		}
		subs = append(subs, subsystems.NewTransport(deposit))
	}

	return subs
}

// SeedInitialTask creates and enqueues one top-level task for recipeID at
// the given priority, used to kick off a simulation from its configured
// target. The CLI's run command seeds its configured goals through
// SeedGoal, not this method.
func (b *Built) SeedInitialTask(recipeID string, priority int) (*task.Task, error) {
	if _, ok := b.Recipes.Get(recipeID); !ok {
		return nil, fmt.Errorf("buildsim: unknown recipe %q", recipeID)
	}
	t := task.New(recipeID, priority, b.Queue.NextInsertionSeq(), nil, 0)
	if err := t.MarkReady(0); err != nil {
		return nil, err
	}
	b.Queue.Enqueue(t)
	b.Orchestrator.RegisterTask(t)
	return t, nil
}

// SeedGoal expands goal into its full dependency-ordered task DAG via the
// Requirements Resolver (spec.md §4.2) and enqueues every resulting task
// as Ready. A task whose producer inputs have not yet completed is
// naturally blocked by the dispatch engine's resource precondition
// (task.BlockInsufficientResources) until its dependencies deposit what it
// needs, then re-promoted to Ready by the tick loop's blocked-task rescan
// once queue.DependenciesSatisfied holds.
func (b *Built) SeedGoal(goal simconfig.GoalDoc) ([]*task.Task, error) {
	rec, ok := b.Recipes.Get(goal.RecipeID)
	if !ok {
		return nil, fmt.Errorf("buildsim: unknown recipe %q", goal.RecipeID)
	}
	outputs := rec.Outputs()
	if len(outputs) == 0 {
		return nil, fmt.Errorf("buildsim: recipe %q declares no outputs", goal.RecipeID)
	}
	qty := goal.Quantity
	if qty <= 0 {
		qty = outputs[0].Quantity
	}

	tasks, err := b.Resolver.ExpandToTasks(outputs[0].ResourceSymbol, qty, goal.Priority, b.Queue.NextInsertionSeq, 0)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if err := t.MarkReady(0); err != nil {
			return nil, err
		}
		b.Queue.Enqueue(t)
		b.Orchestrator.RegisterTask(t)
	}
	return tasks, nil
}
