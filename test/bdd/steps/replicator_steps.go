// Package steps holds the godog step definitions exercising the six
// concrete end-to-end scenarios of this simulator's testable-properties
// suite: a trivial single-task run, a dependency chain, energy starvation,
// cyclic-recipe rejection, self-replication-scale invariants, and a
// wall-clock timeout. Grounded on the teacher's test/bdd/steps shape: one
// scenario-scoped context struct, reset before each scenario, registered
// through a single Initialize function.
package steps

import (
	"context"
	"errors"
	"fmt"

	"github.com/cucumber/godog"

	"github.com/solarforge/replicator/internal/application/dispatch"
	"github.com/solarforge/replicator/internal/application/queue"
	"github.com/solarforge/replicator/internal/application/resolver"
	"github.com/solarforge/replicator/internal/application/tick"
	"github.com/solarforge/replicator/internal/domain/energy"
	"github.com/solarforge/replicator/internal/domain/event"
	"github.com/solarforge/replicator/internal/domain/module"
	"github.com/solarforge/replicator/internal/domain/recipe"
	"github.com/solarforge/replicator/internal/domain/resourcecat"
	"github.com/solarforge/replicator/internal/domain/storage"
	"github.com/solarforge/replicator/internal/domain/task"
)

const defaultVolumeCap = 1_000_000.0

type replicatorContext struct {
	catalog    *resourcecat.Catalog
	recipes    *recipe.Registry
	modules    *module.Registry
	ledger     *storage.Ledger
	nrg        *energy.State
	q          *queue.Queue
	bus        *event.Bus
	orch       *tick.Orchestrator
	dtHours    float64
	maxSimHrs  float64
	moduleTypeNames []string

	tasksByRecipe map[string]*task.Task

	ctx    context.Context
	cancel context.CancelFunc
	runErr error

	resolveReg   *recipe.Registry
	resolveErr   error
	lastCycleErr task.ErrCircularDependency
}

func (c *replicatorContext) reset() {
	c.catalog = resourcecat.NewCatalog()
	c.recipes = recipe.NewRegistry()
	c.modules = module.NewRegistry()
	c.ledger = storage.NewLedger(c.catalog, defaultVolumeCap, defaultVolumeCap)
	c.q = queue.New()
	c.bus = event.NewBus()
	c.dtHours = 1
	c.maxSimHrs = 24
	c.moduleTypeNames = nil
	c.tasksByRecipe = make(map[string]*task.Task)
	c.ctx = context.Background()
	c.cancel = nil
	c.runErr = nil
	c.nrg = nil
	c.orch = nil
	c.resolveReg = recipe.NewRegistry()
	c.resolveErr = nil
}

func (c *replicatorContext) registerResource(symbol string) error {
	if _, ok := c.catalog.Lookup(symbol); ok {
		return nil
	}
	res, err := resourcecat.NewResource(symbol, resourcecat.KindMaterial, 1, 1, "")
	if err != nil {
		return err
	}
	return c.catalog.Register(res)
}

func (c *replicatorContext) aFactoryWithTwoResources(a, b string) error {
	if err := c.registerResource(a); err != nil {
		return err
	}
	return c.registerResource(b)
}

func (c *replicatorContext) aFactoryWithThreeResources(a, b, cc string) error {
	for _, sym := range []string{a, b, cc} {
		if err := c.registerResource(sym); err != nil {
			return err
		}
	}
	return nil
}

func (c *replicatorContext) aRecipe(id, moduleType string, inQty int, inSym string, outQty int, outSym string, hours int) error {
	if err := c.registerResource(inSym); err != nil {
		return err
	}
	if err := c.registerResource(outSym); err != nil {
		return err
	}
	r, err := recipe.New(id, moduleType,
		[]recipe.Input{{ResourceSymbol: inSym, Quantity: float64(inQty)}},
		[]recipe.Output{{ResourceSymbol: outSym, Quantity: float64(outQty)}},
		float64(hours)*3600, 1.0)
	if err != nil {
		return err
	}
	return c.recipes.Add(r)
}

func (c *replicatorContext) moduleTypeHasInstances(symbol string, n int) error {
	typ := &module.Type{Symbol: symbol, Slots: 1}
	if err := c.modules.RegisterType(typ); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := c.modules.AddInstance(module.NewInstance(fmt.Sprintf("%s-%d", symbol, i), typ, int64(i+1), nil)); err != nil {
			return err
		}
	}
	return nil
}

func (c *replicatorContext) factoryStartsWithUnits(qty int, symbol string) error {
	return c.ledger.Deposit(symbol, float64(qty))
}

func (c *replicatorContext) energySystemGenerouslyFunded() error {
	c.nrg = energy.New(energy.Config{
		PeakGenerationKW:    1e6,
		BatteryCapacityKWh:  1e6,
		ChargeEfficiency:    1,
		DischargeEfficiency: 1,
		MinReserveFraction:  0,
	}, func(float64) float64 { return 1 })
	return nil
}

func (c *replicatorContext) energySystemZeroAndEmpty() error {
	c.nrg = energy.New(energy.Config{
		PeakGenerationKW:    0,
		BatteryCapacityKWh:  0,
		ChargeEfficiency:    1,
		DischargeEfficiency: 1,
		MinReserveFraction:  0,
	}, func(float64) float64 { return 1 })
	return nil
}

func (c *replicatorContext) tickLengthIsHour(hours int) error {
	c.dtHours = float64(hours)
	return nil
}

func (c *replicatorContext) simulationHorizonIsHours(hours int) error {
	c.maxSimHrs = float64(hours)
	if c.orch != nil {
		// A seeding step already built the orchestrator with the old
		// horizon; rebuild it, keeping the tasks registered so far.
		registered := c.orch.Tasks()
		c.orch = nil
		c.ensureOrchestrator()
		for _, t := range registered {
			c.orch.RegisterTask(t)
		}
	}
	return nil
}

func (c *replicatorContext) wallClockBudgetAlreadyExpired() error {
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	c.ctx = ctx
	c.cancel = cancel
	return nil
}

func (c *replicatorContext) ensureOrchestrator() {
	if c.orch != nil {
		return
	}
	if c.nrg == nil {
		_ = c.energySystemGenerouslyFunded()
	}
	dispatcher := dispatch.New(c.recipes, c.modules, c.ledger, c.nrg, dispatch.DefaultMaxStartsPerTick)
	demandFn := func(*recipe.Recipe) float64 { return 1 }
	cfg := tick.Config{DtSeconds: c.dtHours * 3600, MaxSimHours: c.maxSimHrs, MetricsEveryHrs: c.dtHours}
	c.orch = tick.New(cfg, c.recipes, c.modules, c.ledger, c.nrg, c.q, c.bus, dispatcher, demandFn, nil, nil)
}

func (c *replicatorContext) seedTask(recipeID string, priority int, dependsOn []string) (*task.Task, error) {
	t := task.New(recipeID, priority, c.q.NextInsertionSeq(), dependsOn, 0)
	if err := t.MarkReady(0); err != nil {
		return nil, err
	}
	c.q.Enqueue(t)
	c.ensureOrchestrator()
	c.orch.RegisterTask(t)
	c.tasksByRecipe[recipeID] = t
	return t, nil
}

func (c *replicatorContext) iSeedGoalTask(recipeID string, priority int) error {
	if _, already := c.tasksByRecipe[recipeID]; already {
		return nil
	}
	_, err := c.seedTask(recipeID, priority, nil)
	return err
}

func (c *replicatorContext) iSeedDependencyChainTask(upstreamRecipe string, upstreamPriority int, downstreamRecipe string, downstreamPriority int) error {
	up, err := c.seedTask(upstreamRecipe, upstreamPriority, nil)
	if err != nil {
		return err
	}
	_, err = c.seedTask(downstreamRecipe, downstreamPriority, []string{up.ID()})
	return err
}

func (c *replicatorContext) iRunTheSimulationToCompletion() error {
	c.ensureOrchestrator()
	c.runErr = c.orch.Run(c.ctx)
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

func (c *replicatorContext) iRunTheSimulationForTicks(n int) error {
	c.ensureOrchestrator()
	dtHours := c.dtHours
	for i := 0; i < n; i++ {
		if err := c.orch.Step(c.ctx, dtHours); err != nil {
			c.runErr = err
			return nil
		}
	}
	return nil
}

func (c *replicatorContext) theTaskForRecipeShouldBe(recipeID, status string) error {
	t, ok := c.tasksByRecipe[recipeID]
	if !ok {
		return fmt.Errorf("no task seeded for recipe %q", recipeID)
	}
	if t.Status().String() != status {
		return fmt.Errorf("expected task %q to be %s but got %s", recipeID, status, t.Status())
	}
	return nil
}

func (c *replicatorContext) theStorageQuantityOfShouldBe(symbol string, qty int) error {
	got := c.ledger.Quantity(symbol)
	if got != float64(qty) {
		return fmt.Errorf("expected storage quantity of %q to be %d but got %v", symbol, qty, got)
	}
	return nil
}

func (c *replicatorContext) exactlyNEventsPublished(n int, kind string) error {
	count := 0
	for _, ev := range c.bus.History() {
		if string(ev.Kind) == kind {
			count++
		}
	}
	if count != n {
		return fmt.Errorf("expected exactly %d %q events but got %d", n, kind, count)
	}
	return nil
}

func (c *replicatorContext) theTaskForRecipeShouldHaveCompletedBefore(upstream, downstream string) error {
	upID := c.tasksByRecipe[upstream].ID()
	downID := c.tasksByRecipe[downstream].ID()
	upTick, downTick := -1, -1
	for _, ev := range c.bus.History() {
		if ev.Kind != event.KindTaskCompleted {
			continue
		}
		id, _ := ev.Payload["task_id"].(string)
		if id == upID && upTick == -1 {
			upTick = int(ev.Tick)
		}
		if id == downID && downTick == -1 {
			downTick = int(ev.Tick)
		}
	}
	if upTick == -1 || downTick == -1 {
		return fmt.Errorf("expected both tasks to have completed, got up=%d down=%d", upTick, downTick)
	}
	if upTick > downTick {
		return fmt.Errorf("expected %q (tick %d) to complete before %q (tick %d)", upstream, upTick, downstream, downTick)
	}
	return nil
}

func (c *replicatorContext) theSimulationShouldFinishWithoutError() error {
	if c.runErr != nil {
		return fmt.Errorf("expected the run to finish without error, got: %w", c.runErr)
	}
	return nil
}

func (c *replicatorContext) theBlockCauseForRecipeShouldBe(recipeID, cause string) error {
	t, ok := c.tasksByRecipe[recipeID]
	if !ok {
		return fmt.Errorf("no task seeded for recipe %q", recipeID)
	}
	if t.BlockCause().String() != cause {
		return fmt.Errorf("expected block cause %q but got %q", cause, t.BlockCause())
	}
	return nil
}

func (c *replicatorContext) aRecipeRegistryWithRecipe(id, moduleType string, inQty int, inSym string, outQty int, outSym string, hours int) error {
	r, err := recipe.New(id, moduleType,
		[]recipe.Input{{ResourceSymbol: inSym, Quantity: float64(inQty)}},
		[]recipe.Output{{ResourceSymbol: outSym, Quantity: float64(outQty)}},
		float64(hours)*3600, 1.0)
	if err != nil {
		return err
	}
	return c.resolveReg.Add(r)
}

func (c *replicatorContext) iResolveRequirementsFor(resourceSymbol string, qty int) error {
	res, err := resolver.New(c.resolveReg, 16)
	if err != nil {
		return err
	}
	_, c.resolveErr = res.Resolve(resourceSymbol, float64(qty))
	return nil
}

func (c *replicatorContext) resolvingShouldFailWithCircularDependency() error {
	if c.resolveErr == nil {
		return fmt.Errorf("expected a circular dependency error but resolving succeeded")
	}
	var cycleErr task.ErrCircularDependency
	if !errors.As(c.resolveErr, &cycleErr) {
		return fmt.Errorf("expected task.ErrCircularDependency, got: %v", c.resolveErr)
	}
	c.lastCycleErr = cycleErr
	return nil
}

func (c *replicatorContext) circularDependencyPathShouldMention(symbol string) error {
	for _, s := range c.lastCycleErr.Path {
		if s == symbol {
			return nil
		}
	}
	return fmt.Errorf("expected cycle path %v to mention %q", c.lastCycleErr.Path, symbol)
}

func (c *replicatorContext) aSelfReplicationFactory(mining, refining, electronics, assembly string) error {
	for _, sym := range []string{"ORE", "METAL", "PART", "UNIT"} {
		if err := c.registerResource(sym); err != nil {
			return err
		}
	}

	chain := []struct {
		id, moduleType string
		inSym          string
		inQty          float64
		outSym         string
	}{
		{"mine-ore", mining, "", 0, "ORE"},
		{"refine-metal", refining, "ORE", 2, "METAL"},
		{"build-part", electronics, "METAL", 1, "PART"},
		{"assemble-unit", assembly, "PART", 1, "UNIT"},
	}

	priority := len(chain)
	var lastTaskID []string
	for _, step := range chain {
		var inputs []recipe.Input
		if step.inSym != "" {
			inputs = []recipe.Input{{ResourceSymbol: step.inSym, Quantity: step.inQty}}
		}
		r, err := recipe.New(step.id, step.moduleType, inputs,
			[]recipe.Output{{ResourceSymbol: step.outSym, Quantity: 2}}, 3600, 1.0)
		if err != nil {
			return err
		}
		if err := c.recipes.Add(r); err != nil {
			return err
		}
		t, err := c.seedTask(step.id, priority, lastTaskID)
		if err != nil {
			return err
		}
		lastTaskID = []string{t.ID()}
		priority--
	}

	c.moduleTypeNames = []string{mining, refining, electronics, assembly}
	return nil
}

func (c *replicatorContext) eachModuleTypeHasInstances(n int) error {
	for _, name := range c.moduleTypeNames {
		if err := c.moduleTypeHasInstances(name, n); err != nil {
			return err
		}
	}
	return nil
}

func (c *replicatorContext) batteryFractionStaysWithinUnitInterval() error {
	for _, snap := range c.orch.Metrics {
		if snap.BatteryFrac < 0 || snap.BatteryFrac > 1 {
			return fmt.Errorf("battery fraction %v at sim-hour %v out of [0,1]", snap.BatteryFrac, snap.SimHour)
		}
	}
	return nil
}

func (c *replicatorContext) everyStorageQuantityStaysNonNegative() error {
	for _, snap := range c.orch.Metrics {
		for sym, qty := range snap.StorageUsed {
			if qty < 0 {
				return fmt.Errorf("storage quantity of %q went negative (%v) at sim-hour %v", sym, qty, snap.SimHour)
			}
		}
	}
	return nil
}

func (c *replicatorContext) noModuleExceedsItsSlotLimit() error {
	for _, inst := range c.modules.AllInstances() {
		if inst.ActiveSlots() > inst.Type().Slots {
			return fmt.Errorf("module %q has %d active slots but type allows %d", inst.ID(), inst.ActiveSlots(), inst.Type().Slots)
		}
	}
	return nil
}

func (c *replicatorContext) theSimulationShouldFailWithATimeoutError() error {
	if c.runErr == nil {
		return fmt.Errorf("expected a simulation timeout error but the run succeeded")
	}
	var timeoutErr tick.ErrSimulationTimeout
	if !errors.As(c.runErr, &timeoutErr) {
		return fmt.Errorf("expected tick.ErrSimulationTimeout, got: %v", c.runErr)
	}
	return nil
}

// InitializeReplicatorScenarios registers every step definition used by
// this suite's six feature files.
func InitializeReplicatorScenarios(sc *godog.ScenarioContext) {
	c := &replicatorContext{}

	sc.Before(func(ctx context.Context, s *godog.Scenario) (context.Context, error) {
		c.reset()
		return ctx, nil
	})

	sc.After(func(ctx context.Context, s *godog.Scenario, err error) (context.Context, error) {
		if c.cancel != nil {
			c.cancel()
		}
		return ctx, nil
	})

	sc.Step(`^a factory with resource "([^"]*)" and resource "([^"]*)"$`, c.aFactoryWithTwoResources)
	sc.Step(`^a factory with resource "([^"]*)", resource "([^"]*)", and resource "([^"]*)"$`, c.aFactoryWithThreeResources)
	sc.Step(`^a recipe "([^"]*)" on module type "([^"]*)" consuming (\d+) "([^"]*)" to produce (\d+) "([^"]*)" over (\d+) hour$`, c.aRecipe)
	sc.Step(`^module type "([^"]*)" has (\d+) instance$`, c.moduleTypeHasInstances)
	sc.Step(`^the factory starts with (\d+) units of "([^"]*)"$`, c.factoryStartsWithUnits)
	sc.Step(`^the energy system is generously funded$`, c.energySystemGenerouslyFunded)
	sc.Step(`^the energy system has zero generation and an empty battery$`, c.energySystemZeroAndEmpty)
	sc.Step(`^the tick length is (\d+) hour$`, c.tickLengthIsHour)
	sc.Step(`^the simulation horizon is (\d+) hours$`, c.simulationHorizonIsHours)
	sc.Step(`^the wall-clock budget has already expired$`, c.wallClockBudgetAlreadyExpired)

	sc.Step(`^I seed a goal task for recipe "([^"]*)" at priority (\d+)$`, c.iSeedGoalTask)
	sc.Step(`^I seed a dependency chain task for recipe "([^"]*)" at priority (\d+) and recipe "([^"]*)" at priority (\d+) depending on it$`, c.iSeedDependencyChainTask)
	sc.Step(`^I run the simulation to completion$`, c.iRunTheSimulationToCompletion)
	sc.Step(`^I run the simulation for (\d+) ticks$`, c.iRunTheSimulationForTicks)

	sc.Step(`^the task for recipe "([^"]*)" should be "([^"]*)"$`, c.theTaskForRecipeShouldBe)
	sc.Step(`^the storage quantity of "([^"]*)" should be (\d+)$`, c.theStorageQuantityOfShouldBe)
	sc.Step(`^exactly (\d+) "([^"]*)" events? should have been published$`, c.exactlyNEventsPublished)
	sc.Step(`^the task for recipe "([^"]*)" should have completed before the task for recipe "([^"]*)"$`, c.theTaskForRecipeShouldHaveCompletedBefore)
	sc.Step(`^the simulation should finish without error$`, c.theSimulationShouldFinishWithoutError)
	sc.Step(`^the block cause for recipe "([^"]*)" should be "([^"]*)"$`, c.theBlockCauseForRecipeShouldBe)

	sc.Step(`^a recipe registry with recipe "([^"]*)" on module type "([^"]*)" consuming (\d+) "([^"]*)" to produce (\d+) "([^"]*)" over (\d+) hour$`, c.aRecipeRegistryWithRecipe)
	sc.Step(`^I resolve requirements for resource "([^"]*)" quantity (\d+)$`, c.iResolveRequirementsFor)
	sc.Step(`^resolving should fail with a circular dependency error$`, c.resolvingShouldFailWithCircularDependency)
	sc.Step(`^the circular dependency path should mention "([^"]*)"$`, c.circularDependencyPathShouldMention)

	sc.Step(`^a self-replication-scale factory with module types "([^"]*)", "([^"]*)", "([^"]*)", and "([^"]*)"$`, c.aSelfReplicationFactory)
	sc.Step(`^each module type has (\d+) instances$`, c.eachModuleTypeHasInstances)
	sc.Step(`^the battery fraction should stay within the unit interval throughout the run$`, c.batteryFractionStaysWithinUnitInterval)
	sc.Step(`^every storage quantity should stay non-negative throughout the run$`, c.everyStorageQuantityStaysNonNegative)
	sc.Step(`^no module instance should ever report more active slots than its type allows$`, c.noModuleExceedsItsSlotLimit)

	sc.Step(`^the simulation should fail with a simulation timeout error$`, c.theSimulationShouldFailWithATimeoutError)
}
