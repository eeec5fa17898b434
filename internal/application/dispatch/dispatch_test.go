package dispatch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarforge/replicator/internal/application/dispatch"
	"github.com/solarforge/replicator/internal/domain/energy"
	"github.com/solarforge/replicator/internal/domain/module"
	"github.com/solarforge/replicator/internal/domain/recipe"
	"github.com/solarforge/replicator/internal/domain/resourcecat"
	"github.com/solarforge/replicator/internal/domain/storage"
	"github.com/solarforge/replicator/internal/domain/task"
)

func fixture(t *testing.T) (*recipe.Registry, *module.Registry, *storage.Ledger, *energy.State) {
	t.Helper()

	cat := resourcecat.NewCatalog()
	ore, err := resourcecat.NewResource("FE_ORE", resourcecat.KindMaterial, 1, 1, "")
	require.NoError(t, err)
	require.NoError(t, cat.Register(ore))

	recipes := recipe.NewRegistry()
	smelt, err := recipe.New("smelt-fe", "SMELTER",
		[]recipe.Input{{ResourceSymbol: "FE_ORE", Quantity: 2}},
		[]recipe.Output{{ResourceSymbol: "FE_INGOT", Quantity: 1}}, 60, 1.0)
	require.NoError(t, err)
	require.NoError(t, recipes.Add(smelt))

	modules := module.NewRegistry()
	typ := &module.Type{Symbol: "SMELTER", Slots: 1}
	require.NoError(t, modules.RegisterType(typ))
	require.NoError(t, modules.AddInstance(module.NewInstance("smelter-1", typ, 1, nil)))

	ledger := storage.NewLedger(cat, 1000, 1000)

	energyState := energy.New(energy.Config{
		PeakGenerationKW:    100,
		BatteryCapacityKWh:  100,
		ChargeEfficiency:    1,
		DischargeEfficiency: 1,
		MinReserveFraction:  0,
	}, func(float64) float64 { return 1 })

	return recipes, modules, ledger, energyState
}

func noCompletions(string) int { return 0 }

func flatDemand(*recipe.Recipe) float64 { return 1 }

func TestTryDispatch_StartsWhenAllPreconditionsMet(t *testing.T) {
	recipes, modules, ledger, energyState := fixture(t)
	require.NoError(t, ledger.Deposit("FE_ORE", 10))

	eng := dispatch.New(recipes, modules, ledger, energyState, 5)
	tsk := task.New("smelt-fe", 1, 1, nil, 0)
	require.NoError(t, tsk.MarkReady(0))

	decisions := eng.TryDispatch([]*task.Task{tsk}, 12, 1, noCompletions, 0, flatDemand)

	require.Len(t, decisions, 1)
	assert.True(t, decisions[0].Started)
	assert.Equal(t, task.StatusRunning, tsk.Status())
	assert.Equal(t, 8.0, ledger.Quantity("FE_ORE"), "inputs are withdrawn on start")
}

func TestTryDispatch_BlocksOnInsufficientResources(t *testing.T) {
	recipes, modules, ledger, energyState := fixture(t)
	// no FE_ORE deposited

	eng := dispatch.New(recipes, modules, ledger, energyState, 5)
	tsk := task.New("smelt-fe", 1, 1, nil, 0)
	require.NoError(t, tsk.MarkReady(0))

	decisions := eng.TryDispatch([]*task.Task{tsk}, 12, 1, noCompletions, 0, flatDemand)

	require.Len(t, decisions, 1)
	assert.False(t, decisions[0].Started)
	assert.Equal(t, task.BlockInsufficientResources, decisions[0].Cause)
}

func TestTryDispatch_BlocksWhenNoFreeModuleSlot(t *testing.T) {
	recipes, modules, ledger, energyState := fixture(t)
	require.NoError(t, ledger.Deposit("FE_ORE", 10))

	inst, ok := modules.Instance("smelter-1")
	require.True(t, ok)
	require.NoError(t, inst.AcquireSlot()) // occupies the only slot

	eng := dispatch.New(recipes, modules, ledger, energyState, 5)
	tsk := task.New("smelt-fe", 1, 1, nil, 0)
	require.NoError(t, tsk.MarkReady(0))

	decisions := eng.TryDispatch([]*task.Task{tsk}, 12, 1, noCompletions, 0, flatDemand)

	require.Len(t, decisions, 1)
	assert.False(t, decisions[0].Started)
	assert.Equal(t, task.BlockModuleUnavailable, decisions[0].Cause)
}

func TestTryDispatch_BlocksOnInsufficientEnergy(t *testing.T) {
	recipes, modules, ledger, energyState := fixture(t)
	require.NoError(t, ledger.Deposit("FE_ORE", 10))

	eng := dispatch.New(recipes, modules, ledger, energyState, 5)
	tsk := task.New("smelt-fe", 1, 1, nil, 0)
	require.NoError(t, tsk.MarkReady(0))

	// Demand the dispatch engine cannot possibly fund.
	hugeDemand := func(*recipe.Recipe) float64 { return 1e12 }
	decisions := eng.TryDispatch([]*task.Task{tsk}, 12, 1, noCompletions, 0, hugeDemand)

	require.Len(t, decisions, 1)
	assert.False(t, decisions[0].Started)
	assert.Equal(t, task.BlockInsufficientEnergy, decisions[0].Cause)
}

func TestTryDispatch_RespectsMaxStartsPerTick(t *testing.T) {
	recipes, modules, ledger, energyState := fixture(t)
	require.NoError(t, ledger.Deposit("FE_ORE", 100))

	typ, _ := modules.Type("SMELTER")
	require.NoError(t, modules.AddInstance(module.NewInstance("smelter-2", typ, 2, nil)))
	require.NoError(t, modules.AddInstance(module.NewInstance("smelter-3", typ, 3, nil)))

	eng := dispatch.New(recipes, modules, ledger, energyState, 1)
	t1 := task.New("smelt-fe", 1, 1, nil, 0)
	t2 := task.New("smelt-fe", 1, 2, nil, 0)
	require.NoError(t, t1.MarkReady(0))
	require.NoError(t, t2.MarkReady(0))

	decisions := eng.TryDispatch([]*task.Task{t1, t2}, 12, 1, noCompletions, 0, flatDemand)

	require.Len(t, decisions, 2)
	assert.True(t, decisions[0].Started)
	assert.False(t, decisions[1].Started, "the engine must stop after maxStartsPerTick successful starts")
}

func TestTryDispatch_UnknownRecipeBlocksModuleUnavailable(t *testing.T) {
	recipes, modules, ledger, energyState := fixture(t)
	eng := dispatch.New(recipes, modules, ledger, energyState, 5)
	tsk := task.New("no-such-recipe", 1, 1, nil, 0)
	require.NoError(t, tsk.MarkReady(0))

	decisions := eng.TryDispatch([]*task.Task{tsk}, 12, 1, noCompletions, 0, flatDemand)
	require.Len(t, decisions, 1)
	assert.False(t, decisions[0].Started)
	assert.Equal(t, task.BlockModuleUnavailable, decisions[0].Cause)
}
