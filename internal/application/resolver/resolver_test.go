package resolver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarforge/replicator/internal/application/resolver"
	"github.com/solarforge/replicator/internal/domain/recipe"
	"github.com/solarforge/replicator/internal/domain/task"
)

func mustRecipe(t *testing.T, id, moduleType string, inputs []recipe.Input, outputs []recipe.Output) *recipe.Recipe {
	t.Helper()
	r, err := recipe.New(id, moduleType, inputs, outputs, 60, 1.0)
	require.NoError(t, err)
	return r
}

func TestResolve_RawMaterialIsLeafRequirement(t *testing.T) {
	// Arrange: no recipe produces FE_ORE, so it is a raw leaf.
	reg := recipe.NewRegistry()
	res, err := resolver.New(reg, 16)
	require.NoError(t, err)

	// Act
	plan, err := res.Resolve("FE_ORE", 10)

	// Assert
	require.NoError(t, err)
	require.Len(t, plan.Requirements, 1)
	assert.Equal(t, "FE_ORE", plan.Requirements[0].ResourceSymbol)
	assert.Equal(t, 10.0, plan.Requirements[0].Quantity)
	assert.Empty(t, plan.Requirements[0].RecipeID)
}

func TestResolve_ExpandsMultiLevelGraphDependenciesFirst(t *testing.T) {
	// Arrange: FE_INGOT is smelted from FE_ORE; FE_PLATE is forged from
	// FE_INGOT. Resolving FE_PLATE must list FE_ORE, then FE_INGOT, then
	// FE_PLATE, dependencies-before-dependents.
	reg := recipe.NewRegistry()
	smelt := mustRecipe(t, "smelt-fe", "SMELTER",
		[]recipe.Input{{ResourceSymbol: "FE_ORE", Quantity: 2}},
		[]recipe.Output{{ResourceSymbol: "FE_INGOT", Quantity: 1}})
	forge := mustRecipe(t, "forge-fe", "FORGE",
		[]recipe.Input{{ResourceSymbol: "FE_INGOT", Quantity: 3}},
		[]recipe.Output{{ResourceSymbol: "FE_PLATE", Quantity: 1}})
	require.NoError(t, reg.Add(smelt))
	require.NoError(t, reg.Add(forge))

	res, err := resolver.New(reg, 16)
	require.NoError(t, err)

	// Act
	plan, err := res.Resolve("FE_PLATE", 2)
	require.NoError(t, err)

	// Assert
	require.Len(t, plan.Requirements, 3)
	assert.Equal(t, "FE_ORE", plan.Requirements[0].ResourceSymbol)
	assert.InDelta(t, 12, plan.Requirements[0].Quantity, 1e-9) // 2 plates * 3 ingots * 2 ore
	assert.Equal(t, "FE_INGOT", plan.Requirements[1].ResourceSymbol)
	assert.Equal(t, "smelt-fe", plan.Requirements[1].RecipeID)
	assert.Equal(t, "FE_PLATE", plan.Requirements[2].ResourceSymbol)
	assert.Equal(t, "forge-fe", plan.Requirements[2].RecipeID)
}

func TestResolve_DetectsCircularDependency(t *testing.T) {
	// Arrange: A requires B, B requires A.
	reg := recipe.NewRegistry()
	makeA := mustRecipe(t, "make-a", "FAB",
		[]recipe.Input{{ResourceSymbol: "B", Quantity: 1}},
		[]recipe.Output{{ResourceSymbol: "A", Quantity: 1}})
	makeB := mustRecipe(t, "make-b", "FAB",
		[]recipe.Input{{ResourceSymbol: "A", Quantity: 1}},
		[]recipe.Output{{ResourceSymbol: "B", Quantity: 1}})
	require.NoError(t, reg.Add(makeA))
	require.NoError(t, reg.Add(makeB))

	res, err := resolver.New(reg, 16)
	require.NoError(t, err)

	// Act
	_, err = res.Resolve("A", 1)

	// Assert
	require.Error(t, err)
	var cycleErr task.ErrCircularDependency
	assert.ErrorAs(t, err, &cycleErr)
}

func TestResolve_CachesRepeatedRequests(t *testing.T) {
	reg := recipe.NewRegistry()
	smelt := mustRecipe(t, "smelt-fe", "SMELTER",
		[]recipe.Input{{ResourceSymbol: "FE_ORE", Quantity: 2}},
		[]recipe.Output{{ResourceSymbol: "FE_INGOT", Quantity: 1}})
	require.NoError(t, reg.Add(smelt))

	res, err := resolver.New(reg, 16)
	require.NoError(t, err)

	_, err = res.Resolve("FE_INGOT", 5)
	require.NoError(t, err)
	firstLen := res.CacheLen()
	assert.Greater(t, firstLen, 0)

	_, err = res.Resolve("FE_INGOT", 5)
	require.NoError(t, err)
	assert.Equal(t, firstLen, res.CacheLen(), "an identical repeat request must not grow the cache")
}

func TestNew_DefaultsCacheSizeWhenNonPositive(t *testing.T) {
	reg := recipe.NewRegistry()
	res, err := resolver.New(reg, 0)
	require.NoError(t, err)
	require.NotNil(t, res)
}
