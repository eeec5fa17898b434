package simconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarforge/replicator/internal/infrastructure/simconfig"
)

func writeSpec(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const baseSpecYAML = `
seed: 7
resources:
  - symbol: FE_ORE
    kind: material
    unit_volume: 1
    unit_weight: 2
  - symbol: FE_INGOT
    kind: material
    unit_volume: 1
    unit_weight: 1
recipes:
  - id: smelt-fe
    module_type: SMELTER
    inputs:
      - resource: FE_ORE
        quantity: 2
    outputs:
      - resource: FE_INGOT
        quantity: 1
    base_duration_s: 60
    learning_factor: 1.0
module_types:
  - symbol: SMELTER
    slots: 1
    mtbf_hours: 0
    maintenance_every_hours: 0
    maintenance_duration_hours: 0
    wear_per_task_hour: 0
    initial_instances: 1
energy:
  peak_generation_kw: 10
  day_length_hours: 24
  battery_capacity_kwh: 50
  charge_efficiency: 0.9
  discharge_efficiency: 0.9
  min_reserve_fraction: 0.1
  base_load_kw: 1
storage:
  volume_cap: 1000
  weight_cap: 1000
tick:
  dt_seconds: 1
  max_hours: 24
  metrics_every_hours: 1
  max_starts_per_tick: 5
`

func TestLoad_ParsesValidDocument(t *testing.T) {
	dir := t.TempDir()
	path := writeSpec(t, dir, "base.yaml", baseSpecYAML)

	loader := simconfig.NewLoader(simconfig.DefaultLimits(), []string{dir})
	doc, err := loader.Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, int64(7), doc.Seed)
	require.Len(t, doc.Resources, 2)
	assert.Equal(t, "FE_ORE", doc.Resources[0].Symbol)
	assert.Equal(t, 10.0, doc.Energy.PeakGenerationKW)
}

func TestLoad_RejectsPathOutsideAllowList(t *testing.T) {
	dir := t.TempDir()
	outsideDir := t.TempDir()
	path := writeSpec(t, outsideDir, "base.yaml", baseSpecYAML)

	loader := simconfig.NewLoader(simconfig.DefaultLimits(), []string{dir})
	_, err := loader.Load(path, "")
	require.Error(t, err)
	var invalidPath simconfig.ErrInvalidPath
	assert.ErrorAs(t, err, &invalidPath)
}

func TestLoad_ResolvesParentInheritanceWithChildOverrides(t *testing.T) {
	dir := t.TempDir()
	writeSpec(t, dir, "base.yaml", baseSpecYAML)
	childYAML := `
parent: base.yaml
seed: 99
energy:
  peak_generation_kw: 25
`
	childPath := writeSpec(t, dir, "child.yaml", childYAML)

	loader := simconfig.NewLoader(simconfig.DefaultLimits(), []string{dir})
	doc, err := loader.Load(childPath, "")
	require.NoError(t, err)

	assert.Equal(t, int64(99), doc.Seed, "child seed overrides parent")
	assert.Equal(t, 25.0, doc.Energy.PeakGenerationKW, "child overrides just this energy field")
	assert.Equal(t, 24.0, doc.Energy.DayLengthHours, "unset child fields keep the parent's value")
	require.Len(t, doc.Resources, 2, "child inherits parent's resource catalog unchanged")
}

func TestLoad_DetectsCircularInheritance(t *testing.T) {
	dir := t.TempDir()
	writeSpec(t, dir, "a.yaml", "parent: b.yaml\n"+baseSpecYAML)
	bPath := writeSpec(t, dir, "b.yaml", "parent: a.yaml\n"+baseSpecYAML)

	loader := simconfig.NewLoader(simconfig.DefaultLimits(), []string{dir})
	_, err := loader.Load(bPath, "")
	require.Error(t, err)
	var circular simconfig.ErrCircularInheritance
	assert.ErrorAs(t, err, &circular)
}

func TestLoad_EnforcesMaxInheritDepth(t *testing.T) {
	dir := t.TempDir()
	limits := simconfig.DefaultLimits()
	limits.MaxInheritDepth = 3

	writeSpec(t, dir, "l0.yaml", baseSpecYAML)
	writeSpec(t, dir, "l1.yaml", "parent: l0.yaml\n"+baseSpecYAML)
	writeSpec(t, dir, "l2.yaml", "parent: l1.yaml\n"+baseSpecYAML)
	l3Path := writeSpec(t, dir, "l3.yaml", "parent: l2.yaml\n"+baseSpecYAML)
	l4Path := writeSpec(t, dir, "l4.yaml", "parent: l3.yaml\n"+baseSpecYAML)

	loader := simconfig.NewLoader(limits, []string{dir})
	_, err := loader.Load(l3Path, "")
	assert.NoError(t, err, "depth within limit must succeed")

	_, err = loader.Load(l4Path, "")
	require.Error(t, err)
	var tooDeep simconfig.ErrInheritanceTooDeep
	assert.ErrorAs(t, err, &tooDeep)
}

func TestLoad_AppliesNamedProfileOverride(t *testing.T) {
	dir := t.TempDir()
	yamlWithProfile := baseSpecYAML + `
profiles:
  low-power:
    energy:
      peak_generation_kw: 2
`
	path := writeSpec(t, dir, "base.yaml", yamlWithProfile)

	loader := simconfig.NewLoader(simconfig.DefaultLimits(), []string{dir})
	doc, err := loader.Load(path, "low-power")
	require.NoError(t, err)
	assert.Equal(t, 2.0, doc.Energy.PeakGenerationKW)
}

func TestLoad_RejectsUnknownProfileName(t *testing.T) {
	dir := t.TempDir()
	path := writeSpec(t, dir, "base.yaml", baseSpecYAML)

	loader := simconfig.NewLoader(simconfig.DefaultLimits(), []string{dir})
	_, err := loader.Load(path, "nonexistent")
	require.Error(t, err)
	var invalid simconfig.ErrInvalidConfiguration
	assert.ErrorAs(t, err, &invalid)
}

func TestLoad_RejectsOversizedFile(t *testing.T) {
	dir := t.TempDir()
	path := writeSpec(t, dir, "base.yaml", baseSpecYAML)

	limits := simconfig.DefaultLimits()
	limits.MaxFileSizeBytes = 10
	loader := simconfig.NewLoader(limits, []string{dir})
	_, err := loader.Load(path, "")
	require.Error(t, err)
	var tooLarge simconfig.ErrFileTooLarge
	assert.ErrorAs(t, err, &tooLarge)
}

func TestLoad_RejectsCardinalityOverflow(t *testing.T) {
	dir := t.TempDir()
	path := writeSpec(t, dir, "base.yaml", baseSpecYAML)

	limits := simconfig.DefaultLimits()
	limits.MaxResources = 0
	loader := simconfig.NewLoader(limits, []string{dir})
	_, err := loader.Load(path, "")
	require.Error(t, err)
	var invalid simconfig.ErrInvalidConfiguration
	assert.ErrorAs(t, err, &invalid)
}

func TestLoad_RejectsFailedValidation(t *testing.T) {
	dir := t.TempDir()
	invalidYAML := `
seed: 1
energy:
  peak_generation_kw: -5
  day_length_hours: 24
  battery_capacity_kwh: 50
  charge_efficiency: 0.9
  discharge_efficiency: 0.9
  min_reserve_fraction: 0.1
  base_load_kw: 1
storage:
  volume_cap: 100
  weight_cap: 100
tick:
  dt_seconds: 1
  max_hours: 24
  metrics_every_hours: 1
  max_starts_per_tick: 5
`
	path := writeSpec(t, dir, "bad.yaml", invalidYAML)

	loader := simconfig.NewLoader(simconfig.DefaultLimits(), []string{dir})
	_, err := loader.Load(path, "")
	require.Error(t, err)
	var invalid simconfig.ErrInvalidConfiguration
	assert.ErrorAs(t, err, &invalid)
}

func TestLoad_ModularSubsystemsDeclaredNilByDefault(t *testing.T) {
	dir := t.TempDir()
	path := writeSpec(t, dir, "base.yaml", baseSpecYAML)

	loader := simconfig.NewLoader(simconfig.DefaultLimits(), []string{dir})
	doc, err := loader.Load(path, "")
	require.NoError(t, err)
	assert.Nil(t, doc.Modular.Thermal)
	assert.Nil(t, doc.Modular.Waste)
}

func TestLoad_ModularChildOverridesOnlyDeclaredSubsystem(t *testing.T) {
	dir := t.TempDir()
	writeSpec(t, dir, "base.yaml", baseSpecYAML+`
modular:
  thermal:
    start_c: 20
    target_c: 22
    passive_cool_per_hr: 1
    heat_per_active_hr: 2
    overheat_c: 80
`)
	childPath := writeSpec(t, dir, "child.yaml", `
parent: base.yaml
modular:
  waste:
    reprocess_rate: 0.5
    kg_per_completion: 1
`)

	loader := simconfig.NewLoader(simconfig.DefaultLimits(), []string{dir})
	doc, err := loader.Load(childPath, "")
	require.NoError(t, err)

	require.NotNil(t, doc.Modular.Thermal, "parent's declared subsystem survives untouched")
	assert.Equal(t, 20.0, doc.Modular.Thermal.StartC)
	require.NotNil(t, doc.Modular.Waste)
	assert.Equal(t, 0.5, doc.Modular.Waste.ReprocessRate)
}
