package subsystems_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarforge/replicator/internal/application/subsystems"
)

func TestThermal_HeatAndPassiveCoolingBalance(t *testing.T) {
	th := subsystems.NewThermal(20, 20, 1, 5, func() float64 { return 1 })
	require.NoError(t, th.Tick(context.Background(), 1))
	// target == start, so the only change is heat from the active load.
	assert.InDelta(t, 25, th.AmbientC(), 1e-9)
}

func TestThermal_Overheated(t *testing.T) {
	th := subsystems.NewThermal(90, 90, 0, 0, func() float64 { return 0 })
	assert.True(t, th.Overheated(80))
	assert.False(t, th.Overheated(100))
}

func TestWaste_AccumulatesAndReprocesses(t *testing.T) {
	generated := 10.0
	w := subsystems.NewWaste(0.5, func() float64 { return generated })

	require.NoError(t, w.Tick(context.Background(), 1))
	// accumulate 10, reprocess 10*0.5*1 = 5, leaves 5.
	assert.InDelta(t, 5, w.AccumulatedKg(), 1e-9)
}

func TestWaste_ReprocessNeverExceedsAccumulated(t *testing.T) {
	w := subsystems.NewWaste(10, func() float64 { return 1 }) // absurd rate
	require.NoError(t, w.Tick(context.Background(), 1))
	assert.GreaterOrEqual(t, w.AccumulatedKg(), 0.0)
}

func TestSoftwareStaging_DeploysAfterDelayElapses(t *testing.T) {
	var deployed []string
	s := subsystems.NewSoftwareStaging(func(sym string) { deployed = append(deployed, sym) })
	s.Stage("FIRMWARE", 2)

	require.NoError(t, s.Tick(context.Background(), 1))
	assert.Empty(t, deployed, "one hour elapsed of a two-hour delay")

	require.NoError(t, s.Tick(context.Background(), 1))
	assert.Equal(t, []string{"FIRMWARE"}, deployed)
}

func TestContamination_RisesWithEventsAndDecaysOverTime(t *testing.T) {
	eventCount := 1
	c := subsystems.NewContamination(0.1, 0.5, func() int { return eventCount })

	require.NoError(t, c.Tick(context.Background(), 1))
	assert.InDelta(t, 0.5, c.Score(), 1e-9)

	eventCount = 0
	require.NoError(t, c.Tick(context.Background(), 1))
	assert.InDelta(t, 0.4, c.Score(), 1e-9)
}

func TestContamination_ScoreClampedToUnitInterval(t *testing.T) {
	c := subsystems.NewContamination(0, 1, func() int { return 100 })
	require.NoError(t, c.Tick(context.Background(), 1))
	assert.Equal(t, 1.0, c.Score())
}

func TestTransport_DepositsAfterTransitElapses(t *testing.T) {
	var delivered []string
	tr := subsystems.NewTransport(func(sym string, qty float64) { delivered = append(delivered, sym) })
	tr.Ship("FE_INGOT", 5, 2)

	require.NoError(t, tr.Tick(context.Background(), 1))
	assert.Equal(t, 1, tr.InFlightCount())
	assert.Empty(t, delivered)

	require.NoError(t, tr.Tick(context.Background(), 1))
	assert.Equal(t, 0, tr.InFlightCount())
	assert.Equal(t, []string{"FE_INGOT"}, delivered)
}
