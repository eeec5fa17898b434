package energy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/solarforge/replicator/internal/domain/energy"
)

func baseConfig() energy.Config {
	return energy.Config{
		PeakGenerationKW:    10,
		DayLengthHours:      24,
		BatteryCapacityKWh:  100,
		ChargeEfficiency:    0.9,
		DischargeEfficiency: 0.9,
		MinReserveFraction:  0.2,
		BaseLoadKW:          1,
	}
}

func TestNew_StartsWithFullBattery(t *testing.T) {
	s := energy.New(baseConfig(), nil)
	assert.Equal(t, 100.0, s.BatteryKWh())
	assert.Equal(t, 1.0, s.BatteryFraction())
}

func TestGenerationKW_ZeroAtNightPeakAtNoon(t *testing.T) {
	s := energy.New(baseConfig(), nil)

	assert.InDelta(t, 0, s.GenerationKW(0), 1e-9, "midnight has no sun")
	assert.InDelta(t, 10, s.GenerationKW(12), 1e-6, "noon is peak")
	assert.InDelta(t, 0, s.GenerationKW(24), 1e-6, "wraps at the next midnight")
}

func TestGenerationKW_WeatherDeratesLinearly(t *testing.T) {
	cfg := baseConfig()
	s := energy.New(cfg, func(float64) float64 { return 0.5 })
	assert.InDelta(t, 5, s.GenerationKW(12), 1e-6)
}

func TestTick_SurplusGenerationChargesBattery(t *testing.T) {
	// Arrange: noon, no active demand, battery starts full so charging
	// must clamp at capacity rather than overshoot.
	s := energy.New(baseConfig(), nil)

	// Act
	frac := s.Tick(0, 12, 1)

	// Assert
	assert.Equal(t, 1.0, frac, "battery was already full; surplus is curtailed")
}

func TestTick_DeficitDischargesBattery(t *testing.T) {
	cfg := baseConfig()
	s := energy.New(cfg, func(float64) float64 { return 0 }) // no generation

	frac := s.Tick(5, 0, 2) // demand = base(1) + active(5) = 6kW for 2h = 12kWh / 0.9 eff
	assert.Less(t, frac, 1.0)
	assert.InDelta(t, 100-12.0/0.9, s.BatteryKWh(), 1e-6)
}

func TestTick_BatteryNeverGoesNegative(t *testing.T) {
	cfg := baseConfig()
	cfg.BatteryCapacityKWh = 1
	s := energy.New(cfg, func(float64) float64 { return 0 })

	s.Tick(1000, 0, 10)
	assert.Equal(t, 0.0, s.BatteryKWh())
}

func TestCanFund_RespectsMinimumReserve(t *testing.T) {
	cfg := baseConfig()
	s := energy.New(cfg, func(float64) float64 { return 0 }) // no generation, battery full

	// Reserve floor is 20kWh; battery starts at 100kWh so up to 80kWh of
	// headroom (minus base load) is available for one hour.
	assert.True(t, s.CanFund(5, 0, 1))
	assert.False(t, s.CanFund(10000, 0, 1))
}

func TestAvailableForConsumptionKW_IncludesGenerationAndBatteryHeadroom(t *testing.T) {
	s := energy.New(baseConfig(), func(float64) float64 { return 0 })
	avail := s.AvailableForConsumptionKW(0, 1)
	// battery headroom = 100 - 20(reserve) = 80kWh * 0.9 eff / 1h = 72kW, plus 0 generation.
	assert.InDelta(t, 72, avail, 1e-6)
}
