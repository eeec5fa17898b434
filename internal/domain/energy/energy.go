// Package energy implements the Energy System of spec.md §4.6: solar
// generation following a half-sine curve over each 24-hour day, optional weather
// derating, base and active-task consumption, and a battery buffer with
// charge/discharge efficiency and a minimum reserve floor.
package energy

import "math"

// Config holds the static parameters of the energy system, loaded from the
// simulation's configuration document.
type Config struct {
	PeakGenerationKW     float64
	DayLengthHours       float64
	BatteryCapacityKWh   float64
	ChargeEfficiency     float64 // fraction of generated energy retained when charging
	DischargeEfficiency  float64 // fraction of stored energy delivered when discharging
	MinReserveFraction   float64 // e.g. 0.20
	BaseLoadKW           float64
}

// State is the mutable, per-tick state of the energy system.
type State struct {
	cfg          Config
	batteryKWh   float64
	weatherFn    func(simHour float64) float64 // returns [0,1] generation derating factor
}

// New builds an energy State with the battery starting full.
func New(cfg Config, weatherFn func(simHour float64) float64) *State {
	if weatherFn == nil {
		weatherFn = func(float64) float64 { return 1.0 }
	}
	return &State{
		cfg:        cfg,
		batteryKWh: cfg.BatteryCapacityKWh,
		weatherFn:  weatherFn,
	}
}

// BatteryKWh returns the current battery charge.
func (s *State) BatteryKWh() float64 { return s.batteryKWh }

// BatteryFraction returns the current charge as a fraction of capacity.
func (s *State) BatteryFraction() float64 {
	if s.cfg.BatteryCapacityKWh <= 0 {
		return 0
	}
	return s.batteryKWh / s.cfg.BatteryCapacityKWh
}

// GenerationKW returns the instantaneous solar generation at simHour (hours
// since simulation start, wrapping on a 24h day), following
// peak * sin(pi * dayFraction), derated by the weather function. The curve
// is zero only at midnight and peaks at noon; there is no night-time period
// of zero output (the negative clip never triggers on this curve).
func (s *State) GenerationKW(simHour float64) float64 {
	dayFrac := math.Mod(simHour, 24.0) / 24.0
	raw := s.cfg.PeakGenerationKW * math.Sin(math.Pi*dayFrac)
	if raw < 0 {
		raw = 0
	}
	return raw * s.weatherFn(simHour)
}

// AvailableForConsumptionKW estimates how much power can be drawn this tick
// without breaching the minimum reserve: generation plus any battery energy
// above the reserve floor, expressed as a rate over dtHours.
func (s *State) AvailableForConsumptionKW(simHour, dtHours float64) float64 {
	gen := s.GenerationKW(simHour)
	reserve := s.cfg.MinReserveFraction * s.cfg.BatteryCapacityKWh
	availableBatteryKWh := s.batteryKWh - reserve
	if availableBatteryKWh < 0 {
		availableBatteryKWh = 0
	}
	if dtHours <= 0 {
		return gen
	}
	return gen + (availableBatteryKWh*s.cfg.DischargeEfficiency)/dtHours
}

// CanFund reports whether drawing demandKW for dtHours (including
// BaseLoadKW) would keep the battery at or above its minimum reserve.
func (s *State) CanFund(demandKW, simHour, dtHours float64) bool {
	return demandKW+s.cfg.BaseLoadKW <= s.AvailableForConsumptionKW(simHour, dtHours)+1e-9
}

// Tick advances the energy system by dtHours: generation charges the
// battery (bounded by capacity), BaseLoadKW plus the supplied
// activeDemandKW discharges it (bounded by zero), and returns the
// resulting battery fraction. Generation in excess of demand plus
// available headroom is curtailed (lost), matching an off-grid system
// with no export capacity.
func (s *State) Tick(activeDemandKW, simHour, dtHours float64) (batteryFraction float64) {
	gen := s.GenerationKW(simHour)
	demand := s.cfg.BaseLoadKW + activeDemandKW

	netKW := gen - demand
	if netKW >= 0 {
		s.batteryKWh += netKW * dtHours * s.cfg.ChargeEfficiency
		if s.batteryKWh > s.cfg.BatteryCapacityKWh {
			s.batteryKWh = s.cfg.BatteryCapacityKWh
		}
	} else {
		deficitKWh := -netKW * dtHours / s.cfg.DischargeEfficiency
		s.batteryKWh -= deficitKWh
		if s.batteryKWh < 0 {
			s.batteryKWh = 0
		}
	}
	return s.BatteryFraction()
}
