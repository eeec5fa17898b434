// Package subsystems implements the optional per-tick subsystems named in
// spec.md §2/§9 (thermal, waste, software staging, contamination,
// transport) behind a common Subsystem interface so the tick orchestrator
// can dispatch them concurrently within a single topological layer.
// Grounded on okanyucel2-project-ultima-epoch-engine's per-subsystem
// Engine.Tick(...) State shape (rejected as teacher, retained here as a
// subordinate grounding source for independently-ticking subsystem
// engines).
package subsystems

import (
	"context"
	"math"
	"sync"
)

// Subsystem is one optional engine that advances independently each tick.
// Implementations keep their own state behind read accessors (e.g.
// Contamination.Score, Waste.AccumulatedKg); software staging and transport
// write into the storage ledger only through the deposit callbacks they are
// built with. Any cross-subsystem effect (e.g. contamination blocking a
// cleanroom task) is applied by the dispatch engine reading such an
// accessor, never by one subsystem calling into another.
type Subsystem interface {
	Name() string
	Tick(ctx context.Context, dtHours float64) error
}

// Thermal tracks factory ambient temperature against a passive-cooling
// target and an overheat threshold, exposed through AmbientC and
// Overheated. Module wear does not depend on temperature, and no tick phase
// reads the thermal state.
type Thermal struct {
	mu            sync.Mutex
	ambientC      float64
	targetC       float64
	passiveCoolPerHr float64
	heatPerActiveHr  float64
	activeLoad       func() float64
}

// NewThermal builds a thermal subsystem. activeLoad reports the current
// number of active task slots; each adds heatPerActiveHr per sim-hour.
func NewThermal(startC, targetC, passiveCoolPerHr, heatPerActiveHr float64, activeLoad func() float64) *Thermal {
	return &Thermal{ambientC: startC, targetC: targetC, passiveCoolPerHr: passiveCoolPerHr, heatPerActiveHr: heatPerActiveHr, activeLoad: activeLoad}
}

func (t *Thermal) Name() string { return "thermal" }

func (t *Thermal) Tick(ctx context.Context, dtHours float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delta := (t.targetC - t.ambientC) * t.passiveCoolPerHr * dtHours
	heat := t.heatPerActiveHr * t.activeLoad() * dtHours
	t.ambientC += delta + heat
	return nil
}

// AmbientC returns the current ambient temperature.
func (t *Thermal) AmbientC() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ambientC
}

// Overheated reports whether ambient temperature exceeds thresholdC.
func (t *Thermal) Overheated(thresholdC float64) bool {
	return t.AmbientC() > thresholdC
}

// Waste accumulates byproduct waste mass generated per completed task and
// removes a reprocessRate share of it per sim-hour. Only the remaining
// unprocessed mass is tracked; no reprocessed or landfilled totals are kept.
type Waste struct {
	mu             sync.Mutex
	accumulatedKg  float64
	reprocessRate  float64 // fraction reprocessed per sim-hour, (0,1]
	generatedKg    func() float64
}

// NewWaste builds a waste-tracking subsystem. generatedKg reports newly
// produced waste mass since the last tick.
func NewWaste(reprocessRate float64, generatedKg func() float64) *Waste {
	return &Waste{reprocessRate: reprocessRate, generatedKg: generatedKg}
}

func (w *Waste) Name() string { return "waste" }

func (w *Waste) Tick(ctx context.Context, dtHours float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.accumulatedKg += w.generatedKg()
	reprocessed := w.accumulatedKg * w.reprocessRate * dtHours
	if reprocessed > w.accumulatedKg {
		reprocessed = w.accumulatedKg
	}
	w.accumulatedKg -= reprocessed
	return nil
}

// AccumulatedKg returns the current unprocessed waste mass.
func (w *Waste) AccumulatedKg() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.accumulatedKg
}

// SoftwareStaging models the lead time between a software artifact being
// "produced" (by a software-producing recipe) and it becoming available to
// gate dispatch, per spec.md §9's decision that software is checked, not
// consumed, but may still need a staging delay before first availability.
type SoftwareStaging struct {
	mu      sync.Mutex
	pending map[string]float64 // resource symbol -> remaining staging hours
	deploy  func(resourceSymbol string)
}

// NewSoftwareStaging builds a staging subsystem. deploy is invoked once a
// pending artifact's staging delay elapses (typically: deposit 1 unit into
// the ledger).
func NewSoftwareStaging(deploy func(resourceSymbol string)) *SoftwareStaging {
	return &SoftwareStaging{pending: make(map[string]float64), deploy: deploy}
}

func (s *SoftwareStaging) Name() string { return "software_staging" }

// Stage registers a newly built artifact with a staging delay in hours
// before it becomes dispatch-gating.
func (s *SoftwareStaging) Stage(resourceSymbol string, delayHours float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[resourceSymbol] = delayHours
}

func (s *SoftwareStaging) Tick(ctx context.Context, dtHours float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sym, remain := range s.pending {
		remain -= dtHours
		if remain <= 0 {
			delete(s.pending, sym)
			s.deploy(sym)
			continue
		}
		s.pending[sym] = remain
	}
	return nil
}

// Contamination tracks a cleanroom contamination score in [0,1]; tasks
// dispatched into a cleanroom module while the score exceeds the
// recipe's tolerance are blocked by the dispatch engine reading Score.
type Contamination struct {
	mu           sync.Mutex
	score        float64
	decayPerHr   float64
	risePerEvent float64
	events       func() int // count of contamination-risking events since last tick
}

// NewContamination builds a contamination subsystem.
func NewContamination(decayPerHr, risePerEvent float64, events func() int) *Contamination {
	return &Contamination{decayPerHr: decayPerHr, risePerEvent: risePerEvent, events: events}
}

func (c *Contamination) Name() string { return "contamination" }

func (c *Contamination) Tick(ctx context.Context, dtHours float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.score = math.Max(0, c.score-c.decayPerHr*dtHours)
	c.score = math.Min(1, c.score+c.risePerEvent*float64(c.events()))
	return nil
}

// Score returns the current contamination score, 0 (clean) to 1 (fully
// contaminated).
func (c *Contamination) Score() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.score
}

// Transport models intra-factory material movement latency: a resource
// deposited at one module is not available to consumers until transportHrs
// of transit time have elapsed, represented as an in-flight queue.
type Transport struct {
	mu        sync.Mutex
	inFlight  []transportItem
	deposit   func(resourceSymbol string, qty float64)
}

type transportItem struct {
	resourceSymbol string
	quantity       float64
	remainingHrs   float64
}

// NewTransport builds a transport subsystem. deposit is invoked once an
// in-flight item's transit time elapses.
func NewTransport(deposit func(resourceSymbol string, qty float64)) *Transport {
	return &Transport{deposit: deposit}
}

func (t *Transport) Name() string { return "transport" }

// Ship enqueues a quantity of a resource for transportHrs of transit.
func (t *Transport) Ship(resourceSymbol string, qty, transportHrs float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inFlight = append(t.inFlight, transportItem{resourceSymbol: resourceSymbol, quantity: qty, remainingHrs: transportHrs})
}

func (t *Transport) Tick(ctx context.Context, dtHours float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	remaining := t.inFlight[:0]
	for _, item := range t.inFlight {
		item.remainingHrs -= dtHours
		if item.remainingHrs <= 0 {
			t.deposit(item.resourceSymbol, item.quantity)
			continue
		}
		remaining = append(remaining, item)
	}
	t.inFlight = remaining
	return nil
}

// InFlightCount returns the number of shipments still in transit.
func (t *Transport) InFlightCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inFlight)
}
