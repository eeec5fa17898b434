// Package module implements the Module Registry & per-instance state
// machine of spec.md §4.4: module types declare capacity and throughput,
// instances accumulate wear, fail stochastically against an MTBF, and
// enter scheduled maintenance.
package module

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	log "github.com/sirupsen/logrus"
)

// moduleResourceSuffix is the naming convention of spec.md §4.4/§2: a
// resource symbol "<TYPE>_MODULE" names the output that, when produced,
// grows the module type TYPE's instance count (the self-replication
// growth mechanic).
const moduleResourceSuffix = "_MODULE"

// TypeSymbolForResource reports the module type symbol grown by producing
// resourceSymbol, and whether resourceSymbol follows the "<TYPE>_MODULE"
// convention at all.
func TypeSymbolForResource(resourceSymbol string) (string, bool) {
	if !strings.HasSuffix(resourceSymbol, moduleResourceSuffix) {
		return "", false
	}
	typeSymbol := strings.TrimSuffix(resourceSymbol, moduleResourceSuffix)
	if typeSymbol == "" {
		return "", false
	}
	return typeSymbol, true
}

// State is the lifecycle state of a module instance.
type State int

const (
	StateRunning State = iota
	StateMaintaining
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StateMaintaining:
		return "MAINTAINING"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Type describes a class of module: how many concurrent task slots it
// offers, its reliability characteristics, and its maintenance schedule.
type Type struct {
	Symbol              string
	Slots               int
	MTBFHours           float64 // mean time between stochastic failures
	MaintenanceEveryHrs float64
	MaintenanceDurHrs   float64
	WearPerTaskHour     float64
	RequiredSoftware    []string
	Cleanroom           bool
}

// Instance is one concrete module: a machine of some Type, with its own
// wear, state, and active task slots.
type Instance struct {
	id           string
	typ          *Type
	state        State
	wear         float64 // 0 (new) .. 1 (worn out)
	activeSlots  int
	hoursRun     float64
	hoursSinceMx float64
	mxRemainHrs  float64
	rng          *rand.Rand
	log          *log.Entry
}

// NewInstance creates a fresh, unworn instance of typ. rngSeed should be
// derived deterministically from the simulation's master seed so repeated
// runs with the same seed fail modules at the same simulated moments.
func NewInstance(id string, typ *Type, rngSeed int64, logger *log.Entry) *Instance {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Instance{
		id:    id,
		typ:   typ,
		state: StateRunning,
		rng:   rand.New(rand.NewSource(rngSeed)),
		log:   logger.WithField("module_instance", id),
	}
}

func (m *Instance) ID() string      { return m.id }
func (m *Instance) Type() *Type     { return m.typ }
func (m *Instance) State() State    { return m.state }
func (m *Instance) Wear() float64   { return m.wear }
func (m *Instance) ActiveSlots() int { return m.activeSlots }

// FreeSlots returns how many additional tasks this instance can accept.
func (m *Instance) FreeSlots() int {
	if m.state != StateRunning {
		return 0
	}
	free := m.typ.Slots - m.activeSlots
	if free < 0 {
		return 0
	}
	return free
}

// EffectiveThroughputFactor scales task duration/quality by the module's
// accumulated wear: a fully worn module (wear=1) runs at zero effective
// throughput; spec.md's (1 - wear) scaling.
func (m *Instance) EffectiveThroughputFactor() float64 {
	return 1 - m.wear
}

// AcquireSlot reserves one task slot on this instance. Returns an error if
// the module is not running or has no free slot.
func (m *Instance) AcquireSlot() error {
	if m.state != StateRunning {
		return fmt.Errorf("module %s: cannot acquire slot, state=%s", m.id, m.state)
	}
	if m.FreeSlots() <= 0 {
		return fmt.Errorf("module %s: no free slots", m.id)
	}
	m.activeSlots++
	return nil
}

// ReleaseSlot frees one task slot, called on task completion, failure, or
// requeue.
func (m *Instance) ReleaseSlot() {
	if m.activeSlots > 0 {
		m.activeSlots--
	}
}

// Tick advances this module's internal clock by dtHours of operation,
// accumulating wear while slots are active, rolling a stochastic failure
// check against its MTBF, and progressing any in-flight maintenance.
// Returns true if the module transitioned to Failed this tick.
func (m *Instance) Tick(dtHours float64) (failedThisTick bool) {
	switch m.state {
	case StateMaintaining:
		m.mxRemainHrs -= dtHours
		if m.mxRemainHrs <= 0 {
			m.state = StateRunning
			m.wear = 0
			m.hoursSinceMx = 0
			m.log.Info("maintenance complete, wear reset")
		}
		return false
	case StateFailed:
		return false
	}

	if m.activeSlots > 0 {
		m.wear = math.Min(1, m.wear+m.typ.WearPerTaskHour*dtHours)
		m.hoursRun += dtHours
	}
	m.hoursSinceMx += dtHours

	if m.typ.MaintenanceEveryHrs > 0 && m.hoursSinceMx >= m.typ.MaintenanceEveryHrs {
		m.state = StateMaintaining
		m.mxRemainHrs = m.typ.MaintenanceDurHrs
		m.log.WithField("wear", m.wear).Info("entering scheduled maintenance")
		return false
	}

	if m.typ.MTBFHours > 0 && m.activeSlots > 0 {
		// Constant-hazard-rate failure model: probability of failure in
		// this slice is dtHours / MTBFHours.
		if m.rng.Float64() < dtHours/m.typ.MTBFHours {
			m.state = StateFailed
			m.log.WithField("wear", m.wear).Warn("module failed stochastically")
			return true
		}
	}
	return false
}

// Repair forces a failed module back to Running with full wear reset,
// representing an out-of-band maintenance intervention. Nothing in the
// engine calls it: Tick leaves a Failed instance Failed, so a failed module
// stays out of service until a caller invokes Repair.
func (m *Instance) Repair() {
	m.state = StateRunning
	m.wear = 0
	m.hoursSinceMx = 0
	m.activeSlots = 0
}

// Registry holds every declared module Type and every live Instance,
// indexed by type symbol for the dispatch engine's availability scans.
type Registry struct {
	types         map[string]*Type
	instancesBy   map[string][]*Instance
	instanceByID  map[string]*Instance
}

// NewRegistry builds an empty module registry.
func NewRegistry() *Registry {
	return &Registry{
		types:        make(map[string]*Type),
		instancesBy:  make(map[string][]*Instance),
		instanceByID: make(map[string]*Instance),
	}
}

// RegisterType declares a module type.
func (r *Registry) RegisterType(t *Type) error {
	if _, exists := r.types[t.Symbol]; exists {
		return fmt.Errorf("module registry: duplicate module type %q", t.Symbol)
	}
	r.types[t.Symbol] = t
	return nil
}

// AddInstance adds a live instance of an already-registered type.
func (r *Registry) AddInstance(inst *Instance) error {
	if _, exists := r.types[inst.typ.Symbol]; !exists {
		return fmt.Errorf("module registry: type %q not registered", inst.typ.Symbol)
	}
	r.instancesBy[inst.typ.Symbol] = append(r.instancesBy[inst.typ.Symbol], inst)
	r.instanceByID[inst.id] = inst
	return nil
}

// Grow adds n freshly built, unworn instances of typeSymbol to the
// registry, per spec.md §4.4's self-replication growth mechanic: a task
// producing that type's "<TYPE>_MODULE" resource completes and the
// registry's count for TYPE increases by output_quantity. rngSeed is
// called once per new instance, deterministically deriving its failure
// clock from the simulation's master seed.
func (r *Registry) Grow(typeSymbol string, n int, rngSeed func() int64, logger *log.Entry) ([]*Instance, error) {
	typ, ok := r.types[typeSymbol]
	if !ok {
		return nil, fmt.Errorf("module registry: type %q not registered", typeSymbol)
	}
	existing := len(r.instancesBy[typeSymbol])
	out := make([]*Instance, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s-%d", typeSymbol, existing+i)
		inst := NewInstance(id, typ, rngSeed(), logger)
		if err := r.AddInstance(inst); err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

// InstancesOfType returns every instance of the given module type symbol.
func (r *Registry) InstancesOfType(symbol string) []*Instance {
	return append([]*Instance(nil), r.instancesBy[symbol]...)
}

// Instance returns the instance with the given id, if any.
func (r *Registry) Instance(id string) (*Instance, bool) {
	inst, ok := r.instanceByID[id]
	return inst, ok
}

// AllInstances returns every instance across every type, unordered.
func (r *Registry) AllInstances() []*Instance {
	out := make([]*Instance, 0, len(r.instanceByID))
	for _, inst := range r.instanceByID {
		out = append(out, inst)
	}
	return out
}

// Type returns the declared type for symbol, if any.
func (r *Registry) Type(symbol string) (*Type, bool) {
	t, ok := r.types[symbol]
	return t, ok
}
