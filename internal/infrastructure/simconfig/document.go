package simconfig

// ResourceDoc declares one catalog entry in a spec document.
type ResourceDoc struct {
	Symbol      string  `yaml:"symbol" mapstructure:"symbol" validate:"required"`
	Kind        string  `yaml:"kind" mapstructure:"kind" validate:"required,oneof=material software energy"`
	UnitVolume  float64 `yaml:"unit_volume" mapstructure:"unit_volume" validate:"min=0"`
	UnitWeight  float64 `yaml:"unit_weight" mapstructure:"unit_weight" validate:"min=0"`
	Description string  `yaml:"description" mapstructure:"description"`
}

// RecipeInputDoc is one input line of a recipe.
type RecipeInputDoc struct {
	Resource string  `yaml:"resource" mapstructure:"resource" validate:"required"`
	Quantity float64 `yaml:"quantity" mapstructure:"quantity" validate:"gt=0"`
}

// RecipeOutputDoc is one output line of a recipe.
type RecipeOutputDoc struct {
	Resource string  `yaml:"resource" mapstructure:"resource" validate:"required"`
	Quantity float64 `yaml:"quantity" mapstructure:"quantity" validate:"gt=0"`
}

// RecipeDoc declares one production recipe in a spec document.
type RecipeDoc struct {
	ID             string            `yaml:"id" mapstructure:"id" validate:"required"`
	ModuleType     string            `yaml:"module_type" mapstructure:"module_type" validate:"required"`
	Inputs         []RecipeInputDoc  `yaml:"inputs" mapstructure:"inputs" validate:"dive"`
	Outputs        []RecipeOutputDoc `yaml:"outputs" mapstructure:"outputs" validate:"required,min=1,dive"`
	BaseDurationS  float64           `yaml:"base_duration_s" mapstructure:"base_duration_s" validate:"gt=0"`
	LearningFactor float64           `yaml:"learning_factor" mapstructure:"learning_factor" validate:"gt=0,lte=1"`
	// CleanroomClass is the optional contamination tolerance of spec.md
	// §4.1's recipe field list. A nil value means the recipe declares no
	// cleanroom requirement at all, distinct from an explicit zero
	// (spotless) tolerance.
	CleanroomClass *float64 `yaml:"cleanroom_class" mapstructure:"cleanroom_class" validate:"omitempty,gte=0,lte=1"`
}

// ModuleTypeDoc declares one module type in a spec document.
type ModuleTypeDoc struct {
	Symbol                 string   `yaml:"symbol" mapstructure:"symbol" validate:"required"`
	Slots                  int      `yaml:"slots" mapstructure:"slots" validate:"min=1"`
	MTBFHours              float64  `yaml:"mtbf_hours" mapstructure:"mtbf_hours" validate:"min=0"`
	MaintenanceEveryHours  float64  `yaml:"maintenance_every_hours" mapstructure:"maintenance_every_hours" validate:"min=0"`
	MaintenanceDurHours    float64  `yaml:"maintenance_duration_hours" mapstructure:"maintenance_duration_hours" validate:"min=0"`
	WearPerTaskHour        float64  `yaml:"wear_per_task_hour" mapstructure:"wear_per_task_hour" validate:"min=0"`
	RequiredSoftware       []string `yaml:"required_software" mapstructure:"required_software"`
	Cleanroom              bool     `yaml:"cleanroom" mapstructure:"cleanroom"`
	InitialInstances       int      `yaml:"initial_instances" mapstructure:"initial_instances" validate:"min=0"`
}

// EnergyDoc configures the energy system.
type EnergyDoc struct {
	PeakGenerationKW    float64 `yaml:"peak_generation_kw" mapstructure:"peak_generation_kw" validate:"gt=0"`
	DayLengthHours      float64 `yaml:"day_length_hours" mapstructure:"day_length_hours" validate:"gt=0"`
	BatteryCapacityKWh  float64 `yaml:"battery_capacity_kwh" mapstructure:"battery_capacity_kwh" validate:"gt=0"`
	ChargeEfficiency    float64 `yaml:"charge_efficiency" mapstructure:"charge_efficiency" validate:"gt=0,lte=1"`
	DischargeEfficiency float64 `yaml:"discharge_efficiency" mapstructure:"discharge_efficiency" validate:"gt=0,lte=1"`
	MinReserveFraction  float64 `yaml:"min_reserve_fraction" mapstructure:"min_reserve_fraction" validate:"gte=0,lt=1"`
	BaseLoadKW          float64 `yaml:"base_load_kw" mapstructure:"base_load_kw" validate:"gte=0"`
}

// StorageDoc configures the storage ledger's aggregate capacity.
type StorageDoc struct {
	VolumeCap float64 `yaml:"volume_cap" mapstructure:"volume_cap" validate:"gte=0"`
	WeightCap float64 `yaml:"weight_cap" mapstructure:"weight_cap" validate:"gte=0"`
}

// TickDoc configures the tick loop's timing parameters.
type TickDoc struct {
	DtSeconds       float64 `yaml:"dt_seconds" mapstructure:"dt_seconds" validate:"gt=0"`
	MaxHours        float64 `yaml:"max_hours" mapstructure:"max_hours" validate:"gt=0"`
	MetricsEveryHrs float64 `yaml:"metrics_every_hours" mapstructure:"metrics_every_hours" validate:"gt=0"`
	MaxStartsPerTick int    `yaml:"max_starts_per_tick" mapstructure:"max_starts_per_tick" validate:"min=1"`
}

// InitialStockDoc seeds the storage ledger with starting quantities.
type InitialStockDoc struct {
	Resource string  `yaml:"resource" mapstructure:"resource" validate:"required"`
	Quantity float64 `yaml:"quantity" mapstructure:"quantity" validate:"gte=0"`
}

// Document is the full structure of one spec document file, prior to
// parent-inheritance and profile-merge resolution.
type Document struct {
	Parent       string                    `yaml:"parent" mapstructure:"parent"`
	Seed         int64                     `yaml:"seed" mapstructure:"seed"`
	Resources    []ResourceDoc             `yaml:"resources" mapstructure:"resources" validate:"dive"`
	Recipes      []RecipeDoc               `yaml:"recipes" mapstructure:"recipes" validate:"dive"`
	ModuleTypes  []ModuleTypeDoc            `yaml:"module_types" mapstructure:"module_types" validate:"dive"`
	InitialStock []InitialStockDoc         `yaml:"initial_stock" mapstructure:"initial_stock" validate:"dive"`
	Energy       EnergyDoc                 `yaml:"energy" mapstructure:"energy"`
	Storage      StorageDoc                `yaml:"storage" mapstructure:"storage"`
	Tick         TickDoc                   `yaml:"tick" mapstructure:"tick"`
	Goals        []GoalDoc                 `yaml:"goals" mapstructure:"goals" validate:"dive"`
	MetricsExport MetricsExportDoc         `yaml:"metrics_export" mapstructure:"metrics_export"`
	Modular      ModularDoc                `yaml:"modular" mapstructure:"modular"`
	Profiles     map[string]ProfileOverride `yaml:"profiles" mapstructure:"profiles"`
}

// ModularDoc declares the optional per-tick subsystems of
// internal/application/subsystems. Each field is a pointer so a
// subsystem's absence (nil) is distinguishable from its zero value; only
// subsystems present in the resolved document are constructed, and only
// when --modular is passed to the run command.
type ModularDoc struct {
	Thermal         *ThermalDoc         `yaml:"thermal" mapstructure:"thermal"`
	Waste           *WasteDoc           `yaml:"waste" mapstructure:"waste"`
	SoftwareStaging *SoftwareStagingDoc `yaml:"software_staging" mapstructure:"software_staging"`
	Contamination   *ContaminationDoc   `yaml:"contamination" mapstructure:"contamination"`
	Transport       *TransportDoc       `yaml:"transport" mapstructure:"transport"`
}

// ThermalDoc configures the optional thermal subsystem.
type ThermalDoc struct {
	StartC           float64 `yaml:"start_c" mapstructure:"start_c"`
	TargetC          float64 `yaml:"target_c" mapstructure:"target_c"`
	PassiveCoolPerHr float64 `yaml:"passive_cool_per_hr" mapstructure:"passive_cool_per_hr" validate:"gte=0"`
	HeatPerActiveHr  float64 `yaml:"heat_per_active_hr" mapstructure:"heat_per_active_hr" validate:"gte=0"`
	OverheatC        float64 `yaml:"overheat_c" mapstructure:"overheat_c"`
}

// WasteDoc configures the optional waste-tracking subsystem.
type WasteDoc struct {
	ReprocessRate   float64 `yaml:"reprocess_rate" mapstructure:"reprocess_rate" validate:"gte=0,lte=1"`
	KgPerCompletion float64 `yaml:"kg_per_completion" mapstructure:"kg_per_completion" validate:"gte=0"`
}

// SoftwareStagingDoc configures the optional software-staging subsystem.
type SoftwareStagingDoc struct {
	DelayHours float64 `yaml:"delay_hours" mapstructure:"delay_hours" validate:"gte=0"`
}

// ContaminationDoc configures the optional contamination subsystem.
type ContaminationDoc struct {
	DecayPerHr   float64 `yaml:"decay_per_hr" mapstructure:"decay_per_hr" validate:"gte=0"`
	RisePerEvent float64 `yaml:"rise_per_event" mapstructure:"rise_per_event" validate:"gte=0"`
	Tolerance    float64 `yaml:"tolerance" mapstructure:"tolerance" validate:"gte=0,lte=1"`
}

// TransportDoc configures the optional intra-factory transport subsystem.
type TransportDoc struct {
	TransitHours float64 `yaml:"transit_hours" mapstructure:"transit_hours" validate:"gte=0"`
}

// MetricsExportDoc optionally enables a live Prometheus metrics listener
// alongside the structured output log.
type MetricsExportDoc struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr    string `yaml:"addr" mapstructure:"addr"`
}

// GoalDoc names a top-level production target to seed as an initial task
// when the simulation starts.
type GoalDoc struct {
	RecipeID string  `yaml:"recipe_id" mapstructure:"recipe_id" validate:"required"`
	Priority int     `yaml:"priority" mapstructure:"priority"`
	// Quantity is how many units of the goal recipe's output to resolve a
	// full task DAG for. Zero defaults to the recipe's own output_quantity
	// (one batch).
	Quantity float64 `yaml:"quantity" mapstructure:"quantity" validate:"gte=0"`
}

// ProfileOverride is a named, partial override applied on top of the fully
// resolved (post-inheritance) document when --profile selects it. Any zero
// value is treated as "not overridden" during the deep merge.
type ProfileOverride struct {
	Energy EnergyDoc `yaml:"energy" mapstructure:"energy"`
	Tick   TickDoc   `yaml:"tick" mapstructure:"tick"`
}

// Limits bounds the size and cardinality of a resolved document, per
// spec.md §4.10.
type Limits struct {
	MaxFileSizeBytes  int64
	MaxResources      int
	MaxRecipes        int
	MaxModuleTypes    int
	MaxInheritDepth   int
}

// DefaultLimits matches spec.md §4.10's stated caps.
func DefaultLimits() Limits {
	return Limits{
		MaxFileSizeBytes: 50 * 1024 * 1024,
		MaxResources:     5000,
		MaxRecipes:       10000,
		MaxModuleTypes:   1000,
		MaxInheritDepth:  10,
	}
}
