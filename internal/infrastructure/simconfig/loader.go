// Package simconfig implements the Configuration Loader of spec.md §4.10:
// a safe, non-executing YAML parser with spec inheritance, named profile
// overrides, a path allow-list, and size/cardinality caps. Grounded on the
// teacher's internal/infrastructure/config package (config.go, validation.go),
// generalized from flat env-driven config to document inheritance.
package simconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/solarforge/replicator/internal/application/resolver"
	"github.com/solarforge/replicator/internal/domain/recipe"
	"github.com/solarforge/replicator/internal/domain/task"
)

// Loader resolves a spec document file into a fully merged, validated
// Document, subject to a path allow-list and the configured Limits.
type Loader struct {
	limits      Limits
	allowedDirs []string
	validate    *validator.Validate
}

// NewLoader builds a Loader. allowedDirs should include the spec
// document's own directory, the current working directory, and /tmp, per
// spec.md §4.10's path allow-list.
func NewLoader(limits Limits, allowedDirs []string) *Loader {
	return &Loader{
		limits:      limits,
		allowedDirs: append([]string(nil), allowedDirs...),
		validate:    validator.New(),
	}
}

// Load reads and resolves the spec document at path: verifies the path is
// within the allow-list, enforces the size cap, parses YAML (never
// executing code — yaml.v3's decoder has no eval hooks), walks the
// `parent` chain with cycle and depth checks, deep-merges parent into
// child (child fields win), applies profileName's override if non-empty,
// enforces cardinality caps, and validates every numeric/required field.
func (l *Loader) Load(path, profileName string) (*Document, error) {
	resolved, err := l.resolveChain(path, nil, 0)
	if err != nil {
		return nil, err
	}
	if profileName != "" {
		override, ok := resolved.Profiles[profileName]
		if !ok {
			return nil, ErrInvalidConfiguration{FieldPath: "profiles." + profileName, Reason: "profile not declared in spec document"}
		}
		applyProfileOverride(resolved, override)
	}

	if err := l.enforceCardinality(resolved); err != nil {
		return nil, err
	}
	if err := l.validateDocument(resolved); err != nil {
		return nil, err
	}
	return resolved, nil
}

// resolveChain loads path, recursively merging its parent (if any) beneath
// it, with cycle detection via the visited chain and a max-depth guard.
func (l *Loader) resolveChain(path string, chain []string, depth int) (*Document, error) {
	if depth > l.limits.MaxInheritDepth {
		return nil, ErrInheritanceTooDeep{Path: path, Depth: depth, Max: l.limits.MaxInheritDepth}
	}
	abs, err := l.checkAllowedPath(path)
	if err != nil {
		return nil, err
	}
	for _, visited := range chain {
		if visited == abs {
			return nil, ErrCircularInheritance{Path: path, Chain: append(append([]string(nil), chain...), abs)}
		}
	}
	chain = append(chain, abs)

	doc, err := l.parseFile(abs)
	if err != nil {
		return nil, err
	}

	if doc.Parent == "" {
		return doc, nil
	}

	parentPath := doc.Parent
	if !filepath.IsAbs(parentPath) {
		parentPath = filepath.Join(filepath.Dir(abs), parentPath)
	}
	parentDoc, err := l.resolveChain(parentPath, chain, depth+1)
	if err != nil {
		return nil, err
	}

	merged := mergeDocuments(parentDoc, doc)
	return merged, nil
}

func (l *Loader) checkAllowedPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", ErrInvalidPath{Path: path}
	}
	for _, dir := range l.allowedDirs {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		if abs == absDir || isWithinDir(abs, absDir) {
			return abs, nil
		}
	}
	return "", ErrInvalidPath{Path: path}
}

func isWithinDir(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (l *Loader) parseFile(abs string) (*Document, error) {
	info, err := os.Stat(abs)
	if err != nil {
		return nil, ErrInvalidPath{Path: abs}
	}
	if info.Size() > l.limits.MaxFileSizeBytes {
		return nil, ErrFileTooLarge{Path: abs, SizeB: info.Size(), LimitB: l.limits.MaxFileSizeBytes}
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("simconfig: reading %s: %w", abs, err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, ErrInvalidConfiguration{FieldPath: abs, Reason: fmt.Sprintf("yaml parse error: %v", err)}
	}
	return &doc, nil
}

// mergeDocuments deep-merges child on top of parent: any slice the child
// declares replaces the parent's entirely (recipes/resources/module types
// are not merged element-by-element — a child spec is expected to declare
// its full catalog if it overrides any of it), and any non-zero scalar
// struct field the child sets overrides the parent's.
func mergeDocuments(parent, child *Document) *Document {
	out := *parent

	if len(child.Resources) > 0 {
		out.Resources = child.Resources
	}
	if len(child.Recipes) > 0 {
		out.Recipes = child.Recipes
	}
	if len(child.ModuleTypes) > 0 {
		out.ModuleTypes = child.ModuleTypes
	}
	if len(child.InitialStock) > 0 {
		out.InitialStock = child.InitialStock
	}
	if len(child.Goals) > 0 {
		out.Goals = child.Goals
	}
	if child.Seed != 0 {
		out.Seed = child.Seed
	}

	out.Energy = mergeEnergy(parent.Energy, child.Energy)
	out.Storage = mergeStorage(parent.Storage, child.Storage)
	out.Tick = mergeTick(parent.Tick, child.Tick)

	if child.MetricsExport.Enabled || child.MetricsExport.Addr != "" {
		out.MetricsExport = child.MetricsExport
	}
	out.Modular = mergeModular(parent.Modular, child.Modular)

	if len(child.Profiles) > 0 {
		if out.Profiles == nil {
			out.Profiles = make(map[string]ProfileOverride, len(child.Profiles))
		}
		for k, v := range child.Profiles {
			out.Profiles[k] = v
		}
	}

	out.Parent = ""
	return &out
}

// mergeModular overrides each optional subsystem wholesale if the child
// declares it; a subsystem the child leaves nil keeps the parent's.
func mergeModular(parent, child ModularDoc) ModularDoc {
	out := parent
	if child.Thermal != nil {
		out.Thermal = child.Thermal
	}
	if child.Waste != nil {
		out.Waste = child.Waste
	}
	if child.SoftwareStaging != nil {
		out.SoftwareStaging = child.SoftwareStaging
	}
	if child.Contamination != nil {
		out.Contamination = child.Contamination
	}
	if child.Transport != nil {
		out.Transport = child.Transport
	}
	return out
}

func mergeEnergy(parent, child EnergyDoc) EnergyDoc {
	out := parent
	if child.PeakGenerationKW != 0 {
		out.PeakGenerationKW = child.PeakGenerationKW
	}
	if child.DayLengthHours != 0 {
		out.DayLengthHours = child.DayLengthHours
	}
	if child.BatteryCapacityKWh != 0 {
		out.BatteryCapacityKWh = child.BatteryCapacityKWh
	}
	if child.ChargeEfficiency != 0 {
		out.ChargeEfficiency = child.ChargeEfficiency
	}
	if child.DischargeEfficiency != 0 {
		out.DischargeEfficiency = child.DischargeEfficiency
	}
	if child.MinReserveFraction != 0 {
		out.MinReserveFraction = child.MinReserveFraction
	}
	if child.BaseLoadKW != 0 {
		out.BaseLoadKW = child.BaseLoadKW
	}
	return out
}

func mergeStorage(parent, child StorageDoc) StorageDoc {
	out := parent
	if child.VolumeCap != 0 {
		out.VolumeCap = child.VolumeCap
	}
	if child.WeightCap != 0 {
		out.WeightCap = child.WeightCap
	}
	return out
}

func mergeTick(parent, child TickDoc) TickDoc {
	out := parent
	if child.DtSeconds != 0 {
		out.DtSeconds = child.DtSeconds
	}
	if child.MaxHours != 0 {
		out.MaxHours = child.MaxHours
	}
	if child.MetricsEveryHrs != 0 {
		out.MetricsEveryHrs = child.MetricsEveryHrs
	}
	if child.MaxStartsPerTick != 0 {
		out.MaxStartsPerTick = child.MaxStartsPerTick
	}
	return out
}

func applyProfileOverride(doc *Document, override ProfileOverride) {
	doc.Energy = mergeEnergy(doc.Energy, override.Energy)
	doc.Tick = mergeTick(doc.Tick, override.Tick)
}

func (l *Loader) enforceCardinality(doc *Document) error {
	if len(doc.Resources) > l.limits.MaxResources {
		return ErrInvalidConfiguration{FieldPath: "resources", Reason: fmt.Sprintf("%d resources exceeds cap of %d", len(doc.Resources), l.limits.MaxResources)}
	}
	if len(doc.Recipes) > l.limits.MaxRecipes {
		return ErrInvalidConfiguration{FieldPath: "recipes", Reason: fmt.Sprintf("%d recipes exceeds cap of %d", len(doc.Recipes), l.limits.MaxRecipes)}
	}
	if len(doc.ModuleTypes) > l.limits.MaxModuleTypes {
		return ErrInvalidConfiguration{FieldPath: "module_types", Reason: fmt.Sprintf("%d module types exceeds cap of %d", len(doc.ModuleTypes), l.limits.MaxModuleTypes)}
	}
	return nil
}

func (l *Loader) validateDocument(doc *Document) error {
	if err := l.validate.Struct(doc); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			first := verrs[0]
			return ErrInvalidConfiguration{FieldPath: first.Namespace(), Reason: fmt.Sprintf("failed %q (value: %v)", first.Tag(), first.Value())}
		}
		return ErrInvalidConfiguration{FieldPath: "<root>", Reason: err.Error()}
	}
	if err := validateReferences(doc); err != nil {
		return err
	}
	if err := validateResolvable(doc); err != nil {
		return err
	}
	return nil
}

// validateReferences checks that every cross-reference in doc points at a
// declared entity, per spec.md §4.1/§4.10: recipe module types and inputs/
// outputs must name declared module types and resources, a module type's
// required_software must name a declared resource, and every goal must name
// a declared recipe.
func validateReferences(doc *Document) error {
	resources := make(map[string]bool, len(doc.Resources))
	for _, r := range doc.Resources {
		resources[r.Symbol] = true
	}
	moduleTypes := make(map[string]bool, len(doc.ModuleTypes))
	for _, mt := range doc.ModuleTypes {
		moduleTypes[mt.Symbol] = true
	}

	for _, mt := range doc.ModuleTypes {
		for _, sw := range mt.RequiredSoftware {
			if !resources[sw] {
				return ErrInvalidConfiguration{FieldPath: fmt.Sprintf("module_types[%s].required_software", mt.Symbol), Reason: fmt.Sprintf("references undeclared resource %q", sw)}
			}
		}
	}

	seenOutput := make(map[string]string, len(doc.Recipes))
	for _, rd := range doc.Recipes {
		if !moduleTypes[rd.ModuleType] {
			return ErrInvalidConfiguration{FieldPath: fmt.Sprintf("recipes[%s].module_type", rd.ID), Reason: fmt.Sprintf("references undeclared module type %q", rd.ModuleType)}
		}
		for _, in := range rd.Inputs {
			if !resources[in.Resource] {
				return ErrInvalidConfiguration{FieldPath: fmt.Sprintf("recipes[%s].inputs", rd.ID), Reason: fmt.Sprintf("references undeclared resource %q", in.Resource)}
			}
		}
		for _, out := range rd.Outputs {
			if !resources[out.Resource] {
				return ErrInvalidConfiguration{FieldPath: fmt.Sprintf("recipes[%s].outputs", rd.ID), Reason: fmt.Sprintf("references undeclared resource %q", out.Resource)}
			}
			if owner, exists := seenOutput[out.Resource]; exists && owner != rd.ID {
				return ErrInvalidConfiguration{FieldPath: fmt.Sprintf("recipes[%s].outputs", rd.ID), Reason: fmt.Sprintf("resource %q is also produced by recipe %q", out.Resource, owner)}
			}
			seenOutput[out.Resource] = rd.ID
		}
	}

	for _, g := range doc.Goals {
		found := false
		for _, rd := range doc.Recipes {
			if rd.ID == g.RecipeID {
				found = true
				break
			}
		}
		if !found {
			return ErrInvalidConfiguration{FieldPath: "goals", Reason: fmt.Sprintf("references undeclared recipe %q", g.RecipeID)}
		}
	}

	return nil
}

// validateResolvable confirms the Requirements Resolver can expand every
// declared goal without hitting a cycle in the recipe graph, per spec.md
// §4.2/§4.10: a cyclic recipe (A needs B, B needs A) must fail to load
// rather than surface as a runtime stall.
func validateResolvable(doc *Document) error {
	if len(doc.Goals) == 0 {
		return nil
	}

	recipes := recipe.NewRegistry()
	for _, rd := range doc.Recipes {
		inputs := make([]recipe.Input, 0, len(rd.Inputs))
		for _, in := range rd.Inputs {
			inputs = append(inputs, recipe.Input{ResourceSymbol: in.Resource, Quantity: in.Quantity})
		}
		outputs := make([]recipe.Output, 0, len(rd.Outputs))
		for _, out := range rd.Outputs {
			outputs = append(outputs, recipe.Output{ResourceSymbol: out.Resource, Quantity: out.Quantity})
		}
		learning := rd.LearningFactor
		if learning == 0 {
			learning = 1.0
		}
		r, err := recipe.New(rd.ID, rd.ModuleType, inputs, outputs, rd.BaseDurationS, learning)
		if err != nil {
			return ErrInvalidConfiguration{FieldPath: fmt.Sprintf("recipes[%s]", rd.ID), Reason: err.Error()}
		}
		if err := recipes.Add(r); err != nil {
			return ErrInvalidConfiguration{FieldPath: "recipes", Reason: err.Error()}
		}
	}

	res, err := resolver.New(recipes, 1024)
	if err != nil {
		return ErrInvalidConfiguration{FieldPath: "<root>", Reason: err.Error()}
	}

	for _, g := range doc.Goals {
		rd, ok := recipes.Get(g.RecipeID)
		if !ok {
			continue // already reported by validateReferences
		}
		outputs := rd.Outputs()
		if len(outputs) == 0 {
			continue
		}
		qty := g.Quantity
		if qty <= 0 {
			qty = outputs[0].Quantity
		}
		if _, err := res.Resolve(outputs[0].ResourceSymbol, qty); err != nil {
			var cycleErr task.ErrCircularDependency
			if errors.As(err, &cycleErr) {
				return ErrInvalidConfiguration{FieldPath: "goals", Reason: fmt.Sprintf("recipe %q has a circular dependency: %v", g.RecipeID, cycleErr)}
			}
			return ErrInvalidConfiguration{FieldPath: "goals", Reason: err.Error()}
		}
	}

	return nil
}
