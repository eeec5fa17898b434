// Package outputlog assembles and serializes the structured output log
// document of spec.md §6: final state, the periodic metrics series, a
// bounded tail of recent log lines, and the event bus's dropped-event count.
package outputlog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/solarforge/replicator/internal/application/tick"
)

// TaskSummary is one task's final state as reported in the output log.
type TaskSummary struct {
	ID       string  `yaml:"id"`
	RecipeID string  `yaml:"recipe_id"`
	Status   string  `yaml:"status"`
	Priority int     `yaml:"priority"`
}

// ModuleSummary is one module instance's final state.
type ModuleSummary struct {
	ID    string  `yaml:"id"`
	Type  string  `yaml:"type"`
	State string  `yaml:"state"`
	Wear  float64 `yaml:"wear"`
}

// Document is the full output log emitted at the end of a run (or on a
// SimulationTimeout flush of partial state).
type Document struct {
	Seed            int64                   `yaml:"seed"`
	FinalSimHour    float64                 `yaml:"final_sim_hour"`
	TerminatedEarly bool                    `yaml:"terminated_early"`
	TerminationCause string                 `yaml:"termination_cause,omitempty"`
	Tasks           []TaskSummary           `yaml:"tasks"`
	Modules         []ModuleSummary         `yaml:"modules"`
	Storage         map[string]float64      `yaml:"storage"`
	Metrics         []tick.MetricsSnapshot  `yaml:"metrics"`
	LogTail         []string                `yaml:"log_tail"`
	EventDropCount  uint64                  `yaml:"event_drop_count"`
}

// WriteYAML serializes doc as YAML to path.
func WriteYAML(doc *Document, path string) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("outputlog: marshaling: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("outputlog: writing %s: %w", path, err)
	}
	return nil
}
