package outputlog_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/solarforge/replicator/internal/application/tick"
	"github.com/solarforge/replicator/internal/infrastructure/outputlog"
)

func TestWriteYAML_RoundTrips(t *testing.T) {
	// Arrange
	doc := &outputlog.Document{
		Seed:            42,
		FinalSimHour:    12.5,
		TerminatedEarly: false,
		Tasks: []outputlog.TaskSummary{
			{ID: "t1", RecipeID: "smelt-fe", Status: "COMPLETED", Priority: 5},
		},
		Modules: []outputlog.ModuleSummary{
			{ID: "smelter-1", Type: "SMELTER", State: "RUNNING", Wear: 0.3},
		},
		Storage: map[string]float64{"FE_INGOT": 10},
		Metrics: []tick.MetricsSnapshot{
			{SimHour: 1, BatteryFrac: 0.9, ActiveTasks: 1, BlockedTasks: 0, CompletedTasks: 0},
		},
		LogTail:        []string{"started smelt-fe"},
		EventDropCount: 0,
	}
	path := filepath.Join(t.TempDir(), "out.yaml")

	// Act
	require.NoError(t, outputlog.WriteYAML(doc, path))

	// Assert
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got outputlog.Document
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, doc.Seed, got.Seed)
	assert.Equal(t, doc.FinalSimHour, got.FinalSimHour)
	require.Len(t, got.Tasks, 1)
	assert.Equal(t, "smelt-fe", got.Tasks[0].RecipeID)
	require.Len(t, got.Metrics, 1)
	assert.Equal(t, 0.9, got.Metrics[0].BatteryFrac)
}

func TestWriteYAML_OmitsEmptyTerminationCause(t *testing.T) {
	doc := &outputlog.Document{Seed: 1}
	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, outputlog.WriteYAML(doc, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "termination_cause")
}

func TestWriteYAML_RecordsTerminationCauseWhenSet(t *testing.T) {
	doc := &outputlog.Document{Seed: 1, TerminatedEarly: true, TerminationCause: "event_queue_overflow"}
	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, outputlog.WriteYAML(doc, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "event_queue_overflow")
}
