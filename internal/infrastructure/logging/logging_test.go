package logging_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	log "github.com/sirupsen/logrus"

	"github.com/solarforge/replicator/internal/infrastructure/logging"
)

func TestNew_DefaultsToInfoOnUnparseableLevel(t *testing.T) {
	logger, _, err := logging.New(logging.Config{Level: "not-a-level", Output: "stdout"})
	require.NoError(t, err)
	assert.Equal(t, log.InfoLevel, logger.GetLevel())
}

func TestNew_JSONFormatterWhenRequested(t *testing.T) {
	logger, _, err := logging.New(logging.Config{Level: "info", Format: "json", Output: "stdout"})
	require.NoError(t, err)
	_, ok := logger.Formatter.(*log.JSONFormatter)
	assert.True(t, ok)
}

func TestNew_WritesToConfiguredFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.log")
	logger, _, err := logging.New(logging.Config{Level: "info", Output: "file", FilePath: path})
	require.NoError(t, err)

	logger.Info("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestRingSink_CapturesFiredEntries(t *testing.T) {
	logger, ring, err := logging.New(logging.Config{Level: "info", Output: "stdout"})
	require.NoError(t, err)

	logger.Info("first")
	logger.Info("second")

	lines := ring.Lines()
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "first")
	assert.Contains(t, lines[1], "second")
}

func TestRingSink_TrimsToHalfOnOverflow(t *testing.T) {
	ring := logging.NewRingSink(10)
	for i := 0; i < 15; i++ {
		require.NoError(t, ring.Fire(&log.Entry{Message: "m", Logger: log.New()}))
	}
	assert.LessOrEqual(t, len(ring.Lines()), 10)
}
