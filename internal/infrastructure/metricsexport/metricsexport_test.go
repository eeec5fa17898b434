package metricsexport_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarforge/replicator/internal/application/tick"
	"github.com/solarforge/replicator/internal/infrastructure/metricsexport"
)

func TestServe_ExposesObservedSnapshotOnMetricsEndpoint(t *testing.T) {
	c := metricsexport.NewCollector()
	c.Observe(tick.MetricsSnapshot{
		SimHour: 3, BatteryFrac: 0.75, ActiveTasks: 2, BlockedTasks: 1, CompletedTasks: 9,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr := "127.0.0.1:19823"
	require.NoError(t, c.Serve(ctx, addr))
	defer c.Shutdown(context.Background())

	var body string
	for i := 0; i < 20; i++ {
		resp, err := http.Get(fmt.Sprintf("http://%s/metrics", addr))
		if err == nil {
			b, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			body = string(b)
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	assert.Contains(t, body, "replicator_sim_battery_fraction 0.75")
	assert.Contains(t, body, "replicator_sim_completed_tasks 9")
}

func TestShutdown_NoopWhenNeverServed(t *testing.T) {
	c := metricsexport.NewCollector()
	assert.NoError(t, c.Shutdown(context.Background()))
}
