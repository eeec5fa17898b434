// Package metricsexport optionally republishes the tick loop's periodic
// metrics series as Prometheus gauges on a loopback HTTP listener, for
// operators who want to graph a long run live. This is additive to the
// output log's metrics series, never a replacement for it. Grounded on the
// teacher's internal/adapters/metrics/container_metrics.go gauge-vec
// construction idiom.
package metricsexport

import (
	"context"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/solarforge/replicator/internal/application/tick"
)

const (
	namespace = "replicator"
	subsystem = "sim"
)

// Collector publishes the most recent MetricsSnapshot as Prometheus
// gauges.
type Collector struct {
	batteryFrac    prometheus.Gauge
	activeTasks    prometheus.Gauge
	blockedTasks   prometheus.Gauge
	completedTasks prometheus.Gauge
	simHour        prometheus.Gauge

	registry *prometheus.Registry
	server   *http.Server
}

// NewCollector builds a Collector and registers its gauges on a fresh
// registry (not the global default, so multiple simulation runs in one
// process never collide).
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		batteryFrac: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "battery_fraction", Help: "Current battery charge as a fraction of capacity.",
		}),
		activeTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "active_tasks", Help: "Number of tasks currently running.",
		}),
		blockedTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "blocked_tasks", Help: "Number of tasks currently blocked.",
		}),
		completedTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "completed_tasks", Help: "Cumulative number of completed tasks.",
		}),
		simHour: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "sim_hour", Help: "Current simulated hour.",
		}),
	}
	reg.MustRegister(c.batteryFrac, c.activeTasks, c.blockedTasks, c.completedTasks, c.simHour)
	return c
}

// Observe updates the gauges from the latest snapshot.
func (c *Collector) Observe(snap tick.MetricsSnapshot) {
	c.batteryFrac.Set(snap.BatteryFrac)
	c.activeTasks.Set(float64(snap.ActiveTasks))
	c.blockedTasks.Set(float64(snap.BlockedTasks))
	c.completedTasks.Set(float64(snap.CompletedTasks))
	c.simHour.Set(snap.SimHour)
}

// Serve starts a loopback-only HTTP listener exposing /metrics, returning
// once the listener is bound. Call Shutdown to stop it.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	c.server = &http.Server{Handler: mux}
	go func() {
		_ = c.server.Serve(ln)
	}()
	go func() {
		<-ctx.Done()
		_ = c.server.Close()
	}()
	return nil
}

// Shutdown stops the metrics HTTP listener.
func (c *Collector) Shutdown(ctx context.Context) error {
	if c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}
