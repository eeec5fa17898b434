package simcli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/solarforge/replicator/internal/application/buildsim"
	"github.com/solarforge/replicator/internal/application/tick"
	"github.com/solarforge/replicator/internal/domain/module"
	"github.com/solarforge/replicator/internal/infrastructure/logging"
	"github.com/solarforge/replicator/internal/infrastructure/metricsexport"
	"github.com/solarforge/replicator/internal/infrastructure/outputlog"
	"github.com/solarforge/replicator/internal/infrastructure/simconfig"
)

func newRunCommand() *cobra.Command {
	var (
		specPath    string
		profile     string
		maxHours    float64
		maxWallTime time.Duration
		outputPath  string
		modular     bool
		seed        int64
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation from a spec document to a target or horizon",
		RunE: func(cmd *cobra.Command, args []string) error {
			allowed, err := allowedDirsFor(specPath)
			if err != nil {
				return err
			}
			loader := simconfig.NewLoader(simconfig.DefaultLimits(), allowed)
			doc, err := loader.Load(specPath, profile)
			if err != nil {
				return err
			}
			if maxHours > 0 {
				doc.Tick.MaxHours = maxHours
			}

			logCfg := logging.Config{Level: "info", Format: "text", Output: "stderr"}
			logger, ring, err := logging.New(logCfg)
			if err != nil {
				return err
			}

			built, err := buildsim.From(doc, seed, logger, modular)
			if err != nil {
				return err
			}

			for _, goal := range doc.Goals {
				if _, err := built.SeedGoal(goal); err != nil {
					return err
				}
			}

			ctx := context.Background()
			var cancel context.CancelFunc
			if maxWallTime > 0 {
				ctx, cancel = context.WithTimeout(ctx, maxWallTime)
				defer cancel()
			}

			if doc.MetricsExport.Enabled {
				collector := metricsexport.NewCollector()
				addr := doc.MetricsExport.Addr
				if addr == "" {
					addr = "127.0.0.1:9108"
				}
				if err := collector.Serve(ctx, addr); err != nil {
					return err
				}
				defer collector.Shutdown(context.Background())
				go observeMetrics(ctx, built, collector)
			}

			runErr := built.Orchestrator.Run(ctx)

			doc2 := assembleOutputDocument(built, runErr)
			if outputPath != "" {
				doc2.LogTail = ring.Lines()
				if err := outputlog.WriteYAML(doc2, outputPath); err != nil {
					return err
				}
			}

			var timeoutErr tick.ErrSimulationTimeout
			if errors.As(runErr, &timeoutErr) {
				fmt.Printf("simulation timed out at sim-hour %.2f; partial log flushed\n", timeoutErr.SimHour)
				return nil
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&specPath, "spec", "", "path to the spec document")
	cmd.Flags().StringVar(&profile, "profile", "", "named profile to apply")
	cmd.Flags().Float64Var(&maxHours, "max-hours", 0, "override the spec document's simulated-time horizon")
	cmd.Flags().DurationVar(&maxWallTime, "max-wall-time", 0, "wall-clock budget; on expiry the run flushes a partial log and exits 0")
	cmd.Flags().StringVar(&outputPath, "output", "", "path to write the structured output log")
	cmd.Flags().BoolVar(&modular, "modular", false, "enable optional subsystems declared by the spec document")
	cmd.Flags().Int64Var(&seed, "seed", 0, "override the spec document's master RNG seed")
	_ = cmd.MarkFlagRequired("spec")

	return cmd
}

func assembleOutputDocument(built *buildsim.Built, runErr error) *outputlog.Document {
	doc := &outputlog.Document{
		Storage: built.Ledger.Snapshot(),
		Metrics: built.Orchestrator.Metrics,
	}

	var timeoutErr tick.ErrSimulationTimeout
	if errors.As(runErr, &timeoutErr) {
		doc.TerminatedEarly = true
		doc.TerminationCause = "SimulationTimeout"
		doc.FinalSimHour = timeoutErr.SimHour
	}

	_, dropped := built.Bus.Stats()
	doc.EventDropCount = dropped

	for _, inst := range built.Modules.AllInstances() {
		doc.Modules = append(doc.Modules, outputlog.ModuleSummary{
			ID:    inst.ID(),
			Type:  inst.Type().Symbol,
			State: stateString(inst.State()),
			Wear:  inst.Wear(),
		})
	}

	for _, t := range built.Orchestrator.Tasks() {
		doc.Tasks = append(doc.Tasks, outputlog.TaskSummary{
			ID:       t.ID(),
			RecipeID: t.RecipeID(),
			Status:   t.Status().String(),
			Priority: t.Priority(),
		})
	}

	return doc
}

func stateString(s module.State) string { return s.String() }

// observeMetrics feeds every new MetricsSnapshot the orchestrator appends
// to the live Prometheus collector, until ctx is cancelled. The tick loop
// appends at most once per MetricsEveryHrs sim-hours, so a short poll
// interval keeps the gauges current without meaningfully competing with
// the orchestrator's own single-threaded tick loop for CPU.
func observeMetrics(ctx context.Context, built *buildsim.Built, collector *metricsexport.Collector) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	seen := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snaps := built.Orchestrator.Metrics
			for ; seen < len(snaps); seen++ {
				collector.Observe(snaps[seen])
			}
		}
	}
}
