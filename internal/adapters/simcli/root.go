// Package simcli implements the CLI surface of spec.md §6, grounded on the
// teacher's internal/adapters/cli root-command structure.
package simcli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Exit codes, per spec.md §6.
const (
	ExitOK                  = 0
	ExitInvalidConfiguration = 1
	ExitSimulationError      = 2
	ExitInternalError        = 3
)

// NewRootCommand builds the replicator root command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "replicator",
		Short: "Discrete-event simulator for a self-replicating solar-powered factory",
		Long: `replicator simulates a resource-constrained production scheduler for a
self-replicating solar-powered factory: a declarative spec document defines
resources, recipes, module types, and the energy/storage system; the engine
ticks through simulated time dispatching tasks against capacity-limited,
degrading modules until the target is built or the horizon is reached.

Examples:
  replicator run --spec factory.yaml --max-hours 720 --output run.yaml
  replicator run --spec factory.yaml --profile optimistic --seed 42
  replicator validate --spec factory.yaml`,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	}

	_ = godotenv.Load()
	viper.SetEnvPrefix("REPLICATOR")
	viper.AutomaticEnv()

	root.AddCommand(newRunCommand())
	root.AddCommand(newValidateCommand())

	return root
}

// Execute runs the root command and maps returned errors to spec.md §6's
// process exit codes.
func Execute() {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	switch classifyErr(err) {
	case classConfig:
		return ExitInvalidConfiguration
	case classSimulation:
		return ExitSimulationError
	default:
		return ExitInternalError
	}
}
