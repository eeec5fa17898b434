package simcli

import (
	"errors"

	"github.com/solarforge/replicator/internal/domain/event"
	"github.com/solarforge/replicator/internal/domain/task"
	"github.com/solarforge/replicator/internal/infrastructure/simconfig"
)

type errClass int

const (
	classInternal errClass = iota
	classConfig
	classSimulation
)

// classifyErr maps an error value to the exit-code family it belongs to,
// per spec.md §7's fatal/non-fatal taxonomy.
func classifyErr(err error) errClass {
	var cfgErr simconfig.ErrInvalidConfiguration
	var pathErr simconfig.ErrInvalidPath
	var sizeErr simconfig.ErrFileTooLarge
	var cycleErr simconfig.ErrCircularInheritance
	var depthErr simconfig.ErrInheritanceTooDeep
	var circDep task.ErrCircularDependency
	var overflow event.ErrEventQueueOverflow

	switch {
	case errors.As(err, &cfgErr), errors.As(err, &pathErr), errors.As(err, &sizeErr),
		errors.As(err, &cycleErr), errors.As(err, &depthErr):
		return classConfig
	case errors.As(err, &circDep), errors.As(err, &overflow):
		return classSimulation
	default:
		return classInternal
	}
}
