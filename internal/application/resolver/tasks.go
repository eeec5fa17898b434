package resolver

import (
	"github.com/solarforge/replicator/internal/domain/task"
)

// ExpandToTasks expands the recipe graph needed to produce quantity units
// of resourceSymbol into a dependency-ordered set of task.Task values, per
// spec.md §4.2 step 4: each producing recipe in the graph becomes one
// task, at priority = callerPriority + 1 relative to the task that needed
// it (callerPriority for the root is the caller's own priority), with
// DependsOn wired to the task ids of its own inputs' producers. Raw
// materials with no producing recipe contribute no task — they are
// expected to be satisfied directly from storage. Returned tasks are in
// dependency-before-dependent order, matching Resolve's Plan ordering, so
// a caller enqueuing them in order never references a not-yet-created
// dependency id.
func (r *Resolver) ExpandToTasks(resourceSymbol string, quantity float64, callerPriority int, nextInsertionSeq func() uint64, createdAtTick int64) ([]*task.Task, error) {
	visited := make(map[string]bool)
	path := make([]string, 0, 8)
	var tasks []*task.Task

	if _, err := r.expandTask(resourceSymbol, quantity, callerPriority, visited, path, &tasks, nextInsertionSeq, createdAtTick); err != nil {
		return nil, err
	}
	return tasks, nil
}

// expandTask mirrors expand's recursive structure but materializes a
// task.Task for every non-leaf Requirement instead of a flat Requirement
// list, returning the id of the task that produces resourceSymbol (or ""
// if resourceSymbol is a raw-material leaf with no producing recipe).
func (r *Resolver) expandTask(resourceSymbol string, quantity float64, priority int, visited map[string]bool, path []string, tasks *[]*task.Task, nextInsertionSeq func() uint64, createdAtTick int64) (string, error) {
	if visited[resourceSymbol] {
		return "", task.ErrCircularDependency{ResourceSymbol: resourceSymbol, Path: append(append([]string(nil), path...), resourceSymbol)}
	}

	producers := r.recipes.ProducersOf(resourceSymbol)
	if len(producers) == 0 {
		return "", nil
	}
	rec := producers[0]

	visited[resourceSymbol] = true
	path = append(path, resourceSymbol)

	deps := make([]string, 0, len(rec.Inputs()))
	for _, in := range rec.Inputs() {
		subQty := in.Quantity * (quantity / outputQuantityOf(rec, resourceSymbol))
		depID, err := r.expandTask(in.ResourceSymbol, subQty, priority+1, visited, path, tasks, nextInsertionSeq, createdAtTick)
		if err != nil {
			return "", err
		}
		if depID != "" {
			deps = append(deps, depID)
		}
	}

	delete(visited, resourceSymbol)

	t := task.New(rec.ID(), priority, nextInsertionSeq(), deps, createdAtTick)
	*tasks = append(*tasks, t)
	return t.ID(), nil
}
