package task

import "fmt"

// ErrInvalidTransition reports an attempt to move a task between statuses
// that the state machine does not permit.
type ErrInvalidTransition struct {
	TaskID string
	From   Status
	To     Status
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("task %s: invalid transition from %s to %s", e.TaskID, e.From, e.To)
}

// ErrCircularDependency is raised by the Requirements Resolver when
// expanding a recipe graph revisits a resource already on the current
// expansion path.
type ErrCircularDependency struct {
	ResourceSymbol string
	Path           []string
}

func (e ErrCircularDependency) Error() string {
	return fmt.Sprintf("circular dependency on %s (path: %v)", e.ResourceSymbol, e.Path)
}

// ErrMaxRetriesExceeded reports a task that has failed more times than its
// configured retry budget and has been moved to its terminal Failed state.
type ErrMaxRetriesExceeded struct {
	TaskID     string
	RetryCount int
	MaxRetries int
}

func (e ErrMaxRetriesExceeded) Error() string {
	return fmt.Sprintf("task %s exceeded max retries (%d/%d)", e.TaskID, e.RetryCount, e.MaxRetries)
}
