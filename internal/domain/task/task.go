// Package task defines the Task entity: one unit of production work bound
// to a recipe, its lifecycle states, and the blocking causes the dispatch
// engine attaches while a task waits for resources.
package task

import (
	"fmt"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a task.
type Status int

const (
	// StatusPending is a newly created task that has not yet had its
	// dependencies checked.
	StatusPending Status = iota
	// StatusBlocked is a task whose dependencies are satisfied but which
	// cannot be dispatched yet (see BlockCause for why).
	StatusBlocked
	// StatusReady is a task eligible for dispatch on its next tick.
	StatusReady
	// StatusRunning is a task currently occupying a module slot.
	StatusRunning
	// StatusCompleted is a task that finished and produced its outputs.
	StatusCompleted
	// StatusFailed is a task that exhausted its retry budget.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusBlocked:
		return "BLOCKED"
	case StatusReady:
		return "READY"
	case StatusRunning:
		return "RUNNING"
	case StatusCompleted:
		return "COMPLETED"
	case StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// BlockCause names why a Blocked task cannot yet be dispatched. These are
// never error values — they are descriptive tags attached to a task so the
// output log and operators can see why the schedule is stalled.
type BlockCause int

const (
	// BlockNone is the zero value: the task is not blocked.
	BlockNone BlockCause = iota
	BlockInsufficientResources
	BlockInsufficientEnergy
	BlockStorageFull
	BlockModuleUnavailable
)

func (c BlockCause) String() string {
	switch c {
	case BlockNone:
		return "NONE"
	case BlockInsufficientResources:
		return "InsufficientResources"
	case BlockInsufficientEnergy:
		return "InsufficientEnergy"
	case BlockStorageFull:
		return "StorageFull"
	case BlockModuleUnavailable:
		return "ModuleUnavailable"
	default:
		return "UNKNOWN"
	}
}

// DefaultMaxRetries is the retry budget assigned to a task unless its
// recipe or config overrides it.
const DefaultMaxRetries = 3

// Task is one unit of production work: build one batch of a recipe's
// outputs on some instance of the recipe's module type.
type Task struct {
	id             string
	recipeID       string
	status         Status
	blockCause     BlockCause
	priority       int
	insertionSeq   uint64
	dependsOn      []string
	moduleInstance string
	retryCount     int
	maxRetries     int
	createdAtTick  int64
	readyAtTick    int64
	startedAtTick  int64
	remainingS     float64
	actualOutputs  map[string]float64
}

// New constructs a task for the given recipe, ready to be enqueued as
// Pending. insertionSeq must be a monotonically increasing counter supplied
// by the caller (the Task Graph & Queue owns this counter) so that FIFO
// tiebreaking among equal-priority tasks is well defined.
func New(recipeID string, priority int, insertionSeq uint64, dependsOn []string, createdAtTick int64) *Task {
	return &Task{
		id:            uuid.NewString(),
		recipeID:      recipeID,
		status:        StatusPending,
		blockCause:    BlockNone,
		priority:      priority,
		insertionSeq:  insertionSeq,
		dependsOn:     append([]string(nil), dependsOn...),
		maxRetries:    DefaultMaxRetries,
		createdAtTick: createdAtTick,
	}
}

// Reconstruct rebuilds a Task from persisted fields, for output-log
// round-trip tests. It bypasses the constructors' sequencing concerns
// since the caller already has a valid prior state.
func Reconstruct(id, recipeID string, status Status, blockCause BlockCause, priority int, insertionSeq uint64, dependsOn []string, moduleInstance string, retryCount, maxRetries int, createdAtTick, readyAtTick, startedAtTick int64, remainingS float64, actualOutputs map[string]float64) *Task {
	t := &Task{
		id:             id,
		recipeID:       recipeID,
		status:         status,
		blockCause:     blockCause,
		priority:       priority,
		insertionSeq:   insertionSeq,
		dependsOn:      append([]string(nil), dependsOn...),
		moduleInstance: moduleInstance,
		retryCount:     retryCount,
		maxRetries:     maxRetries,
		createdAtTick:  createdAtTick,
		readyAtTick:    readyAtTick,
		startedAtTick:  startedAtTick,
		remainingS:     remainingS,
	}
	t.actualOutputs = make(map[string]float64, len(actualOutputs))
	for k, v := range actualOutputs {
		t.actualOutputs[k] = v
	}
	return t
}

func (t *Task) ID() string                 { return t.id }
func (t *Task) RecipeID() string           { return t.recipeID }
func (t *Task) Status() Status             { return t.status }
func (t *Task) BlockCause() BlockCause     { return t.blockCause }
func (t *Task) Priority() int              { return t.priority }
func (t *Task) InsertionSeq() uint64       { return t.insertionSeq }
func (t *Task) DependsOn() []string        { return append([]string(nil), t.dependsOn...) }
func (t *Task) ModuleInstance() string     { return t.moduleInstance }
func (t *Task) RetryCount() int            { return t.retryCount }
func (t *Task) MaxRetries() int            { return t.maxRetries }
func (t *Task) CreatedAtTick() int64       { return t.createdAtTick }
func (t *Task) ReadyAtTick() int64         { return t.readyAtTick }
func (t *Task) StartedAtTick() int64       { return t.startedAtTick }
func (t *Task) RemainingSeconds() float64  { return t.remainingS }
func (t *Task) IsTerminal() bool           { return t.status == StatusCompleted || t.status == StatusFailed }
func (t *Task) CanRetry() bool             { return t.retryCount < t.maxRetries }

func (t *Task) ActualOutputs() map[string]float64 {
	out := make(map[string]float64, len(t.actualOutputs))
	for k, v := range t.actualOutputs {
		out[k] = v
	}
	return out
}

// MarkReady moves a Pending or Blocked task to Ready.
func (t *Task) MarkReady(atTick int64) error {
	if t.status != StatusPending && t.status != StatusBlocked {
		return ErrInvalidTransition{TaskID: t.id, From: t.status, To: StatusReady}
	}
	t.status = StatusReady
	t.blockCause = BlockNone
	t.readyAtTick = atTick
	return nil
}

// MarkBlocked moves a Pending or Ready task to Blocked with the given
// cause, per spec.md's rescan/blocking design.
func (t *Task) MarkBlocked(cause BlockCause) error {
	if t.status != StatusPending && t.status != StatusReady {
		return ErrInvalidTransition{TaskID: t.id, From: t.status, To: StatusBlocked}
	}
	t.status = StatusBlocked
	t.blockCause = cause
	return nil
}

// Start moves a Ready task to Running, binding it to a module instance and
// the recipe's effective duration for this dispatch.
func (t *Task) Start(moduleInstance string, atTick int64, durationS float64) error {
	if t.status != StatusReady {
		return ErrInvalidTransition{TaskID: t.id, From: t.status, To: StatusRunning}
	}
	t.status = StatusRunning
	t.moduleInstance = moduleInstance
	t.startedAtTick = atTick
	t.remainingS = durationS
	return nil
}

// Advance reduces the task's remaining duration by dtSeconds. Returns true
// if the task has now finished its work (remaining <= 0).
func (t *Task) Advance(dtSeconds float64) bool {
	if t.status != StatusRunning {
		return false
	}
	t.remainingS -= dtSeconds
	return t.remainingS <= 0
}

// Complete moves a Running task to Completed and records its actual
// output quantities (post quality-scaling, pre-storage-rounding).
func (t *Task) Complete(outputs map[string]float64) error {
	if t.status != StatusRunning {
		return ErrInvalidTransition{TaskID: t.id, From: t.status, To: StatusCompleted}
	}
	t.status = StatusCompleted
	t.actualOutputs = make(map[string]float64, len(outputs))
	for k, v := range outputs {
		t.actualOutputs[k] = v
	}
	t.remainingS = 0
	return nil
}

// Fail records a module failure mid-execution. Inputs already consumed are
// refunded by the caller (the tick orchestrator); the task itself is
// requeued at its original priority if it can still retry, or moved to its
// terminal Failed state otherwise.
func (t *Task) Fail() error {
	if t.status != StatusRunning {
		return ErrInvalidTransition{TaskID: t.id, From: t.status, To: StatusFailed}
	}
	t.retryCount++
	t.remainingS = 0
	t.moduleInstance = ""
	if !t.CanRetry() {
		t.status = StatusFailed
		return ErrMaxRetriesExceeded{TaskID: t.id, RetryCount: t.retryCount, MaxRetries: t.maxRetries}
	}
	t.status = StatusPending
	return nil
}

func (t *Task) String() string {
	return fmt.Sprintf("Task(%s, recipe=%s, status=%s, priority=%d)", t.id, t.recipeID, t.status, t.priority)
}
