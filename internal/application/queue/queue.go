// Package queue implements the Task Graph & Queue: a priority/insertion-order
// min-heap of ready tasks, an O(1) completed-id set, and a blocked-task map
// tagged with its blocking cause, per spec.md §4.3.
package queue

import (
	"container/heap"
	"sync"

	"github.com/solarforge/replicator/internal/domain/task"
)

// taskHeap is a container/heap.Interface over ready tasks, ordered by
// priority ascending then insertion sequence ascending — i.e. pop always
// returns the highest-priority, earliest-inserted ready task. Grounded on
// the teacher's taskHeap in internal/application/trading/services/task_queue.go.
type taskHeap []*task.Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].Priority() != h[j].Priority() {
		return h[i].Priority() < h[j].Priority()
	}
	return h[i].InsertionSeq() < h[j].InsertionSeq()
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) {
	*h = append(*h, x.(*task.Task))
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// BlockedEntry pairs a blocked task with the cause recorded when it was
// last blocked.
type BlockedEntry struct {
	Task  *task.Task
	Cause task.BlockCause
}

// Queue is the Task Graph & Queue: ready tasks in a priority heap, blocked
// tasks in a side map keyed by task ID, and completed task IDs in a set for
// O(1) dependency-satisfaction checks.
type Queue struct {
	mu        sync.Mutex
	ready     taskHeap
	blocked   map[string]*task.Task
	completed map[string]struct{}
	all       map[string]*task.Task
	seq       uint64
}

// New builds an empty queue.
func New() *Queue {
	q := &Queue{
		blocked:   make(map[string]*task.Task),
		completed: make(map[string]struct{}),
		all:       make(map[string]*task.Task),
	}
	heap.Init(&q.ready)
	return q
}

// NextInsertionSeq returns a monotonically increasing sequence number for
// constructing new tasks, so priority ties break FIFO.
func (q *Queue) NextInsertionSeq() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	return q.seq
}

// Enqueue admits a task into the ready heap. The task must already be in
// StatusReady (callers transition it via task.MarkReady before enqueuing).
func (q *Queue) Enqueue(t *task.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.all[t.ID()] = t
	heap.Push(&q.ready, t)
}

// EnqueueBlocked records t as blocked for the given cause, removing it from
// the ready heap's bookkeeping if present (it will simply be skipped on pop
// if it was already pushed and its status has since changed).
func (q *Queue) EnqueueBlocked(t *task.Task, cause task.BlockCause) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.all[t.ID()] = t
	q.blocked[t.ID()] = t
}

// PopReady pops the highest-priority ready task, skipping over any entries
// whose status has since changed away from Ready (e.g. already dispatched
// by a concurrent path, or removed). Returns nil if none are available.
func (q *Queue) PopReady() *task.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.ready.Len() > 0 {
		t := heap.Pop(&q.ready).(*task.Task)
		if t.Status() == task.StatusReady {
			return t
		}
	}
	return nil
}

// Peek returns the highest-priority ready task without removing it, or nil.
func (q *Queue) Peek() *task.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.ready.Len() > 0 {
		t := q.ready[0]
		if t.Status() == task.StatusReady {
			return t
		}
		heap.Pop(&q.ready)
	}
	return nil
}

// MarkBlocked moves a task from ready bookkeeping into the blocked map with
// the given cause. The task's own status transition is the caller's
// responsibility (task.MarkBlocked).
func (q *Queue) MarkBlocked(t *task.Task, cause task.BlockCause) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.blocked[t.ID()] = t
}

// RescanBlocked returns every currently blocked task so the dispatch engine
// can re-check their preconditions. Cost is O(|blocked|), not the full
// queue, matching spec.md's rejection of the O(n^3) full rescan.
func (q *Queue) RescanBlocked() []*task.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*task.Task, 0, len(q.blocked))
	for _, t := range q.blocked {
		out = append(out, t)
	}
	return out
}

// PromoteFromBlocked moves a task out of the blocked map and into the ready
// heap, once the dispatch engine's rescan finds its preconditions now hold.
func (q *Queue) PromoteFromBlocked(t *task.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.blocked, t.ID())
	heap.Push(&q.ready, t)
}

// Complete marks a task's id as completed in the O(1) completion set. This
// is distinct from the task's own StatusCompleted transition: it exists so
// dependency checks ("are this task's deps all done?") never have to scan
// the full task set.
func (q *Queue) Complete(taskID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed[taskID] = struct{}{}
}

// IsCompleted reports whether taskID has completed.
func (q *Queue) IsCompleted(taskID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.completed[taskID]
	return ok
}

// DependenciesSatisfied reports whether every task ID in deps has completed.
func (q *Queue) DependenciesSatisfied(deps []string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, d := range deps {
		if _, ok := q.completed[d]; !ok {
			return false
		}
	}
	return true
}

// Get returns the task with the given id, if tracked by this queue.
func (q *Queue) Get(taskID string) (*task.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.all[taskID]
	return t, ok
}

// ReadyLen returns the number of tasks currently sitting in the ready heap
// (including any stale entries not yet skipped by a pop).
func (q *Queue) ReadyLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ready.Len()
}

// BlockedLen returns the number of currently blocked tasks.
func (q *Queue) BlockedLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.blocked)
}

// CompletedLen returns the number of completed task ids tracked.
func (q *Queue) CompletedLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.completed)
}
