// Package worker contains the background tasks of the pipeline (ingest and
// upload), a typed task registry, and an in-process scheduler implementing
// the platform task-runtime boundary: named unique work, replace-on-conflict
// coalescing and a network-connectivity constraint. On mobile targets the
// scheduler is provided by the platform; everything else is shared.
package worker

import "context"

// Result is a task's terminal outcome for one run.
type Result int

const (
	// Done means the run completed; nothing to redo. Note that "nothing to
	// do" (empty queue, unconfigured endpoint) is also Done, so the
	// scheduler never hot-loops on a permanently idle state.
	Done Result = iota
	// Retry signals a transient whole-run failure; the scheduler re-runs
	// the task with backoff.
	Retry
)

// Kind identifies a background task. Scheduling the same kind twice
// coalesces into one pending run.
type Kind string

const (
	KindIngest Kind = "ingest"
	KindUpload Kind = "upload"
)

// Task is one runnable unit of background work.
type Task interface {
	Run(ctx context.Context) Result
}

// Factory builds a fresh Task per run.
type Factory func() Task

// Registry maps task kinds to their factories. A typed map, deliberately
// not name-string dispatch.
type Registry map[Kind]Factory

// Constraint gates when a task may run.
type Constraint int

const (
	ConstraintNone Constraint = iota
	// ConstraintNetwork defers the run until connectivity is available.
	ConstraintNetwork
)

// Scheduler is the triggering interface handed to producers (crash capture,
// the ingest worker, the staging watcher). Implementations must coalesce
// repeated triggers of the same kind.
type Scheduler interface {
	Schedule(kind Kind)
}
