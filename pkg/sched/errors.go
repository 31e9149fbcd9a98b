package sched

import "fmt"

/* Error used when a task panics during execution. */
type errPanicked struct {
	panicValue any
	task       Task
}

func (err *errPanicked) Error() string {
	return fmt.Sprintf("task %T panicked: %v", err.task, err.panicValue)
}

/* Error type used when a task's run body (or fast path) returns an error. */
type ErrTaskFailed struct {
	Task Task
	Err  error
}

func (e *ErrTaskFailed) Error() string {
	return fmt.Sprintf("task %T failed: %v", e.Task, e.Err)
}
func (e *ErrTaskFailed) Unwrap() error { return e.Err }

/* Error type used when a task fails because one of its dependencies did. The
wrapped error is the dependency's own fault, so the causal chain is reachable
through errors.Is/As. */
type ErrDependencyFailed struct {
	Task Task
	Dep  Task
	Err  error
}

func (e *ErrDependencyFailed) Error() string {
	return fmt.Sprintf("task %T failed: dependency %T: %v", e.Task, e.Dep, e.Err)
}
func (e *ErrDependencyFailed) Unwrap() error { return e.Err }

/* Error type used when a submission would close a dependency cycle. A cyclic
graph can never be scheduled; without this check Drain would block forever. */
type ErrDependencyCycle struct {
	Task Task
	Dep  Task
}

func (e *ErrDependencyCycle) Error() string {
	return fmt.Sprintf("dependency cycle: task %T depends on %T, which transitively depends back on it", e.Task, e.Dep)
}

/* Error type used when a fast-path probe succeeded but loading the persisted
result failed. Treated as a task fault, never silently ignored. */
type ErrCacheRead struct {
	Path string
	Err  error
}

func (e *ErrCacheRead) Error() string {
	return fmt.Sprintf("cached result at %s unreadable: %v", e.Path, e.Err)
}
func (e *ErrCacheRead) Unwrap() error { return e.Err }
