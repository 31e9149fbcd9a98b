/*
Package sched provides the dependency-driven task scheduler that every
data-collection workflow in gromet runs on.

A Task is a unit of work with an ordered list of argument slots. A slot holds
either a concrete value or a reference to another Task, in which case the
referenced Task is a dependency: the Coordinator executes it first and writes
its result into the slot before the dependent Task's run body ever starts.
Tasks may discover more work while running and emit it through their Handler.
*/
package sched

import "sync/atomic"

/* Handler is the run context handed to an executing task. Tasks communicate
new work exclusively through Emit; emitted tasks are submitted by the
coordinator after the run body returns. */
type Handler interface {
	Emit(Task)
}

type Task interface {
	/* Returns the identity under which the coordinator tracks this task.
	Identities are assigned once, at construction, by NewBase. Two tasks with
	identical arguments are still distinct unless they share an identity. */
	ID() uint64
	/* Returns the ordered argument slots. A slot holding a Task is an
	unresolved dependency; anything else is a concrete value. Must reflect
	current slot state, since slots are overwritten as dependencies resolve. */
	Args() []any
	/* Overwrites argument slot i with the concrete result of the dependency
	that occupied it. Only legal before the task starts running. */
	Resolve(i int, value any)
	/* Executes the task. Every slot in args holds a concrete value by the
	time Run is invoked. A returned error marks the task Failed, terminally;
	there are no retries at this layer. */
	Run(h Handler, args []any) (any, error)
}

/* FastPath is an optional task capability: produce the result without ever
touching the worker pool, typically because an artifact written by an earlier
run already satisfies the task. */
type FastPath interface {
	Task
	/* Reports whether the result is already available externally. Must be a
	cheap, side-effect-free probe. */
	CanFulfill() bool
	/* Produces the result directly. Runs synchronously on the submitting
	goroutine, so it must be bounded to local I/O. May emit follow-up tasks
	through h; they are submitted like any other emission. */
	Fulfill(h Handler) (any, error)
}

var idCounter atomic.Uint64

/*
Base supplies the identity and argument-slot half of the Task contract.
Concrete tasks embed it and provide Run:

	type cloneTask struct {
		sched.Base
	}

	func newCloneTask(dir string, tag string) *cloneTask {
		return &cloneTask{sched.NewBase(dir, tag)}
	}

A zero Base carries no identity; always construct through NewBase.
*/
type Base struct {
	id   uint64
	args []any
}

func NewBase(args ...any) Base {
	return Base{id: idCounter.Add(1), args: args}
}

func (b *Base) ID() uint64  { return b.id }
func (b *Base) Args() []any { return b.args }

func (b *Base) Resolve(i int, value any) { b.args[i] = value }

/* emitList is the Handler implementation passed to run bodies: a plain
collection list, drained by the coordinator once the body returns, keeping run
bodies free of shared scheduler state. */
type emitList struct {
	tasks []Task
}

func (e *emitList) Emit(t Task) { e.tasks = append(e.tasks, t) }
