package sched

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"gitlab.com/kyle_anderson/go-utils/pkg/set"
	"gitlab.com/kyle_anderson/go-utils/pkg/umath"
)

/* parentRef records that a blocked task is waiting for a dependency's result
to land in a particular argument slot. */
type parentRef struct {
	task Task
	slot int
}

type Option func(*Coordinator)

/* WithLogger sets the logger used for task begin/end/failure reporting.
The coordinator logs at debug level; the default logger discards these. */
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

/*
Coordinator owns all scheduling state: the result table, the blocked-parent
table, and the running set. Every state transition happens under mu. This is
a correctness requirement, not an optimization: worker completions arrive
concurrently, and unguarded mutation of the blocked-parent table is a race.

All registries are run-scoped; discard the coordinator after Close.
*/
type Coordinator struct {
	mu sync.Mutex
	/* Signalled whenever no blocked or running tasks remain. */
	idle *sync.Cond

	logger *slog.Logger

	results  map[uint64]any
	failures map[uint64]error
	/* IDs of tasks queued on or executing in the worker pool. */
	running set.ComparableSet[uint64]
	/* IDs of tasks submitted but waiting on at least one dependency. */
	blocked set.ComparableSet[uint64]
	/* Dependency ID -> tasks waiting on it. Several parents may wait on one
	dependency; it still executes once and its result fans out to them all. */
	parents map[uint64][]parentRef
	/* Blocked task ID -> IDs of its still-unresolved dependencies. */
	waits map[uint64]set.ComparableSet[uint64]
	/* Failure order, so Drain reports deterministically per run. */
	failureOrder []uint64

	/* Number of tasks currently blocked or running. */
	active int

	pool   *pool
	closed bool
}

/* DefaultJobs returns the worker count used when a run does not specify one. */
func DefaultJobs() uint {
	return uint(umath.Min(runtime.NumCPU()+2, 32))
}

func New(numJobs uint, opts ...Option) *Coordinator {
	if numJobs == 0 {
		panic("sched: numJobs must be positive!")
	}
	c := &Coordinator{
		logger:   slog.Default(),
		results:  make(map[uint64]any),
		failures: make(map[uint64]error),
		running:  set.NewComparable[uint64](),
		blocked:  set.NewComparable[uint64](),
		parents:  make(map[uint64][]parentRef),
		waits:    make(map[uint64]set.ComparableSet[uint64]),
	}
	c.idle = sync.NewCond(&c.mu)
	for _, opt := range opts {
		opt(c)
	}
	c.pool = newPool(numJobs, c.finish)
	return c
}

/*
Submit presents a task to the coordinator. It never blocks on task execution
and never reports an error synchronously; faults surface through Drain.
Submitting a task that is already tracked, resolved, or failed is a no-op:
execution is at-most-once per task identity.
*/
func (c *Coordinator) Submit(t Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submit(t)
}

/*
Drain blocks until no submitted or transitively-emitted work remains, then
returns every task fault recorded during the run, in failure order. Branches
of the graph that never depended on a failed task will have completed
normally; their results stay retrievable.
*/
func (c *Coordinator) Drain() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.active > 0 {
		c.idle.Wait()
	}
	errs := make([]error, 0, len(c.failureOrder))
	for _, id := range c.failureOrder {
		errs = append(errs, c.failures[id])
	}
	return errs
}

/* Close stops the worker pool. Only call after Drain; the coordinator must
not be used afterwards. */
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	c.pool.stop()
}

/* Result returns the resolved value for t, if t has resolved. */
func (c *Coordinator) Result(t Task) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.results[t.ID()]
	return r, ok
}

/* Err returns the fault recorded for t, if t failed. */
func (c *Coordinator) Err(t Task) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failures[t.ID()]
}

/*
Run executes mainTask and everything it transitively requires or emits, using
numJobs parallel workers, and returns the faults for the whole run.
*/
func Run(mainTask Task, numJobs uint, opts ...Option) []error {
	c := New(numJobs, opts...)
	defer c.Close()
	c.Submit(mainTask)
	return c.Drain()
}

func (c *Coordinator) terminal(id uint64) bool {
	if _, ok := c.results[id]; ok {
		return true
	}
	_, ok := c.failures[id]
	return ok
}

type depSlot struct {
	slot int
	dep  Task
}

/* submit implements the scheduling decision for one task. Callers hold mu. */
func (c *Coordinator) submit(t Task) {
	id := t.ID()
	if id == 0 {
		panic("sched: task has no identity; construct tasks with NewBase")
	}
	if c.terminal(id) || c.running.Contains(id) || c.blocked.Contains(id) {
		return
	}

	/* Fast-fill: dependency slots whose results are already cached resolve
	synchronously, with no re-entrant scheduling. A dependency that already
	failed fails this task immediately. */
	var unresolved []depSlot
	for i, arg := range t.Args() {
		dep, ok := arg.(Task)
		if !ok {
			continue
		}
		if res, done := c.results[dep.ID()]; done {
			t.Resolve(i, res)
			continue
		}
		if err, bad := c.failures[dep.ID()]; bad {
			c.fail(t, &ErrDependencyFailed{Task: t, Dep: dep, Err: err})
			return
		}
		unresolved = append(unresolved, depSlot{i, dep})
	}

	/* The fast path is probed before the blocked check: a task satisfied
	externally never needs its dependencies computed. Fulfillment runs here,
	on the submitting goroutine. */
	if fp, ok := t.(FastPath); ok && fp.CanFulfill() {
		h := &emitList{}
		res, err := fp.Fulfill(h)
		if err != nil {
			c.fail(t, &ErrTaskFailed{Task: t, Err: err})
			return
		}
		c.logger.Debug("task fulfilled from cache", "task", taskName(t), "id", id)
		c.complete(t, res, h.tasks)
		return
	}

	if len(unresolved) > 0 {
		waitSet := set.NewComparable[uint64]()
		for _, d := range unresolved {
			waitSet.Add(d.dep.ID())
		}
		c.blocked.Add(id)
		c.waits[id] = waitSet
		c.active++
		for _, d := range unresolved {
			if c.reaches(d.dep.ID(), id) {
				c.fail(t, &ErrDependencyCycle{Task: t, Dep: d.dep})
				return
			}
			c.parents[d.dep.ID()] = append(c.parents[d.dep.ID()], parentRef{t, d.slot})
			c.submit(d.dep)
		}
		return
	}

	c.start(t)
}

/* start marks a fully-resolved task as running and hands it to the pool. */
func (c *Coordinator) start(t Task) {
	c.running.Add(t.ID())
	c.active++
	c.logger.Debug("beginning task", "task", taskName(t), "id", t.ID())
	args := make([]any, len(t.Args()))
	copy(args, t.Args())
	c.pool.dispatch(job{task: t, args: args})
}

/* finish consumes a worker pool completion. Exactly one call arrives per
dispatched task. */
func (c *Coordinator) finish(t Task, result any, emitted []Task, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running.Remove(t.ID())
	c.active--
	if err != nil {
		c.fail(t, &ErrTaskFailed{Task: t, Err: err})
		return
	}
	c.logger.Debug("finished task", "task", taskName(t), "id", t.ID())
	c.complete(t, result, emitted)
}

/* complete records a result, submits follow-up emissions, and fills the
argument slot of every waiting parent. Parents whose final dependency this was
are resubmitted, which re-evaluates their fast path before queueing. */
func (c *Coordinator) complete(t Task, result any, emitted []Task) {
	id := t.ID()
	c.results[id] = result
	for _, e := range emitted {
		c.submit(e)
	}
	waiting := c.parents[id]
	delete(c.parents, id)
	/* Resolve every slot first; a parent may reference this dependency in
	more than one slot and must not start until all of them are filled. */
	var unblocked []Task
	for _, p := range waiting {
		pid := p.task.ID()
		if !c.blocked.Contains(pid) {
			/* Already failed through another dependency. */
			continue
		}
		p.task.Resolve(p.slot, result)
		w := c.waits[pid]
		w.Remove(id)
		if w.Size() == 0 {
			c.blocked.Remove(pid)
			delete(c.waits, pid)
			c.active--
			unblocked = append(unblocked, p.task)
		}
	}
	for _, p := range unblocked {
		c.submit(p)
	}
	c.wake()
}

/* fail records a terminal fault for t and transitively fails every parent
waiting on it, carrying the causal chain. Branches with no path to t are
untouched. */
func (c *Coordinator) fail(t Task, err error) {
	id := t.ID()
	if c.terminal(id) {
		return
	}
	if c.blocked.Contains(id) {
		c.blocked.Remove(id)
		delete(c.waits, id)
		c.active--
	}
	c.failures[id] = err
	c.failureOrder = append(c.failureOrder, id)
	c.logger.Debug("task failed", "task", taskName(t), "id", id, "error", err)
	waiting := c.parents[id]
	delete(c.parents, id)
	for _, p := range waiting {
		c.fail(p.task, &ErrDependencyFailed{Task: p.task, Dep: t, Err: err})
	}
	c.wake()
}

/* reaches reports whether `from` transitively waits on `target` through the
blocked-dependency edges, following the waits table depth-first. Used to
refuse submissions that would close a cycle. */
func (c *Coordinator) reaches(from, target uint64) bool {
	if from == target {
		return true
	}
	seen := set.NewComparable[uint64](from)
	stack := []uint64{from}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for dep := range c.waits[id] {
			if dep == target {
				return true
			}
			if !seen.Contains(dep) {
				seen.Add(dep)
				stack = append(stack, dep)
			}
		}
	}
	return false
}

func (c *Coordinator) wake() {
	if c.active == 0 {
		c.idle.Broadcast()
	}
}

func taskName(t Task) string { return fmt.Sprintf("%T", t) }
