package sched

import "sync"

type job struct {
	task Task
	/* Snapshot of the fully-resolved arguments, taken while the coordinator
	lock was held. */
	args []any
}

type completionFunc func(t Task, result any, emitted []Task, err error)

/* pool is a fixed-size set of worker goroutines consuming ready tasks from a
channel. Completion order carries no relation to dispatch order. */
type pool struct {
	jobs chan job
	wg   sync.WaitGroup
	done completionFunc
}

func newPool(numJobs uint, done completionFunc) *pool {
	p := &pool{jobs: make(chan job, numJobs), done: done}
	p.wg.Add(int(numJobs))
	for i := uint(0); i < numJobs; i++ {
		go func() {
			p.work()
			p.wg.Done()
		}()
	}
	return p
}

func (p *pool) work() {
	for j := range p.jobs {
		h := &emitList{}
		result, err := runRecovered(j.task, h, j.args)
		p.done(j.task, result, h.tasks, err)
	}
}

/* runRecovered invokes the run body, converting a panic into a task fault so
that one misbehaving task cannot take down the whole run. */
func runRecovered(t Task, h Handler, args []any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, &errPanicked{panicValue: r, task: t}
		}
	}()
	return t.Run(h, args)
}

/* dispatch hands a job to the pool without ever blocking the caller, which
holds the coordinator lock. A blocking send here would deadlock against
workers trying to report completions. */
func (p *pool) dispatch(j job) {
	select {
	case p.jobs <- j:
	default:
		go func() { p.jobs <- j }()
	}
}

func (p *pool) stop() {
	close(p.jobs)
	p.wg.Wait()
}
