package sched

import "fmt"

/*
ResultOf retrieves t's resolved result as a T.

Returns the task's fault if it failed, and an error if the task never reached
a terminal state or resolved to an incompatible type. Note that results which
round-tripped through a file cache are JSON-shaped (maps, slices, float64s)
regardless of what the run body originally returned.
*/
func ResultOf[T any](c *Coordinator, t Task) (T, error) {
	var zero T
	v, ok := c.Result(t)
	if !ok {
		if err := c.Err(t); err != nil {
			return zero, err
		}
		return zero, fmt.Errorf("sched: task %T has no result; was it submitted and drained?", t)
	}
	cast, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("sched: task %T resolved to %T, not %T", t, v, zero)
	}
	return cast, nil
}
