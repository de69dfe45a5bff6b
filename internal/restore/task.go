package restore

import (
	"errors"
	"fmt"
	"time"
)

// ErrOwnerGone is the result of a task whose owner vanished before it
// finished.
var ErrOwnerGone = errors.New("owner no longer exists")

// State is the progress of a task.
type State int

const (
	Pending State = iota
	Completed
	Aborted
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type stepKind int

const (
	stepWait stepKind = iota
	stepDelay
	stepDeps
	stepDo
)

type step struct {
	kind     stepKind
	cond     func() bool
	delay    time.Duration
	deadline time.Time
	deps     []*Task
	fn       func() error
}

func (st *step) ready(now time.Time) bool {
	switch st.kind {
	case stepWait:
		return st.cond()
	case stepDelay:
		if st.deadline.IsZero() {
			st.deadline = now.Add(st.delay)
		}
		return !now.Before(st.deadline)
	case stepDeps:
		for _, d := range st.deps {
			if !d.Completed() {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Task is a suspended sequence of steps run in order by a Scheduler. Steps
// are appended with the builder methods before the next tick.
type Task struct {
	name   string
	owner  func() bool
	steps  []*step
	pc     int
	repeat bool
	state  State
	err    error
	done   chan struct{}
}

func (t *Task) add(st *step) *Task {
	t.steps = append(t.steps, st)
	return t
}

// WaitUntil suspends the task until cond holds. cond is polled once per tick.
func (t *Task) WaitUntil(cond func() bool) *Task {
	return t.add(&step{kind: stepWait, cond: cond})
}

// Delay suspends the task for d, measured on the scheduler's clock from the
// tick that reaches this step.
func (t *Task) Delay(d time.Duration) *Task {
	return t.add(&step{kind: stepDelay, delay: d})
}

// WaitFor suspends the task until every dependency has completed.
func (t *Task) WaitFor(deps ...*Task) *Task {
	return t.add(&step{kind: stepDeps, deps: deps})
}

// Do runs fn. An error is logged and recorded; the task carries on.
func (t *Task) Do(fn func() error) *Task {
	return t.add(&step{kind: stepDo, fn: fn})
}

// Name returns the task's name.
func (t *Task) Name() string { return t.name }

// State returns the task's progress.
func (t *Task) State() State { return t.state }

// Err returns ErrOwnerGone for an aborted task, otherwise the last step error.
func (t *Task) Err() error { return t.err }

// Done is closed when the task completes. It stays open for aborted tasks.
func (t *Task) Done() <-chan struct{} { return t.done }

// Completed reports whether the task ran all of its steps.
func (t *Task) Completed() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *Task) alive() bool {
	return t.owner == nil || t.owner()
}

func (t *Task) rewind() {
	t.pc = 0
	for _, st := range t.steps {
		st.deadline = time.Time{}
	}
}
