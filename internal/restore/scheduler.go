// Package restore runs cooperative, tick-driven task sequences: waits on
// conditions, clock delays, and other tasks, followed by actions.
//
// Tasks never block. Each tick advances every pending task as far as its
// steps allow, and checks that the task's owner still exists before every
// step. Tasks of one owner run in the order their steps were declared; tasks
// of different owners are independent.
package restore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/IronFox/AVS-sub001/pkg/core"
)

const instrumentationName = "github.com/IronFox/AVS-sub001/internal/restore"

// Clock supplies the time used for delays.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// World reports load readiness.
type World interface {
	IsWorldLoaded() bool
	IsEntityInitialized(id core.EntityID) bool
}

// Scheduler owns the pending tasks. Tasks are built and ticked on one
// goroutine; only Pending is safe to call from others.
type Scheduler struct {
	clock  Clock
	logger *slog.Logger

	mu    sync.Mutex
	tasks []*Task

	finished metric.Int64Counter
}

// NewScheduler creates a Scheduler reading time from clock.
func NewScheduler(clock Clock, logger *slog.Logger) (*Scheduler, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{clock: clock, logger: logger}

	var err error
	s.finished, err = otel.Meter(instrumentationName).Int64Counter(
		"restore.sequences.completed",
		metric.WithDescription("Task sequences finished, by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sequences counter: %w", err)
	}
	return s, nil
}

// Go registers a new task. owner, if not nil, is checked before every step;
// once it reports false the task aborts without running further steps.
func (s *Scheduler) Go(name string, owner func() bool) *Task {
	t := &Task{name: name, owner: owner, done: make(chan struct{})}
	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()
	return t
}

// After runs fn once d has elapsed, unless owner vanishes first.
func (s *Scheduler) After(name string, d time.Duration, owner func() bool, fn func() error) *Task {
	return s.Go(name, owner).Delay(d).Do(fn)
}

// Every runs fn each time interval elapses until owner vanishes.
func (s *Scheduler) Every(name string, interval time.Duration, owner func() bool, fn func() error) *Task {
	t := s.Go(name, owner).Delay(interval).Do(fn)
	t.repeat = true
	return t
}

// RestoreSpec describes the restore of one entity's saved state.
type RestoreSpec struct {
	Name   string
	Entity core.EntityID
	World  World
	// Alive reports whether the entity still exists.
	Alive func() bool
	// After lists restores that must complete before this one applies.
	After []*Task
	Apply func() error
}

// Restore registers a sequence that waits for the world, then for the entity,
// then for its dependencies, and finally applies the stored state.
func (s *Scheduler) Restore(spec RestoreSpec) *Task {
	return s.Go(spec.Name, spec.Alive).
		WaitUntil(spec.World.IsWorldLoaded).
		WaitUntil(func() bool { return spec.World.IsEntityInitialized(spec.Entity) }).
		WaitFor(spec.After...).
		Do(spec.Apply)
}

// Pending returns the number of unfinished tasks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Tick advances every pending task. Tasks registered during the tick are
// first advanced on the next one.
func (s *Scheduler) Tick() {
	now := s.clock.Now()

	s.mu.Lock()
	batch := make([]*Task, len(s.tasks))
	copy(batch, s.tasks)
	s.mu.Unlock()

	for _, t := range batch {
		s.advance(t, now)
	}

	s.mu.Lock()
	kept := s.tasks[:0]
	for _, t := range s.tasks {
		if t.state == Pending {
			kept = append(kept, t)
		}
	}
	clear(s.tasks[len(kept):])
	s.tasks = kept
	s.mu.Unlock()
}

func (s *Scheduler) advance(t *Task, now time.Time) {
	restarted := false
	for t.state == Pending {
		if !t.alive() {
			t.state = Aborted
			t.err = ErrOwnerGone
			s.logger.Debug("Task aborted, owner gone", "task", t.name, "step", t.pc)
			s.count(t)
			return
		}
		if t.pc == len(t.steps) {
			if !t.repeat {
				t.state = Completed
				close(t.done)
				s.count(t)
				return
			}
			if restarted {
				return
			}
			restarted = true
			t.rewind()
			continue
		}
		st := t.steps[t.pc]
		if !st.ready(now) {
			return
		}
		if st.kind == stepDo {
			if err := s.run(t, st.fn); err != nil {
				t.err = err
				s.logger.Warn("Task step failed", "task", t.name, "step", t.pc, "error", err)
			}
		}
		t.pc++
	}
}

func (s *Scheduler) run(t *Task, fn func() error) (err error) {
	if fn == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", t.name, r)
		}
	}()
	return fn()
}

func (s *Scheduler) count(t *Task) {
	s.finished.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", t.state.String())))
}
