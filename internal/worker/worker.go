// Package worker owns the tick goroutine. Host commands that touch entity
// state and scheduler ticks both run on it, one at a time.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/IronFox/AVS-sub001/internal/cache"
	"github.com/IronFox/AVS-sub001/internal/restore"
	"github.com/IronFox/AVS-sub001/internal/vehicle"
)

// ErrStopped is returned by Exec once Run has returned.
var ErrStopped = errors.New("worker stopped")

// DefaultTickInterval is used when Dependencies.TickInterval is zero.
const DefaultTickInterval = 50 * time.Millisecond

// Dependencies holds all dependencies for the worker
type Dependencies struct {
	Scheduler    *restore.Scheduler
	EntityCache  *cache.EntityCache
	TickInterval time.Duration
	Logger       *slog.Logger
}

type job struct {
	fn   func()
	done chan struct{}
}

// Worker serializes jobs and scheduler ticks on the goroutine running Run.
type Worker struct {
	deps   Dependencies
	logger *slog.Logger

	jobs    chan job
	stopped chan struct{}
	running atomic.Bool

	ticks    atomic.Uint64
	snapshot atomic.Pointer[Snapshot]
}

// New creates a worker. Nothing runs until Run is called.
func New(deps Dependencies) *Worker {
	if deps.TickInterval <= 0 {
		deps.TickInterval = DefaultTickInterval
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	w := &Worker{
		deps:    deps,
		logger:  logger.With("component", "worker"),
		jobs:    make(chan job),
		stopped: make(chan struct{}),
	}
	w.snapshot.Store(&Snapshot{})
	return w
}

// Run ticks the scheduler and executes jobs until ctx is done. It must be
// called once.
func (w *Worker) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return fmt.Errorf("worker already running")
	}
	defer close(w.stopped)

	ticker := time.NewTicker(w.deps.TickInterval)
	defer ticker.Stop()

	w.logger.Debug("Worker started", "tickInterval", w.deps.TickInterval)
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Worker stopped", "ticks", w.ticks.Load())
			return nil
		case j := <-w.jobs:
			w.run(j)
		case <-ticker.C:
			w.Tick()
		}
	}
}

// Exec runs fn on the worker goroutine and waits for it to return.
func (w *Worker) Exec(ctx context.Context, fn func()) error {
	j := job{fn: fn, done: make(chan struct{})}
	select {
	case w.jobs <- j:
	case <-w.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	// once accepted, the job always runs to completion
	<-j.done
	return nil
}

func (w *Worker) run(j job) {
	defer close(j.done)
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Job panicked", "panic", r)
		}
	}()
	j.fn()
}

// Tick advances the scheduler once and refreshes the snapshot. Run calls it
// on every tick; tests call it directly.
func (w *Worker) Tick() {
	if w.deps.Scheduler != nil {
		w.deps.Scheduler.Tick()
	}
	n := w.ticks.Add(1)

	var vehicles []*vehicle.Vehicle
	if w.deps.EntityCache != nil {
		vehicles = w.deps.EntityCache.All()
	}
	pending := 0
	if w.deps.Scheduler != nil {
		pending = w.deps.Scheduler.Pending()
	}
	s := Summarize(vehicles, pending)
	s.Ticks = n
	w.snapshot.Store(&s)
}

// Snapshot returns the state published by the last tick. Safe from any
// goroutine.
func (w *Worker) Snapshot() Snapshot {
	return *w.snapshot.Load()
}

// Snapshot counts vehicles by lifecycle flag.
type Snapshot struct {
	Time         time.Time `json:"time"`
	Ticks        uint64    `json:"ticks"`
	Entities     int       `json:"entities"`
	Initialized  int       `json:"initialized"`
	Boarded      int       `json:"boarded"`
	Piloting     int       `json:"piloting"`
	Docked       int       `json:"docked"`
	Scuttled     int       `json:"scuttled"`
	PoweredOff   int       `json:"poweredOff"`
	PendingTasks int       `json:"pendingTasks"`
}

// Summarize counts the lifecycle flags of vehicles. It reads controller
// state and belongs to the worker goroutine.
func Summarize(vehicles []*vehicle.Vehicle, pendingTasks int) Snapshot {
	s := Snapshot{
		Time:         time.Now(),
		Entities:     len(vehicles),
		PendingTasks: pendingTasks,
	}
	for _, v := range vehicles {
		if v.IsInitialized() {
			s.Initialized++
		}
		st := v.Lifecycle().State()
		if st.Boarded {
			s.Boarded++
		}
		if st.Piloting {
			s.Piloting++
		}
		if st.Docked {
			s.Docked++
		}
		if st.Scuttled {
			s.Scuttled++
		}
		if !st.PoweredOn {
			s.PoweredOff++
		}
	}
	return s
}
