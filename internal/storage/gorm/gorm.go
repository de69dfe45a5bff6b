// Package gormstorage implements the storage.Backend interface using GORM
// with internal queues and a background DB writer goroutine.
package gormstorage

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/IronFox/AVS-sub001/internal/database"
	"github.com/IronFox/AVS-sub001/internal/model"
	"github.com/IronFox/AVS-sub001/internal/model/convert"
	"github.com/IronFox/AVS-sub001/internal/queue"
	"github.com/IronFox/AVS-sub001/pkg/core"
)

// ErrNoDB is returned by Init when no database was injected.
var ErrNoDB = errors.New("no database connection")

// DefaultFlushInterval is used when Dependencies.FlushInterval is zero.
const DefaultFlushInterval = 2 * time.Second

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	FlushInterval time.Duration
}

// queues holds the write queues for batch DB insertion.
type queues struct {
	Vehicles    *queue.Queue[model.Vehicle]
	Transitions *queue.Queue[model.Transition]
	Persistence *queue.Queue[model.PersistenceEvent]
}

func newQueues() *queues {
	return &queues{
		Vehicles:    queue.New[model.Vehicle](),
		Transitions: queue.New[model.Transition](),
		Persistence: queue.New[model.PersistenceEvent](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	log       *slog.Logger
	queues    *queues
	sessionID atomic.Value // string

	flushMu   sync.Mutex
	lastWrite atomic.Int64

	stopChan chan struct{}
	done     sync.WaitGroup
	closed   bool
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	b := &Backend{
		deps:   deps,
		log:    log.With("component", "journal"),
		queues: newQueues(),
	}
	b.sessionID.Store("")
	return b
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return ErrNoDB
	}
	b.log.Info("Migrating schema")
	if err := database.Migrate(b.deps.DB); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	b.log.Info("Database setup complete")

	b.stopChan = make(chan struct{})
	b.done.Add(1)
	go b.writerLoop()
	return nil
}

// Close stops the writer goroutine, closes the open session and flushes
// what is left.
func (b *Backend) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if b.stopChan != nil {
		close(b.stopChan)
		b.done.Wait()
	}
	if err := b.EndSession(); err != nil {
		return err
	}
	return b.Flush()
}

// StartSession inserts the session row synchronously.
func (b *Backend) StartSession(s *core.Session) error {
	row := convert.CoreToSession(*s)
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	b.sessionID.Store(s.ID)
	return nil
}

// EndSession flushes pending rows and stamps the session end time.
func (b *Backend) EndSession() error {
	id := b.sessionID.Load().(string)
	if id == "" {
		return nil
	}
	if err := b.Flush(); err != nil {
		return err
	}
	err := b.deps.DB.Model(&model.Session{}).
		Where("session_id = ?", id).
		Update("end_time", sql.NullTime{Time: time.Now(), Valid: true}).Error
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	b.sessionID.Store("")
	return nil
}

// AddVehicle converts a core vehicle to GORM and pushes to the write queue.
func (b *Backend) AddVehicle(v *core.Vehicle) error {
	b.queues.Vehicles.Push(convert.CoreToVehicle(b.sessionID.Load().(string), *v))
	return nil
}

// RecordTransition converts and queues a transition.
func (b *Backend) RecordTransition(r *core.TransitionRecord) error {
	b.queues.Transitions.Push(convert.CoreToTransition(*r))
	return nil
}

// RecordPersistence converts and queues a persistence outcome.
func (b *Backend) RecordPersistence(r *core.PersistenceRecord) error {
	b.queues.Persistence.Push(convert.CoreToPersistence(*r))
	return nil
}

// Pending returns the number of queued rows.
func (b *Backend) Pending() int {
	return b.queues.Vehicles.Len() + b.queues.Transitions.Len() + b.queues.Persistence.Len()
}

// LastWriteDuration returns how long the last flush took.
func (b *Backend) LastWriteDuration() time.Duration {
	return time.Duration(b.lastWrite.Load())
}

// Flush drains every queue into the database. Rows of a failed batch are
// requeued and the first error is returned.
func (b *Backend) Flush() error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	start := time.Now()
	err := errors.Join(
		writeQueue(b.deps.DB, b.queues.Vehicles, "vehicles"),
		writeQueue(b.deps.DB, b.queues.Transitions, "transitions"),
		writeQueue(b.deps.DB, b.queues.Persistence, "persistence events"),
	)
	b.lastWrite.Store(int64(time.Since(start)))
	return err
}

// writeQueue writes all items from a queue to the database in a transaction.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string) error {
	if q.Empty() {
		return nil
	}

	items := q.GetAndEmpty()
	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&items).Error
	})
	if err != nil {
		q.Requeue(items)
		return fmt.Errorf("error creating %s: %w", name, err)
	}
	return nil
}

func (b *Backend) writerLoop() {
	defer b.done.Done()

	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.log.Error("Journal flush failed", "error", err, "pending", b.Pending())
			}
		}
	}
}
