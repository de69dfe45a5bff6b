// internal/storage/storage.go
package storage

import (
	"time"

	"github.com/IronFox/AVS-sub001/pkg/core"
)

// Backend is the interface all transition journal implementations must satisfy.
// It also satisfies lifecycle.Journal.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(s *core.Session) error
	EndSession() error

	// Entity registration
	AddVehicle(v *core.Vehicle) error

	// Recording
	RecordTransition(r *core.TransitionRecord) error
	RecordPersistence(r *core.PersistenceRecord) error
}

// Exportable is an optional interface for backends that write the journal
// to a single file when the session ends.
type Exportable interface {
	ExportedFilePath() string
}

// Stats is an optional interface for backends that write asynchronously.
type Stats interface {
	Pending() int
	LastWriteDuration() time.Duration
}
