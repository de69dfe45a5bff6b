// pkg/core/events.go
package core

import (
	"time"
)

// Transition names a lifecycle transition.
type Transition string

const (
	TransitionPlayerEntry Transition = "player_entry"
	TransitionPlayerExit  Transition = "player_exit"
	TransitionHelmBegin   Transition = "helm_begin"
	TransitionHelmEnd     Transition = "helm_end"
	TransitionDock        Transition = "dock"
	TransitionUndock      Transition = "undock"
	TransitionScuttle     Transition = "scuttle"
	TransitionUnscuttle   Transition = "unscuttle"
	TransitionPower       Transition = "power"
)

// TransitionRecord is one completed lifecycle transition.
type TransitionRecord struct {
	ID         uint
	SessionID  string
	EntityID   EntityID
	Transition Transition
	Time       time.Time
	State      LifecycleState
	Detail     map[string]any
}

// PersistenceOp is a save or a load.
type PersistenceOp string

const (
	OpSave PersistenceOp = "save"
	OpLoad PersistenceOp = "load"
)

// PersistenceOutcome classifies a save or load.
type PersistenceOutcome string

const (
	OutcomeOK      PersistenceOutcome = "ok"
	OutcomePartial PersistenceOutcome = "partial"
	OutcomeNoData  PersistenceOutcome = "nodata"
	OutcomeFailed  PersistenceOutcome = "failed"
)

// PersistenceRecord is the outcome of one SaveEntityState or LoadEntityState.
type PersistenceRecord struct {
	ID        uint
	SessionID string
	EntityID  EntityID
	Slot      string
	Op        PersistenceOp
	Outcome   PersistenceOutcome
	Applied   int
	Failed    int
	Time      time.Time
}

// Session identifies one host run.
type Session struct {
	ID               string
	Slot             string
	StartTime        time.Time
	ExtensionVersion string
}

// Vehicle is a spawned vehicle as registered with the journal.
type Vehicle struct {
	ID        EntityID
	Kind      VehicleKind
	Name      string
	Hatches   int
	Helms     int
	SpawnTime time.Time
}
