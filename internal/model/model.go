package model

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
)

// DatabaseModels lists every struct that maps to a journal table.
var DatabaseModels = []any{
	&Session{},
	&Vehicle{},
	&Transition{},
	&PersistenceEvent{},
}

// Session is one host run on one save slot.
type Session struct {
	ID               uint         `json:"id" gorm:"primarykey;autoIncrement"`
	SessionID        string       `json:"sessionId" gorm:"size:36;uniqueIndex"`
	Slot             string       `json:"slot" gorm:"size:64;index"`
	ExtensionVersion string       `json:"extensionVersion" gorm:"size:32"`
	StartTime        time.Time    `json:"startTime"`
	EndTime          sql.NullTime `json:"endTime"`
}

func (*Session) TableName() string {
	return "sessions"
}

// Vehicle is a vehicle spawned during a session.
type Vehicle struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement"`
	SessionID string    `json:"sessionId" gorm:"size:36;index:idx_vehicle_session_entity"`
	EntityID  uint32    `json:"entityId" gorm:"index:idx_vehicle_session_entity"`
	Kind      string    `json:"kind" gorm:"size:16"`
	Name      string    `json:"name" gorm:"size:64"`
	Hatches   uint8     `json:"hatches"`
	Helms     uint8     `json:"helms"`
	SpawnTime time.Time `json:"spawnTime"`
}

func (*Vehicle) TableName() string {
	return "vehicles"
}

// Transition is one completed lifecycle transition and the state it left
// the vehicle in.
type Transition struct {
	ID            uint           `json:"id" gorm:"primarykey;autoIncrement"`
	Time          time.Time      `json:"time" gorm:"index"`
	SessionID     string         `json:"sessionId" gorm:"size:36;index:idx_transition_session_entity"`
	EntityID      uint32         `json:"entityId" gorm:"index:idx_transition_session_entity"`
	Transition    string         `json:"transition" gorm:"size:16;index"`
	Boarded       bool           `json:"boarded"`
	Piloting      bool           `json:"piloting"`
	Docked        bool           `json:"docked"`
	Scuttled      bool           `json:"scuttled"`
	PoweredOn     bool           `json:"poweredOn"`
	ControlAnchor string         `json:"controlAnchor" gorm:"size:64"`
	Detail        datatypes.JSON `json:"detail"`
}

func (*Transition) TableName() string {
	return "transitions"
}

// PersistenceEvent is the outcome of one save or load of a vehicle.
type PersistenceEvent struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement"`
	Time      time.Time `json:"time" gorm:"index"`
	SessionID string    `json:"sessionId" gorm:"size:36;index"`
	EntityID  uint32    `json:"entityId" gorm:"index"`
	Slot      string    `json:"slot" gorm:"size:64"`
	Op        string    `json:"op" gorm:"size:8"`
	Outcome   string    `json:"outcome" gorm:"size:8;index"`
	Applied   int       `json:"applied"`
	Failed    int       `json:"failed"`
}

func (*PersistenceEvent) TableName() string {
	return "persistence_events"
}
