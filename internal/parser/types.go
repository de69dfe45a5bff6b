package parser

import (
	"github.com/IronFox/AVS-sub001/internal/vehicle"
	"github.com/IronFox/AVS-sub001/pkg/core"
)

// EntityCommand addresses one vehicle and carries nothing else.
type EntityCommand struct {
	Entity core.EntityID
}

// SpawnCommand creates a vehicle. ID is core.NoEntity when the host lets the
// allocator pick one.
type SpawnCommand struct {
	ID         core.EntityID
	Definition vehicle.Definition
}

// PositionCommand moves the mirror of a vehicle body or of the player.
type PositionCommand struct {
	Entity   core.EntityID
	Position core.Vec3
}

// HelmCommand takes control of helm Index.
type HelmCommand struct {
	Entity core.EntityID
	Index  int
}

// DockCommand docks a vehicle, optionally landing the player at Exit.
type DockCommand struct {
	Entity             core.EntityID
	SuppressRelocation bool
	Exit               *core.Vec3
}

// UndockCommand releases a vehicle.
type UndockCommand struct {
	Entity            core.EntityID
	BoardPlayer       bool
	SuspendCollisions bool
	Admin             bool
}

// ToggleCommand switches a boolean property of a vehicle.
type ToggleCommand struct {
	Entity core.EntityID
	On     bool
}

// PaintCommand sets one paint channel of a vehicle.
type PaintCommand struct {
	Entity  core.EntityID
	Channel string
	Color   core.Color
}

// RenameCommand renames a vehicle.
type RenameCommand struct {
	Entity core.EntityID
	Name   string
}

// LogCommand is a log line forwarded by the host scripts.
type LogCommand struct {
	Source string
	Level  string
	Text   string
}
