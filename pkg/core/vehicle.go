// pkg/core/vehicle.go
package core

import (
	"errors"
	"fmt"
)

// EntityID identifies one vehicle instance. IDs are handed out by an allocator
// at construction time and are stable for the entity's lifetime.
type EntityID uint32

// NoEntity is the zero EntityID; allocators never hand it out.
const NoEntity EntityID = 0

func (id EntityID) String() string {
	return fmt.Sprintf("%d", uint32(id))
}

// VehicleKind is the closed set of vehicle variants.
type VehicleKind uint8

const (
	KindSubmarine VehicleKind = iota
	KindSubmersible
	KindSkimmer
	KindWalker
)

var vehicleKindNames = [...]string{
	KindSubmarine:   "submarine",
	KindSubmersible: "submersible",
	KindSkimmer:     "skimmer",
	KindWalker:      "walker",
}

func (k VehicleKind) String() string {
	if int(k) < len(vehicleKindNames) {
		return vehicleKindNames[k]
	}
	return fmt.Sprintf("VehicleKind(%d)", uint8(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k VehicleKind) MarshalText() ([]byte, error) {
	if int(k) >= len(vehicleKindNames) {
		return nil, fmt.Errorf("unknown vehicle kind %d", uint8(k))
	}
	return []byte(vehicleKindNames[k]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *VehicleKind) UnmarshalText(b []byte) error {
	kind, err := ParseVehicleKind(string(b))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// ParseVehicleKind resolves a kind from its name.
func ParseVehicleKind(s string) (VehicleKind, error) {
	for i, name := range vehicleKindNames {
		if name == s {
			return VehicleKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown vehicle kind %q", s)
}

// PilotingStyle describes how the player is posed while at the helm.
type PilotingStyle struct {
	Seated      bool
	UseHandIK   bool
	Animation   string
	LocksCamera bool
}

// PilotingStyleFor maps every vehicle kind to its piloting pose.
func PilotingStyleFor(k VehicleKind) PilotingStyle {
	switch k {
	case KindSubmarine:
		return PilotingStyle{Seated: false, UseHandIK: true, Animation: "cyclops_steering"}
	case KindSubmersible:
		return PilotingStyle{Seated: true, UseHandIK: true, Animation: "seamoth_pilot", LocksCamera: true}
	case KindSkimmer:
		return PilotingStyle{Seated: true, UseHandIK: false, Animation: "skimmer_pilot"}
	case KindWalker:
		return PilotingStyle{Seated: true, UseHandIK: true, Animation: "exosuit_pilot", LocksCamera: true}
	default:
		return PilotingStyle{Animation: "none"}
	}
}

// Anchor is a named point on the vehicle, expressed in world space.
type Anchor struct {
	Name     string
	Position Vec3
	Rotation Quaternion
}

// HatchDefinition is an entry/exit point of a vehicle. All three locations are
// mandatory.
type HatchDefinition struct {
	Entry       Anchor
	Exit        Anchor
	SurfaceExit Anchor
}

// HelmDefinition is a piloting station. ControlAnchor may be nil in broken
// configurations; such a helm refuses control.
type HelmDefinition struct {
	ControlAnchor *Anchor
	Seated        bool
	LeftHand      *Anchor
	RightHand     *Anchor
	Exit          *Anchor
}

// LifecycleState is the boarding/piloting/docking state of one vehicle.
type LifecycleState struct {
	Boarded       bool
	Piloting      bool
	Docked        bool
	Scuttled      bool
	PoweredOn     bool
	ControlAnchor *Anchor
}

// ErrInvalidState reports a broken lifecycle invariant.
var ErrInvalidState = errors.New("invalid lifecycle state")

// Validate checks piloting ⇒ boarded and ControlAnchor set ⇔ piloting.
func (s LifecycleState) Validate() error {
	if s.Piloting && !s.Boarded {
		return fmt.Errorf("%w: piloting while not boarded", ErrInvalidState)
	}
	if s.Piloting != (s.ControlAnchor != nil) {
		return fmt.Errorf("%w: control anchor set=%t but piloting=%t", ErrInvalidState, s.ControlAnchor != nil, s.Piloting)
	}
	return nil
}
