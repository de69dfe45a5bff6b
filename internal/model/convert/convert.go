package convert

import (
	"encoding/json"

	"github.com/IronFox/AVS-sub001/internal/model"
	"github.com/IronFox/AVS-sub001/pkg/core"
)

// SessionToCore converts a GORM Session to a core.Session.
func SessionToCore(s model.Session) core.Session {
	return core.Session{
		ID:               s.SessionID,
		Slot:             s.Slot,
		StartTime:        s.StartTime,
		ExtensionVersion: s.ExtensionVersion,
	}
}

// VehicleToCore converts a GORM Vehicle to a core.Vehicle. An unknown kind
// string maps to the zero kind.
func VehicleToCore(v model.Vehicle) core.Vehicle {
	kind, _ := core.ParseVehicleKind(v.Kind)
	return core.Vehicle{
		ID:        core.EntityID(v.EntityID),
		Kind:      kind,
		Name:      v.Name,
		Hatches:   int(v.Hatches),
		Helms:     int(v.Helms),
		SpawnTime: v.SpawnTime,
	}
}

// TransitionToCore converts a GORM Transition to a core.TransitionRecord.
func TransitionToCore(t model.Transition) core.TransitionRecord {
	r := core.TransitionRecord{
		ID:         t.ID,
		SessionID:  t.SessionID,
		EntityID:   core.EntityID(t.EntityID),
		Transition: core.Transition(t.Transition),
		Time:       t.Time,
		State: core.LifecycleState{
			Boarded:   t.Boarded,
			Piloting:  t.Piloting,
			Docked:    t.Docked,
			Scuttled:  t.Scuttled,
			PoweredOn: t.PoweredOn,
		},
	}
	if t.ControlAnchor != "" {
		r.State.ControlAnchor = &core.Anchor{Name: t.ControlAnchor}
	}
	if len(t.Detail) > 0 {
		var detail map[string]any
		if err := json.Unmarshal(t.Detail, &detail); err == nil && len(detail) > 0 {
			r.Detail = detail
		}
	}
	return r
}

// PersistenceToCore converts a GORM PersistenceEvent to a core.PersistenceRecord.
func PersistenceToCore(p model.PersistenceEvent) core.PersistenceRecord {
	return core.PersistenceRecord{
		ID:        p.ID,
		SessionID: p.SessionID,
		EntityID:  core.EntityID(p.EntityID),
		Slot:      p.Slot,
		Op:        core.PersistenceOp(p.Op),
		Outcome:   core.PersistenceOutcome(p.Outcome),
		Applied:   p.Applied,
		Failed:    p.Failed,
		Time:      p.Time,
	}
}
