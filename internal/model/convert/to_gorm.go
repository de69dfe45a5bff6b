// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/IronFox/AVS-sub001/internal/model"
	"github.com/IronFox/AVS-sub001/pkg/core"
)

func detailToJSON(detail map[string]any) datatypes.JSON {
	if len(detail) == 0 {
		return datatypes.JSON("{}")
	}
	data, err := json.Marshal(detail)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}

// CoreToSession converts a core.Session to a GORM Session.
func CoreToSession(s core.Session) model.Session {
	return model.Session{
		SessionID:        s.ID,
		Slot:             s.Slot,
		ExtensionVersion: s.ExtensionVersion,
		StartTime:        s.StartTime,
	}
}

// CoreToVehicle converts a core.Vehicle spawned in sessionID to a GORM Vehicle.
func CoreToVehicle(sessionID string, v core.Vehicle) model.Vehicle {
	return model.Vehicle{
		SessionID: sessionID,
		EntityID:  uint32(v.ID),
		Kind:      v.Kind.String(),
		Name:      v.Name,
		Hatches:   uint8(min(v.Hatches, 255)),
		Helms:     uint8(min(v.Helms, 255)),
		SpawnTime: v.SpawnTime,
	}
}

// CoreToTransition converts a core.TransitionRecord to a GORM Transition.
// The control anchor is stored by name only.
func CoreToTransition(r core.TransitionRecord) model.Transition {
	t := model.Transition{
		ID:         r.ID,
		Time:       r.Time,
		SessionID:  r.SessionID,
		EntityID:   uint32(r.EntityID),
		Transition: string(r.Transition),
		Boarded:    r.State.Boarded,
		Piloting:   r.State.Piloting,
		Docked:     r.State.Docked,
		Scuttled:   r.State.Scuttled,
		PoweredOn:  r.State.PoweredOn,
		Detail:     detailToJSON(r.Detail),
	}
	if r.State.ControlAnchor != nil {
		t.ControlAnchor = r.State.ControlAnchor.Name
	}
	return t
}

// CoreToPersistence converts a core.PersistenceRecord to a GORM PersistenceEvent.
func CoreToPersistence(r core.PersistenceRecord) model.PersistenceEvent {
	return model.PersistenceEvent{
		ID:        r.ID,
		Time:      r.Time,
		SessionID: r.SessionID,
		EntityID:  uint32(r.EntityID),
		Slot:      r.Slot,
		Op:        string(r.Op),
		Outcome:   string(r.Outcome),
		Applied:   r.Applied,
		Failed:    r.Failed,
	}
}
