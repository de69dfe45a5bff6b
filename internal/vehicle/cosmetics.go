package vehicle

import (
	"github.com/IronFox/AVS-sub001/internal/codec"
	"github.com/IronFox/AVS-sub001/pkg/core"
)

// CosmeticState is the player-chosen look of a vehicle. Colors are stored as
// core.SavedColor, independent of any rendering API.
type CosmeticState struct {
	Name          string
	BaseColor     core.Color
	StripeColor   core.Color
	NameColor     core.Color
	InteriorColor core.Color
}

// DefaultCosmetics returns the look of a freshly spawned vehicle.
func DefaultCosmetics(name string) CosmeticState {
	return CosmeticState{
		Name:          name,
		BaseColor:     core.White,
		StripeColor:   core.White,
		NameColor:     core.Color{A: 1},
		InteriorColor: core.White,
	}
}

// SetDefaults fills members a stored document may lack.
func (s *CosmeticState) SetDefaults() {
	*s = DefaultCosmetics("")
}

// VisitFields pins the stored member names so renaming Go fields does not
// orphan saved data.
func (s *CosmeticState) VisitFields(v codec.FieldVisitor) error {
	fields := []struct {
		name string
		ptr  any
	}{
		{"name", &s.Name},
		{"baseColor", &s.BaseColor},
		{"stripeColor", &s.StripeColor},
		{"nameColor", &s.NameColor},
		{"interiorColor", &s.InteriorColor},
	}
	for _, f := range fields {
		if err := v.Field(f.name, f.ptr); err != nil {
			return err
		}
	}
	return nil
}
