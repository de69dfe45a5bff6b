// Package entryexit picks the hatch a player uses to board or leave a vehicle
// and places the player there.
package entryexit

import (
	"errors"

	"github.com/IronFox/AVS-sub001/pkg/core"
)

// ErrNoHatches is returned when a vehicle has no hatches to choose from.
var ErrNoHatches = errors.New("vehicle has no hatches")

// Player is the part of the player the coordinator needs.
type Player interface {
	Position() core.Vec3
	Teleport(to core.Anchor)
	// SurfaceTo relocates the player toward a surface exit, letting the world
	// settle them above the water line.
	SurfaceTo(to core.Anchor)
}

// Coordinator selects hatches from an immutable list.
type Coordinator struct {
	hatches []core.HatchDefinition
}

// New creates a Coordinator over hatches, which are not copied and must not
// change afterwards.
func New(hatches []core.HatchDefinition) *Coordinator {
	return &Coordinator{hatches: hatches}
}

// Hatches returns the hatch list.
func (c *Coordinator) Hatches() []core.HatchDefinition {
	return c.hatches
}

// ClosestEntryHatch returns the hatch whose entry point is nearest to from.
// On ties the earlier hatch wins.
func (c *Coordinator) ClosestEntryHatch(from core.Vec3) (core.HatchDefinition, int, error) {
	return c.closest(from, func(h core.HatchDefinition) core.Vec3 { return h.Entry.Position })
}

// ClosestExitHatch returns the hatch whose exit point is nearest to from.
// On ties the earlier hatch wins.
func (c *Coordinator) ClosestExitHatch(from core.Vec3) (core.HatchDefinition, int, error) {
	return c.closest(from, func(h core.HatchDefinition) core.Vec3 { return h.Exit.Position })
}

func (c *Coordinator) closest(from core.Vec3, point func(core.HatchDefinition) core.Vec3) (core.HatchDefinition, int, error) {
	if len(c.hatches) == 0 {
		return core.HatchDefinition{}, -1, ErrNoHatches
	}
	best := 0
	bestDist := core.Distance(from, point(c.hatches[0]))
	for i := 1; i < len(c.hatches); i++ {
		if d := core.Distance(from, point(c.hatches[i])); d < bestDist {
			best, bestDist = i, d
		}
	}
	return c.hatches[best], best, nil
}

// Exit is the placement chosen for a leaving player.
type Exit struct {
	Hatch   int
	Target  core.Anchor
	Surface bool
}

// ExitPolicy decides between teleporting and surfacing.
type ExitPolicy struct {
	// DepthThreshold is the vehicle height below which players are teleported
	// to the hatch exit instead of surfacing.
	DepthThreshold float64
	AllowSurfacing bool
}

// PlanExit picks the exit hatch nearest to the player and the target within
// it: the plain exit when the vehicle is deeper than the threshold or
// surfacing is disallowed, the surface exit otherwise.
func (c *Coordinator) PlanExit(player core.Vec3, vehicleDepth float64, policy ExitPolicy) (Exit, error) {
	hatch, idx, err := c.ClosestExitHatch(player)
	if err != nil {
		return Exit{}, err
	}
	if vehicleDepth < policy.DepthThreshold || !policy.AllowSurfacing {
		return Exit{Hatch: idx, Target: hatch.Exit}, nil
	}
	return Exit{Hatch: idx, Target: hatch.SurfaceExit, Surface: true}, nil
}

// Place moves p to the planned exit.
func Place(p Player, e Exit) {
	if e.Surface {
		p.SurfaceTo(e.Target)
		return
	}
	p.Teleport(e.Target)
}

// PlaceAtEntry teleports p to the entry of the hatch nearest to them and
// returns that hatch's index.
func (c *Coordinator) PlaceAtEntry(p Player) (int, error) {
	hatch, idx, err := c.ClosestEntryHatch(p.Position())
	if err != nil {
		return -1, err
	}
	p.Teleport(hatch.Entry)
	return idx, nil
}
