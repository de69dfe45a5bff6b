package vehicle

import (
	"sync"

	"github.com/IronFox/AVS-sub001/internal/lifecycle"
	"github.com/IronFox/AVS-sub001/pkg/core"
)

// Hull mirrors a vehicle's body in the game. The game reports its position;
// the controller's requests are kept for the game to poll.
type Hull struct {
	mu            sync.RWMutex
	position      core.Vec3
	collisions    bool
	canopyVisible bool
}

// NewHull returns a hull with collisions on and the canopy shown.
func NewHull() *Hull {
	return &Hull{collisions: true, canopyVisible: true}
}

func (h *Hull) Position() core.Vec3 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.position
}

// SetPosition records the position reported by the game.
func (h *Hull) SetPosition(p core.Vec3) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.position = p
}

func (h *Hull) SetCollisions(enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.collisions = enabled
}

func (h *Hull) SetCanopyVisible(visible bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.canopyVisible = visible
}

// HullState is a snapshot of a Hull.
type HullState struct {
	Position      core.Vec3 `json:"position"`
	Collisions    bool      `json:"collisions"`
	CanopyVisible bool      `json:"canopyVisible"`
}

// Snapshot returns the current hull state.
func (h *Hull) Snapshot() HullState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HullState{Position: h.position, Collisions: h.collisions, CanopyVisible: h.canopyVisible}
}

// Placement is a move requested for the player.
type Placement struct {
	Target  core.Anchor `json:"target"`
	Surface bool        `json:"surface"`
}

// Pilot mirrors the local player. One Pilot is shared by every vehicle.
type Pilot struct {
	mu         sync.RWMutex
	position   core.Vec3
	vessel     core.EntityID
	host       string
	walking    bool
	attached   bool
	binding    *lifecycle.ControlBinding
	quickSlot  core.EntityID
	placements []Placement
}

// NewPilot returns a player standing nowhere in particular.
func NewPilot() *Pilot {
	return &Pilot{}
}

func (p *Pilot) Position() core.Vec3 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.position
}

// SetPosition records the position reported by the game.
func (p *Pilot) SetPosition(pos core.Vec3) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = pos
}

func (p *Pilot) Teleport(to core.Anchor) {
	p.place(Placement{Target: to})
}

func (p *Pilot) SurfaceTo(to core.Anchor) {
	p.place(Placement{Target: to, Surface: true})
}

func (p *Pilot) place(pl Placement) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = pl.Target.Position
	p.placements = append(p.placements, pl)
}

// TakePlacements returns and clears the moves requested since the last call.
func (p *Pilot) TakePlacements() []Placement {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.placements
	p.placements = nil
	return out
}

func (p *Pilot) CurrentVessel() core.EntityID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.vessel
}

func (p *Pilot) SetCurrentVessel(id core.EntityID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.vessel = id
	p.attached = id != core.NoEntity
}

func (p *Pilot) HostVessel() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.host
}

// SetHostVessel records the vessel the game reports the player standing in.
func (p *Pilot) SetHostVessel(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.host = name
}

func (p *Pilot) SetWalking(walking bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.walking = walking
}

func (p *Pilot) Detach() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attached = false
}

func (p *Pilot) BindControl(b lifecycle.ControlBinding) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.binding = &b
}

func (p *Pilot) ReleaseControl() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.binding = nil
}

func (p *Pilot) SetQuickSlotTarget(id core.EntityID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quickSlot = id
}

// PilotState is a snapshot of a Pilot.
type PilotState struct {
	Position  core.Vec3     `json:"position"`
	Vessel    core.EntityID `json:"vessel"`
	Host      string        `json:"host,omitempty"`
	Walking   bool          `json:"walking"`
	Attached  bool          `json:"attached"`
	AtHelm    string        `json:"atHelm,omitempty"`
	QuickSlot core.EntityID `json:"quickSlot"`
}

// Snapshot returns the current player state.
func (p *Pilot) Snapshot() PilotState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := PilotState{
		Position:  p.position,
		Vessel:    p.vessel,
		Host:      p.host,
		Walking:   p.walking,
		Attached:  p.attached,
		QuickSlot: p.quickSlot,
	}
	if p.binding != nil {
		s.AtHelm = p.binding.Anchor.Name
	}
	return s
}
