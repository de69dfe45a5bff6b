// Package lifecycle is the boarding, piloting and docking state machine of
// one vehicle.
//
// A Controller owns its vehicle's core.LifecycleState and is the only thing
// that mutates it. Operations are not safe for concurrent use; they are
// driven from the host's single tick goroutine, one transition at a time.
package lifecycle

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IronFox/AVS-sub001/internal/entryexit"
	"github.com/IronFox/AVS-sub001/internal/persistence"
	"github.com/IronFox/AVS-sub001/internal/restore"
	"github.com/IronFox/AVS-sub001/pkg/core"
)

var (
	// ErrNoControlAnchor is returned by BeginHelmControl for a helm without
	// a control anchor. Nothing has changed when it is returned.
	ErrNoControlAnchor = errors.New("helm has no control anchor")

	// ErrScuttled is returned when a scuttled vehicle refuses boarding or
	// piloting.
	ErrScuttled = errors.New("vehicle is scuttled")

	// ErrNotBoarded is returned when piloting is requested without a player
	// aboard.
	ErrNotBoarded = errors.New("player is not aboard")
)

// Body is the vehicle in the world.
type Body interface {
	// Position is the vehicle's world position; Y is its depth.
	Position() core.Vec3
	SetCollisions(enabled bool)
	SetCanopyVisible(visible bool)
}

// ControlBinding poses the player at a helm.
type ControlBinding struct {
	Anchor    core.Anchor
	Seated    bool
	LeftHand  *core.Anchor
	RightHand *core.Anchor
	Style     core.PilotingStyle
}

// Player is the local player as seen by one vehicle.
type Player interface {
	entryexit.Player

	CurrentVessel() core.EntityID
	SetCurrentVessel(id core.EntityID)
	// HostVessel names the vessel the player is standing in, if any.
	HostVessel() string
	SetWalking(walking bool)
	Detach()
	BindControl(b ControlBinding)
	ReleaseControl()
	SetQuickSlotTarget(id core.EntityID)
}

// Session supplies the save slot and session id.
type Session interface {
	SessionID() string
	Slot() string
}

// Journal records completed transitions and persistence outcomes.
type Journal interface {
	RecordTransition(r *core.TransitionRecord) error
	RecordPersistence(r *core.PersistenceRecord) error
}

// Config holds the tunables of a Controller.
type Config struct {
	CollisionReenableDelay time.Duration
	Exit                   entryexit.ExitPolicy
	// DesignatedHost is the vessel whose own helm release EndHelmControl
	// must not answer to.
	DesignatedHost string
	// DataName is the document prefix the vehicle state is saved under.
	DataName string
}

// DefaultConfig returns the stock tunables.
func DefaultConfig() Config {
	return Config{
		CollisionReenableDelay: 5 * time.Second,
		Exit:                   entryexit.ExitPolicy{DepthThreshold: -3, AllowSurfacing: true},
		DesignatedHost:         "Cyclops",
		DataName:               "Vehicle",
	}
}

// Deps are the collaborators of a Controller. Journal, Alive, Blocks and
// Logger are optional.
type Deps struct {
	Body      Body
	Player    Player
	Hatches   *entryexit.Coordinator
	Helms     []core.HelmDefinition
	Scheduler *restore.Scheduler
	Session   Session
	Model     *persistence.Model
	Store     persistence.Store
	Journal   Journal
	// Alive reports whether the vehicle still exists; delayed work checks it
	// before running.
	Alive func() bool
	// Blocks are saved alongside the lifecycle block.
	Blocks []persistence.Block
	Logger *slog.Logger
}

// Controller drives one vehicle's lifecycle.
type Controller struct {
	id   core.EntityID
	kind core.VehicleKind
	cfg  Config
	deps Deps

	state      core.LifecycleState
	activeHelm *core.HelmDefinition

	collisionsOff bool
	reenableGen   uint64

	staged core.LifecycleState
	data   *persistence.Lazy

	hooks     map[hookKey][]namedHook
	listeners []Listener

	logger  *slog.Logger
	metrics *metrics
}

// New creates a Controller for vehicle id in its initial state: not boarded,
// not piloting, undocked, not scuttled, powered on.
func New(id core.EntityID, kind core.VehicleKind, cfg Config, deps Deps) (*Controller, error) {
	if deps.Body == nil || deps.Player == nil || deps.Hatches == nil || deps.Scheduler == nil {
		return nil, fmt.Errorf("lifecycle %s: body, player, hatches and scheduler are required", id)
	}
	if deps.Alive == nil {
		deps.Alive = func() bool { return true }
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m, err := newMetrics()
	if err != nil {
		return nil, err
	}
	c := &Controller{
		id:      id,
		kind:    kind,
		cfg:     cfg,
		deps:    deps,
		state:   core.LifecycleState{PoweredOn: true},
		hooks:   make(map[hookKey][]namedHook),
		logger:  logger.With("entity", id.String(), "kind", kind.String()),
		metrics: m,
	}
	c.data = persistence.NewLazy(c.buildData)
	return c, nil
}

// ID returns the vehicle's id.
func (c *Controller) ID() core.EntityID { return c.id }

// Kind returns the vehicle's kind.
func (c *Controller) Kind() core.VehicleKind { return c.kind }

// State returns a copy of the current lifecycle state.
func (c *Controller) State() core.LifecycleState {
	s := c.state
	if s.ControlAnchor != nil {
		a := *s.ControlAnchor
		s.ControlAnchor = &a
	}
	return s
}

// Helms returns the vehicle's helm definitions.
func (c *Controller) Helms() []core.HelmDefinition { return c.deps.Helms }

// Helm returns helm i.
func (c *Controller) Helm(i int) (core.HelmDefinition, error) {
	if i < 0 || i >= len(c.deps.Helms) {
		return core.HelmDefinition{}, fmt.Errorf("helm %d out of range [0,%d)", i, len(c.deps.Helms))
	}
	return c.deps.Helms[i], nil
}

// CollisionsEnabled reports whether collision detection is on.
func (c *Controller) CollisionsEnabled() bool { return !c.collisionsOff }
