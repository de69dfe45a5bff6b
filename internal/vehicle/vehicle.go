// Package vehicle assembles one vehicle instance: its configuration, its
// lifecycle controller, its look, and the mirrors of its body and player.
package vehicle

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/IronFox/AVS-sub001/internal/entryexit"
	"github.com/IronFox/AVS-sub001/internal/lifecycle"
	"github.com/IronFox/AVS-sub001/internal/persistence"
	"github.com/IronFox/AVS-sub001/internal/restore"
	"github.com/IronFox/AVS-sub001/pkg/core"
)

// CosmeticsBlock is the name of the block holding the look of a vehicle.
const CosmeticsBlock = "Cosmetics"

// Definition is the immutable configuration of a vehicle, validated
// upstream.
type Definition struct {
	Kind    core.VehicleKind
	Name    string
	Hatches []core.HatchDefinition
	Helms   []core.HelmDefinition
}

// Deps are shared by every vehicle of a host.
type Deps struct {
	Pilot     *Pilot
	Scheduler *restore.Scheduler
	Session   lifecycle.Session
	Model     *persistence.Model
	Store     persistence.Store
	Journal   lifecycle.Journal
	Config    lifecycle.Config
	Logger    *slog.Logger
}

// Vehicle is one spawned vehicle. Apart from Alive and IsInitialized its
// methods belong to the tick goroutine.
type Vehicle struct {
	id      core.EntityID
	def     Definition
	spawned time.Time

	hull      *Hull
	cosmetics CosmeticState
	lc        *lifecycle.Controller

	initialized atomic.Bool
	destroyed   atomic.Bool
}

// New creates vehicle id from def. The id comes from the host's allocator.
func New(id core.EntityID, def Definition, deps Deps) (*Vehicle, error) {
	if deps.Pilot == nil {
		return nil, fmt.Errorf("vehicle %s: pilot is required", id)
	}
	v := &Vehicle{
		id:        id,
		def:       def,
		spawned:   time.Now(),
		hull:      NewHull(),
		cosmetics: DefaultCosmetics(def.Name),
	}
	lc, err := lifecycle.New(id, def.Kind, deps.Config, lifecycle.Deps{
		Body:      v.hull,
		Player:    deps.Pilot,
		Hatches:   entryexit.New(def.Hatches),
		Helms:     def.Helms,
		Scheduler: deps.Scheduler,
		Session:   deps.Session,
		Model:     deps.Model,
		Store:     deps.Store,
		Journal:   deps.Journal,
		Alive:     v.Alive,
		Blocks: []persistence.Block{
			persistence.NewBlock(CosmeticsBlock, persistence.Field("cosmetics", &v.cosmetics)),
		},
		Logger: deps.Logger,
	})
	if err != nil {
		return nil, err
	}
	v.lc = lc
	return v, nil
}

func (v *Vehicle) ID() core.EntityID                { return v.id }
func (v *Vehicle) Kind() core.VehicleKind           { return v.def.Kind }
func (v *Vehicle) Definition() Definition           { return v.def }
func (v *Vehicle) Lifecycle() *lifecycle.Controller { return v.lc }
func (v *Vehicle) Hull() *Hull                      { return v.hull }

// Cosmetics returns the current look.
func (v *Vehicle) Cosmetics() CosmeticState { return v.cosmetics }

// SetCosmetics changes the look.
func (v *Vehicle) SetCosmetics(c CosmeticState) { v.cosmetics = c }

// MarkInitialized records that the game finished constructing the vehicle.
func (v *Vehicle) MarkInitialized() { v.initialized.Store(true) }

// IsInitialized reports whether MarkInitialized was called.
func (v *Vehicle) IsInitialized() bool { return v.initialized.Load() }

// Destroy marks the vehicle gone. Pending delayed work for it aborts.
func (v *Vehicle) Destroy() { v.destroyed.Store(true) }

// Alive reports whether the vehicle has not been destroyed.
func (v *Vehicle) Alive() bool { return !v.destroyed.Load() }

// Info describes the vehicle for the journal.
func (v *Vehicle) Info() core.Vehicle {
	return core.Vehicle{
		ID:        v.id,
		Kind:      v.def.Kind,
		Name:      v.cosmetics.Name,
		Hatches:   len(v.def.Hatches),
		Helms:     len(v.def.Helms),
		SpawnTime: v.spawned,
	}
}

// Status is a point-in-time view of a vehicle.
type Status struct {
	ID          core.EntityID              `json:"id"`
	Kind        string                     `json:"kind"`
	Name        string                     `json:"name"`
	Initialized bool                       `json:"initialized"`
	State       core.LifecycleState        `json:"state"`
	Hull        HullState                  `json:"hull"`
	Colors      map[string]core.SavedColor `json:"colors"`
}

// Status snapshots the vehicle.
func (v *Vehicle) Status() Status {
	return Status{
		ID:          v.id,
		Kind:        v.def.Kind.String(),
		Name:        v.cosmetics.Name,
		Initialized: v.IsInitialized(),
		State:       v.lc.State(),
		Hull:        v.hull.Snapshot(),
		Colors: map[string]core.SavedColor{
			"base":     core.SaveColor(v.cosmetics.BaseColor),
			"stripe":   core.SaveColor(v.cosmetics.StripeColor),
			"name":     core.SaveColor(v.cosmetics.NameColor),
			"interior": core.SaveColor(v.cosmetics.InteriorColor),
		},
	}
}
