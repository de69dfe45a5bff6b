package lifecycle

import (
	"errors"
	"time"

	"github.com/IronFox/AVS-sub001/internal/integrity"
	"github.com/IronFox/AVS-sub001/internal/persistence"
	"github.com/IronFox/AVS-sub001/internal/restore"
	"github.com/IronFox/AVS-sub001/pkg/core"
)

// LifecycleBlock is the name of the block holding the lifecycle state.
const LifecycleBlock = "Lifecycle"

var errNoPersistence = errors.New("persistence is not configured")

// buildData declares the saved properties. Getters read the live state;
// setters write a staged copy that reconcile later drives the live state
// towards through regular transitions.
func (c *Controller) buildData() persistence.Data {
	s := &c.staged
	blocks := []persistence.Block{
		persistence.NewBlock(LifecycleBlock,
			persistence.NewProperty("boarded",
				func() bool { return c.state.Boarded },
				func(v bool) { s.Boarded = v }),
			persistence.NewProperty("docked",
				func() bool { return c.state.Docked },
				func(v bool) { s.Docked = v }),
			persistence.NewProperty("scuttled",
				func() bool { return c.state.Scuttled },
				func(v bool) { s.Scuttled = v }),
			persistence.NewProperty("poweredOn",
				func() bool { return c.state.PoweredOn },
				func(v bool) { s.PoweredOn = v }),
			persistence.NewProperty("controlAnchor",
				func() *core.Anchor { return c.state.ControlAnchor },
				func(v *core.Anchor) { s.ControlAnchor = v }),
		),
	}
	blocks = append(blocks, c.deps.Blocks...)
	return persistence.Data{Name: c.cfg.DataName, Blocks: blocks}
}

// PersistentData returns the vehicle's saved-state description, built once.
func (c *Controller) PersistentData() persistence.Data {
	return c.data.Get()
}

func (c *Controller) key() integrity.Key {
	var slot string
	if c.deps.Session != nil {
		slot = c.deps.Session.Slot()
	}
	return integrity.Key{Slot: slot, Prefix: c.cfg.DataName, EntityID: c.id}
}

// SaveEntityState writes the vehicle's state to the current save slot.
// Properties that fail to export are logged and left out.
func (c *Controller) SaveEntityState() (persistence.Report, error) {
	if c.deps.Model == nil || c.deps.Store == nil {
		return persistence.Report{}, errNoPersistence
	}
	rep, err := c.deps.Model.Save(c.deps.Store, c.key(), c.PersistentData())
	outcome := outcomeOf(rep)
	if err != nil {
		outcome = core.OutcomeFailed
		c.logger.Error("Save failed", "error", err)
	}
	c.recordPersistence(core.OpSave, outcome, rep)
	return rep, err
}

// LoadEntityState schedules the restore of the saved state: once the world
// is loaded, the vehicle is initialized and every task in after has
// completed, the stored state is read and applied.
func (c *Controller) LoadEntityState(world restore.World, after ...*restore.Task) *restore.Task {
	return c.deps.Scheduler.Restore(restore.RestoreSpec{
		Name:   "restore-" + c.cfg.DataName + "-" + c.id.String(),
		Entity: c.id,
		World:  world,
		Alive:  c.deps.Alive,
		After:  after,
		Apply: func() error {
			c.ApplySavedState()
			return nil
		},
	})
}

// ApplySavedState reads the saved state and applies it now. With no usable
// saved state nothing changes and the second result is false.
func (c *Controller) ApplySavedState() (persistence.Report, bool) {
	if c.deps.Model == nil || c.deps.Store == nil {
		c.logger.Warn("Restore skipped", "error", errNoPersistence)
		return persistence.Report{}, false
	}
	c.staged = c.State()
	rep, ok := c.deps.Model.Load(c.deps.Store, c.key(), c.PersistentData())
	if !ok {
		c.recordPersistence(core.OpLoad, core.OutcomeNoData, rep)
		return rep, false
	}
	c.reconcile(c.staged)
	c.recordPersistence(core.OpLoad, outcomeOf(rep), rep)
	return rep, true
}

// reconcile moves the live state to target through the public transitions,
// so hooks and listeners observe a restore like any other change.
func (c *Controller) reconcile(target core.LifecycleState) {
	c.SetPower(target.PoweredOn)
	// entry and helm are refused while scuttled, so the flag is cleared
	// first and set last
	c.Unscuttle()
	if target.Docked {
		c.DockVehicle(nil, true)
	} else {
		c.AdminUndock(false)
	}
	c.restorePresence(target)
	if target.Scuttled {
		c.Scuttle()
	}
}

func (c *Controller) restorePresence(target core.LifecycleState) {
	if !target.Boarded {
		c.PlayerExit()
		return
	}
	if err := c.RegisterPlayerEntry(); err != nil {
		c.logger.Info("Saved boarding not restored", "error", err)
		return
	}
	if target.ControlAnchor == nil {
		if c.state.Piloting {
			c.endHelm()
		}
		return
	}
	helm, ok := c.helmByAnchor(target.ControlAnchor.Name)
	if !ok {
		c.logger.Warn("Saved helm not found", "anchor", target.ControlAnchor.Name)
		return
	}
	if err := c.BeginHelmControl(helm); err != nil {
		c.logger.Info("Saved helm control not restored", "error", err)
	}
}

func (c *Controller) helmByAnchor(name string) (core.HelmDefinition, bool) {
	for _, h := range c.deps.Helms {
		if h.ControlAnchor != nil && h.ControlAnchor.Name == name {
			return h, true
		}
	}
	return core.HelmDefinition{}, false
}

func outcomeOf(rep persistence.Report) core.PersistenceOutcome {
	switch {
	case rep.Applied == 0 && rep.Failed > 0:
		return core.OutcomeFailed
	case !rep.Complete():
		return core.OutcomePartial
	default:
		return core.OutcomeOK
	}
}

func (c *Controller) recordPersistence(op core.PersistenceOp, outcome core.PersistenceOutcome, rep persistence.Report) {
	c.logger.Info("Entity state "+string(op), "outcome", string(outcome), "report", rep.String())
	if c.deps.Journal == nil {
		return
	}
	rec := &core.PersistenceRecord{
		SessionID: c.sessionID(),
		EntityID:  c.id,
		Slot:      c.key().Slot,
		Op:        op,
		Outcome:   outcome,
		Applied:   rep.Applied,
		Failed:    rep.Failed,
		Time:      time.Now(),
	}
	if err := c.deps.Journal.RecordPersistence(rec); err != nil {
		c.logger.Warn("Journal write failed", "op", string(op), "error", err)
	}
}
