package lifecycle

import (
	"time"

	"github.com/IronFox/AVS-sub001/internal/entryexit"
	"github.com/IronFox/AVS-sub001/pkg/core"
)

// RegisterPlayerEntry marks the player as aboard. It returns ErrScuttled for
// a scuttled vehicle and does nothing if the player is already aboard.
func (c *Controller) RegisterPlayerEntry() error {
	if c.state.Scuttled {
		return ErrScuttled
	}
	if c.state.Boarded {
		return nil
	}
	c.transition(core.TransitionPlayerEntry, nil, func() {
		c.state.Boarded = true
		c.deps.Body.SetCanopyVisible(false)
		c.deps.Player.SetCurrentVessel(c.id)
		if !c.state.Docked {
			c.deps.Player.SetWalking(true)
		}
	}, func(l Listener) { l.OnPlayerEntry(c.id) })
	return nil
}

// PlayerExit puts the player outside through the nearest exit hatch. It does
// nothing if the player is not aboard.
func (c *Controller) PlayerExit() {
	if !c.state.Boarded {
		return
	}
	c.exit(nil)
}

// exit leaves the helm if needed, then moves the player out: to landing when
// set, otherwise to the planned hatch exit.
func (c *Controller) exit(landing *core.Vec3) {
	if c.state.Piloting {
		c.endHelm()
	}
	detail := map[string]any{}
	c.transition(core.TransitionPlayerExit, detail, func() {
		p := c.deps.Player
		c.deps.Body.SetCanopyVisible(true)
		if p.CurrentVessel() == c.id {
			p.SetCurrentVessel(core.NoEntity)
		}
		p.Detach()
		p.SetWalking(false)
		c.state.Boarded = false

		if landing != nil {
			p.Teleport(core.Anchor{Name: "landing", Position: *landing, Rotation: core.Identity})
			detail["target"] = "override"
			return
		}
		plan, err := c.deps.Hatches.PlanExit(p.Position(), c.deps.Body.Position().Y, c.cfg.Exit)
		if err != nil {
			c.logger.Warn("No exit placement", "error", err)
			return
		}
		entryexit.Place(p, plan)
		detail["hatch"] = plan.Hatch
		detail["surface"] = plan.Surface
	}, func(l Listener) { l.OnPlayerExit(c.id) })
}

// BeginHelmControl puts the player at helm. A helm without a control anchor
// is refused with ErrNoControlAnchor before anything changes or any hook
// runs. Taking the helm already held is a no-op.
func (c *Controller) BeginHelmControl(helm core.HelmDefinition) error {
	if helm.ControlAnchor == nil {
		return ErrNoControlAnchor
	}
	if c.state.Scuttled {
		return ErrScuttled
	}
	if !c.state.Boarded {
		return ErrNotBoarded
	}
	if c.state.Piloting {
		return nil
	}
	anchor := *helm.ControlAnchor
	style := core.PilotingStyleFor(c.kind)
	c.transition(core.TransitionHelmBegin, map[string]any{"anchor": anchor.Name, "animation": style.Animation}, func() {
		c.state.Piloting = true
		c.state.ControlAnchor = &anchor
		c.activeHelm = &helm

		b := ControlBinding{Anchor: anchor, Seated: helm.Seated || style.Seated, Style: style}
		if style.UseHandIK {
			b.LeftHand, b.RightHand = helm.LeftHand, helm.RightHand
		}
		c.deps.Player.BindControl(b)
		c.deps.Player.SetQuickSlotTarget(c.id)
	}, func(l Listener) { l.OnHelmBegin(c.id) })
	return nil
}

// EndHelmControl releases the helm. While the player stands in the
// designated host vessel it does nothing: that vessel broadcasts its own
// helm release under the same name.
func (c *Controller) EndHelmControl() {
	if host := c.cfg.DesignatedHost; host != "" && c.deps.Player.HostVessel() == host {
		c.logger.Debug("Helm release ignored inside host vessel", "host", host)
		return
	}
	if !c.state.Piloting {
		return
	}
	c.endHelm()
}

func (c *Controller) endHelm() {
	c.transition(core.TransitionHelmEnd, nil, func() {
		p := c.deps.Player
		p.ReleaseControl()
		p.SetQuickSlotTarget(core.NoEntity)
		if c.activeHelm != nil && c.activeHelm.Exit != nil {
			p.Teleport(*c.activeHelm.Exit)
		}
		c.state.Piloting = false
		c.state.ControlAnchor = nil
		c.activeHelm = nil
	}, func(l Listener) { l.OnHelmEnd(c.id) })
}

// DockVehicle docks the vehicle and suspends its collisions. A player aboard
// is moved out first, to exitOverride when set; with suppressRelocation the
// player is only marked as gone and the caller places them. Docking an
// already docked vehicle does nothing.
func (c *Controller) DockVehicle(exitOverride *core.Vec3, suppressRelocation bool) {
	if c.state.Docked {
		c.logger.Debug("Already docked")
		return
	}
	if c.state.Boarded && !suppressRelocation {
		c.exit(exitOverride)
	}
	c.transition(core.TransitionDock, map[string]any{"suppressRelocation": suppressRelocation}, func() {
		if c.state.Boarded {
			c.state.Boarded = false
			c.state.Piloting = false
			c.state.ControlAnchor = nil
			c.activeHelm = nil
		}
		c.state.Docked = true
		c.suspendCollisions()
	}, func(l Listener) { l.OnDock(c.id) })
}

// UndockVehicle releases the vehicle. With boardPlayer the player is placed
// at the nearest entry hatch and boarded, unless the vehicle is scuttled.
// With suspendCollisions, collisions come back only after the configured
// delay; otherwise at once. Undocking a vehicle that is not docked does
// nothing.
func (c *Controller) UndockVehicle(boardPlayer, suspendCollisions bool) {
	c.undock(boardPlayer, suspendCollisions, false)
}

// AdminUndock releases the vehicle on behalf of the host, never boarding the
// player.
func (c *Controller) AdminUndock(suspendCollisions bool) {
	c.undock(false, suspendCollisions, true)
}

func (c *Controller) undock(boardPlayer, suspendCollisions, admin bool) {
	if !c.state.Docked {
		return
	}
	c.transition(core.TransitionUndock, map[string]any{"admin": admin, "suspendCollisions": suspendCollisions}, func() {
		c.state.Docked = false
		if suspendCollisions {
			c.suspendCollisions()
			c.scheduleCollisionReenable()
		} else {
			c.enableCollisions()
		}
	}, func(l Listener) { l.OnUndock(c.id) })

	if c.state.Scuttled || admin || !boardPlayer {
		return
	}
	if _, err := c.deps.Hatches.PlaceAtEntry(c.deps.Player); err != nil {
		c.logger.Warn("No entry placement", "error", err)
	}
	if err := c.RegisterPlayerEntry(); err != nil {
		c.logger.Warn("Boarding after undock refused", "error", err)
	}
}

// suspendCollisions turns collisions off once and cancels any pending
// re-enable.
func (c *Controller) suspendCollisions() {
	c.reenableGen++
	if c.collisionsOff {
		return
	}
	c.collisionsOff = true
	c.deps.Body.SetCollisions(false)
}

func (c *Controller) enableCollisions() {
	c.reenableGen++
	if !c.collisionsOff {
		return
	}
	c.collisionsOff = false
	c.deps.Body.SetCollisions(true)
}

func (c *Controller) scheduleCollisionReenable() {
	gen := c.reenableGen
	c.deps.Scheduler.After("collisions-"+c.id.String(), c.cfg.CollisionReenableDelay, c.deps.Alive, func() error {
		if gen != c.reenableGen || c.state.Docked {
			return nil
		}
		c.enableCollisions()
		return nil
	})
}

// Scuttle marks the vehicle destroyed and releases the helm. Boarding and
// piloting are refused until Unscuttle.
func (c *Controller) Scuttle() {
	if c.state.Scuttled {
		return
	}
	if c.state.Piloting {
		c.endHelm()
	}
	c.transition(core.TransitionScuttle, nil, func() {
		c.state.Scuttled = true
	}, func(l Listener) { l.OnScuttle(c.id) })
}

// Unscuttle clears the scuttled flag.
func (c *Controller) Unscuttle() {
	if !c.state.Scuttled {
		return
	}
	c.transition(core.TransitionUnscuttle, nil, func() {
		c.state.Scuttled = false
	}, func(l Listener) { l.OnUnscuttle(c.id) })
}

// CheckScuttled forces a scuttled vehicle found docked out of its dock and
// its player out of the vehicle. It reports whether it acted.
func (c *Controller) CheckScuttled() bool {
	if !c.state.Scuttled || !c.state.Docked {
		return false
	}
	c.logger.Info("Scuttled vehicle found docked, releasing")
	c.AdminUndock(false)
	c.PlayerExit()
	return true
}

// StartScuttleCheck runs CheckScuttled every interval while the vehicle
// exists.
func (c *Controller) StartScuttleCheck(interval time.Duration) {
	c.deps.Scheduler.Every("scuttle-check-"+c.id.String(), interval, c.deps.Alive, func() error {
		c.CheckScuttled()
		return nil
	})
}

// SetPower switches the vehicle on or off.
func (c *Controller) SetPower(on bool) {
	if c.state.PoweredOn == on {
		return
	}
	c.transition(core.TransitionPower, map[string]any{"on": on}, func() {
		c.state.PoweredOn = on
	}, func(l Listener) { l.OnPowerChanged(c.id, on) })
}
