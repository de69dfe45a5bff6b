package lifecycle

import (
	"fmt"
	"time"

	"github.com/IronFox/AVS-sub001/pkg/core"
)

// Phase places a hook before or after a transition's state change.
type Phase int

const (
	Before Phase = iota
	After
)

func (p Phase) String() string {
	if p == Before {
		return "before"
	}
	return "after"
}

// Event describes the transition a hook runs for. State is a snapshot.
type Event struct {
	Entity     core.EntityID
	Transition core.Transition
	Phase      Phase
	State      core.LifecycleState
}

// HookFunc extends a transition. A returned error or a panic is logged and
// the transition proceeds.
type HookFunc func(Event) error

type hookKey struct {
	tr    core.Transition
	phase Phase
}

type namedHook struct {
	name string
	fn   HookFunc
}

// AddHook registers fn to run in phase of every tr transition. Hooks of one
// key run in registration order.
func (c *Controller) AddHook(tr core.Transition, phase Phase, name string, fn HookFunc) {
	k := hookKey{tr, phase}
	c.hooks[k] = append(c.hooks[k], namedHook{name: name, fn: fn})
}

// Listener is notified once a transition has completed.
type Listener interface {
	OnPlayerEntry(id core.EntityID)
	OnPlayerExit(id core.EntityID)
	OnHelmBegin(id core.EntityID)
	OnHelmEnd(id core.EntityID)
	OnDock(id core.EntityID)
	OnUndock(id core.EntityID)
	OnScuttle(id core.EntityID)
	OnUnscuttle(id core.EntityID)
	OnPowerChanged(id core.EntityID, on bool)
}

// BaseListener implements Listener with no-ops, for embedding.
type BaseListener struct{}

func (BaseListener) OnPlayerEntry(core.EntityID)        {}
func (BaseListener) OnPlayerExit(core.EntityID)         {}
func (BaseListener) OnHelmBegin(core.EntityID)          {}
func (BaseListener) OnHelmEnd(core.EntityID)            {}
func (BaseListener) OnDock(core.EntityID)               {}
func (BaseListener) OnUndock(core.EntityID)             {}
func (BaseListener) OnScuttle(core.EntityID)            {}
func (BaseListener) OnUnscuttle(core.EntityID)          {}
func (BaseListener) OnPowerChanged(core.EntityID, bool) {}

// AddListener subscribes l to this vehicle's transitions.
func (c *Controller) AddListener(l Listener) {
	c.listeners = append(c.listeners, l)
}

// safeInvoke is the one place extension code is called from. Failures are
// logged with the transition and hook names and never propagate.
func (c *Controller) safeInvoke(tr core.Transition, hook string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			c.hookFailed(tr, hook, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := fn(); err != nil {
		c.hookFailed(tr, hook, err)
	}
}

func (c *Controller) hookFailed(tr core.Transition, hook string, err error) {
	c.logger.Warn("Hook failed", "transition", string(tr), "hook", hook, "error", err)
	c.metrics.hookFailed(tr)
}

func (c *Controller) runHooks(tr core.Transition, phase Phase) {
	for _, h := range c.hooks[hookKey{tr, phase}] {
		ev := Event{Entity: c.id, Transition: tr, Phase: phase, State: c.State()}
		c.safeInvoke(tr, phase.String()+":"+h.name, func() error { return h.fn(ev) })
	}
}

func (c *Controller) notify(tr core.Transition, fn func(Listener)) {
	for i, l := range c.listeners {
		c.safeInvoke(tr, fmt.Sprintf("listener[%d]", i), func() error {
			fn(l)
			return nil
		})
	}
}

// transition runs the hooks around mutate, then notifies listeners and
// records the result.
func (c *Controller) transition(tr core.Transition, detail map[string]any, mutate func(), notify func(Listener)) {
	c.runHooks(tr, Before)
	mutate()
	c.runHooks(tr, After)
	if notify != nil {
		c.notify(tr, notify)
	}
	c.metrics.transitioned(tr)
	c.logger.Debug("Transition", "transition", string(tr), "boarded", c.state.Boarded,
		"piloting", c.state.Piloting, "docked", c.state.Docked, "scuttled", c.state.Scuttled)
	c.record(tr, detail)
}

func (c *Controller) record(tr core.Transition, detail map[string]any) {
	if c.deps.Journal == nil {
		return
	}
	rec := &core.TransitionRecord{
		SessionID:  c.sessionID(),
		EntityID:   c.id,
		Transition: tr,
		Time:       time.Now(),
		State:      c.State(),
		Detail:     detail,
	}
	if err := c.deps.Journal.RecordTransition(rec); err != nil {
		c.logger.Warn("Journal write failed", "transition", string(tr), "error", err)
	}
}

func (c *Controller) sessionID() string {
	if c.deps.Session == nil {
		return ""
	}
	return c.deps.Session.SessionID()
}
