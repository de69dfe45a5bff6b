package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IronFox/AVS-sub001/pkg/core"
)

func TestNew_InitialState(t *testing.T) {
	h := newHarness(t, core.KindSubmarine)
	assert.Equal(t, core.LifecycleState{PoweredOn: true}, h.c.State())
	assert.True(t, h.c.CollisionsEnabled())
	assert.Equal(t, core.EntityID(7), h.c.ID())
	assert.Equal(t, core.KindSubmarine, h.c.Kind())
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(1, core.KindSkimmer, DefaultConfig(), Deps{})
	assert.Error(t, err)
}

func TestRegisterPlayerEntry(t *testing.T) {
	h := newHarness(t, core.KindSubmarine)
	var order []string
	h.c.AddHook(core.TransitionPlayerEntry, Before, "pre", func(e Event) error {
		order = append(order, "before")
		assert.False(t, e.State.Boarded)
		return nil
	})
	h.c.AddHook(core.TransitionPlayerEntry, After, "post", func(e Event) error {
		order = append(order, "after")
		assert.True(t, e.State.Boarded)
		return nil
	})

	require.NoError(t, h.c.RegisterPlayerEntry())

	assert.True(t, h.c.State().Boarded)
	assert.False(t, h.body.canopyVisible)
	assert.Equal(t, core.EntityID(7), h.player.vessel)
	assert.True(t, h.player.walking)
	assert.Equal(t, []string{"before", "after"}, order)
	assert.Equal(t, []string{"entry"}, h.listener.calls)
	assert.Equal(t, []core.Transition{core.TransitionPlayerEntry}, h.journal.names())
	assert.Equal(t, "session-1", h.journal.transitions[0].SessionID)
}

func TestRegisterPlayerEntry_AlreadyBoarded(t *testing.T) {
	h := newHarness(t, core.KindSubmarine)
	require.NoError(t, h.c.RegisterPlayerEntry())
	require.NoError(t, h.c.RegisterPlayerEntry())
	assert.Equal(t, []string{"entry"}, h.listener.calls)
}

func TestRegisterPlayerEntry_WhileDockedKeepsLocomotion(t *testing.T) {
	h := newHarness(t, core.KindSubmersible)
	h.c.DockVehicle(nil, false)
	require.NoError(t, h.c.RegisterPlayerEntry())
	assert.True(t, h.c.State().Boarded)
	assert.False(t, h.player.walking)
}

func TestRegisterPlayerEntry_ScuttledIsNoOp(t *testing.T) {
	h := newHarness(t, core.KindSubmarine)
	h.c.Scuttle()
	before := h.c.State()
	calls := len(h.listener.calls)
	hooked := false
	h.c.AddHook(core.TransitionPlayerEntry, Before, "pre", func(Event) error { hooked = true; return nil })

	err := h.c.RegisterPlayerEntry()

	assert.ErrorIs(t, err, ErrScuttled)
	assert.Equal(t, before, h.c.State())
	assert.Len(t, h.listener.calls, calls)
	assert.False(t, hooked)
	assert.Equal(t, core.NoEntity, h.player.vessel)
}

func TestPlayerExit_NotBoardedIsNoOp(t *testing.T) {
	h := newHarness(t, core.KindSubmarine)
	h.c.PlayerExit()
	assert.Empty(t, h.listener.calls)
	assert.Zero(t, h.player.detached)
}

func TestPlayerExit_Placement(t *testing.T) {
	tests := []struct {
		name        string
		depth       float64
		surfacing   bool
		wantSurface bool
	}{
		{"shallow surfaces", -1, true, true},
		{"deep teleports", -4, true, false},
		{"surfacing disallowed", 0, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, core.KindSubmarine)
			h.c.cfg.Exit.AllowSurfacing = tt.surfacing
			h.body.pos = core.Vec3{Y: tt.depth}
			require.NoError(t, h.c.RegisterPlayerEntry())

			h.c.PlayerExit()

			st := h.c.State()
			assert.False(t, st.Boarded)
			assert.True(t, h.body.canopyVisible)
			assert.Equal(t, core.NoEntity, h.player.vessel)
			assert.Equal(t, 1, h.player.detached)
			assert.False(t, h.player.walking)
			if tt.wantSurface {
				require.Len(t, h.player.surfaced, 1)
				assert.Equal(t, "fore-top", h.player.surfaced[0].Name)
				assert.Empty(t, h.player.teleports)
			} else {
				require.Len(t, h.player.teleports, 1)
				assert.Equal(t, "fore-out", h.player.teleports[0].Name)
				assert.Empty(t, h.player.surfaced)
			}
			assert.Equal(t, []string{"entry", "exit"}, h.listener.calls)
		})
	}
}

func TestPlayerExit_KeepsOtherVesselBinding(t *testing.T) {
	h := newHarness(t, core.KindSubmarine)
	require.NoError(t, h.c.RegisterPlayerEntry())
	h.player.vessel = 99

	h.c.PlayerExit()
	assert.Equal(t, core.EntityID(99), h.player.vessel)
}

func TestBeginHelmControl_NoControlAnchorFailsClosed(t *testing.T) {
	h := newHarness(t, core.KindSubmarine)
	require.NoError(t, h.c.RegisterPlayerEntry())
	before := h.c.State()
	listened := len(h.listener.calls)
	journaled := len(h.journal.transitions)
	hooks := 0
	h.c.AddHook(core.TransitionHelmBegin, Before, "pre", func(Event) error { hooks++; return nil })
	h.c.AddHook(core.TransitionHelmBegin, After, "post", func(Event) error { hooks++; return nil })

	err := h.c.BeginHelmControl(core.HelmDefinition{Seated: true})

	assert.ErrorIs(t, err, ErrNoControlAnchor)
	assert.Equal(t, before, h.c.State())
	assert.Zero(t, hooks)
	assert.Len(t, h.listener.calls, listened)
	assert.Len(t, h.journal.transitions, journaled)
	assert.Nil(t, h.player.binding)
}

func TestBeginHelmControl(t *testing.T) {
	tests := []struct {
		name      string
		kind      core.VehicleKind
		helm      int
		wantHands bool
		wantSeat  bool
	}{
		{"submarine standing with hands", core.KindSubmarine, 0, true, false},
		{"skimmer seated without hands", core.KindSkimmer, 0, false, true},
		{"seated helm", core.KindSubmarine, 1, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.kind)
			require.NoError(t, h.c.RegisterPlayerEntry())
			helm, err := h.c.Helm(tt.helm)
			require.NoError(t, err)

			require.NoError(t, h.c.BeginHelmControl(helm))

			st := h.c.State()
			assert.True(t, st.Piloting)
			require.NotNil(t, st.ControlAnchor)
			assert.Equal(t, helm.ControlAnchor.Name, st.ControlAnchor.Name)
			require.NoError(t, st.Validate())

			require.NotNil(t, h.player.binding)
			assert.Equal(t, tt.wantSeat, h.player.binding.Seated)
			assert.Equal(t, core.PilotingStyleFor(tt.kind), h.player.binding.Style)
			if tt.wantHands && helm.LeftHand != nil {
				assert.Equal(t, helm.LeftHand, h.player.binding.LeftHand)
			} else {
				assert.Nil(t, h.player.binding.LeftHand)
			}
			assert.Equal(t, core.EntityID(7), h.player.quickSlot)
		})
	}
}

func TestBeginHelmControl_Refusals(t *testing.T) {
	h := newHarness(t, core.KindSubmarine)
	assert.ErrorIs(t, h.c.BeginHelmControl(testHelms[0]), ErrNotBoarded)

	require.NoError(t, h.c.RegisterPlayerEntry())
	h.c.Scuttle()
	assert.ErrorIs(t, h.c.BeginHelmControl(testHelms[0]), ErrScuttled)
	assert.False(t, h.c.State().Piloting)
}

func TestBeginHelmControl_StoredAnchorIsACopy(t *testing.T) {
	h := newHarness(t, core.KindSubmarine)
	require.NoError(t, h.c.RegisterPlayerEntry())
	a := core.Anchor{Name: "mutable"}
	require.NoError(t, h.c.BeginHelmControl(core.HelmDefinition{ControlAnchor: &a}))
	a.Name = "changed"
	assert.Equal(t, "mutable", h.c.State().ControlAnchor.Name)
}

func TestEndHelmControl(t *testing.T) {
	h := newHarness(t, core.KindSubmarine)
	require.NoError(t, h.c.RegisterPlayerEntry())
	require.NoError(t, h.c.BeginHelmControl(testHelms[0]))

	h.c.EndHelmControl()

	st := h.c.State()
	assert.False(t, st.Piloting)
	assert.Nil(t, st.ControlAnchor)
	assert.True(t, st.Boarded)
	assert.Nil(t, h.player.binding)
	assert.Equal(t, core.NoEntity, h.player.quickSlot)
	require.Len(t, h.player.teleports, 1)
	assert.Equal(t, "helm-exit", h.player.teleports[0].Name)
	assert.Equal(t, []string{"entry", "helmBegin", "helmEnd"}, h.listener.calls)
}

func TestEndHelmControl_IgnoredInsideDesignatedHost(t *testing.T) {
	h := newHarness(t, core.KindSubmersible)
	require.NoError(t, h.c.RegisterPlayerEntry())
	require.NoError(t, h.c.BeginHelmControl(testHelms[1]))
	h.player.host = "Cyclops"

	h.c.EndHelmControl()
	assert.True(t, h.c.State().Piloting)

	h.player.host = ""
	h.c.EndHelmControl()
	assert.False(t, h.c.State().Piloting)
}

func TestHookFailuresDoNotBlockTransitions(t *testing.T) {
	h := newHarness(t, core.KindSubmarine)
	ran := false
	h.c.AddHook(core.TransitionPlayerEntry, Before, "erroring", func(Event) error { return errors.New("broken mod") })
	h.c.AddHook(core.TransitionPlayerEntry, Before, "panicking", func(Event) error { panic("very broken mod") })
	h.c.AddHook(core.TransitionPlayerEntry, After, "healthy", func(Event) error { ran = true; return nil })
	h.c.AddListener(panickingListener{})

	require.NoError(t, h.c.RegisterPlayerEntry())

	assert.True(t, h.c.State().Boarded)
	assert.True(t, ran)
	assert.Equal(t, []string{"entry"}, h.listener.calls)
}

type panickingListener struct{ BaseListener }

func (panickingListener) OnPlayerEntry(core.EntityID) { panic("listener bug") }

func TestJournalFailureDoesNotBlock(t *testing.T) {
	h := newHarness(t, core.KindSubmarine)
	h.journal.fail = true
	require.NoError(t, h.c.RegisterPlayerEntry())
	assert.True(t, h.c.State().Boarded)
}

func TestDockVehicle(t *testing.T) {
	h := newHarness(t, core.KindSubmersible)
	require.NoError(t, h.c.RegisterPlayerEntry())
	require.NoError(t, h.c.BeginHelmControl(testHelms[1]))

	h.c.DockVehicle(nil, false)

	st := h.c.State()
	assert.True(t, st.Docked)
	assert.False(t, st.Boarded)
	assert.False(t, st.Piloting)
	require.NoError(t, st.Validate())
	assert.False(t, h.c.CollisionsEnabled())
	assert.False(t, h.body.collisions)
	assert.Equal(t, []string{"entry", "helmBegin", "helmEnd", "exit", "dock"}, h.listener.calls)
}

func TestDockVehicle_ExitOverride(t *testing.T) {
	h := newHarness(t, core.KindSubmersible)
	require.NoError(t, h.c.RegisterPlayerEntry())
	landing := core.Vec3{X: 100, Y: 2, Z: 3}

	h.c.DockVehicle(&landing, false)

	require.Len(t, h.player.teleports, 1)
	assert.Equal(t, landing, h.player.teleports[0].Position)
	assert.Empty(t, h.player.surfaced)
}

func TestDockVehicle_SuppressedRelocation(t *testing.T) {
	h := newHarness(t, core.KindSubmersible)
	require.NoError(t, h.c.RegisterPlayerEntry())
	require.NoError(t, h.c.BeginHelmControl(testHelms[0]))
	exitHooks := 0
	h.c.AddHook(core.TransitionPlayerExit, Before, "count", func(Event) error { exitHooks++; return nil })

	h.c.DockVehicle(nil, true)

	st := h.c.State()
	assert.True(t, st.Docked)
	assert.False(t, st.Boarded)
	require.NoError(t, st.Validate())
	assert.Zero(t, exitHooks)
	assert.NotContains(t, h.listener.calls, "exit")
	assert.Empty(t, h.player.teleports)
}

func TestDockVehicle_Idempotent(t *testing.T) {
	h := newHarness(t, core.KindSubmersible)
	h.c.DockVehicle(nil, false)
	h.c.DockVehicle(nil, false)
	h.c.DockVehicle(nil, true)

	assert.Equal(t, 1, h.body.collisionCalls)
	assert.Equal(t, []string{"dock"}, h.listener.calls)
	assert.True(t, h.c.State().Docked)
}

func TestUndockVehicle_DelayedCollisions(t *testing.T) {
	h := newHarness(t, core.KindSubmersible)
	h.c.DockVehicle(nil, false)

	h.c.UndockVehicle(true, true)

	st := h.c.State()
	assert.False(t, st.Docked)
	assert.True(t, st.Boarded)
	assert.False(t, h.c.CollisionsEnabled())
	require.Len(t, h.player.teleports, 1)
	assert.Equal(t, "fore-in", h.player.teleports[0].Name)

	h.tick(0)
	h.tick(4900 * time.Millisecond)
	assert.False(t, h.c.CollisionsEnabled())

	h.tick(100 * time.Millisecond)
	assert.True(t, h.c.CollisionsEnabled())
	assert.True(t, h.body.collisions)
	assert.Equal(t, []string{"dock", "undock", "entry"}, h.listener.calls)
}

func TestUndockVehicle_ImmediateCollisions(t *testing.T) {
	h := newHarness(t, core.KindSubmersible)
	h.c.DockVehicle(nil, false)
	h.c.UndockVehicle(false, false)

	assert.True(t, h.c.CollisionsEnabled())
	assert.False(t, h.c.State().Boarded)
	assert.Empty(t, h.player.teleports)
}

func TestUndockVehicle_RedockCancelsReenable(t *testing.T) {
	h := newHarness(t, core.KindSubmersible)
	h.c.DockVehicle(nil, false)
	h.c.UndockVehicle(false, true)
	h.tick(0)
	h.c.DockVehicle(nil, true)

	h.tick(10 * time.Second)
	assert.False(t, h.c.CollisionsEnabled())
}

func TestUndockVehicle_VanishedVehicleSkipsReenable(t *testing.T) {
	h := newHarness(t, core.KindSubmersible)
	h.c.DockVehicle(nil, false)
	h.c.UndockVehicle(false, true)
	h.tick(0)
	h.alive = false

	h.tick(10 * time.Second)
	assert.False(t, h.c.CollisionsEnabled())
	assert.Zero(t, h.scheduler.Pending())
}

func TestUndockVehicle_NotDockedIsNoOp(t *testing.T) {
	h := newHarness(t, core.KindSubmersible)
	h.c.UndockVehicle(true, true)
	assert.Empty(t, h.listener.calls)
	assert.False(t, h.c.State().Boarded)
}

func TestUndockVehicle_NoBoardingWhenScuttledOrAdmin(t *testing.T) {
	h := newHarness(t, core.KindSubmersible)
	h.c.DockVehicle(nil, false)
	h.c.Scuttle()
	h.c.UndockVehicle(true, false)
	assert.False(t, h.c.State().Boarded)

	h2 := newHarness(t, core.KindSubmersible)
	h2.c.DockVehicle(nil, false)
	h2.c.AdminUndock(false)
	assert.False(t, h2.c.State().Boarded)
	assert.False(t, h2.c.State().Docked)
}

func TestScuttle(t *testing.T) {
	h := newHarness(t, core.KindSubmarine)
	require.NoError(t, h.c.RegisterPlayerEntry())
	require.NoError(t, h.c.BeginHelmControl(testHelms[0]))

	h.c.Scuttle()
	h.c.Scuttle()

	st := h.c.State()
	assert.True(t, st.Scuttled)
	assert.False(t, st.Piloting)
	assert.True(t, st.Boarded)
	assert.Equal(t, []string{"entry", "helmBegin", "helmEnd", "scuttle"}, h.listener.calls)

	h.c.Unscuttle()
	h.c.Unscuttle()
	assert.False(t, h.c.State().Scuttled)
	assert.Equal(t, "unscuttle", h.listener.calls[len(h.listener.calls)-1])
}

func TestCheckScuttled(t *testing.T) {
	h := newHarness(t, core.KindSubmersible)
	assert.False(t, h.c.CheckScuttled())

	h.c.DockVehicle(nil, false)
	require.NoError(t, h.c.RegisterPlayerEntry())
	h.c.Scuttle()
	h.c.StartScuttleCheck(time.Second)

	h.tick(0)
	assert.True(t, h.c.State().Docked)
	h.tick(time.Second)

	st := h.c.State()
	assert.False(t, st.Docked)
	assert.False(t, st.Boarded)
	assert.True(t, st.Scuttled)
	assert.True(t, h.c.CollisionsEnabled())
}

func TestSetPower(t *testing.T) {
	h := newHarness(t, core.KindWalker)
	h.c.SetPower(true)
	h.c.SetPower(false)
	h.c.SetPower(false)
	h.c.SetPower(true)

	assert.Equal(t, []string{"powerOff", "powerOn"}, h.listener.calls)
	assert.True(t, h.c.State().PoweredOn)
}

func TestInvariantHoldsAcrossSequences(t *testing.T) {
	h := newHarness(t, core.KindSubmarine)
	ops := []func(){
		func() { _ = h.c.RegisterPlayerEntry() },
		func() { _ = h.c.BeginHelmControl(testHelms[0]) },
		func() { h.c.DockVehicle(nil, true) },
		func() { _ = h.c.BeginHelmControl(testHelms[1]) },
		func() { h.c.UndockVehicle(true, true) },
		func() { _ = h.c.BeginHelmControl(testHelms[1]) },
		func() { h.c.Scuttle() },
		func() { h.c.PlayerExit() },
		func() { h.c.Unscuttle() },
		func() { _ = h.c.RegisterPlayerEntry() },
		func() { _ = h.c.BeginHelmControl(testHelms[0]) },
		func() { h.c.PlayerExit() },
	}
	for i, op := range ops {
		op()
		require.NoError(t, h.c.State().Validate(), "after op %d", i)
	}
}
