package lifecycle

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/IronFox/AVS-sub001/internal/codec"
	"github.com/IronFox/AVS-sub001/internal/entryexit"
	"github.com/IronFox/AVS-sub001/internal/integrity"
	"github.com/IronFox/AVS-sub001/internal/persistence"
	"github.com/IronFox/AVS-sub001/internal/restore"
	"github.com/IronFox/AVS-sub001/pkg/core"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fakeBody struct {
	pos            core.Vec3
	collisions     bool
	collisionCalls int
	canopyVisible  bool
}

func (b *fakeBody) Position() core.Vec3 { return b.pos }

func (b *fakeBody) SetCollisions(enabled bool) {
	b.collisions = enabled
	b.collisionCalls++
}

func (b *fakeBody) SetCanopyVisible(visible bool) { b.canopyVisible = visible }

type fakePlayer struct {
	pos       core.Vec3
	vessel    core.EntityID
	host      string
	walking   bool
	detached  int
	binding   *ControlBinding
	quickSlot core.EntityID
	teleports []core.Anchor
	surfaced  []core.Anchor
}

func (p *fakePlayer) Position() core.Vec3 { return p.pos }

func (p *fakePlayer) Teleport(to core.Anchor) {
	p.teleports = append(p.teleports, to)
	p.pos = to.Position
}

func (p *fakePlayer) SurfaceTo(to core.Anchor) {
	p.surfaced = append(p.surfaced, to)
	p.pos = to.Position
}

func (p *fakePlayer) CurrentVessel() core.EntityID      { return p.vessel }
func (p *fakePlayer) SetCurrentVessel(id core.EntityID) { p.vessel = id }
func (p *fakePlayer) HostVessel() string                { return p.host }
func (p *fakePlayer) SetWalking(walking bool)           { p.walking = walking }
func (p *fakePlayer) Detach()                           { p.detached++ }
func (p *fakePlayer) BindControl(b ControlBinding)      { p.binding = &b }
func (p *fakePlayer) ReleaseControl()                   { p.binding = nil }
func (p *fakePlayer) SetQuickSlotTarget(id core.EntityID) {
	p.quickSlot = id
}

type fakeSession struct{ slot string }

func (s fakeSession) SessionID() string { return "session-1" }
func (s fakeSession) Slot() string      { return s.slot }

type fakeJournal struct {
	transitions []core.TransitionRecord
	persistence []core.PersistenceRecord
	fail        bool
}

func (j *fakeJournal) RecordTransition(r *core.TransitionRecord) error {
	if j.fail {
		return errors.New("journal down")
	}
	j.transitions = append(j.transitions, *r)
	return nil
}

func (j *fakeJournal) RecordPersistence(r *core.PersistenceRecord) error {
	j.persistence = append(j.persistence, *r)
	return nil
}

func (j *fakeJournal) names() []core.Transition {
	out := make([]core.Transition, len(j.transitions))
	for i, r := range j.transitions {
		out[i] = r.Transition
	}
	return out
}

type fakeWorld struct {
	loaded bool
	ready  map[core.EntityID]bool
}

func (w *fakeWorld) IsWorldLoaded() bool                       { return w.loaded }
func (w *fakeWorld) IsEntityInitialized(id core.EntityID) bool { return w.ready[id] }

// recordingListener counts notifications by name.
type recordingListener struct {
	BaseListener
	calls []string
}

func (l *recordingListener) OnPlayerEntry(core.EntityID) { l.calls = append(l.calls, "entry") }
func (l *recordingListener) OnPlayerExit(core.EntityID)  { l.calls = append(l.calls, "exit") }
func (l *recordingListener) OnHelmBegin(core.EntityID)   { l.calls = append(l.calls, "helmBegin") }
func (l *recordingListener) OnHelmEnd(core.EntityID)     { l.calls = append(l.calls, "helmEnd") }
func (l *recordingListener) OnDock(core.EntityID)        { l.calls = append(l.calls, "dock") }
func (l *recordingListener) OnUndock(core.EntityID)      { l.calls = append(l.calls, "undock") }
func (l *recordingListener) OnScuttle(core.EntityID)     { l.calls = append(l.calls, "scuttle") }
func (l *recordingListener) OnUnscuttle(core.EntityID)   { l.calls = append(l.calls, "unscuttle") }
func (l *recordingListener) OnPowerChanged(_ core.EntityID, on bool) {
	if on {
		l.calls = append(l.calls, "powerOn")
	} else {
		l.calls = append(l.calls, "powerOff")
	}
}

func anchor(name string, x, y, z float64) *core.Anchor {
	return &core.Anchor{Name: name, Position: core.Vec3{X: x, Y: y, Z: z}, Rotation: core.Identity}
}

var (
	testHatches = []core.HatchDefinition{
		{Entry: *anchor("fore-in", 0, 0, 5), Exit: *anchor("fore-out", 0, 0, 6), SurfaceExit: *anchor("fore-top", 0, 10, 6)},
		{Entry: *anchor("aft-in", 0, 0, -5), Exit: *anchor("aft-out", 0, 0, -6), SurfaceExit: *anchor("aft-top", 0, 10, -6)},
	}
	testHelms = []core.HelmDefinition{
		{ControlAnchor: anchor("wheel", 0, 1, 2), LeftHand: anchor("lh", -1, 1, 2), RightHand: anchor("rh", 1, 1, 2), Exit: anchor("helm-exit", 0, 0, 1)},
		{ControlAnchor: anchor("seat", 0, 0, 0), Seated: true},
	}
)

type harness struct {
	c         *Controller
	body      *fakeBody
	player    *fakePlayer
	clock     *fakeClock
	scheduler *restore.Scheduler
	journal   *fakeJournal
	listener  *recordingListener
	store     *integrity.Store
	alive     bool
}

func newHarness(t *testing.T, kind core.VehicleKind) *harness {
	return newHarnessWithStore(t, kind, nil)
}

func newHarnessWithStore(t *testing.T, kind core.VehicleKind, store *integrity.Store) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &harness{
		body:     &fakeBody{collisions: true},
		player:   &fakePlayer{},
		clock:    &fakeClock{now: time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)},
		journal:  &fakeJournal{},
		listener: &recordingListener{},
		alive:    true,
	}
	var err error
	h.scheduler, err = restore.NewScheduler(h.clock, logger)
	require.NoError(t, err)

	if store == nil {
		store, err = integrity.New(afero.NewMemMapFs(), integrity.Config{Root: "/saves"}, codec.New(), logger)
		require.NoError(t, err)
	}
	h.store = store

	h.c, err = New(7, kind, DefaultConfig(), Deps{
		Body:      h.body,
		Player:    h.player,
		Hatches:   entryexit.New(testHatches),
		Helms:     testHelms,
		Scheduler: h.scheduler,
		Session:   fakeSession{slot: "slot0"},
		Model:     persistence.New(codec.New(), logger),
		Store:     store,
		Journal:   h.journal,
		Alive:     func() bool { return h.alive },
		Logger:    logger,
	})
	require.NoError(t, err)
	h.c.AddListener(h.listener)
	return h
}

func (h *harness) tick(d time.Duration) {
	h.clock.Advance(d)
	h.scheduler.Tick()
}
