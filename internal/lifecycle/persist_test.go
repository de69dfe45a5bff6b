package lifecycle

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IronFox/AVS-sub001/internal/codec"
	"github.com/IronFox/AVS-sub001/internal/integrity"
	"github.com/IronFox/AVS-sub001/internal/persistence"
	"github.com/IronFox/AVS-sub001/pkg/core"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	saved := newHarness(t, core.KindSubmarine)
	require.NoError(t, saved.c.RegisterPlayerEntry())
	require.NoError(t, saved.c.BeginHelmControl(testHelms[0]))
	saved.c.SetPower(false)

	rep, err := saved.c.SaveEntityState()
	require.NoError(t, err)
	assert.Equal(t, persistence.Report{Applied: 5}, rep)

	loaded := newHarnessWithStore(t, core.KindSubmarine, saved.store)
	world := &fakeWorld{ready: map[core.EntityID]bool{}}
	task := loaded.c.LoadEntityState(world)

	loaded.tick(0)
	assert.Equal(t, core.LifecycleState{PoweredOn: true}, loaded.c.State(), "world not loaded yet")

	world.loaded = true
	world.ready[7] = true
	loaded.tick(0)

	require.True(t, task.Completed())
	st := loaded.c.State()
	assert.True(t, st.Boarded)
	assert.True(t, st.Piloting)
	assert.False(t, st.PoweredOn)
	require.NotNil(t, st.ControlAnchor)
	assert.Equal(t, "wheel", st.ControlAnchor.Name)
	require.NoError(t, st.Validate())
	assert.Equal(t, []string{"powerOff", "entry", "helmBegin"}, loaded.listener.calls)

	require.Len(t, loaded.journal.persistence, 1)
	assert.Equal(t, core.OpLoad, loaded.journal.persistence[0].Op)
	assert.Equal(t, core.OutcomeOK, loaded.journal.persistence[0].Outcome)
}

func TestSaveLoad_DockedAndScuttled(t *testing.T) {
	saved := newHarness(t, core.KindSubmersible)
	saved.c.DockVehicle(nil, false)
	saved.c.Scuttle()
	_, err := saved.c.SaveEntityState()
	require.NoError(t, err)

	loaded := newHarnessWithStore(t, core.KindSubmersible, saved.store)
	_, ok := loaded.c.ApplySavedState()
	require.True(t, ok)

	st := loaded.c.State()
	assert.True(t, st.Docked)
	assert.True(t, st.Scuttled)
	assert.False(t, st.Boarded)
	assert.False(t, loaded.c.CollisionsEnabled())
}

func TestSaveLoad_BoardedAndScuttled(t *testing.T) {
	saved := newHarness(t, core.KindSubmarine)
	require.NoError(t, saved.c.RegisterPlayerEntry())
	require.NoError(t, saved.c.BeginHelmControl(testHelms[0]))
	saved.c.Scuttle()
	_, err := saved.c.SaveEntityState()
	require.NoError(t, err)

	loaded := newHarnessWithStore(t, core.KindSubmarine, saved.store)
	_, ok := loaded.c.ApplySavedState()
	require.True(t, ok)

	st := loaded.c.State()
	assert.True(t, st.Boarded)
	assert.True(t, st.Scuttled)
	assert.False(t, st.Piloting)
	assert.False(t, st.Docked)
	require.NoError(t, st.Validate())
	assert.Equal(t, []string{"entry", "scuttle"}, loaded.listener.calls)
}

func TestSaveLoad_UnscuttlesBeforeBoarding(t *testing.T) {
	saved := newHarness(t, core.KindSubmarine)
	require.NoError(t, saved.c.RegisterPlayerEntry())
	_, err := saved.c.SaveEntityState()
	require.NoError(t, err)

	loaded := newHarnessWithStore(t, core.KindSubmarine, saved.store)
	loaded.c.Scuttle()
	_, ok := loaded.c.ApplySavedState()
	require.True(t, ok)

	st := loaded.c.State()
	assert.True(t, st.Boarded)
	assert.False(t, st.Scuttled)
}

func TestLoad_NoDataKeepsDefaults(t *testing.T) {
	h := newHarness(t, core.KindSubmarine)
	rep, ok := h.c.ApplySavedState()

	assert.False(t, ok)
	assert.Zero(t, rep)
	assert.Equal(t, core.LifecycleState{PoweredOn: true}, h.c.State())
	require.Len(t, h.journal.persistence, 1)
	assert.Equal(t, core.OutcomeNoData, h.journal.persistence[0].Outcome)
}

func TestLoad_CorruptHashYieldsNoData(t *testing.T) {
	fs := afero.NewMemMapFs()
	store, err := integrity.New(fs, integrity.Config{Root: "/saves"}, codec.New(), nil)
	require.NoError(t, err)

	saved := newHarnessWithStore(t, core.KindSubmarine, store)
	saved.c.Scuttle()
	_, err = saved.c.SaveEntityState()
	require.NoError(t, err)

	for _, path := range store.Paths(integrity.Key{Slot: "slot0", Prefix: "Vehicle", EntityID: 7}) {
		b, err := afero.ReadFile(fs, path)
		require.NoError(t, err)
		i := len(`{"hash":"`)
		if b[i] == 'a' {
			b[i] = 'b'
		} else {
			b[i] = 'a'
		}
		require.NoError(t, afero.WriteFile(fs, path, b, 0o644))
	}

	loaded := newHarnessWithStore(t, core.KindSubmarine, store)
	_, ok := loaded.c.ApplySavedState()
	assert.False(t, ok)
	assert.False(t, loaded.c.State().Scuttled)
}

func TestLoad_UnknownHelmKeepsBoarding(t *testing.T) {
	saved := newHarness(t, core.KindSubmarine)
	require.NoError(t, saved.c.RegisterPlayerEntry())
	require.NoError(t, saved.c.BeginHelmControl(core.HelmDefinition{ControlAnchor: anchor("gone", 0, 0, 0)}))
	_, err := saved.c.SaveEntityState()
	require.NoError(t, err)

	loaded := newHarnessWithStore(t, core.KindSubmarine, saved.store)
	_, ok := loaded.c.ApplySavedState()
	require.True(t, ok)
	assert.True(t, loaded.c.State().Boarded)
	assert.False(t, loaded.c.State().Piloting)
}

func TestLoad_AbortsWhenVehicleVanishes(t *testing.T) {
	saved := newHarness(t, core.KindSubmarine)
	saved.c.Scuttle()
	_, err := saved.c.SaveEntityState()
	require.NoError(t, err)

	loaded := newHarnessWithStore(t, core.KindSubmarine, saved.store)
	world := &fakeWorld{ready: map[core.EntityID]bool{}}
	task := loaded.c.LoadEntityState(world)
	loaded.tick(0)
	loaded.alive = false
	world.loaded = true
	world.ready[7] = true
	loaded.tick(0)

	assert.False(t, task.Completed())
	assert.False(t, loaded.c.State().Scuttled)
	assert.Empty(t, loaded.journal.persistence)
}

func TestPersistentData_IncludesExtraBlocksAndIsCached(t *testing.T) {
	h := newHarness(t, core.KindSubmarine)
	var name string
	h.c.deps.Blocks = []persistence.Block{persistence.NewBlock("Cosmetics", persistence.Field("name", &name))}

	d := h.c.PersistentData()
	require.Len(t, d.Blocks, 2)
	assert.Equal(t, "Vehicle", d.Name)
	assert.Equal(t, LifecycleBlock, d.Blocks[0].Name)
	assert.Equal(t, "Cosmetics", d.Blocks[1].Name)

	h.c.deps.Blocks = nil
	assert.Len(t, h.c.PersistentData().Blocks, 2)
}

func TestSave_WithoutPersistence(t *testing.T) {
	h := newHarness(t, core.KindSubmarine)
	h.c.deps.Model = nil
	_, err := h.c.SaveEntityState()
	assert.Error(t, err)
	_, ok := h.c.ApplySavedState()
	assert.False(t, ok)
}
