package gormstorage

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/IronFox/AVS-sub001/internal/database"
	"github.com/IronFox/AVS-sub001/internal/model"
	"github.com/IronFox/AVS-sub001/pkg/core"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "journal.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newTestBackend(t *testing.T, interval time.Duration) (*Backend, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	b := New(Dependencies{DB: db, Logger: slog.New(slog.DiscardHandler), FlushInterval: interval})
	require.NoError(t, b.Init())
	return b, db
}

func TestInit_NoDB(t *testing.T) {
	b := New(Dependencies{})
	assert.ErrorIs(t, b.Init(), ErrNoDB)
	assert.Equal(t, DefaultFlushInterval, b.deps.FlushInterval)
}

func TestStartSession_InsertsRow(t *testing.T) {
	b, db := newTestBackend(t, time.Hour)
	defer b.Close()

	require.NoError(t, b.StartSession(&core.Session{ID: "sess-1", Slot: "slot0", ExtensionVersion: "1.0.0"}))

	var rows []model.Session
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "sess-1", rows[0].SessionID)
	assert.False(t, rows[0].EndTime.Valid)
}

func TestRecord_QueuesUntilFlush(t *testing.T) {
	b, db := newTestBackend(t, time.Hour)
	defer b.Close()
	require.NoError(t, b.StartSession(&core.Session{ID: "sess-1", Slot: "slot0"}))

	require.NoError(t, b.AddVehicle(&core.Vehicle{ID: 5, Kind: core.KindSkimmer, Name: "Hover"}))
	require.NoError(t, b.RecordTransition(&core.TransitionRecord{
		SessionID:  "sess-1",
		EntityID:   5,
		Transition: core.TransitionHelmBegin,
		State:      core.LifecycleState{Boarded: true, Piloting: true, ControlAnchor: &core.Anchor{Name: "seat"}},
		Detail:     map[string]any{"helm": 0},
	}))
	require.NoError(t, b.RecordPersistence(&core.PersistenceRecord{SessionID: "sess-1", EntityID: 5, Op: core.OpSave, Outcome: core.OutcomeOK, Applied: 2}))
	assert.Equal(t, 3, b.Pending())

	var count int64
	require.NoError(t, db.Model(&model.Transition{}).Count(&count).Error)
	assert.Zero(t, count)

	require.NoError(t, b.Flush())
	assert.Zero(t, b.Pending())
	assert.Positive(t, b.LastWriteDuration())

	var vehicles []model.Vehicle
	require.NoError(t, db.Find(&vehicles).Error)
	require.Len(t, vehicles, 1)
	assert.Equal(t, "sess-1", vehicles[0].SessionID)
	assert.Equal(t, "skimmer", vehicles[0].Kind)

	var transitions []model.Transition
	require.NoError(t, db.Find(&transitions).Error)
	require.Len(t, transitions, 1)
	assert.Equal(t, "helm_begin", transitions[0].Transition)
	assert.Equal(t, "seat", transitions[0].ControlAnchor)
	assert.JSONEq(t, `{"helm":0}`, string(transitions[0].Detail))

	var events []model.PersistenceEvent
	require.NoError(t, db.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, 2, events[0].Applied)
}

func TestWriterLoop_FlushesPeriodically(t *testing.T) {
	b, db := newTestBackend(t, 10*time.Millisecond)
	defer b.Close()

	require.NoError(t, b.RecordTransition(&core.TransitionRecord{EntityID: 1, Transition: core.TransitionDock}))

	assert.Eventually(t, func() bool {
		var count int64
		db.Model(&model.Transition{}).Count(&count)
		return count == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClose_EndsSessionAndFlushes(t *testing.T) {
	b, db := newTestBackend(t, time.Hour)
	require.NoError(t, b.StartSession(&core.Session{ID: "sess-9", Slot: "slot0"}))
	require.NoError(t, b.RecordTransition(&core.TransitionRecord{SessionID: "sess-9", EntityID: 1, Transition: core.TransitionScuttle}))

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	var session model.Session
	require.NoError(t, db.Where("session_id = ?", "sess-9").First(&session).Error)
	assert.True(t, session.EndTime.Valid)

	var count int64
	require.NoError(t, db.Model(&model.Transition{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestFlush_FailureRequeues(t *testing.T) {
	b, db := newTestBackend(t, time.Hour)
	b.closed = true
	close(b.stopChan)
	b.done.Wait()

	require.NoError(t, b.RecordTransition(&core.TransitionRecord{EntityID: 1, Transition: core.TransitionPower}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	err = b.Flush()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error creating transitions")
	assert.Equal(t, 1, b.Pending())
}
