package postgres

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/IronFox/AVS-sub001/internal/config"
	"github.com/IronFox/AVS-sub001/internal/database"
	"github.com/IronFox/AVS-sub001/internal/model"
	"github.com/IronFox/AVS-sub001/pkg/core"
)

func TestInit_ConnectError(t *testing.T) {
	b := New(config.DBConfig{Host: "nowhere"}, time.Second, nil, zerolog.Nop())
	b.open = func(config.DBConfig, zerolog.Logger) (*gorm.DB, error) {
		return nil, errors.New("connection refused")
	}

	err := b.Init()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to postgres")
	assert.NoError(t, b.Close())
}

func TestInit_UsesOpenedDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pg-standin.db")
	var gotCfg config.DBConfig
	b := New(config.DBConfig{Host: "db", Port: "5432", Database: "avs"}, time.Hour, nil, zerolog.Nop())
	b.open = func(cfg config.DBConfig, log zerolog.Logger) (*gorm.DB, error) {
		gotCfg = cfg
		return database.OpenSQLite(path, log)
	}

	require.NoError(t, b.Init())
	assert.Equal(t, "avs", gotCfg.Database)

	require.NoError(t, b.StartSession(&core.Session{ID: "sess-1", Slot: "slot0"}))
	require.NoError(t, b.RecordTransition(&core.TransitionRecord{SessionID: "sess-1", EntityID: 1, Transition: core.TransitionUndock}))
	require.NoError(t, b.Close())

	db, err := database.OpenSQLite(path, zerolog.Nop())
	require.NoError(t, err)
	var count int64
	require.NoError(t, db.Model(&model.Transition{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
