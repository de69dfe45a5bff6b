// Package postgres implements the storage.Backend interface on PostgreSQL by
// wrapping the GORM backend.
package postgres

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/IronFox/AVS-sub001/internal/config"
	"github.com/IronFox/AVS-sub001/internal/database"
	gormstorage "github.com/IronFox/AVS-sub001/internal/storage/gorm"
)

// Opener connects to the database. Tests replace it.
type Opener func(cfg config.DBConfig, log zerolog.Logger) (*gorm.DB, error)

// Backend connects lazily in Init and then behaves like the GORM backend.
type Backend struct {
	*gormstorage.Backend
	cfg           config.DBConfig
	flushInterval time.Duration
	log           *slog.Logger
	zlog          zerolog.Logger
	open          Opener
}

// New creates a new Postgres storage backend. No connection is made until Init.
func New(cfg config.DBConfig, flushInterval time.Duration, logger *slog.Logger, zlog zerolog.Logger) *Backend {
	return &Backend{
		cfg:           cfg,
		flushInterval: flushInterval,
		log:           logger,
		zlog:          zlog,
		open:          database.OpenPostgres,
	}
}

// Init connects, migrates and starts the writer goroutine.
func (b *Backend) Init() error {
	db, err := b.open(b.cfg, b.zlog)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	b.Backend = gormstorage.New(gormstorage.Dependencies{
		DB:            db,
		Logger:        b.log,
		FlushInterval: b.flushInterval,
	})
	return b.Backend.Init()
}

// Close closes the GORM backend and the connection pool.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	err := b.Backend.Close()
	if sqlDB, dbErr := b.DB().DB(); dbErr == nil {
		sqlDB.Close()
	}
	return err
}
