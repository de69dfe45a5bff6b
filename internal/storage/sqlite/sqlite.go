// Package sqlitestorage implements the storage.Backend interface using an in-memory
// SQLite database with periodic disk dumps via VACUUM INTO.
// It wraps the GORM backend; the only SQLite-specific concerns are creating
// the in-memory DB and the periodic disk dump.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/IronFox/AVS-sub001/internal/database"
	gormstorage "github.com/IronFox/AVS-sub001/internal/storage/gorm"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	// Source is the DSN to open; empty means the shared in-memory database.
	Source        string
	DumpPath      string
	DumpInterval  time.Duration
	FlushInterval time.Duration
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *gorm.DB
	cfg      Config
	log      *slog.Logger
	stopChan chan struct{}
	done     sync.WaitGroup
	closed   bool
}

// New opens the database and creates a new SQLite storage backend.
func New(cfg Config, logger *slog.Logger, zlog zerolog.Logger) (*Backend, error) {
	db, err := database.OpenSQLite(cfg.Source, zlog)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			DB:            db,
			Logger:        logger,
			FlushInterval: cfg.FlushInterval,
		}),
		db:       db,
		cfg:      cfg,
		log:      logger.With("component", "journal.sqlite"),
		stopChan: make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		b.done.Add(1)
		go b.dumpLoop()
	}
	return nil
}

// Close stops the dump goroutine, closes the embedded GORM backend and
// writes a final dump.
func (b *Backend) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.stopChan)
	b.done.Wait()

	err := b.Backend.Close()
	if b.cfg.DumpPath != "" {
		if dumpErr := b.Dump(); dumpErr != nil && err == nil {
			err = dumpErr
		}
	}
	if sqlDB, dbErr := b.db.DB(); dbErr == nil {
		sqlDB.Close()
	}
	return err
}

// ExportedFilePath returns the dump path.
func (b *Backend) ExportedFilePath() string {
	return b.cfg.DumpPath
}

// Dump flushes queued rows and writes a point-in-time snapshot to DumpPath.
func (b *Backend) Dump() error {
	if err := b.Flush(); err != nil {
		b.log.Warn("Flush before dump failed", "error", err)
	}
	took, err := database.DumpMemoryDBToDisk(b.db, b.cfg.DumpPath)
	if err != nil {
		return err
	}
	b.log.Debug("Dumped to disk", "path", b.cfg.DumpPath, "took", humanize.FtoaWithDigits(took.Seconds(), 3)+"s")
	return nil
}

func (b *Backend) dumpLoop() {
	defer b.done.Done()

	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Dump(); err != nil {
				b.log.Error("Error dumping to disk", "error", err)
			}
		}
	}
}
