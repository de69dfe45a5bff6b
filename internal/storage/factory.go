// internal/storage/factory.go
package storage

import (
	"fmt"
	"log/slog"

	"github.com/rs/zerolog"

	"github.com/IronFox/AVS-sub001/internal/config"
	"github.com/IronFox/AVS-sub001/internal/storage/memory"
	"github.com/IronFox/AVS-sub001/internal/storage/postgres"
	sqlitestorage "github.com/IronFox/AVS-sub001/internal/storage/sqlite"
)

var (
	_ Backend    = (*memory.Backend)(nil)
	_ Exportable = (*memory.Backend)(nil)
	_ Backend    = (*sqlitestorage.Backend)(nil)
	_ Exportable = (*sqlitestorage.Backend)(nil)
	_ Stats      = (*sqlitestorage.Backend)(nil)
	_ Backend    = (*postgres.Backend)(nil)
	_ Stats      = (*postgres.Backend)(nil)
)

// NewBackend creates a storage backend based on configuration. The backend
// is not initialized.
func NewBackend(cfg config.StorageConfig, logger *slog.Logger, zlog zerolog.Logger) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		return postgres.New(cfg.DB, cfg.FlushInterval, logger, zlog), nil
	case "sqlite":
		return sqlitestorage.New(sqlitestorage.Config{
			DumpPath:      cfg.SQLite.Path,
			DumpInterval:  cfg.FlushInterval,
			FlushInterval: cfg.FlushInterval,
		}, logger, zlog)
	case "memory":
		return memory.New(cfg.Memory), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
