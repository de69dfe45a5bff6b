package main

import (
	"fmt"
	"log/slog"

	"github.com/rs/zerolog"

	"github.com/IronFox/AVS-sub001/internal/config"
	"github.com/IronFox/AVS-sub001/internal/storage"
)

func initStorage(storageCfg config.StorageConfig, logger *slog.Logger, zlog zerolog.Logger) (storage.Backend, error) {
	logger.Debug("Initializing journal storage", "type", storageCfg.Type)

	backend, err := storage.NewBackend(storageCfg, logger, zlog)
	if err != nil {
		logger.Error("Failed to create storage backend", "error", err)
		return nil, err
	}
	if err := backend.Init(); err != nil {
		logger.Error("Failed to initialize storage backend", "error", err)
		return nil, fmt.Errorf("initializing %s journal: %w", storageCfg.Type, err)
	}

	logger.Info("Journal storage initialized", "type", storageCfg.Type)
	return backend, nil
}
