package main

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/racedraw/racedraw/internal/config"
	"github.com/racedraw/racedraw/internal/database"
	"github.com/racedraw/racedraw/internal/logging"
	"github.com/racedraw/racedraw/internal/storage"
	"github.com/racedraw/racedraw/internal/storage/memory"
	pgstorage "github.com/racedraw/racedraw/internal/storage/postgres"
	sqlitestorage "github.com/racedraw/racedraw/internal/storage/sqlite"
)

// createStorageBackend returns nil for storage.type "none".
func createStorageBackend(storageCfg config.StorageConfig, logManager *logging.SlogManager, zl zerolog.Logger) (storage.Backend, error) {
	logger := logManager.Logger()

	switch storageCfg.Type {
	case "none":
		logger.Info("Recording disabled")
		return nil, nil

	case "postgres":
		backend, err := pgstorage.New(database.NewManager(zl), logManager, 0)
		if err != nil {
			return nil, err
		}
		logger.Info("Postgres storage backend initialized", "target", database.PostgresTarget())
		return backend, nil

	case "sqlite":
		dumpPath := storageCfg.SQLite.Path
		if dumpPath == "" {
			dumpPath = filepath.Join(".", fmt.Sprintf("racedraw_%s.db", SessionStartTime.Format("20060102_150405")))
		}
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: storageCfg.SQLite.DumpInterval,
			DumpPath:     dumpPath,
		}, database.NewManager(zl), logManager)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		logger.Info("SQLite storage backend initialized", "dump", dumpPath)
		return backend, nil

	case "memory", "":
		logger.Info("Memory storage backend initialized", "outputDir", storageCfg.Memory.OutputDir)
		return memory.New(storageCfg.Memory), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}
