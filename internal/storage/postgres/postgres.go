// Package postgres runs the GORM storage backend on a PostgreSQL server
// configured through the db.* settings.
package postgres

import (
	"fmt"
	"time"

	"github.com/racedraw/racedraw/internal/database"
	"github.com/racedraw/racedraw/internal/logging"
	gormstorage "github.com/racedraw/racedraw/internal/storage/gorm"
)

// Backend wraps the GORM backend with a postgres connection.
type Backend struct {
	*gormstorage.Backend
	manager *database.Manager
}

// New connects to postgres. The connection is validated with a ping.
func New(manager *database.Manager, logManager *logging.SlogManager, flushInterval time.Duration) (*Backend, error) {
	db, err := manager.GetPostgresDB()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err = sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to validate connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)

	manager.DB = db
	manager.SqlDB = sqlDB
	manager.IsValid = true

	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			DB:            db,
			LogManager:    logManager,
			FlushInterval: flushInterval,
		}),
		manager: manager,
	}, nil
}

// Close flushes the embedded backend and closes the connection pool.
func (b *Backend) Close() error {
	if err := b.Backend.Close(); err != nil {
		return err
	}
	return b.manager.Close()
}
