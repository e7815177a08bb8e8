package worker

import (
	"errors"
	"sync"

	"github.com/racedraw/racedraw/internal/influx"
	"github.com/racedraw/racedraw/internal/logging"
	"github.com/racedraw/racedraw/internal/otel"
	"github.com/racedraw/racedraw/internal/storage"
	"github.com/racedraw/racedraw/pkg/core"
)

// ErrBadPayload is returned when an event carries the wrong payload type.
var ErrBadPayload = errors.New("unexpected event payload")

// Uploader sends an exported tournament file somewhere. api.Client is one.
type Uploader interface {
	Upload(filePath string, meta core.UploadMetadata) error
}

// Dependencies holds all dependencies for the worker manager. Everything
// except LogManager is optional.
type Dependencies struct {
	LogManager *logging.SlogManager
	Influx     *influx.Manager
	Metrics    *otel.RaceMetrics
	Uploader   Uploader
}

// Manager turns race events into storage writes and metric points.
type Manager struct {
	deps    Dependencies
	backend storage.Backend
	waiter  interface{ Wait() }

	mu         sync.RWMutex
	mode       string
	lastUpload string
}

// NewManager creates a new worker manager. backend may be nil when nothing
// is recorded.
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	return &Manager{
		deps:    deps,
		backend: backend,
	}
}

func (m *Manager) hasBackend() bool {
	return m.backend != nil
}

// LastUpload returns the path of the last uploaded export, if any.
func (m *Manager) LastUpload() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastUpload
}
