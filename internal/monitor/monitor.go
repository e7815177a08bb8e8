// Package monitor periodically reports the running session to a status file
// and to InfluxDB.
package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/racedraw/racedraw/internal/influx"
	"github.com/racedraw/racedraw/internal/logging"
	"github.com/racedraw/racedraw/internal/session"
)

// DefaultInterval is the reporting period when none is configured.
const DefaultInterval = time.Second

// StatusSource is the session being watched.
type StatusSource interface {
	Status() session.Status
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	LogManager *logging.SlogManager
	Session    StatusSource
	// Influx is optional; points go to the performance bucket.
	Influx *influx.Manager
	// StatusPath is optional; the file is rewritten on every report.
	StatusPath string
	Interval   time.Duration
}

// Report is one sample.
type Report struct {
	Time       time.Time      `json:"time"`
	Session    session.Status `json:"session"`
	Goroutines int            `json:"goroutines"`
	HeapBytes  uint64         `json:"heapBytes"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetProgramStatus samples the session and the process.
func (s *Service) GetProgramStatus() Report {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return Report{
		Time:       time.Now(),
		Session:    s.deps.Session.Status(),
		Goroutines: runtime.NumGoroutine(),
		HeapBytes:  mem.HeapAlloc,
	}
}

// Report takes one sample and writes it out.
func (s *Service) Report() error {
	r := s.GetProgramStatus()

	if s.deps.StatusPath != "" {
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding status: %w", err)
		}
		if err := os.WriteFile(s.deps.StatusPath, append(data, '\n'), 0644); err != nil {
			return fmt.Errorf("writing status file: %w", err)
		}
	}

	if s.deps.Influx != nil {
		point := influx.StatusPoint(r.Session.TournamentID, r.Session.Round, r.Session.Remaining, r.Goroutines, r.HeapBytes)
		if err := s.deps.Influx.WritePoint(influx.BucketPerformance, point); err != nil {
			return fmt.Errorf("writing status point: %w", err)
		}
	}
	return nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor", "interval", s.deps.Interval, "file", s.deps.StatusPath)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := s.Report(); err != nil {
					logger.Warn("Status report failed", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for it to exit. A final report is
// written so the status file reflects the end state.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()

	<-done
	if err := s.Report(); err != nil {
		s.deps.LogManager.Logger().Warn("Final status report failed", "error", err)
	}
}
