// Package monitor periodically publishes host status to a JSON file.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"github.com/IronFox/AVS-sub001/internal/storage"
	"github.com/IronFox/AVS-sub001/internal/worker"
)

// DefaultInterval is used when Dependencies.Interval is zero.
const DefaultInterval = 30 * time.Second

// Source provides the worker's last published snapshot.
type Source interface {
	Snapshot() worker.Snapshot
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Source Source
	// Stats is optional; journal fields stay zero without it.
	Stats      storage.Stats
	Fs         afero.Fs
	StatusFile string
	Interval   time.Duration
	Logger     *slog.Logger
}

// Status is the document written to the status file.
type Status struct {
	worker.Snapshot
	Uptime              string  `json:"uptime"`
	JournalPending      int     `json:"journalPending"`
	LastWriteDurationMs float64 `json:"lastWriteDurationMs"`
	LastWrite           string  `json:"lastWrite"`
}

// Service manages status monitoring
type Service struct {
	deps    Dependencies
	logger  *slog.Logger
	started time.Time

	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	if deps.Fs == nil {
		deps.Fs = afero.NewOsFs()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		deps:    deps,
		logger:  logger.With("component", "monitor"),
		started: time.Now(),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus assembles the current status.
func (s *Service) GetStatus() Status {
	st := Status{Uptime: humanize.Time(s.started)}
	if s.deps.Source != nil {
		st.Snapshot = s.deps.Source.Snapshot()
	}
	if s.deps.Stats != nil {
		st.JournalPending = s.deps.Stats.Pending()
		d := s.deps.Stats.LastWriteDuration()
		st.LastWriteDurationMs = float64(d.Microseconds()) / 1000
		st.LastWrite = humanize.FtoaWithDigits(st.LastWriteDurationMs, 2) + "ms"
	}
	return st
}

// WriteStatus replaces the status file with the current status.
func (s *Service) WriteStatus() (Status, error) {
	st := s.GetStatus()
	if s.deps.StatusFile == "" {
		return st, nil
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return st, fmt.Errorf("encoding status: %w", err)
	}
	if err := s.deps.Fs.MkdirAll(filepath.Dir(s.deps.StatusFile), 0o755); err != nil {
		return st, fmt.Errorf("creating status dir: %w", err)
	}
	if err := afero.WriteFile(s.deps.Fs, s.deps.StatusFile, data, 0o644); err != nil {
		return st, fmt.Errorf("writing status file: %w", err)
	}
	return st, nil
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
		s.logger.Debug("Starting status monitor", "interval", s.deps.Interval, "file", s.deps.StatusFile)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				st, err := s.WriteStatus()
				if err != nil {
					s.logger.Error("Error writing status file", "error", err)
				}
				s.logger.Debug("Status",
					"entities", st.Entities,
					"boarded", st.Boarded,
					"docked", st.Docked,
					"scuttled", st.Scuttled,
					"pendingTasks", st.PendingTasks,
					"journalPending", st.JournalPending,
					"lastWrite", st.LastWrite)
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for its goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
