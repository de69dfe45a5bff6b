// internal/storage/memory/memory.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/IronFox/AVS-sub001/internal/config"
	"github.com/IronFox/AVS-sub001/pkg/core"
)

// ErrNoSession is returned when recording before StartSession.
var ErrNoSession = errors.New("no session started")

// VehicleRecord groups a vehicle with everything journaled for it.
type VehicleRecord struct {
	Vehicle     core.Vehicle
	Transitions []core.TransitionRecord
	Persistence []core.PersistenceRecord
}

// Backend keeps the journal in memory and exports it as JSON when the
// session ends.
type Backend struct {
	cfg config.MemoryConfig
	fs  afero.Fs
	now func() time.Time

	session  *core.Session
	vehicles map[core.EntityID]*VehicleRecord

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend writing to the OS filesystem.
func New(cfg config.MemoryConfig) *Backend {
	return NewWithFs(cfg, afero.NewOsFs())
}

// NewWithFs creates a memory backend writing exports to fs.
func NewWithFs(cfg config.MemoryConfig, fs afero.Fs) *Backend {
	return &Backend{
		cfg:      cfg,
		fs:       fs,
		now:      time.Now,
		vehicles: make(map[core.EntityID]*VehicleRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close exports a session that was never ended.
func (b *Backend) Close() error {
	return b.EndSession()
}

// StartSession begins a new journal, discarding the previous one.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cp := *s
	b.session = &cp
	b.vehicles = make(map[core.EntityID]*VehicleRecord)
	return nil
}

// EndSession exports the journal and closes the session. It is a no-op
// without an open session.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return nil
	}
	err := b.exportJSON()
	b.session = nil
	return err
}

// AddVehicle registers a vehicle. Registering the same entity again
// replaces its descriptor and keeps its records.
func (b *Backend) AddVehicle(v *core.Vehicle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	b.record(v.ID).Vehicle = *v
	return nil
}

// RecordTransition appends a transition to its vehicle's record.
func (b *Backend) RecordTransition(r *core.TransitionRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	rec := b.record(r.EntityID)
	rec.Transitions = append(rec.Transitions, *r)
	return nil
}

// RecordPersistence appends a save or load outcome to its vehicle's record.
func (b *Backend) RecordPersistence(r *core.PersistenceRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	rec := b.record(r.EntityID)
	rec.Persistence = append(rec.Persistence, *r)
	return nil
}

// Vehicle returns a copy of the record for id.
func (b *Backend) Vehicle(id core.EntityID) (VehicleRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.vehicles[id]
	if !ok {
		return VehicleRecord{}, false
	}
	return VehicleRecord{
		Vehicle:     rec.Vehicle,
		Transitions: slices.Clone(rec.Transitions),
		Persistence: slices.Clone(rec.Persistence),
	}, true
}

// ExportedFilePath returns the path of the last export.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

func (b *Backend) record(id core.EntityID) *VehicleRecord {
	rec, ok := b.vehicles[id]
	if !ok {
		rec = &VehicleRecord{Vehicle: core.Vehicle{ID: id}}
		b.vehicles[id] = rec
	}
	return rec
}

// JournalExport is the root JSON structure of an exported journal.
type JournalExport struct {
	SessionID        string          `json:"sessionId"`
	Slot             string          `json:"slot"`
	ExtensionVersion string          `json:"extensionVersion"`
	StartTime        time.Time       `json:"startTime"`
	EndTime          time.Time       `json:"endTime"`
	Vehicles         []VehicleExport `json:"vehicles"`
}

// VehicleExport is one vehicle and its journal entries.
type VehicleExport struct {
	ID          uint32              `json:"id"`
	Kind        string              `json:"kind"`
	Name        string              `json:"name"`
	SpawnTime   time.Time           `json:"spawnTime"`
	Transitions []TransitionExport  `json:"transitions"`
	Persistence []PersistenceExport `json:"persistence"`
}

// TransitionExport is one transition and the state it produced.
type TransitionExport struct {
	Time          time.Time      `json:"time"`
	Transition    string         `json:"transition"`
	Boarded       bool           `json:"boarded"`
	Piloting      bool           `json:"piloting"`
	Docked        bool           `json:"docked"`
	Scuttled      bool           `json:"scuttled"`
	PoweredOn     bool           `json:"poweredOn"`
	ControlAnchor string         `json:"controlAnchor,omitempty"`
	Detail        map[string]any `json:"detail,omitempty"`
}

// PersistenceExport is one save or load outcome.
type PersistenceExport struct {
	Time    time.Time `json:"time"`
	Slot    string    `json:"slot"`
	Op      string    `json:"op"`
	Outcome string    `json:"outcome"`
	Applied int       `json:"applied"`
	Failed  int       `json:"failed"`
}

func (b *Backend) buildExport() JournalExport {
	export := JournalExport{
		SessionID:        b.session.ID,
		Slot:             b.session.Slot,
		ExtensionVersion: b.session.ExtensionVersion,
		StartTime:        b.session.StartTime,
		EndTime:          b.now(),
		Vehicles:         make([]VehicleExport, 0, len(b.vehicles)),
	}

	ids := make([]core.EntityID, 0, len(b.vehicles))
	for id := range b.vehicles {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		rec := b.vehicles[id]
		v := VehicleExport{
			ID:          uint32(id),
			Kind:        rec.Vehicle.Kind.String(),
			Name:        rec.Vehicle.Name,
			SpawnTime:   rec.Vehicle.SpawnTime,
			Transitions: make([]TransitionExport, 0, len(rec.Transitions)),
			Persistence: make([]PersistenceExport, 0, len(rec.Persistence)),
		}
		for _, t := range rec.Transitions {
			te := TransitionExport{
				Time:       t.Time,
				Transition: string(t.Transition),
				Boarded:    t.State.Boarded,
				Piloting:   t.State.Piloting,
				Docked:     t.State.Docked,
				Scuttled:   t.State.Scuttled,
				PoweredOn:  t.State.PoweredOn,
				Detail:     t.Detail,
			}
			if t.State.ControlAnchor != nil {
				te.ControlAnchor = t.State.ControlAnchor.Name
			}
			v.Transitions = append(v.Transitions, te)
		}
		for _, p := range rec.Persistence {
			v.Persistence = append(v.Persistence, PersistenceExport{
				Time:    p.Time,
				Slot:    p.Slot,
				Op:      string(p.Op),
				Outcome: string(p.Outcome),
				Applied: p.Applied,
				Failed:  p.Failed,
			})
		}
		export.Vehicles = append(export.Vehicles, v)
	}
	return export
}

// exportFileName builds <slot>_<YYYYMMDD_HHMMSS>.json[.gz].
func exportFileName(slot string, start time.Time, compress bool) string {
	name := strings.NewReplacer(" ", "_", ":", "_", "/", "_", "\\", "_").Replace(slot)
	if name == "" {
		name = "session"
	}
	ext := ".json"
	if compress {
		ext = ".json.gz"
	}
	return fmt.Sprintf("%s_%s%s", name, start.Format("20060102_150405"), ext)
}

// exportJSON writes the journal to OutputDir. Caller holds the lock.
func (b *Backend) exportJSON() error {
	export := b.buildExport()
	outputPath := filepath.Join(b.cfg.OutputDir, exportFileName(b.session.Slot, b.session.StartTime, b.cfg.CompressOutput))

	if err := b.fs.MkdirAll(b.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := b.fs.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	var w io.Writer = f
	var gz *gzip.Writer
	if b.cfg.CompressOutput {
		gz = gzip.NewWriter(f)
		w = gz
	}

	if err := json.NewEncoder(w).Encode(export); err != nil {
		return fmt.Errorf("failed to encode journal: %w", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("failed to finish gzip stream: %w", err)
		}
	}

	b.lastExportPath = outputPath
	return nil
}
