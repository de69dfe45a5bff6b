// Package handlers implements the host commands that drive vehicles.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IronFox/AVS-sub001/internal/cache"
	"github.com/IronFox/AVS-sub001/internal/dispatcher"
	"github.com/IronFox/AVS-sub001/internal/lifecycle"
	"github.com/IronFox/AVS-sub001/internal/logging"
	"github.com/IronFox/AVS-sub001/internal/parser"
	"github.com/IronFox/AVS-sub001/internal/persistence"
	"github.com/IronFox/AVS-sub001/internal/restore"
	"github.com/IronFox/AVS-sub001/internal/session"
	"github.com/IronFox/AVS-sub001/internal/storage"
	"github.com/IronFox/AVS-sub001/internal/util"
	"github.com/IronFox/AVS-sub001/internal/vehicle"
	"github.com/IronFox/AVS-sub001/internal/worker"
	"github.com/IronFox/AVS-sub001/pkg/core"
)

// ErrUnknownEntity is returned for commands addressing a vehicle that is
// not registered.
var ErrUnknownEntity = errors.New("unknown entity")

// ErrEntityExists is returned when a spawn asks for an id already in use.
var ErrEntityExists = errors.New("entity already exists")

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	EntityCache *cache.EntityCache
	IDs         *cache.IDAllocator
	Session     *session.Context
	Parser      *parser.Parser
	Pilot       *vehicle.Pilot
	Scheduler   *restore.Scheduler
	Model       *persistence.Model
	Store       persistence.Store
	// Backend is optional; without it nothing is journaled.
	Backend              storage.Backend
	Lifecycle            lifecycle.Config
	ScuttleCheckInterval time.Duration
	LogManager           *logging.SlogManager
	Logger               *slog.Logger
}

// Service provides the handler methods. Apart from handleLog they run on
// the worker goroutine.
type Service struct {
	deps   Dependencies
	logger *slog.Logger
}

// NewService creates a new handler service
func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		deps:   deps,
		logger: logger.With("component", "handlers"),
	}
}

// RegisterHandlers registers every host command with d. Commands touching
// entity state are serialized through exec.
func (s *Service) RegisterHandlers(d *dispatcher.Dispatcher, exec dispatcher.Executor) {
	serial := []dispatcher.Option{dispatcher.Logged()}
	if exec != nil {
		serial = append(serial, dispatcher.Serialized(exec))
	}

	// Entities
	d.Register(":VEHICLE:SPAWN:", s.handleSpawn, serial...)
	d.Register(":VEHICLE:READY:", s.handleReady, serial...)
	d.Register(":VEHICLE:DESTROY:", s.handleDestroy, serial...)
	d.Register(":VEHICLE:POSITION:", s.handleVehiclePosition, serial...)
	d.Register(":VEHICLE:PAINT:", s.handlePaint, serial...)
	d.Register(":VEHICLE:RENAME:", s.handleRename, serial...)

	// Player
	d.Register(":PLAYER:ENTER:", s.handlePlayerEnter, serial...)
	d.Register(":PLAYER:EXIT:", s.handlePlayerExit, serial...)
	d.Register(":PLAYER:POSITION:", s.handlePlayerPosition, serial...)
	d.Register(":PLAYER:HOST:", s.handlePlayerHost, serial...)

	// Lifecycle transitions
	d.Register(":HELM:BEGIN:", s.handleHelmBegin, serial...)
	d.Register(":HELM:END:", s.handleHelmEnd, serial...)
	d.Register(":DOCK:", s.handleDock, serial...)
	d.Register(":UNDOCK:", s.handleUndock, serial...)
	d.Register(":SCUTTLE:", s.handleScuttle, serial...)
	d.Register(":UNSCUTTLE:", s.handleUnscuttle, serial...)
	d.Register(":POWER:", s.handlePower, serial...)

	// Persistence and session
	d.Register(":SAVE:", s.handleSave, serial...)
	d.Register(":LOAD:", s.handleLoad, serial...)
	d.Register(":WORLD:LOADED:", s.handleWorldLoaded, serial...)
	d.Register(":SLOT:", s.handleSlot, serial...)
	d.Register(":STATUS:", s.handleStatus, serial...)

	// Script log lines - buffered
	d.Register(":LOG:", s.handleLog, dispatcher.Buffered(1000))
}

// StartSession opens the journal session for the current slot.
func (s *Service) StartSession() error {
	if s.deps.Backend == nil {
		return nil
	}
	sess := s.deps.Session.Session()
	if err := s.deps.Backend.StartSession(&sess); err != nil {
		return fmt.Errorf("failed to start journal session: %w", err)
	}
	return nil
}

func (s *Service) vehicle(id core.EntityID) (*vehicle.Vehicle, error) {
	v, ok := s.deps.EntityCache.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, id)
	}
	return v, nil
}

// entity parses [id, ...] and resolves the vehicle.
func (s *Service) entity(command string, args []string) (*vehicle.Vehicle, error) {
	cmd, err := s.deps.Parser.ParseEntity(command, args)
	if err != nil {
		return nil, err
	}
	return s.vehicle(cmd.Entity)
}

// vehicles resolves [id] to one vehicle, or no args to every vehicle.
func (s *Service) vehicles(command string, args []string) ([]*vehicle.Vehicle, error) {
	if len(util.CleanArgs(args)) == 0 {
		return s.deps.EntityCache.All(), nil
	}
	v, err := s.entity(command, args)
	if err != nil {
		return nil, err
	}
	return []*vehicle.Vehicle{v}, nil
}

func (s *Service) handleSpawn(e dispatcher.Event) (any, error) {
	cmd, err := s.deps.Parser.ParseSpawn(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to spawn vehicle: %w", err)
	}

	id := cmd.ID
	if id == core.NoEntity {
		id = s.deps.IDs.Next()
	} else {
		if _, taken := s.deps.EntityCache.Get(id); taken {
			return nil, fmt.Errorf("failed to spawn vehicle: %w: %s", ErrEntityExists, id)
		}
		s.deps.IDs.Observe(id)
	}
	var journal lifecycle.Journal
	if s.deps.Backend != nil {
		journal = s.deps.Backend
	}
	v, err := vehicle.New(id, cmd.Definition, vehicle.Deps{
		Pilot:     s.deps.Pilot,
		Scheduler: s.deps.Scheduler,
		Session:   s.deps.Session,
		Model:     s.deps.Model,
		Store:     s.deps.Store,
		Journal:   journal,
		Config:    s.deps.Lifecycle,
		Logger:    s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to spawn vehicle: %w", err)
	}
	s.deps.EntityCache.Add(v)

	if s.deps.Backend != nil {
		info := v.Info()
		if err := s.deps.Backend.AddVehicle(&info); err != nil {
			s.logger.Warn("Journal write failed", "entity", id.String(), "error", err)
		}
	}
	if s.deps.ScuttleCheckInterval > 0 {
		v.Lifecycle().StartScuttleCheck(s.deps.ScuttleCheckInterval)
	}

	s.logger.Info("Vehicle spawned", "entity", id.String(), "kind", v.Kind().String(), "name", cmd.Definition.Name)
	return id.String(), nil
}

func (s *Service) handleReady(e dispatcher.Event) (any, error) {
	v, err := s.entity(e.Command, e.Args)
	if err != nil {
		return nil, err
	}
	v.MarkInitialized()
	return nil, nil
}

func (s *Service) handleDestroy(e dispatcher.Event) (any, error) {
	cmd, err := s.deps.Parser.ParseEntity(e.Command, e.Args)
	if err != nil {
		return nil, err
	}
	v, ok := s.deps.EntityCache.Remove(cmd.Entity)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, cmd.Entity)
	}
	v.Destroy()
	if s.deps.Pilot.CurrentVessel() == cmd.Entity {
		s.deps.Pilot.SetCurrentVessel(core.NoEntity)
	}
	s.logger.Info("Vehicle destroyed", "entity", cmd.Entity.String())
	return nil, nil
}

func (s *Service) handleVehiclePosition(e dispatcher.Event) (any, error) {
	cmd, err := s.deps.Parser.ParseVehiclePosition(e.Args)
	if err != nil {
		return nil, err
	}
	v, err := s.vehicle(cmd.Entity)
	if err != nil {
		return nil, err
	}
	v.Hull().SetPosition(cmd.Position)
	return nil, nil
}

func (s *Service) handlePaint(e dispatcher.Event) (any, error) {
	cmd, err := s.deps.Parser.ParsePaint(e.Args)
	if err != nil {
		return nil, err
	}
	v, err := s.vehicle(cmd.Entity)
	if err != nil {
		return nil, err
	}
	look := v.Cosmetics()
	switch cmd.Channel {
	case "base":
		look.BaseColor = cmd.Color
	case "stripe":
		look.StripeColor = cmd.Color
	case "name":
		look.NameColor = cmd.Color
	case "interior":
		look.InteriorColor = cmd.Color
	}
	v.SetCosmetics(look)
	return nil, nil
}

func (s *Service) handleRename(e dispatcher.Event) (any, error) {
	cmd, err := s.deps.Parser.ParseRename(e.Args)
	if err != nil {
		return nil, err
	}
	v, err := s.vehicle(cmd.Entity)
	if err != nil {
		return nil, err
	}
	look := v.Cosmetics()
	look.Name = cmd.Name
	v.SetCosmetics(look)
	return nil, nil
}

func (s *Service) handlePlayerEnter(e dispatcher.Event) (any, error) {
	v, err := s.entity(e.Command, e.Args)
	if err != nil {
		return nil, err
	}
	return nil, v.Lifecycle().RegisterPlayerEntry()
}

func (s *Service) handlePlayerExit(e dispatcher.Event) (any, error) {
	v, err := s.entity(e.Command, e.Args)
	if err != nil {
		return nil, err
	}
	v.Lifecycle().PlayerExit()
	return nil, nil
}

func (s *Service) handlePlayerPosition(e dispatcher.Event) (any, error) {
	pos, err := s.deps.Parser.ParsePlayerPosition(e.Args)
	if err != nil {
		return nil, err
	}
	s.deps.Pilot.SetPosition(pos)
	return nil, nil
}

// handlePlayerHost sets the vessel the player stands in; no argument
// clears it.
func (s *Service) handlePlayerHost(e dispatcher.Event) (any, error) {
	host := ""
	if args := util.CleanArgs(e.Args); len(args) > 0 {
		host = args[0]
	}
	s.deps.Pilot.SetHostVessel(host)
	return nil, nil
}

func (s *Service) handleHelmBegin(e dispatcher.Event) (any, error) {
	cmd, err := s.deps.Parser.ParseHelm(e.Args)
	if err != nil {
		return nil, err
	}
	v, err := s.vehicle(cmd.Entity)
	if err != nil {
		return nil, err
	}
	helm, err := v.Lifecycle().Helm(cmd.Index)
	if err != nil {
		return nil, err
	}
	return nil, v.Lifecycle().BeginHelmControl(helm)
}

func (s *Service) handleHelmEnd(e dispatcher.Event) (any, error) {
	v, err := s.entity(e.Command, e.Args)
	if err != nil {
		return nil, err
	}
	v.Lifecycle().EndHelmControl()
	return nil, nil
}

func (s *Service) handleDock(e dispatcher.Event) (any, error) {
	cmd, err := s.deps.Parser.ParseDock(e.Args)
	if err != nil {
		return nil, err
	}
	v, err := s.vehicle(cmd.Entity)
	if err != nil {
		return nil, err
	}
	v.Lifecycle().DockVehicle(cmd.Exit, cmd.SuppressRelocation)
	return nil, nil
}

func (s *Service) handleUndock(e dispatcher.Event) (any, error) {
	cmd, err := s.deps.Parser.ParseUndock(e.Args)
	if err != nil {
		return nil, err
	}
	v, err := s.vehicle(cmd.Entity)
	if err != nil {
		return nil, err
	}
	if cmd.Admin {
		v.Lifecycle().AdminUndock(cmd.SuspendCollisions)
	} else {
		v.Lifecycle().UndockVehicle(cmd.BoardPlayer, cmd.SuspendCollisions)
	}
	return nil, nil
}

func (s *Service) handleScuttle(e dispatcher.Event) (any, error) {
	v, err := s.entity(e.Command, e.Args)
	if err != nil {
		return nil, err
	}
	v.Lifecycle().Scuttle()
	return nil, nil
}

func (s *Service) handleUnscuttle(e dispatcher.Event) (any, error) {
	v, err := s.entity(e.Command, e.Args)
	if err != nil {
		return nil, err
	}
	v.Lifecycle().Unscuttle()
	return nil, nil
}

func (s *Service) handlePower(e dispatcher.Event) (any, error) {
	cmd, err := s.deps.Parser.ParseToggle(e.Command, e.Args)
	if err != nil {
		return nil, err
	}
	v, err := s.vehicle(cmd.Entity)
	if err != nil {
		return nil, err
	}
	v.Lifecycle().SetPower(cmd.On)
	return nil, nil
}

// handleSave saves [id], or every vehicle when no id is given. A failed
// vehicle does not stop the others.
func (s *Service) handleSave(e dispatcher.Event) (any, error) {
	targets, err := s.vehicles(e.Command, e.Args)
	if err != nil {
		return nil, err
	}
	var total persistence.Report
	var errs []error
	for _, v := range targets {
		rep, err := v.Lifecycle().SaveEntityState()
		total.Add(rep)
		if err != nil {
			errs = append(errs, fmt.Errorf("vehicle %s: %w", v.ID(), err))
		}
	}
	return total.String(), errors.Join(errs...)
}

// handleLoad queues the restore of [id], or of every vehicle.
func (s *Service) handleLoad(e dispatcher.Event) (any, error) {
	targets, err := s.vehicles(e.Command, e.Args)
	if err != nil {
		return nil, err
	}
	for _, v := range targets {
		v.Lifecycle().LoadEntityState(s.deps.Session)
	}
	return fmt.Sprintf("queued=%d", len(targets)), nil
}

func (s *Service) handleWorldLoaded(e dispatcher.Event) (any, error) {
	loaded := true
	if len(util.CleanArgs(e.Args)) > 0 {
		var err error
		if loaded, err = s.deps.Parser.ParseBool(e.Command, e.Args); err != nil {
			return nil, err
		}
	}
	s.deps.Session.SetWorldLoaded(loaded)
	s.logger.Info("World load state changed", "loaded", loaded)
	return nil, nil
}

// handleSlot switches to another save slot. Vehicles of the old slot are
// destroyed and the journal moves to a new session.
func (s *Service) handleSlot(e dispatcher.Event) (any, error) {
	slot, err := s.deps.Parser.ParseString(e.Command, e.Args)
	if err != nil {
		return nil, err
	}
	if strings.ContainsAny(slot, `/\`) {
		return nil, fmt.Errorf("invalid slot %q", slot)
	}

	for _, v := range s.deps.EntityCache.All() {
		v.Destroy()
	}
	s.deps.EntityCache.Reset()
	// save keys carry the entity id, so numbering restarts with the slot
	s.deps.IDs.Reset(0)
	s.deps.Pilot.SetCurrentVessel(core.NoEntity)

	if s.deps.Backend != nil {
		if err := s.deps.Backend.EndSession(); err != nil {
			s.logger.Warn("Failed to end journal session", "error", err)
		}
	}
	sess := s.deps.Session.SetSlot(slot)
	if err := s.StartSession(); err != nil {
		s.logger.Warn("Journal unavailable for new session", "error", err)
	}

	s.logger.Info("Save slot changed", "slot", slot, "session", sess.ID)
	return sess.ID, nil
}

// handleStatus reports one vehicle as JSON, or the summary of all vehicles.
func (s *Service) handleStatus(e dispatcher.Event) (any, error) {
	var out any
	if len(util.CleanArgs(e.Args)) > 0 {
		v, err := s.entity(e.Command, e.Args)
		if err != nil {
			return nil, err
		}
		out = v.Status()
	} else {
		out = worker.Summarize(s.deps.EntityCache.All(), s.deps.Scheduler.Pending())
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode status: %w", err)
	}
	return string(data), nil
}

func (s *Service) handleLog(e dispatcher.Event) (any, error) {
	cmd, err := s.deps.Parser.ParseLog(e.Args)
	if err != nil {
		return nil, err
	}
	if s.deps.LogManager != nil {
		s.deps.LogManager.WriteLog(cmd.Source, cmd.Text, cmd.Level)
	}
	return nil, nil
}
