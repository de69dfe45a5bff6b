package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/IronFox/AVS-sub001/internal/api"
	"github.com/IronFox/AVS-sub001/internal/cache"
	"github.com/IronFox/AVS-sub001/internal/codec"
	"github.com/IronFox/AVS-sub001/internal/config"
	"github.com/IronFox/AVS-sub001/internal/dispatcher"
	"github.com/IronFox/AVS-sub001/internal/entryexit"
	"github.com/IronFox/AVS-sub001/internal/handlers"
	"github.com/IronFox/AVS-sub001/internal/integrity"
	"github.com/IronFox/AVS-sub001/internal/lifecycle"
	"github.com/IronFox/AVS-sub001/internal/logging"
	"github.com/IronFox/AVS-sub001/internal/monitor"
	intOtel "github.com/IronFox/AVS-sub001/internal/otel"
	"github.com/IronFox/AVS-sub001/internal/parser"
	"github.com/IronFox/AVS-sub001/internal/persistence"
	"github.com/IronFox/AVS-sub001/internal/restore"
	"github.com/IronFox/AVS-sub001/internal/session"
	"github.com/IronFox/AVS-sub001/internal/storage"
	"github.com/IronFox/AVS-sub001/internal/vehicle"
	"github.com/IronFox/AVS-sub001/internal/worker"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentExtensionVersion string = "0.0.1"
	BuildDate               string = "unknown"

	ExtensionName string = "avs_host"
)

func main() {
	args := os.Args[1:]
	if len(args) > 0 && strings.ToLower(args[0]) == "verify" {
		os.Exit(verifyFiles(os.Stdout, args[1:]))
	}

	configDir := "."
	if len(args) > 0 {
		configDir = args[0]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, configDir, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", ExtensionName, err)
		os.Exit(1)
	}
}

// host bundles the services wired by run.
type host struct {
	logs     *logging.SlogManager
	logger   *slog.Logger
	otel     *intOtel.Provider
	backend  storage.Backend
	worker   *worker.Worker
	monitor  *monitor.Service
	handlers *handlers.Service
	dispatch *dispatcher.Dispatcher
	session  *session.Context
	uploader *api.Client
	apiCfg   config.APIConfig
}

func run(ctx context.Context, configDir string, in io.Reader, out io.Writer) error {
	sessionStart := time.Now()

	logs := logging.NewSlogManager()
	// stdout carries command replies
	logs.Setup(os.Stderr, "info", nil)
	logger := logs.Logger()

	if err := config.Load(configDir); err != nil {
		logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		logger.Info("Loaded config", "dir", configDir)
	}

	h, err := newHost(ctx, logs, sessionStart)
	if err != nil {
		return err
	}
	defer h.shutdown()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.worker.Run(gctx) })
	// end of input stops the worker too
	g.Go(func() error { return serve(gctx, h.dispatch, in, out) })

	err = g.Wait()
	if errors.Is(err, errInputClosed) {
		h.logger.Info("Input closed, shutting down")
		return nil
	}
	return err
}

func newHost(ctx context.Context, logs *logging.SlogManager, sessionStart time.Time) (*host, error) {
	level := config.GetString("logLevel")

	saveCfg, err := config.GetSaveConfig()
	if err != nil {
		return nil, err
	}
	lcCfg, err := config.GetLifecycleConfig()
	if err != nil {
		return nil, err
	}
	storageCfg, err := config.GetStorageConfig()
	if err != nil {
		return nil, err
	}
	otelCfg, err := config.GetOTelConfig()
	if err != nil {
		return nil, err
	}
	monCfg, err := config.GetMonitorConfig()
	if err != nil {
		return nil, err
	}
	apiCfg, err := config.GetAPIConfig()
	if err != nil {
		return nil, err
	}

	logFile, err := logging.OpenLogFile(config.GetString("logsDir"), ExtensionName, sessionStart)
	if err != nil {
		logs.Logger().Error("Failed to create/open log file!", "error", err)
	}
	var logOut io.Writer = os.Stderr
	if logFile != nil {
		logOut = logFile
	}

	provider, err := intOtel.New(ctx, intOtel.FromConfig(otelCfg, logOut))
	if err != nil {
		logs.Logger().Error("Failed to initialize OTel provider", "error", err)
		provider, _ = intOtel.New(ctx, intOtel.Config{})
	}

	entities := cache.NewEntityCache()
	sess := session.NewContext(saveCfg.Slot, CurrentExtensionVersion, entities)

	// Re-setup logging with file output, session attributes and optional OTel
	logs.WithContext(logging.SessionAttrs(sess)).Setup(logOut, level, provider.LoggerProvider())
	logger := logs.Logger()
	logger.Info("Starting up...", "version", CurrentExtensionVersion, "build", BuildDate, "slot", saveCfg.Slot)

	var zlog zerolog.Logger
	if logFile != nil {
		zlog = logging.NewZerolog(logFile, level)
	} else {
		zlog = logging.NewConsoleZerolog(os.Stderr, level)
	}

	sched, err := restore.NewScheduler(nil, logger)
	if err != nil {
		return nil, err
	}
	store, err := integrity.New(afero.NewOsFs(), integrity.Config{
		Root:            saveCfg.Root,
		FallbackSuffix:  saveCfg.FallbackSuffix,
		MaxPayloadBytes: saveCfg.MaxPayloadBytes,
	}, codec.New(), logger)
	if err != nil {
		return nil, err
	}

	backend, err := initStorage(storageCfg, logger, zlog)
	if err != nil {
		return nil, err
	}

	w := worker.New(worker.Dependencies{
		Scheduler:    sched,
		EntityCache:  entities,
		TickInterval: lcCfg.TickInterval,
		Logger:       logger,
	})

	d, err := dispatcher.New(logging.NewDispatcherLogger(zlog))
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	svc := handlers.NewService(handlers.Dependencies{
		EntityCache:          entities,
		IDs:                  cache.NewIDAllocator(0),
		Session:              sess,
		Parser:               parser.NewParser(logger),
		Pilot:                vehicle.NewPilot(),
		Scheduler:            sched,
		Model:                persistence.New(codec.New(), logger),
		Store:                store,
		Backend:              backend,
		Lifecycle:            lifecycleConfig(lcCfg),
		ScuttleCheckInterval: lcCfg.ScuttleCheckInterval,
		LogManager:           logs,
		Logger:               logger,
	})
	svc.RegisterHandlers(d, w)
	if err := svc.StartSession(); err != nil {
		logger.Warn("Journal unavailable", "error", err)
	}

	h := &host{
		logs:     logs,
		logger:   logger,
		otel:     provider,
		backend:  backend,
		worker:   w,
		handlers: svc,
		dispatch: d,
		session:  sess,
		apiCfg:   apiCfg,
	}

	if apiCfg.Enabled {
		h.uploader = api.New(apiCfg.ServerURL, apiCfg.APIKey)
		if err := h.uploader.Healthcheck(); err != nil {
			logger.Warn("Journal server unreachable, uploads may fail", "url", apiCfg.ServerURL, "error", err)
		}
	}

	if monCfg.Enabled {
		deps := monitor.Dependencies{
			Source:     w,
			StatusFile: monCfg.StatusFile,
			Interval:   monCfg.Interval,
			Logger:     logger,
		}
		if stats, ok := backend.(storage.Stats); ok {
			deps.Stats = stats
		}
		h.monitor = monitor.NewService(deps)
		if err := h.monitor.Start(); err != nil {
			logger.Warn("Failed to start status monitor", "error", err)
		}
	}

	logger.Info("Host ready", "commands", len(d.Commands()), "storage", storageCfg.Type)
	return h, nil
}

func (h *host) shutdown() {
	if h.monitor != nil {
		h.monitor.Stop()
	}
	if err := h.backend.Close(); err != nil {
		h.logger.Error("Failed to close journal", "error", err)
	}
	if exp, ok := h.backend.(storage.Exportable); ok && exp.ExportedFilePath() != "" {
		h.logger.Info("Journal written", "path", exp.ExportedFilePath())
		h.upload(exp.ExportedFilePath())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.logs.Flush(ctx); err != nil {
		h.logger.Warn("Failed to flush logs", "error", err)
	}
	if err := h.otel.Shutdown(ctx); err != nil {
		h.logger.Warn("Failed to shut down OTel", "error", err)
	}
}

// upload sends the journal export to the configured server, if any.
func (h *host) upload(path string) {
	if h.uploader == nil {
		return
	}
	meta := api.MetadataFor(h.session.Session(), time.Now(), h.apiCfg.Tag)
	if err := h.uploader.Upload(path, meta); err != nil {
		h.logger.Error("Journal upload failed", "path", path, "error", err)
		return
	}
	h.logger.Info("Journal uploaded", "path", path, "url", h.apiCfg.ServerURL)
}

func lifecycleConfig(c config.LifecycleConfig) lifecycle.Config {
	cfg := lifecycle.DefaultConfig()
	cfg.CollisionReenableDelay = c.CollisionReenableDelay
	cfg.Exit = entryexit.ExitPolicy{
		DepthThreshold: c.ExitDepthThreshold,
		AllowSurfacing: c.AllowSurfacing,
	}
	cfg.DesignatedHost = c.DesignatedHost
	return cfg
}
