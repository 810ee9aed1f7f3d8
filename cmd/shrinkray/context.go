package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"shrinkray/internal/catalog"
	"shrinkray/internal/config"
	"shrinkray/internal/encoder"
	"shrinkray/internal/ledger"
	"shrinkray/internal/logging"
	"shrinkray/internal/metatool"
	"shrinkray/internal/notifications"
	"shrinkray/internal/orchestrator"
	"shrinkray/internal/resource"
	"shrinkray/internal/session"
)

// commandContext lazily loads configuration and shares it across commands.
type commandContext struct {
	configFlag *string

	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	path := ""
	if c.configFlag != nil {
		path = *c.configFlag
	}
	cfg, resolvedPath, _, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	c.cfg = cfg
	c.cfgPath = resolvedPath
	return cfg, nil
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	if c.logger != nil {
		return c.logger, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		OutputPaths: []string{
			"stdout",
			filepath.Join(cfg.Paths.LogDir, "shrinkray.log"),
		},
	})
	if err != nil {
		return nil, err
	}
	c.logger = logger
	return logger, nil
}

// runtime bundles the orchestrator with the resources it owns.
type runtime struct {
	Orchestrator *orchestrator.Orchestrator
	Store        *session.Store
	History      *ledger.Ledger
	Monitor      *resource.Monitor
}

// Close releases the runtime's durable handles.
func (r *runtime) Close() {
	if r.History != nil {
		_ = r.History.Close()
	}
}

func (c *commandContext) openStore() (*session.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return session.NewStore(cfg.Paths.StateDir)
}

func (c *commandContext) openLedger() (*ledger.Ledger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return ledger.Open(cfg.Paths.StateDir)
}

// newRuntime wires the full conversion stack from configuration.
func (c *commandContext) newRuntime(libraryRoot string) (*runtime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}

	store, err := session.NewStore(cfg.Paths.StateDir)
	if err != nil {
		return nil, err
	}
	history, err := ledger.Open(cfg.Paths.StateDir)
	if err != nil {
		return nil, err
	}

	monitor := resource.NewMonitor(
		cfg.Paths.OutputDir,
		secondsDuration(cfg.Resources.SampleInterval),
		logger,
	)

	if libraryRoot == "" {
		history.Close()
		return nil, fmt.Errorf("library root is required")
	}
	lib := catalog.NewFS(libraryRoot)

	orch, err := orchestrator.New(cfg, orchestrator.Deps{
		Logger:    logger,
		Store:     store,
		Ledger:    history,
		Catalog:   lib,
		Converter: encoder.NewFFmpeg(encoder.WithBinary(cfg.Processing.FFmpegBinary)),
		Metadata:  metatool.NewExifTool(cfg.Processing.ExifToolBinary),
		Notifier:  notifications.NewService(cfg.Notifications),
		Monitor:   monitor,
	})
	if err != nil {
		history.Close()
		return nil, err
	}

	return &runtime{
		Orchestrator: orch,
		Store:        store,
		History:      history,
		Monitor:      monitor,
	}, nil
}
