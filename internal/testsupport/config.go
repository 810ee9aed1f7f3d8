package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"shrinkray/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields, creates the directories, and applies any
// provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Resources.MinFreeGiB = 0
	cfgVal.Retry.BaseDelay = 0
	cfgVal.Retry.MaxDelay = 0
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithMaxConcurrent overrides the worker pool bound on the test config.
func WithMaxConcurrent(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Processing.MaxConcurrent = n
	}
}

// WithStrictValidation enables strict validation on the test config.
func WithStrictValidation() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Validation.Strict = true
	}
}

// WithMaxRetries overrides the retry ceiling on the test config.
func WithMaxRetries(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Retry.MaxRetries = n
	}
}

// WithDiskGate enables the disk-space admission gate on the test config.
func WithDiskGate(minGiB, pauseTimeoutSeconds int, behavior string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Resources.MinFreeGiB = minGiB
		b.cfg.Resources.PauseTimeout = pauseTimeoutSeconds
		b.cfg.Resources.PauseTimeoutBehavior = behavior
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default external binaries
// are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe", "exiftool"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}
