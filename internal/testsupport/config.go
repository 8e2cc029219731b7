// Package testsupport holds shared helpers for package tests: config
// builders, stub binaries, and audio fixtures.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"overdub/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithVoice sets the speech voice on the test config.
func WithVoice(voice string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Speech.Voice = voice
	}
}

// WithMaxSpeed sets the fitting speed bound on the test config.
func WithMaxSpeed(maxSpeed float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Timing.MaxSpeed = maxSpeed
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
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

		oldPath := os.Getenv("PATH")
		newPath := binDir
		if oldPath != "" {
			newPath = binDir + string(os.PathListSeparator) + oldPath
		}
		b.t.Setenv("PATH", newPath)
	}
}
