package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"overdub/internal/audioio"
)

// WriteSRT writes subtitle content to path, creating parent directories.
func WriteSRT(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteSilenceWAV writes a mono 16-bit WAV of the given duration at the
// pipeline sample rate.
func WriteSilenceWAV(t testing.TB, path string, seconds float64) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	clip := audioio.Silence(audioio.SecondsToSamples(seconds, audioio.SampleRate))
	if err := audioio.WriteWAV(path, clip); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
