package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func TestAdjustOutputPath(t *testing.T) {
	cases := []struct {
		path   string
		format string
		want   string
	}{
		{"out.wav", "", "out.wav"},
		{"out.wav", "wav", "out.wav"},
		{"out.WAV", "wav", "out.WAV"},
		{"out.wav", "opus", "out.wav.opus"},
		{"out", "m4a", "out.m4a"},
		{"out.m4a", "m4a", "out.m4a"},
	}
	for _, tc := range cases {
		if got := adjustOutputPath(tc.path, tc.format); got != tc.want {
			t.Errorf("adjustOutputPath(%q, %q) = %q, want %q", tc.path, tc.format, got, tc.want)
		}
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	tmp := t.TempDir()
	target := filepath.Join(tmp, "config.toml")

	out, err := runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	out, err = runCLI(t, "config", "init", "--path", target)
	if err == nil {
		t.Fatal("second init without --overwrite should fail")
	}

	out, err = runCLI(t, "config", "validate", "--config", target)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
}

func TestConfigShow(t *testing.T) {
	out, err := runCLI(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "speech.voice")
	requireContains(t, out, "timing.max_speed")
}

func TestCacheStatsAndClear(t *testing.T) {
	workDir := t.TempDir()
	cacheDir := filepath.Join(workDir, "cache")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"cache_aaa.mp3", "cache_bbb.mp3"} {
		if err := os.WriteFile(filepath.Join(cacheDir, name), []byte("clip"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	out, err := runCLI(t, "cache", "stats", "--work-dir", workDir)
	if err != nil {
		t.Fatalf("cache stats: %v", err)
	}
	requireContains(t, out, "Cached clips: 2")

	out, err = runCLI(t, "cache", "clear", "--work-dir", workDir)
	if err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	requireContains(t, out, "Removed 2 cached clips")

	out, err = runCLI(t, "cache", "stats", "--work-dir", workDir)
	if err != nil {
		t.Fatalf("cache stats after clear: %v", err)
	}
	requireContains(t, out, "Cached clips: 0")
}

func TestCacheStatsRequiresWorkDir(t *testing.T) {
	if _, err := runCLI(t, "cache", "stats"); err == nil {
		t.Fatal("cache stats without --work-dir should fail")
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	requireContains(t, out, "overdub")
}

func TestDubRequiresTwoArgs(t *testing.T) {
	if _, err := runCLI(t, "dub", "only.srt"); err == nil {
		t.Fatal("dub with one argument should fail")
	}
}

func TestDubFatalInputSkipsSummary(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.toml")
	cfgContent := "[paths]\nwork_dir = \"" + filepath.Join(tmp, "work") + "\"\nlog_dir = \"" + filepath.Join(tmp, "logs") + "\"\n"
	if err := os.WriteFile(cfgPath, []byte(cfgContent), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "--config", cfgPath,
		"dub", filepath.Join(tmp, "absent.srt"), filepath.Join(tmp, "out.wav"))
	if err == nil {
		t.Fatal("expected error for missing subtitle file")
	}
	if strings.Contains(out, "Total cues") {
		t.Errorf("summary table printed for a run that never started:\n%s", out)
	}
}
