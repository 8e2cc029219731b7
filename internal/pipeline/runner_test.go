package pipeline

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"overdub/internal/audioio"
	"overdub/internal/testsupport"
)

// fakeSynth produces a fixed-length waveform for every text and records the
// calls it receives.
type fakeSynth struct {
	mu      sync.Mutex
	calls   []string
	seconds float64
	failFor string
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	if f.failFor != "" && strings.Contains(text, f.failFor) {
		return nil, errors.New("synthesis rejected")
	}
	return wavBytes(f.seconds), nil
}

func (f *fakeSynth) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func wavBytes(seconds float64) []byte {
	dir, err := os.MkdirTemp("", "overdub-clip")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "clip.wav")
	samples := audioio.SecondsToSamples(seconds, audioio.SampleRate)
	clip := audioio.Clip{Samples: make([]int, samples), Rate: audioio.SampleRate}
	for i := range clip.Samples {
		clip.Samples[i] = 512
	}
	if err := audioio.WriteWAV(path, clip); err != nil {
		panic(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	return data
}

// fakeStretcher scales the input by 1/tempo, mimicking ffmpeg atempo.
type fakeStretcher struct{}

func (fakeStretcher) Stretch(ctx context.Context, inputPath, outputPath string, tempo float64) error {
	clip, err := audioio.ReadWAV(inputPath)
	if err != nil {
		return err
	}
	out := int(math.Round(float64(len(clip.Samples)) / tempo))
	return audioio.WriteWAV(outputPath, audioio.Silence(out))
}

type fakeTranscoder struct{}

func (fakeTranscoder) Transcode(ctx context.Context, inputPath, outputPath, format string) error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, data, 0o644)
}

const threeCueSRT = `1
00:00:00,000 --> 00:00:01,000
Hello

2
00:00:01,500 --> 00:00:02,500
Hello

3
00:00:03,000 --> 00:00:04,000
World
`

func newTestRunner(t *testing.T, opts RunOptions, synth *fakeSynth) *Runner {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return NewRunner(cfg, nil, opts,
		WithSynthesizer(synth),
		WithStretcher(fakeStretcher{}),
		WithTranscoder(fakeTranscoder{}),
	)
}

func TestRunEndToEnd(t *testing.T) {
	base := t.TempDir()
	srt := filepath.Join(base, "input.srt")
	testsupport.WriteSRT(t, srt, threeCueSRT)
	out := filepath.Join(base, "out.wav")

	synth := &fakeSynth{seconds: 0.8}
	runner := newTestRunner(t, RunOptions{SubtitlePath: srt, OutputPath: out}, synth)

	stats, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if synth.callCount() != 2 {
		t.Errorf("synthesizer called %d times, want 2 (duplicate text reused)", synth.callCount())
	}
	if stats.Total != 3 || stats.Generated != 2 || stats.Cached != 1 || stats.Failed != 0 {
		t.Errorf("stats = %+v", stats)
	}

	clip, err := audioio.ReadWAV(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want := audioio.SecondsToSamples(4.0, audioio.SampleRate)
	if len(clip.Samples) != want {
		t.Errorf("output samples = %d, want %d", len(clip.Samples), want)
	}
}

func TestRunTargetDurationPads(t *testing.T) {
	base := t.TempDir()
	srt := filepath.Join(base, "input.srt")
	testsupport.WriteSRT(t, srt, threeCueSRT)
	out := filepath.Join(base, "out.wav")

	runner := newTestRunner(t, RunOptions{
		SubtitlePath:     srt,
		OutputPath:       out,
		ExpectedDuration: "10",
	}, &fakeSynth{seconds: 0.8})

	stats, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.TargetSeconds != 10 {
		t.Errorf("TargetSeconds = %g, want 10", stats.TargetSeconds)
	}

	clip, err := audioio.ReadWAV(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want := audioio.SecondsToSamples(10, audioio.SampleRate)
	if len(clip.Samples) != want {
		t.Errorf("output samples = %d, want %d", len(clip.Samples), want)
	}
}

func TestRunResumeSkipsGeneration(t *testing.T) {
	base := t.TempDir()
	srt := filepath.Join(base, "input.srt")
	testsupport.WriteSRT(t, srt, threeCueSRT)
	out := filepath.Join(base, "out.wav")
	workDir := filepath.Join(base, "run")

	first := &fakeSynth{seconds: 0.8}
	runner := newTestRunner(t, RunOptions{
		SubtitlePath: srt,
		OutputPath:   out,
		WorkDir:      workDir,
		KeepWorkDir:  true,
	}, first)
	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	second := &fakeSynth{seconds: 0.8}
	resumed := newTestRunner(t, RunOptions{
		SubtitlePath: srt,
		OutputPath:   out,
		WorkDir:      workDir,
		Resume:       true,
	}, second)
	stats, err := resumed.Run(context.Background())
	if err != nil {
		t.Fatalf("resumed Run: %v", err)
	}

	if second.callCount() != 0 {
		t.Errorf("resume still called the synthesizer %d times", second.callCount())
	}
	if stats.Resumed != 3 {
		t.Errorf("Resumed = %d, want 3", stats.Resumed)
	}
}

func TestRunFailedCueFallsBackToSilence(t *testing.T) {
	base := t.TempDir()
	srt := filepath.Join(base, "input.srt")
	testsupport.WriteSRT(t, srt, threeCueSRT)
	out := filepath.Join(base, "out.wav")

	synth := &fakeSynth{seconds: 0.8, failFor: "World"}
	runner := newTestRunner(t, RunOptions{
		SubtitlePath: srt,
		OutputPath:   out,
		Retries:      1,
	}, synth)

	stats, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run should degrade, not fail: %v", err)
	}
	if stats.Failed != 1 {
		t.Errorf("Failed = %d, want 1", stats.Failed)
	}
	if stats.Generated != 1 {
		t.Errorf("Generated = %d, want 1", stats.Generated)
	}

	clip, err := audioio.ReadWAV(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want := audioio.SecondsToSamples(4.0, audioio.SampleRate)
	if len(clip.Samples) != want {
		t.Errorf("output samples = %d, want %d (failed cue spans silence)", len(clip.Samples), want)
	}
}

func TestRunNoConcatStopsAfterGeneration(t *testing.T) {
	base := t.TempDir()
	srt := filepath.Join(base, "input.srt")
	testsupport.WriteSRT(t, srt, threeCueSRT)
	out := filepath.Join(base, "out.wav")
	workDir := filepath.Join(base, "run")

	runner := newTestRunner(t, RunOptions{
		SubtitlePath: srt,
		OutputPath:   out,
		WorkDir:      workDir,
		NoConcat:     true,
	}, &fakeSynth{seconds: 0.8})

	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(out); !errors.Is(err, os.ErrNotExist) {
		t.Error("no-concat mode should not write the output file")
	}
	// Cue indices are zero-based, so three cues produce raw_0 through raw_2.
	for _, index := range []int{0, 1, 2} {
		name := "raw_" + strconv.Itoa(index) + ".mp3"
		if _, err := os.Stat(filepath.Join(workDir, name)); err != nil {
			t.Errorf("raw clip %d missing after no-concat run: %v", index, err)
		}
	}
	if _, err := os.Stat(filepath.Join(workDir, "raw_3.mp3")); !errors.Is(err, os.ErrNotExist) {
		t.Error("unexpected raw clip beyond the last cue index")
	}
}

func TestRunMissingSubtitleFails(t *testing.T) {
	base := t.TempDir()
	runner := newTestRunner(t, RunOptions{
		SubtitlePath: filepath.Join(base, "absent.srt"),
		OutputPath:   filepath.Join(base, "out.wav"),
	}, &fakeSynth{seconds: 0.8})

	if _, err := runner.Run(context.Background()); err == nil {
		t.Fatal("expected error for missing subtitle file")
	}
}
