package fit

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"overdub/internal/audioio"
	"overdub/internal/services"
)

// fakeStretcher simulates the time-stretch primitive: it reads the input
// WAV and writes an output whose length is the input scaled by 1/tempo,
// with an optional sample slop to mimic real-world rounding.
type fakeStretcher struct {
	err        error
	slop       int
	lastTempo  float64
	invocation int
}

func (s *fakeStretcher) Stretch(ctx context.Context, inputPath, outputPath string, tempo float64) error {
	s.invocation++
	s.lastTempo = tempo
	if s.err != nil {
		return s.err
	}
	clip, err := audioio.ReadWAV(inputPath)
	if err != nil {
		return err
	}
	out := int(math.Round(float64(len(clip.Samples))/tempo)) + s.slop
	if out < 0 {
		out = 0
	}
	return audioio.WriteWAV(outputPath, audioio.Silence(out))
}

func writeRawClip(t *testing.T, seconds float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "raw_0.mp3")
	samples := audioio.SecondsToSamples(seconds, audioio.SampleRate)
	clip := audioio.Clip{Samples: make([]int, samples), Rate: audioio.SampleRate}
	for i := range clip.Samples {
		clip.Samples[i] = 1000
	}
	if err := audioio.WriteWAV(path, clip); err != nil {
		t.Fatalf("write raw clip: %v", err)
	}
	return path
}

func TestFitExactSampleCount(t *testing.T) {
	stretcher := &fakeStretcher{slop: 17}
	fitter := NewFitter(stretcher, 1.5, t.TempDir(), nil)

	clipPath := writeRawClip(t, 1.0)
	for _, desired := range []float64{0.5 * 1.5, 1.0, 2.0, 0.731} {
		got, err := fitter.Fit(context.Background(), clipPath, desired)
		if err != nil {
			t.Fatalf("Fit(%g): %v", desired, err)
		}
		want := audioio.SecondsToSamples(desired, audioio.SampleRate)
		if len(got.Samples) != want {
			t.Errorf("Fit(%g) returned %d samples, want %d", desired, len(got.Samples), want)
		}
	}
}

func TestFitClampsRatio(t *testing.T) {
	stretcher := &fakeStretcher{}
	fitter := NewFitter(stretcher, 1.5, t.TempDir(), nil)

	// 1s of speech into a 0.1s window requests ratio 0.1, far below the
	// 1/1.5 floor. The tempo sent to the stretcher must be the clamp's
	// inverse, and padding still delivers the requested duration.
	clipPath := writeRawClip(t, 1.0)
	got, err := fitter.Fit(context.Background(), clipPath, 0.1)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if math.Abs(stretcher.lastTempo-1.5) > 1e-9 {
		t.Errorf("tempo = %g, want 1.5 (clamped)", stretcher.lastTempo)
	}
	want := audioio.SecondsToSamples(0.1, audioio.SampleRate)
	if len(got.Samples) != want {
		t.Errorf("returned %d samples, want %d", len(got.Samples), want)
	}
}

func TestFitDegenerateDuration(t *testing.T) {
	stretcher := &fakeStretcher{}
	fitter := NewFitter(stretcher, 1.5, t.TempDir(), nil)

	clipPath := writeRawClip(t, 1.0)
	got, err := fitter.Fit(context.Background(), clipPath, 0)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if stretcher.invocation != 0 {
		t.Error("degenerate duration should not invoke the stretcher")
	}
	if len(got.Samples) != audioio.SampleRate {
		t.Errorf("returned %d samples, want unaltered %d", len(got.Samples), audioio.SampleRate)
	}
}

func TestFitStretchFailureFallsBack(t *testing.T) {
	stretcher := &fakeStretcher{err: errors.New("stretch exploded")}
	fitter := NewFitter(stretcher, 1.5, t.TempDir(), nil)

	clipPath := writeRawClip(t, 1.0)
	got, err := fitter.Fit(context.Background(), clipPath, 0.5)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if len(got.Samples) != audioio.SampleRate {
		t.Errorf("fallback returned %d samples, want the raw %d", len(got.Samples), audioio.SampleRate)
	}
}

func TestFitMissingClip(t *testing.T) {
	fitter := NewFitter(&fakeStretcher{}, 1.5, t.TempDir(), nil)
	_, err := fitter.Fit(context.Background(), filepath.Join(t.TempDir(), "absent.mp3"), 1.0)
	if !errors.Is(err, services.ErrStretch) {
		t.Fatalf("err = %v, want ErrStretch", err)
	}
}

func TestFitCleansTempFiles(t *testing.T) {
	tempDir := t.TempDir()
	fitter := NewFitter(&fakeStretcher{}, 1.5, tempDir, nil)

	clipPath := writeRawClip(t, 1.0)
	if _, err := fitter.Fit(context.Background(), clipPath, 0.8); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	for _, entry := range entries {
		t.Errorf("leftover temp file %s", entry.Name())
	}
}

func TestFitCleansTempFilesOnFailure(t *testing.T) {
	tempDir := t.TempDir()
	fitter := NewFitter(&fakeStretcher{err: errors.New("boom")}, 1.5, tempDir, nil)

	clipPath := writeRawClip(t, 1.0)
	if _, err := fitter.Fit(context.Background(), clipPath, 0.8); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	for _, entry := range entries {
		t.Errorf("leftover temp file %s after stretch failure", entry.Name())
	}
}
