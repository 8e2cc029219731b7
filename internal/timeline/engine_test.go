package timeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"overdub/internal/audioio"
	"overdub/internal/report"
	"overdub/internal/subtitles"
)

type fitCall struct {
	path    string
	desired float64
}

// fakeFitter returns exactly the requested duration unless an override maps
// the clip path to a different emitted length (to simulate clips that run
// long) or to a failure.
type fakeFitter struct {
	emit  map[string]float64
	fail  map[string]bool
	calls []fitCall
}

func (f *fakeFitter) Fit(ctx context.Context, clipPath string, desiredSec float64) (audioio.Clip, error) {
	f.calls = append(f.calls, fitCall{path: clipPath, desired: desiredSec})
	if f.fail[clipPath] {
		return audioio.Clip{}, errors.New("unreadable clip")
	}
	seconds := desiredSec
	if override, ok := f.emit[clipPath]; ok {
		seconds = override
	}
	clip := audioio.Silence(audioio.SecondsToSamples(seconds, audioio.SampleRate))
	for i := range clip.Samples {
		clip.Samples[i] = 1
	}
	return clip, nil
}

func testClipPath(i int) string {
	return fmt.Sprintf("raw_%d.mp3", i)
}

func assemble(t *testing.T, fitter *fakeFitter, cues []subtitles.Cue, outcomes map[int]error, target float64) (*Buffer, report.Stats) {
	t.Helper()
	engine := NewEngine(fitter, nil)
	stats := report.Stats{Total: len(cues)}
	buffer, err := engine.Assemble(context.Background(), cues, outcomes, testClipPath, target, &stats)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return buffer, stats
}

func TestAssembleEndToEndScenario(t *testing.T) {
	cues := []subtitles.Cue{
		{Index: 0, Start: 0.0, End: 2.0, Text: "Hello"},
		{Index: 1, Start: 2.0, End: 4.0, Text: ""},
		{Index: 2, Start: 4.0, End: 4.05, Text: "Hi"},
	}
	fitter := &fakeFitter{}
	buffer, stats := assemble(t, fitter, cues, map[int]error{}, 0)

	if buffer.ChunkCount() != 3 {
		t.Errorf("chunk count = %d, want 3 (one per cue, no gaps)", buffer.ChunkCount())
	}
	if stats.Empty != 1 {
		t.Errorf("empty = %d, want 1", stats.Empty)
	}
	if stats.LateStarts != 1 {
		t.Errorf("late_starts = %d, want 1", stats.LateStarts)
	}
	if len(fitter.calls) != 2 {
		t.Fatalf("fit calls = %d, want 2", len(fitter.calls))
	}
	if math.Abs(fitter.calls[0].desired-2.0) > 1e-9 {
		t.Errorf("cue 0 fit duration = %g, want 2.0", fitter.calls[0].desired)
	}
	if fitter.calls[1].desired != MinSegmentDuration {
		t.Errorf("cue 2 fit duration = %g, want clamp to %g", fitter.calls[1].desired, MinSegmentDuration)
	}
	// 2.0s speech + 2.0s silence + 0.05s minimum segment.
	want := int64(audioio.SecondsToSamples(2.0, audioio.SampleRate) +
		audioio.SecondsToSamples(2.0, audioio.SampleRate) +
		audioio.SecondsToSamples(MinSegmentDuration, audioio.SampleRate))
	if buffer.TotalSamples() != want {
		t.Errorf("total samples = %d, want %d", buffer.TotalSamples(), want)
	}
}

func TestAssembleOverlapScenario(t *testing.T) {
	cues := []subtitles.Cue{
		{Index: 0, Start: 0.0, End: 5.0, Text: "first"},
		{Index: 1, Start: 5.0, End: 7.0, Text: "second"},
	}
	// Cue 0's clip runs long, pushing the clock to 5.2s.
	fitter := &fakeFitter{emit: map[string]float64{testClipPath(0): 5.2}}
	buffer, stats := assemble(t, fitter, cues, map[int]error{}, 0)

	if stats.Overlaps != 1 {
		t.Errorf("overlaps = %d, want 1", stats.Overlaps)
	}
	// No rewind: cue 1's fit duration is measured from the live clock.
	if got := fitter.calls[1].desired; math.Abs(got-1.8) > 1e-9 {
		t.Errorf("cue 1 fit duration = %g, want 7.0 - 5.2 = 1.8", got)
	}
	wantTotal := int64(audioio.SecondsToSamples(5.2, audioio.SampleRate) +
		audioio.SecondsToSamples(7.0-5.2, audioio.SampleRate))
	if buffer.TotalSamples() != wantTotal {
		t.Errorf("total samples = %d, want %d", buffer.TotalSamples(), wantTotal)
	}
}

func TestAssembleTargetPadding(t *testing.T) {
	cues := []subtitles.Cue{{Index: 0, Start: 0.0, End: 9.0, Text: "speech"}}
	fitter := &fakeFitter{}
	buffer, stats := assemble(t, fitter, cues, map[int]error{}, 10.0)

	if buffer.ChunkCount() != 2 {
		t.Errorf("chunk count = %d, want 2 (speech + terminal padding)", buffer.ChunkCount())
	}
	if got := buffer.Clock(); math.Abs(got-10.0) > 1e-9 {
		t.Errorf("final clock = %g, want 10.0", got)
	}
	if got := stats.TargetAccuracy(); math.Abs(got-100.0) > 1e-6 {
		t.Errorf("accuracy = %g, want 100", got)
	}
}

func TestAssembleTargetOverrunNotTruncated(t *testing.T) {
	cues := []subtitles.Cue{{Index: 0, Start: 0.0, End: 12.0, Text: "speech"}}
	fitter := &fakeFitter{}
	buffer, _ := assemble(t, fitter, cues, map[int]error{}, 10.0)

	if got := buffer.Clock(); math.Abs(got-12.0) > 1e-9 {
		t.Errorf("final clock = %g, want 12.0 (no truncation)", got)
	}
}

func TestAssembleFailedCueFallsToSilence(t *testing.T) {
	cues := []subtitles.Cue{
		{Index: 0, Start: 0.0, End: 2.0, Text: "ok"},
		{Index: 1, Start: 2.0, End: 5.0, Text: "broken"},
		{Index: 2, Start: 5.0, End: 6.0, Text: "ok again"},
	}
	outcomes := map[int]error{1: errors.New("network down")}
	fitter := &fakeFitter{}
	buffer, stats := assemble(t, fitter, cues, outcomes, 0)

	if stats.Failed != 1 {
		t.Errorf("failed = %d, want 1", stats.Failed)
	}
	// The failed cue contributes span silence, keeping cue 2 on schedule.
	if got := buffer.Clock(); math.Abs(got-6.0) > 1e-9 {
		t.Errorf("final clock = %g, want 6.0", got)
	}
	for _, call := range fitter.calls {
		if call.path == testClipPath(1) {
			t.Error("failed cue must not be fitted")
		}
	}
}

func TestAssembleUnreadableClipFallsToSilence(t *testing.T) {
	cues := []subtitles.Cue{{Index: 0, Start: 0.0, End: 3.0, Text: "speech"}}
	fitter := &fakeFitter{fail: map[string]bool{testClipPath(0): true}}
	buffer, stats := assemble(t, fitter, cues, map[int]error{}, 0)

	if stats.Failed != 1 {
		t.Errorf("failed = %d, want 1", stats.Failed)
	}
	if buffer.ChunkCount() != 1 {
		t.Errorf("chunk count = %d, want 1", buffer.ChunkCount())
	}
	if got := buffer.Clock(); math.Abs(got-3.0) > 1e-9 {
		t.Errorf("final clock = %g, want span silence of 3.0", got)
	}
}

func TestAssembleChunkAccounting(t *testing.T) {
	cues := []subtitles.Cue{
		{Index: 0, Start: 0.5, End: 1.5, Text: "a"},
		{Index: 1, Start: 3.0, End: 4.0, Text: "b"},
		{Index: 2, Start: 4.0, End: 5.0, Text: ""},
		{Index: 3, Start: 6.0, End: 7.0, Text: "c"},
	}
	fitter := &fakeFitter{}
	buffer, _ := assemble(t, fitter, cues, map[int]error{}, 8.0)

	// One content chunk per cue, at most one pre-gap per cue, at most one
	// terminal padding chunk.
	if min, max := len(cues), 2*len(cues)+1; buffer.ChunkCount() < min || buffer.ChunkCount() > max {
		t.Errorf("chunk count = %d, want within [%d, %d]", buffer.ChunkCount(), min, max)
	}

	// The clock equals the summed chunk durations exactly.
	concatenated := buffer.Concatenate()
	if int64(len(concatenated.Samples)) != buffer.TotalSamples() {
		t.Errorf("concatenated %d samples, buffer reports %d",
			len(concatenated.Samples), buffer.TotalSamples())
	}
}

func TestAssembleClockMonotonic(t *testing.T) {
	cues := []subtitles.Cue{
		{Index: 0, Start: 0.0, End: 1.0, Text: "a"},
		{Index: 1, Start: 0.5, End: 1.2, Text: "b"}, // overlapping start
		{Index: 2, Start: 0.9, End: 1.1, Text: "c"}, // window already passed
	}
	fitter := &fakeFitter{}
	engine := NewEngine(fitter, nil)
	stats := report.Stats{Total: len(cues)}

	buffer, err := engine.Assemble(context.Background(), cues, map[int]error{}, testClipPath, 0, &stats)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	var clocks []float64
	total := int64(0)
	for _, chunk := range buffer.chunks {
		total += int64(len(chunk.Samples))
		clocks = append(clocks, float64(total)/float64(audioio.SampleRate))
	}
	for i := 1; i < len(clocks); i++ {
		if clocks[i] < clocks[i-1] {
			t.Fatalf("clock moved backward at chunk %d: %g -> %g", i, clocks[i-1], clocks[i])
		}
	}
	if stats.Overlaps == 0 || stats.LateStarts == 0 {
		t.Errorf("expected overlap and late-start events, got overlaps=%d late=%d",
			stats.Overlaps, stats.LateStarts)
	}
}

func TestAssembleCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine := NewEngine(&fakeFitter{}, nil)
	stats := report.Stats{}
	_, err := engine.Assemble(ctx, []subtitles.Cue{{Index: 0, End: 1, Text: "x"}}, nil, testClipPath, 0, &stats)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
