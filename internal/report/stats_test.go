package report

import (
	"strings"
	"testing"
)

func TestTargetAccuracy(t *testing.T) {
	stats := Stats{OutputSeconds: 9, TargetSeconds: 10}
	if got := stats.TargetAccuracy(); got != 90 {
		t.Errorf("accuracy = %g, want 90", got)
	}
	if got := (Stats{OutputSeconds: 9}).TargetAccuracy(); got != 0 {
		t.Errorf("accuracy without target = %g, want 0", got)
	}
}

func TestSummaryLines(t *testing.T) {
	stats := Stats{
		Total:         5,
		Generated:     3,
		Empty:         1,
		LateStarts:    1,
		OutputSeconds: 10,
		TargetSeconds: 10,
	}
	joined := strings.Join(stats.SummaryLines(), "\n")
	for _, want := range []string{
		"Total cues: 5",
		"Generated: 3",
		"Late starts (speed-up): 1",
		"Target match accuracy: 100.00%",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("summary missing %q:\n%s", want, joined)
		}
	}
	if strings.Contains(joined, "Overlaps") {
		t.Error("summary should omit zero overlap count")
	}
}
