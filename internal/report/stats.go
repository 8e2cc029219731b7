package report

import "fmt"

// Stats tracks per-run counters. The planning phase fills Generated,
// Cached, and Resumed; the synchronization engine fills Failed, Empty,
// Overlaps, and LateStarts.
type Stats struct {
	Total      int
	Generated  int
	Cached     int
	Resumed    int
	Failed     int
	Empty      int
	Overlaps   int
	LateStarts int

	OutputSeconds float64
	TargetSeconds float64
}

// TargetAccuracy returns how closely the output duration matched the target
// as a percentage. Zero when no target was supplied.
func (s Stats) TargetAccuracy() float64 {
	if s.TargetSeconds <= 0 {
		return 0
	}
	return s.OutputSeconds / s.TargetSeconds * 100
}

// SummaryLines renders the processing summary emitted at the end of every
// run, including partially failed ones.
func (s Stats) SummaryLines() []string {
	lines := []string{
		"Processing Summary:",
		fmt.Sprintf("  Total cues: %d", s.Total),
		fmt.Sprintf("  Generated: %d", s.Generated),
		fmt.Sprintf("  Cached (text reuse): %d", s.Cached),
		fmt.Sprintf("  Resumed: %d", s.Resumed),
		fmt.Sprintf("  Empty cues: %d", s.Empty),
		fmt.Sprintf("  Failed (using silence): %d", s.Failed),
	}
	if s.Overlaps > 0 {
		lines = append(lines, fmt.Sprintf("  Overlaps detected: %d", s.Overlaps))
	}
	if s.LateStarts > 0 {
		lines = append(lines, fmt.Sprintf("  Late starts (speed-up): %d", s.LateStarts))
	}
	lines = append(lines, fmt.Sprintf("  Output audio duration: %.2fs", s.OutputSeconds))
	if s.TargetSeconds > 0 {
		lines = append(lines, fmt.Sprintf("  Target match accuracy: %.2f%%", s.TargetAccuracy()))
	}
	return lines
}
