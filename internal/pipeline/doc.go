// Package pipeline orchestrates a dubbing run: plan the work from the
// subtitle file, generate speech clips, assemble the timed waveform, and
// export it. All run state is scoped to a Runner; per-cue failures degrade
// to silence so the run always attempts to produce output.
package pipeline
