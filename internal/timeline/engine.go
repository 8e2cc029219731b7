package timeline

import (
	"context"
	"log/slog"

	"overdub/internal/audioio"
	"overdub/internal/logging"
	"overdub/internal/report"
	"overdub/internal/subtitles"
)

const (
	// OverlapThreshold is the clock slack below a cue's nominal start
	// before the engine records an overlap.
	OverlapThreshold = 0.01
	// MinSegmentDuration is the smallest fit target; cues whose window
	// has already passed are clamped to it instead of requesting a
	// near-zero duration.
	MinSegmentDuration = 0.05
	// FinalPaddingThreshold is the minimum shortfall against an external
	// target duration that triggers trailing silence.
	FinalPaddingThreshold = 0.01
	// ExcessWarningThreshold is how far the output may overrun the target
	// before a warning is logged. Overruns are never truncated.
	ExcessWarningThreshold = 1.0
)

// Fitter produces a waveform of the requested duration from a raw clip.
type Fitter interface {
	Fit(ctx context.Context, clipPath string, desiredSec float64) (audioio.Clip, error)
}

// Engine walks the cue list and assembles the output buffer.
type Engine struct {
	fitter   Fitter
	logger   *slog.Logger
	progress func(cue int)
}

// NewEngine builds an engine around a fitter.
func NewEngine(fitter Fitter, logger *slog.Logger) *Engine {
	return &Engine{
		fitter: fitter,
		logger: logging.NewComponentLogger(logger, "timeline"),
	}
}

// SetProgress installs an optional per-cue progress callback.
func (e *Engine) SetProgress(fn func(cue int)) {
	e.progress = fn
}

// Assemble runs the sequential synchronization pass. outcomes maps cue
// index to a generation error (nil means a usable raw clip exists);
// clipPath resolves a cue index to its raw clip location; targetSec is the
// externally supplied total duration, 0 when none. Every cue contributes
// exactly one content chunk; the clock never moves backward. Counters are
// recorded into stats.
func (e *Engine) Assemble(
	ctx context.Context,
	cues []subtitles.Cue,
	outcomes map[int]error,
	clipPath func(int) string,
	targetSec float64,
	stats *report.Stats,
) (*Buffer, error) {
	buffer := &Buffer{}

	for _, cue := range cues {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.progress != nil {
			e.progress(cue.Index)
		}

		// Silence up to the cue's nominal start; on overlap, continue
		// from the live clock without rewinding.
		gap := cue.Start - buffer.Clock()
		if gap > 0 {
			buffer.Append(audioio.Silence(audioio.SecondsToSamples(gap, audioio.SampleRate)))
		} else if gap < -OverlapThreshold {
			stats.Overlaps++
			e.logger.Warn("cue overlaps emitted audio",
				logging.Int(logging.FieldCue, cue.Index),
				logging.Float64("clock_sec", buffer.Clock()),
				logging.Float64("start_sec", cue.Start))
		}

		if cue.DisplayText() == "" {
			stats.Empty++
			needed := cue.End - buffer.Clock()
			buffer.Append(audioio.Silence(audioio.SecondsToSamples(needed, audioio.SampleRate)))
			continue
		}

		if err := outcomes[cue.Index]; err != nil {
			stats.Failed++
			e.logger.Debug("substituting silence for failed cue",
				logging.Int(logging.FieldCue, cue.Index),
				logging.Error(err))
			buffer.Append(audioio.Silence(audioio.SecondsToSamples(cue.Span(), audioio.SampleRate)))
			continue
		}

		// Target the time remaining until the cue's end as measured from
		// the live clock, not the nominal start. This absorbs upstream
		// drift cue by cue.
		targetDur := cue.End - buffer.Clock()
		if targetDur < MinSegmentDuration {
			stats.LateStarts++
			e.logger.Warn("cue starts late, forcing maximum compression",
				logging.Int(logging.FieldCue, cue.Index),
				logging.Float64("remaining_sec", targetDur))
			targetDur = MinSegmentDuration
		}

		fitted, err := e.fitter.Fit(ctx, clipPath(cue.Index), targetDur)
		if err != nil {
			stats.Failed++
			e.logger.Error("clip unusable, substituting silence",
				logging.Int(logging.FieldCue, cue.Index),
				logging.Error(err))
			buffer.Append(audioio.Silence(audioio.SecondsToSamples(cue.Span(), audioio.SampleRate)))
			continue
		}
		buffer.Append(fitted)
	}

	e.finalize(buffer, targetSec, stats)
	return buffer, nil
}

// finalize pads the output up to an external target duration. Overruns are
// only warned about: truncating would cut speech.
func (e *Engine) finalize(buffer *Buffer, targetSec float64, stats *report.Stats) {
	if targetSec > 0 {
		missing := targetSec - buffer.Clock()
		switch {
		case missing > FinalPaddingThreshold:
			e.logger.Info("adding final padding",
				logging.Float64("padding_sec", missing))
			buffer.Append(audioio.Silence(audioio.SecondsToSamples(missing, audioio.SampleRate)))
		case missing < -ExcessWarningThreshold:
			e.logger.Warn("output exceeds target duration",
				logging.Float64("output_sec", buffer.Clock()),
				logging.Float64("target_sec", targetSec))
		}
	}

	stats.OutputSeconds = buffer.Clock()
	stats.TargetSeconds = targetSec
}
