package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"overdub/internal/clipcache"
	"overdub/internal/logging"
	"overdub/internal/media/ffprobe"
	"overdub/internal/services"
	"overdub/internal/speech"
	"overdub/internal/stage"
	"overdub/internal/subtitles"
)

// planStage parses the subtitle file, resolves the target duration, and
// decides per cue whether its clip is resumed, cached, or needs generation.
// Identical texts are generated once; duplicates wait for the propagation
// pass after generation.
type planStage struct {
	runner *Runner
}

func (s *planStage) Name() string { return "plan" }

func (s *planStage) Prepare(ctx context.Context) error {
	if strings.TrimSpace(s.runner.opts.SubtitlePath) == "" {
		return services.Wrap(services.ErrValidation, "plan", "check inputs", "subtitle path is required", nil)
	}
	if strings.TrimSpace(s.runner.opts.OutputPath) == "" && !s.runner.opts.NoConcat {
		return services.Wrap(services.ErrValidation, "plan", "check inputs", "output path is required", nil)
	}
	return nil
}

func (s *planStage) Execute(ctx context.Context) error {
	r := s.runner
	logger := logging.NewComponentLogger(r.logger, "plan")

	cues, err := subtitles.ParseFile(r.opts.SubtitlePath, r.logger)
	if err != nil {
		return err
	}
	r.cues = cues
	r.stats.Total = len(cues)
	r.target = s.resolveTarget(ctx, logger)

	// Per-key planning state: a key is either backed by a cache entry or
	// scheduled for generation. A failed cache copy falls through to
	// scheduling so every cue keeps a retry path.
	type keyState int
	const (
		keyCached keyState = iota
		keyScheduled
	)
	states := make(map[string]keyState)

	for _, cue := range cues {
		text := cue.DisplayText()
		if text == "" {
			continue
		}
		if r.opts.Resume && r.dir.HasRawClip(cue.Index) {
			r.stats.Resumed++
			r.outcomes[cue.Index] = nil
			continue
		}

		key := clipcache.Key(text)
		r.keyForCue[cue.Index] = key

		state, seen := states[key]
		if seen && state == keyScheduled {
			// Another cue already queued this text.
			continue
		}
		if !seen {
			if _, ok := r.cache.Lookup(key); !ok {
				states[key] = keyScheduled
				r.pending = append(r.pending, speech.Item{CueIndex: cue.Index, Text: text, Key: key})
				continue
			}
			states[key] = keyCached
		}

		if err := r.cache.Materialize(key, r.dir.RawClipPath(cue.Index)); err != nil {
			logger.Warn("cache copy failed, scheduling regeneration",
				logging.Int(logging.FieldCue, cue.Index),
				logging.Error(err))
			states[key] = keyScheduled
			r.pending = append(r.pending, speech.Item{CueIndex: cue.Index, Text: text, Key: key})
			continue
		}
		r.stats.Cached++
		r.outcomes[cue.Index] = nil
	}

	logger.Info("planned generation work",
		logging.Int("cues", len(cues)),
		logging.Int("to_generate", len(r.pending)),
		logging.Int("cached", r.stats.Cached),
		logging.Int("resumed", r.stats.Resumed),
		logging.Float64("target_sec", r.target))
	return nil
}

// resolveTarget picks the external target duration: an explicit value wins
// over probing the reference media. Every failure degrades to "no target".
func (s *planStage) resolveTarget(ctx context.Context, logger *slog.Logger) float64 {
	r := s.runner
	if raw := strings.TrimSpace(r.opts.ExpectedDuration); raw != "" {
		if secs := subtitles.ParseClockDuration(raw); secs > 0 {
			return secs
		}
		logger.Warn("expected duration not parseable, ignoring",
			logging.String("value", raw))
	}
	if media := strings.TrimSpace(r.opts.RefMedia); media != "" {
		result, err := ffprobe.Inspect(ctx, r.cfg.FFprobeBinary(), media)
		if err != nil {
			logger.Warn("reference media probe failed, no target duration",
				logging.String("path", media),
				logging.Error(err))
			return 0
		}
		return result.DurationSeconds()
	}
	return 0
}

func (s *planStage) HealthCheck(ctx context.Context) stage.Health {
	if strings.TrimSpace(s.runner.opts.SubtitlePath) == "" {
		return stage.Unhealthy(s.Name(), "no subtitle path")
	}
	return stage.Healthy(s.Name())
}
