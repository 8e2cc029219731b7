package pipeline

import (
	"context"

	"overdub/internal/logging"
	"overdub/internal/services"
	"overdub/internal/speech"
	"overdub/internal/stage"
)

// generateStage synthesizes the pending unique texts in windowed batches,
// then propagates cache entries to every cue still missing its raw clip.
type generateStage struct {
	runner *Runner
}

func (s *generateStage) Name() string { return "generate" }

func (s *generateStage) Prepare(ctx context.Context) error { return nil }

func (s *generateStage) Execute(ctx context.Context) error {
	r := s.runner
	logger := logging.NewComponentLogger(r.logger, "generate")

	generator := speech.NewGenerator(r.synth, r.cache, r.retryPolicy(),
		r.cfg.Speech.RequestsPerMinute, r.logger)
	results := generator.GenerateBatch(ctx, r.pending, r.batchSize())
	if err := ctx.Err(); err != nil {
		return err
	}

	// Results are keyed by the scheduling cue; fold them down to per-key
	// outcomes so duplicates inherit them.
	keyResults := make(map[string]error, len(r.pending))
	for _, item := range r.pending {
		err := results[item.CueIndex]
		keyResults[item.Key] = err
		if err == nil {
			r.stats.Generated++
		}
	}

	// Propagation: every cue that still has no outcome copies its clip out
	// of the cache. Duplicates resolved here count as text reuse.
	generating := make(map[int]bool, len(r.pending))
	for _, item := range r.pending {
		generating[item.CueIndex] = true
	}
	for index, key := range r.keyForCue {
		if _, done := r.outcomes[index]; done {
			continue
		}
		if err := keyResults[key]; err != nil {
			r.outcomes[index] = err
			continue
		}
		if err := r.cache.Materialize(key, r.dir.RawClipPath(index)); err != nil {
			logger.Warn("raw clip copy failed",
				logging.Int(logging.FieldCue, index),
				logging.Error(err))
			r.outcomes[index] = services.Wrap(services.ErrIO, "generate", "materialize clip", key, err)
			continue
		}
		r.outcomes[index] = nil
		if !generating[index] {
			r.stats.Cached++
		}
	}

	logger.Info("generation complete",
		logging.Int("generated", r.stats.Generated),
		logging.Int("cached", r.stats.Cached),
		logging.Int("failed_keys", len(keyResults)-r.stats.Generated))
	return nil
}

func (s *generateStage) HealthCheck(ctx context.Context) stage.Health {
	if s.runner.synth == nil {
		return stage.Unhealthy(s.Name(), "no speech backend")
	}
	return stage.Healthy(s.Name())
}
