package pipeline

import (
	"context"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"overdub/internal/fit"
	"overdub/internal/stage"
	"overdub/internal/timeline"
)

// assembleStage runs the sequential synchronization pass over the cue list.
// Skipped entirely in no-concat mode, where the per-cue clips in the work
// directory are the deliverable.
type assembleStage struct {
	runner *Runner
}

func (s *assembleStage) Name() string { return "assemble" }

func (s *assembleStage) Prepare(ctx context.Context) error { return nil }

func (s *assembleStage) Execute(ctx context.Context) error {
	r := s.runner
	if r.opts.NoConcat {
		return nil
	}

	fitter := fit.NewFitter(r.stretcher, r.maxSpeed(), r.dir.Path(), r.logger)
	engine := timeline.NewEngine(fitter, r.logger)

	if isatty.IsTerminal(os.Stdout.Fd()) {
		bar := progressbar.NewOptions(len(r.cues),
			progressbar.OptionSetDescription("assembling"),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionShowCount(),
		)
		engine.SetProgress(func(cue int) { _ = bar.Add(1) })
		defer func() { _ = bar.Finish() }()
	}

	buffer, err := engine.Assemble(ctx, r.cues, r.outcomes, r.dir.RawClipPath, r.target, &r.stats)
	if err != nil {
		return err
	}
	r.buffer = buffer
	return nil
}

func (s *assembleStage) HealthCheck(ctx context.Context) stage.Health {
	if s.runner.opts.NoConcat {
		return stage.Healthy(s.Name())
	}
	if s.runner.stretcher == nil {
		return stage.Unhealthy(s.Name(), "no stretch backend")
	}
	return stage.Healthy(s.Name())
}
