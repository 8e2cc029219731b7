package pipeline

import (
	"context"

	"overdub/internal/logging"
	"overdub/internal/render"
	"overdub/internal/stage"
)

// exportStage writes the assembled waveform to the output path and logs the
// run summary.
type exportStage struct {
	runner *Runner
}

func (s *exportStage) Name() string { return "export" }

func (s *exportStage) Prepare(ctx context.Context) error { return nil }

func (s *exportStage) Execute(ctx context.Context) error {
	r := s.runner
	logger := logging.NewComponentLogger(r.logger, "export")
	if r.opts.NoConcat {
		logger.Info("skipping export, per-cue clips kept",
			logging.String("work_dir", r.dir.Path()))
		return nil
	}

	format := render.ResolveFormat(r.opts.OutputPath, s.format())
	renderer := render.NewRenderer(r.transcoder, r.dir.Path(), r.logger)
	if err := renderer.Export(ctx, r.buffer.Concatenate(), r.opts.OutputPath, format); err != nil {
		return err
	}

	for _, line := range r.stats.SummaryLines() {
		logger.Info(line)
	}
	return nil
}

func (s *exportStage) format() string {
	if s.runner.opts.Format != "" {
		return s.runner.opts.Format
	}
	return s.runner.cfg.Output.Format
}

func (s *exportStage) HealthCheck(ctx context.Context) stage.Health {
	if s.runner.opts.NoConcat {
		return stage.Healthy(s.Name())
	}
	if s.runner.transcoder == nil {
		return stage.Unhealthy(s.Name(), "no transcoder")
	}
	return stage.Healthy(s.Name())
}
