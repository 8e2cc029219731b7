package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"overdub/internal/clipcache"
	"overdub/internal/config"
	"overdub/internal/fit"
	"overdub/internal/ledger"
	"overdub/internal/logging"
	"overdub/internal/media/ffmpeg"
	"overdub/internal/notify"
	"overdub/internal/render"
	"overdub/internal/report"
	"overdub/internal/services"
	"overdub/internal/speech"
	"overdub/internal/stage"
	"overdub/internal/subtitles"
	"overdub/internal/timeline"
	"overdub/internal/workdir"
)

// RunOptions carries the per-run inputs resolved from CLI flags. Zero
// values fall back to the configuration.
type RunOptions struct {
	SubtitlePath     string
	OutputPath       string
	Voice            string
	WorkDir          string
	KeepWorkDir      bool
	Resume           bool
	RefMedia         string
	ExpectedDuration string
	MaxSpeed         float64
	NoConcat         bool
	BatchSize        int
	Retries          int
	Format           string
}

// RunnerOption customizes a Runner, mainly to inject fakes in tests.
type RunnerOption func(*Runner)

// WithSynthesizer replaces the speech backend.
func WithSynthesizer(synth speech.Synthesizer) RunnerOption {
	return func(r *Runner) { r.synth = synth }
}

// WithStretcher replaces the time-stretch primitive.
func WithStretcher(stretcher fit.Stretcher) RunnerOption {
	return func(r *Runner) { r.stretcher = stretcher }
}

// WithTranscoder replaces the export transcoder.
func WithTranscoder(transcoder render.Transcoder) RunnerOption {
	return func(r *Runner) { r.transcoder = transcoder }
}

// WithNotifier replaces the notification service.
func WithNotifier(notifier notify.Service) RunnerOption {
	return func(r *Runner) { r.notifier = notifier }
}

// WithLedger replaces the run-history store. Passing nil disables history.
func WithLedger(store *ledger.Store) RunnerOption {
	return func(r *Runner) {
		r.history = store
		r.historySet = true
	}
}

// Runner owns the state of one dubbing run.
type Runner struct {
	cfg    *config.Config
	opts   RunOptions
	logger *slog.Logger

	synth      speech.Synthesizer
	stretcher  fit.Stretcher
	transcoder render.Transcoder
	notifier   notify.Service
	history     *ledger.Store
	historySet  bool
	ownsHistory bool

	dir     *workdir.Dir
	cache   *clipcache.Store
	cues    []subtitles.Cue
	target  float64
	pending []speech.Item
	// keyForCue maps every non-empty, non-resumed cue to its text key.
	keyForCue map[int]string
	outcomes  map[int]error
	buffer    *timeline.Buffer
	stats     report.Stats
	runID     string
	startedAt time.Time
}

// NewRunner builds a runner for one dub. The default component wiring uses
// the configured ffmpeg binary and the Edge speech backend.
func NewRunner(cfg *config.Config, logger *slog.Logger, opts RunOptions, runnerOpts ...RunnerOption) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	runner := &Runner{
		cfg:       cfg,
		opts:      opts,
		logger:    logger,
		keyForCue: make(map[int]string),
		outcomes:  make(map[int]error),
	}
	for _, opt := range runnerOpts {
		opt(runner)
	}

	if runner.synth == nil {
		runner.synth = speech.NewEdgeSynthesizer(runner.voice())
	}
	if runner.stretcher == nil || runner.transcoder == nil {
		cli := ffmpeg.NewCLI(ffmpeg.WithBinary(cfg.FFmpegBinary()))
		if runner.stretcher == nil {
			runner.stretcher = cli
		}
		if runner.transcoder == nil {
			runner.transcoder = cli
		}
	}
	if runner.notifier == nil {
		runner.notifier = notify.NewService(cfg)
	}
	return runner
}

func (r *Runner) voice() string {
	if r.opts.Voice != "" {
		return r.opts.Voice
	}
	return r.cfg.Speech.Voice
}

func (r *Runner) maxSpeed() float64 {
	if r.opts.MaxSpeed > 0 {
		return r.opts.MaxSpeed
	}
	return r.cfg.Timing.MaxSpeed
}

func (r *Runner) batchSize() int {
	if r.opts.BatchSize > 0 {
		return r.opts.BatchSize
	}
	return r.cfg.Speech.BatchSize
}

func (r *Runner) retryPolicy() speech.RetryPolicy {
	if r.opts.Retries > 0 {
		return speech.RetryPolicy{Attempts: r.opts.Retries + 1}
	}
	if r.cfg.Speech.Retries > 0 {
		return speech.RetryPolicy{Attempts: r.cfg.Speech.Retries + 1}
	}
	return speech.DefaultRetryPolicy()
}

// Stats returns the counters accumulated so far.
func (r *Runner) Stats() report.Stats {
	return r.stats
}

// Run executes the full pipeline and returns the final counters. The
// returned error is nil when an output file was produced, even if some cues
// fell back to silence.
func (r *Runner) Run(ctx context.Context) (report.Stats, error) {
	r.runID = uuid.NewString()
	r.startedAt = time.Now()
	ctx = services.WithRunID(ctx, r.runID)
	runLogger := r.logger.With(logging.String(logging.FieldRunID, r.runID))

	r.openHistory()
	historyID := r.recordStart(ctx)

	err := r.execute(ctx, runLogger)

	r.recordFinish(ctx, historyID, err)
	if r.ownsHistory {
		_ = r.history.Close()
	}
	if err != nil {
		if notifyErr := r.notifier.NotifyRunFailed(ctx, err, r.opts.SubtitlePath); notifyErr != nil {
			runLogger.Warn("failure notification not delivered", logging.Error(notifyErr))
		}
		return r.stats, err
	}
	if notifyErr := r.notifier.NotifyRunCompleted(ctx, r.opts.OutputPath, r.stats, time.Since(r.startedAt)); notifyErr != nil {
		runLogger.Warn("completion notification not delivered", logging.Error(notifyErr))
	}
	return r.stats, nil
}

func (r *Runner) execute(ctx context.Context, runLogger *slog.Logger) error {
	dirPath, err := workdir.Resolve(r.cfg.Paths.WorkDir, r.opts.WorkDir, r.opts.SubtitlePath)
	if err != nil {
		return err
	}
	dir, err := workdir.Open(dirPath, runLogger)
	if err != nil {
		return err
	}
	r.dir = dir
	keep := r.opts.KeepWorkDir || r.cfg.Output.KeepWorkDir || r.opts.NoConcat
	defer func() {
		if cleanupErr := dir.Cleanup(keep); cleanupErr != nil {
			runLogger.Warn("working directory cleanup failed", logging.Error(cleanupErr))
		}
	}()

	cache, err := clipcache.NewStore(dir.CachePath(), runLogger)
	if err != nil {
		return err
	}
	r.cache = cache

	stages := []stage.Handler{
		&planStage{runner: r},
		&generateStage{runner: r},
		&assembleStage{runner: r},
		&exportStage{runner: r},
	}
	for _, handler := range stages {
		stageCtx := services.WithStage(ctx, handler.Name())
		stageLogger := runLogger.With(logging.String(logging.FieldStage, handler.Name()))
		stageLogger.Info("stage started")
		if err := handler.Prepare(stageCtx); err != nil {
			return err
		}
		if err := handler.Execute(stageCtx); err != nil {
			return err
		}
		stageLogger.Info("stage finished")

		if handler.Name() == "plan" {
			if err := r.notifier.NotifyRunStarted(ctx, r.opts.SubtitlePath, len(r.cues)); err != nil {
				runLogger.Warn("start notification not delivered", logging.Error(err))
			}
		}
	}

	if keep {
		runLogger.Info("working directory kept",
			logging.String("path", dir.Path()),
			logging.Int("cached_clips", cache.Count()),
			logging.String("cache_size", humanize.IBytes(uint64(cache.SizeBytes()))))
	}
	return nil
}

// HealthCheck reports the readiness of every stage without running any.
func (r *Runner) HealthCheck(ctx context.Context) []stage.Health {
	stages := []stage.Handler{
		&planStage{runner: r},
		&generateStage{runner: r},
		&assembleStage{runner: r},
		&exportStage{runner: r},
	}
	health := make([]stage.Health, 0, len(stages))
	for _, handler := range stages {
		health = append(health, handler.HealthCheck(ctx))
	}
	return health
}

func (r *Runner) openHistory() {
	if r.historySet || r.history != nil {
		return
	}
	if err := os.MkdirAll(r.cfg.Paths.WorkDir, 0o755); err != nil {
		r.logger.Warn("run history unavailable", logging.Error(err))
		return
	}
	store, err := ledger.Open(filepath.Join(r.cfg.Paths.WorkDir, "ledger.db"))
	if err != nil {
		r.logger.Warn("run history unavailable", logging.Error(err))
		return
	}
	r.history = store
	r.ownsHistory = true
}

func (r *Runner) recordStart(ctx context.Context) string {
	if r.history == nil {
		return ""
	}
	id, err := r.history.RecordStart(ctx, r.opts.SubtitlePath, r.opts.OutputPath, r.voice())
	if err != nil {
		r.logger.Warn("run history write failed", logging.Error(err))
		return ""
	}
	return id
}

func (r *Runner) recordFinish(ctx context.Context, historyID string, runErr error) {
	if r.history == nil || historyID == "" {
		return
	}
	if err := r.history.RecordFinish(ctx, historyID, r.stats, runErr); err != nil {
		r.logger.Warn("run history write failed", logging.Error(err))
	}
}
