package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"overdub/internal/config"
	"overdub/internal/logging"
	"overdub/internal/pipeline"
	"overdub/internal/report"
	"overdub/internal/services"
)

func newDubCommand(ctx *commandContext) *cobra.Command {
	var (
		voice            string
		workDir          string
		keepWork         bool
		resume           bool
		refMedia         string
		expectedDuration string
		maxSpeed         float64
		logFile          string
		logLevel         string
		noConcat         bool
		batchSize        int
		retries          int
		format           string
	)

	cmd := &cobra.Command{
		Use:   "dub <subtitles.srt> <output>",
		Short: "Generate a dubbed audio track from a subtitle file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			subtitlePath, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve subtitle path: %w", err)
			}
			outputPath, err := config.ExpandPath(args[1])
			if err != nil {
				return fmt.Errorf("resolve output path: %w", err)
			}
			outputPath = adjustOutputPath(outputPath, format)

			logger, err := newRunLogger(cfg, outputPath, logFile, logLevel)
			if err != nil {
				return err
			}

			runner := pipeline.NewRunner(cfg, logger, pipeline.RunOptions{
				SubtitlePath:     subtitlePath,
				OutputPath:       outputPath,
				Voice:            voice,
				WorkDir:          workDir,
				KeepWorkDir:      keepWork,
				Resume:           resume,
				RefMedia:         refMedia,
				ExpectedDuration: expectedDuration,
				MaxSpeed:         maxSpeed,
				NoConcat:         noConcat,
				BatchSize:        batchSize,
				Retries:          retries,
				Format:           format,
			})

			stats, runErr := runner.Run(cmd.Context())
			if runErr != nil && services.Fatal(runErr) {
				// Fatal errors abort before any cue was processed.
				return runErr
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderSummaryTable(stats))
			if runErr != nil {
				return runErr
			}
			if !noConcat {
				fmt.Fprintf(out, "Wrote %s\n", outputPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&voice, "voice", "", "Speech voice (overrides configuration)")
	cmd.Flags().StringVar(&workDir, "work-dir", "", "Explicit working directory for this run")
	cmd.Flags().BoolVar(&keepWork, "keep-work", false, "Keep the working directory after the run")
	cmd.Flags().BoolVar(&resume, "resume", false, "Reuse clips already present in the working directory")
	cmd.Flags().StringVar(&refMedia, "ref-media", "", "Reference media file whose duration the output should match")
	cmd.Flags().StringVar(&expectedDuration, "expected-duration", "", "Target duration (HH:MM:SS, MM:SS, or seconds)")
	cmd.Flags().Float64Var(&maxSpeed, "max-speed", 0, "Maximum speed-up when fitting clips (overrides configuration)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Log file path (default: next to the output file)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&noConcat, "no-concat", false, "Stop after generating per-cue clips")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Concurrent synthesis window size (overrides configuration)")
	cmd.Flags().IntVar(&retries, "retries", 0, "Synthesis retries per cue (overrides configuration)")
	cmd.Flags().StringVar(&format, "format", "", "Output container: wav, m4a, or opus")

	return cmd
}

// adjustOutputPath appends the forced format as an extension when the output
// name does not already carry it, so `out.wav --format opus` produces
// out.wav.opus rather than mislabeled audio.
func adjustOutputPath(outputPath, format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		return outputPath
	}
	if strings.ToLower(filepath.Ext(outputPath)) == "."+format {
		return outputPath
	}
	return outputPath + "." + format
}

// newRunLogger logs to stdout plus a per-run file, defaulting to
// `<output basename>.log` next to the output (or under paths.log_dir when
// configured).
func newRunLogger(cfg *config.Config, outputPath, logFile, logLevel string) (*slog.Logger, error) {
	path := strings.TrimSpace(logFile)
	if path == "" {
		base := strings.TrimSuffix(filepath.Base(outputPath), filepath.Ext(outputPath))
		dir := filepath.Dir(outputPath)
		if cfg.Paths.LogDir != "" {
			dir = cfg.Paths.LogDir
		}
		path = filepath.Join(dir, base+".log")
	}

	level := strings.TrimSpace(logLevel)
	if level == "" {
		level = cfg.Logging.Level
	}
	return logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", path},
	})
}

func renderSummaryTable(stats report.Stats) string {
	rows := [][]string{
		{"Total cues", fmt.Sprintf("%d", stats.Total)},
		{"Generated", fmt.Sprintf("%d", stats.Generated)},
		{"Cached (text reuse)", fmt.Sprintf("%d", stats.Cached)},
		{"Resumed", fmt.Sprintf("%d", stats.Resumed)},
		{"Empty cues", fmt.Sprintf("%d", stats.Empty)},
		{"Failed (using silence)", fmt.Sprintf("%d", stats.Failed)},
	}
	if stats.Overlaps > 0 {
		rows = append(rows, []string{"Overlaps detected", fmt.Sprintf("%d", stats.Overlaps)})
	}
	if stats.LateStarts > 0 {
		rows = append(rows, []string{"Late starts (speed-up)", fmt.Sprintf("%d", stats.LateStarts)})
	}
	rows = append(rows, []string{"Output duration", fmt.Sprintf("%.2fs", stats.OutputSeconds)})
	if stats.TargetSeconds > 0 {
		rows = append(rows, []string{"Target match", fmt.Sprintf("%.2f%%", stats.TargetAccuracy())})
	}
	return renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
}
