package fit

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"overdub/internal/audioio"
	"overdub/internal/logging"
	"overdub/internal/services"
)

// Stretcher is the external time-stretch primitive. Tempo above 1 speeds
// the audio up. Satisfied by the ffmpeg client.
type Stretcher interface {
	Stretch(ctx context.Context, inputPath, outputPath string, tempo float64) error
}

// Fitter adjusts clips to target durations.
type Fitter struct {
	stretcher Stretcher
	maxSpeed  float64
	tempDir   string
	logger    *slog.Logger
}

// NewFitter builds a fitter. maxSpeed bounds compression (1.5 means speech
// may play at most 1.5x faster); slow-down is unbounded. Temporary stretch
// files are created under tempDir and removed on every exit path.
func NewFitter(stretcher Stretcher, maxSpeed float64, tempDir string, logger *slog.Logger) *Fitter {
	if maxSpeed < 1 {
		maxSpeed = 1
	}
	return &Fitter{
		stretcher: stretcher,
		maxSpeed:  maxSpeed,
		tempDir:   tempDir,
		logger:    logging.NewComponentLogger(logger, "fit"),
	}
}

// Fit loads the raw clip and returns a waveform of exactly
// round(desiredSec * rate) samples. A clip that cannot be decoded is an
// error (the engine substitutes silence); a stretch failure degrades to the
// unstretched clip rather than failing the cue.
func (f *Fitter) Fit(ctx context.Context, clipPath string, desiredSec float64) (audioio.Clip, error) {
	clip, err := audioio.ReadClip(clipPath)
	if err != nil {
		return audioio.Clip{}, services.Wrap(services.ErrStretch, "fit", "load clip", clipPath, err)
	}
	if desiredSec <= 0 {
		return clip, nil
	}

	current := clip.Duration()
	if current <= 0 {
		return audioio.Clip{}, services.Wrap(services.ErrStretch, "fit", "load clip",
			clipPath+" decoded to zero samples", nil)
	}

	// The stretch primitive takes an output/input length ratio: below 1
	// speeds up, above 1 slows down.
	ratio := desiredSec / current
	minRatio := 1.0 / f.maxSpeed
	if ratio < minRatio {
		f.logger.Warn("clamped stretch ratio to maximum speed",
			logging.Float64("requested_ratio", ratio),
			logging.Float64("clamped_ratio", minRatio),
			logging.Float64("desired_sec", desiredSec),
			logging.Float64("current_sec", current))
		ratio = minRatio
	}

	stretched, err := f.stretch(ctx, clip, ratio)
	if err != nil {
		f.logger.Error("stretch failed, using unstretched clip", logging.Error(err))
		return clip, nil
	}

	target := audioio.SecondsToSamples(desiredSec, stretched.Rate)
	return stretched.FitExact(target), nil
}

func (f *Fitter) stretch(ctx context.Context, clip audioio.Clip, ratio float64) (audioio.Clip, error) {
	input, err := os.CreateTemp(f.tempDir, "fit_*_in.wav")
	if err != nil {
		return audioio.Clip{}, services.Wrap(services.ErrIO, "fit", "create temp input", "", err)
	}
	inputPath := input.Name()
	input.Close()
	defer os.Remove(inputPath)

	outputPath := inputPath[:len(inputPath)-len("_in.wav")] + "_out.wav"
	defer os.Remove(outputPath)

	if err := audioio.WriteWAV(inputPath, clip); err != nil {
		return audioio.Clip{}, services.Wrap(services.ErrIO, "fit", "write temp input", filepath.Base(inputPath), err)
	}

	// atempo tempo is the inverse of the length ratio.
	if err := f.stretcher.Stretch(ctx, inputPath, outputPath, 1.0/ratio); err != nil {
		return audioio.Clip{}, err
	}

	stretched, err := audioio.ReadWAV(outputPath)
	if err != nil {
		return audioio.Clip{}, services.Wrap(services.ErrStretch, "fit", "load stretched output", filepath.Base(outputPath), err)
	}
	return stretched, nil
}
