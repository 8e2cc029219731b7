package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"overdub/internal/services"
)

var commandContext = exec.CommandContext

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if strings.TrimSpace(binary) != "" {
			c.binary = binary
		}
	}
}

// CLI wraps the ffmpeg command-line tool.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "ffmpeg"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Stretch time-scales the input audio by the given tempo factor and writes
// the result to outputPath. Tempo follows ffmpeg's atempo convention:
// values above 1 speed the audio up, values below 1 slow it down.
func (c *CLI) Stretch(ctx context.Context, inputPath, outputPath string, tempo float64) error {
	if inputPath == "" || outputPath == "" {
		return errors.New("ffmpeg stretch: input and output paths required")
	}
	if tempo <= 0 {
		return fmt.Errorf("ffmpeg stretch: invalid tempo %g", tempo)
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", inputPath,
		"-filter:a", AtempoChain(tempo),
		"-y", outputPath,
	}
	cmd := commandContext(ctx, c.binary, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return services.Wrap(services.ErrStretch, "ffmpeg", "stretch",
			strings.TrimSpace(string(output)), err)
	}
	return nil
}

// Transcode converts the input audio to the requested container format with
// fixed codec and bitrate settings: AAC 192k for m4a, libopus 128k for opus.
// Any other format is passed through ffmpeg's default encoding for the
// output extension.
func (c *CLI) Transcode(ctx context.Context, inputPath, outputPath, format string) error {
	if inputPath == "" || outputPath == "" {
		return errors.New("ffmpeg transcode: input and output paths required")
	}

	args := TranscodeArgs(inputPath, outputPath, format)
	cmd := commandContext(ctx, c.binary, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "transcode",
			strings.TrimSpace(string(output)), err)
	}
	return nil
}

// TranscodeArgs builds the argument list for a transcode invocation.
func TranscodeArgs(inputPath, outputPath, format string) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-i", inputPath}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "m4a":
		args = append(args, "-c:a", "aac", "-b:a", "192k")
	case "opus":
		args = append(args, "-c:a", "libopus", "-b:a", "128k")
	}
	return append(args, "-y", outputPath)
}

// HealthCheck verifies the ffmpeg binary is resolvable.
func (c *CLI) HealthCheck() error {
	if _, err := exec.LookPath(c.binary); err != nil {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "health check",
			fmt.Sprintf("binary %q not found", c.binary), err)
	}
	return nil
}

// AtempoChain renders a tempo factor as a chain of atempo filters. A single
// atempo instance only accepts factors in [0.5, 2.0], so larger or smaller
// factors are decomposed into a product of in-range stages.
func AtempoChain(tempo float64) string {
	var stages []string
	for tempo > 2.0 {
		stages = append(stages, "atempo=2.0")
		tempo /= 2.0
	}
	for tempo < 0.5 {
		stages = append(stages, "atempo=0.5")
		tempo /= 0.5
	}
	stages = append(stages, fmt.Sprintf("atempo=%.6f", tempo))
	return strings.Join(stages, ",")
}
