package render

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"overdub/internal/audioio"
	"overdub/internal/logging"
	"overdub/internal/services"
)

// Transcoder converts audio containers. Satisfied by the ffmpeg client.
type Transcoder interface {
	Transcode(ctx context.Context, inputPath, outputPath, format string) error
}

// Renderer exports assembled audio.
type Renderer struct {
	transcoder Transcoder
	tempDir    string
	logger     *slog.Logger
}

// NewRenderer builds a renderer. Transcode intermediates are written under
// tempDir.
func NewRenderer(transcoder Transcoder, tempDir string, logger *slog.Logger) *Renderer {
	return &Renderer{
		transcoder: transcoder,
		tempDir:    tempDir,
		logger:     logging.NewComponentLogger(logger, "render"),
	}
}

// ResolveFormat picks the output container: an explicit override wins,
// otherwise the output path's extension decides. Anything that is not m4a
// or opus renders as WAV.
func ResolveFormat(outputPath, override string) string {
	format := strings.ToLower(strings.TrimSpace(override))
	if format == "" {
		format = strings.ToLower(strings.TrimPrefix(filepath.Ext(outputPath), "."))
	}
	switch format {
	case "m4a", "opus":
		return format
	default:
		return "wav"
	}
}

// Export writes the clip to outputPath in the given format. For m4a and
// opus a temporary WAV is written first and handed to the transcoder; a
// transcode failure keeps the intermediate WAV so the run's audio is not
// lost. The final export write is the only fatal IO path.
func (r *Renderer) Export(ctx context.Context, clip audioio.Clip, outputPath, format string) error {
	if format != "m4a" && format != "opus" {
		if err := audioio.WriteWAV(outputPath, clip); err != nil {
			return services.Wrap(services.ErrIO, "render", "write output", outputPath, err)
		}
		r.logger.Info("wrote output", logging.String("path", outputPath))
		return nil
	}

	tempWAV := filepath.Join(r.tempDir, "final_output_temp.wav")
	if err := audioio.WriteWAV(tempWAV, clip); err != nil {
		return services.Wrap(services.ErrIO, "render", "write transcode intermediate", tempWAV, err)
	}

	if err := r.transcoder.Transcode(ctx, tempWAV, outputPath, format); err != nil {
		r.logger.Error("transcode failed, intermediate WAV preserved",
			logging.String("intermediate", tempWAV),
			logging.String("format", format),
			logging.Error(err))
		return err
	}

	if err := os.Remove(tempWAV); err != nil {
		r.logger.Warn("failed to remove transcode intermediate",
			logging.String("path", tempWAV),
			logging.Error(err))
	}
	r.logger.Info("wrote output",
		logging.String("path", outputPath),
		logging.String("format", format))
	return nil
}
