package audioio

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ReadWAV decodes a WAV file into a mono clip. Multi-channel input is folded
// to mono by averaging the channels.
func ReadWAV(path string) (Clip, error) {
	file, err := os.Open(path)
	if err != nil {
		return Clip{}, fmt.Errorf("open wav %s: %w", path, err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("decode wav %s: %w", path, err)
	}
	if buf == nil || buf.Format == nil || buf.Format.SampleRate <= 0 {
		return Clip{}, fmt.Errorf("decode wav %s: missing format", path)
	}

	channels := buf.Format.NumChannels
	if channels <= 1 {
		return Clip{Samples: buf.Data, Rate: buf.Format.SampleRate}, nil
	}

	frames := len(buf.Data) / channels
	mono := make([]int, frames)
	for i := 0; i < frames; i++ {
		sum := 0
		for ch := 0; ch < channels; ch++ {
			sum += buf.Data[i*channels+ch]
		}
		mono[i] = sum / channels
	}
	return Clip{Samples: mono, Rate: buf.Format.SampleRate}, nil
}

// WriteWAV encodes the clip as 16-bit mono PCM.
func WriteWAV(path string, clip Clip) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav %s: %w", path, err)
	}

	rate := clip.Rate
	if rate <= 0 {
		rate = SampleRate
	}
	encoder := wav.NewEncoder(file, rate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Data:           clip.Samples,
		Format:         &audio.Format{SampleRate: rate, NumChannels: 1},
		SourceBitDepth: 16,
	}
	if err := encoder.Write(buf); err != nil {
		encoder.Close()
		file.Close()
		return fmt.Errorf("encode wav %s: %w", path, err)
	}
	if err := encoder.Close(); err != nil {
		file.Close()
		return fmt.Errorf("finalize wav %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close wav %s: %w", path, err)
	}
	return nil
}
