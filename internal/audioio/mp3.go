package audioio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"
)

// ReadMP3 decodes an MP3 file into a mono clip at the file's native rate.
// go-mp3 always emits stereo signed 16-bit little-endian PCM; the two
// channels are averaged into one.
func ReadMP3(path string) (Clip, error) {
	file, err := os.Open(path)
	if err != nil {
		return Clip{}, fmt.Errorf("open mp3 %s: %w", path, err)
	}
	defer file.Close()

	decoder, err := mp3.NewDecoder(file)
	if err != nil {
		return Clip{}, fmt.Errorf("decode mp3 %s: %w", path, err)
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return Clip{}, fmt.Errorf("read mp3 pcm %s: %w", path, err)
	}

	// 4 bytes per stereo frame: two 16-bit samples. Drop a trailing
	// partial frame if present.
	const bytesPerFrame = 4
	pcm = pcm[:len(pcm)/bytesPerFrame*bytesPerFrame]

	frames := len(pcm) / bytesPerFrame
	samples := make([]int, frames)
	for i := 0; i < frames; i++ {
		offset := i * bytesPerFrame
		left := int16(binary.LittleEndian.Uint16(pcm[offset : offset+2]))
		right := int16(binary.LittleEndian.Uint16(pcm[offset+2 : offset+4]))
		samples[i] = (int(left) + int(right)) / 2
	}
	return Clip{Samples: samples, Rate: decoder.SampleRate()}, nil
}

// ReadClip decodes a clip file, selecting the codec by magic bytes rather
// than extension so cached MP3 clips and stretched WAV intermediates both
// load through one entry point.
func ReadClip(path string) (Clip, error) {
	header := make([]byte, 4)
	file, err := os.Open(path)
	if err != nil {
		return Clip{}, fmt.Errorf("open clip %s: %w", path, err)
	}
	n, err := io.ReadFull(file, header)
	file.Close()
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Clip{}, fmt.Errorf("read clip header %s: %w", path, err)
	}

	if n == len(header) && string(header) == "RIFF" {
		return ReadWAV(path)
	}
	return ReadMP3(path)
}
