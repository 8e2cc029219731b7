package timeline

import "overdub/internal/audioio"

// Buffer is the append-only accumulation of output chunks. It is owned
// exclusively by the engine's sequential pass; concurrent generation never
// touches it.
type Buffer struct {
	chunks       []audioio.Clip
	totalSamples int64
}

// Append adds a chunk and advances the sample counter.
func (b *Buffer) Append(clip audioio.Clip) {
	b.chunks = append(b.chunks, clip)
	b.totalSamples += int64(len(clip.Samples))
}

// TotalSamples returns the accumulated sample count.
func (b *Buffer) TotalSamples() int64 {
	return b.totalSamples
}

// Clock returns the output head position in seconds.
func (b *Buffer) Clock() float64 {
	return float64(b.totalSamples) / float64(audioio.SampleRate)
}

// ChunkCount returns the number of appended chunks.
func (b *Buffer) ChunkCount() int {
	return len(b.chunks)
}

// Concatenate joins all chunks into one clip with a single pre-sized copy.
func (b *Buffer) Concatenate() audioio.Clip {
	samples := make([]int, 0, b.totalSamples)
	for _, chunk := range b.chunks {
		samples = append(samples, chunk.Samples...)
	}
	return audioio.Clip{Samples: samples, Rate: audioio.SampleRate}
}
