// Package ffmpeg wraps the ffmpeg binary for the two operations the
// pipeline needs: time-stretching a clip by a tempo factor and transcoding
// the final WAV into a delivery container.
package ffmpeg
