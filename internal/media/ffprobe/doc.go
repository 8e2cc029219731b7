// Package ffprobe wraps the ffprobe binary for probing reference media
// durations. Every failure degrades to a zero duration, which the pipeline
// treats as "no target duration supplied".
package ffprobe
