// Package render writes the assembled waveform to its final destination:
// a 16-bit mono WAV by default, or an m4a/opus container via an external
// transcode.
package render
