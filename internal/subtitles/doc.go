// Package subtitles parses SRT subtitle files into ordered cues and parses
// clock-style duration strings.
package subtitles
