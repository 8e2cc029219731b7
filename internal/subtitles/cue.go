package subtitles

import "strings"

// Cue is one subtitle entry. Cues are produced once by the parser in
// ascending order and never mutated afterwards.
type Cue struct {
	Index int
	Start float64
	End   float64
	Text  string
}

// Span returns the nominal duration of the cue's window in seconds.
// Malformed cues with End before Start count as zero duration.
func (c Cue) Span() float64 {
	if c.End <= c.Start {
		return 0
	}
	return c.End - c.Start
}

// DisplayText returns the cue text with newlines collapsed to spaces and
// surrounding whitespace trimmed. An empty result marks the cue as silent.
func (c Cue) DisplayText() string {
	text := strings.ReplaceAll(c.Text, "\n", " ")
	text = strings.ReplaceAll(text, "\r", " ")
	return strings.TrimSpace(text)
}
