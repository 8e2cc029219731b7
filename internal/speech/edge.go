package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/pp-group/edge-tts-go/biz/service/tts/edge"
)

// Synthesizer produces encoded MP3 audio for a piece of text.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// EdgeSynthesizer speaks text through Microsoft's Edge TTS service.
type EdgeSynthesizer struct {
	voice string
}

// NewEdgeSynthesizer builds a synthesizer bound to one voice.
func NewEdgeSynthesizer(voice string) *EdgeSynthesizer {
	return &EdgeSynthesizer{voice: voice}
}

// Synthesize streams the synthesis websocket and concatenates the audio
// chunks into one MP3 payload. Receiving no audio is an error.
func (s *EdgeSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	communicate, err := edge.NewCommunicate(text, edge.WithVoice(s.voice))
	if err != nil {
		return nil, fmt.Errorf("edge-tts: create session: %w", err)
	}

	stream, err := communicate.Stream()
	if err != nil {
		return nil, fmt.Errorf("edge-tts: open stream: %w", err)
	}

	var buf bytes.Buffer
	for message := range stream {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if messageType, ok := message["type"].(string); ok && messageType == "audio" {
			if data, ok := message["data"].([]byte); ok {
				buf.Write(data)
			}
		}
	}

	if buf.Len() == 0 {
		return nil, errors.New("edge-tts: no audio received")
	}
	return buf.Bytes(), nil
}
