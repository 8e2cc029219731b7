// Package speech turns cue text into audio clips. It wraps the Edge TTS
// backend with a retry policy and a windowed concurrent batch generator
// that writes successful clips through the content-addressed cache.
package speech
