// Package clipcache provides a content-addressed store for generated speech
// clips. Clips are keyed by a digest of their normalized cue text, so
// identical cues across and within runs share one generated clip.
package clipcache
