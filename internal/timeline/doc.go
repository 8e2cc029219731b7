// Package timeline implements the synchronization engine: a single
// sequential pass over the cue list that tracks an accumulated-sample
// output clock, classifies each cue (gap, overlap, empty, failed, late
// start), fits speech clips to the time remaining on the live clock, and
// accumulates one chunk per cue into a drift-free output buffer.
package timeline
