// Package fit time-stretches raw speech clips to an exact target duration.
// The stretch ratio is clamped so speech is never compressed beyond the
// configured maximum speed, and the result is padded or cropped to the
// exact sample count so no rounding drift reaches the output clock.
package fit
