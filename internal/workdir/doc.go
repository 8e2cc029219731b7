// Package workdir manages the per-run working directory: deterministic
// resolution from the subtitle content hash, the raw-clip and cache layout,
// a run lock, and end-of-run teardown.
package workdir
