// Package report collects run statistics and renders the end-of-run
// summary. Counters are informational; they never affect output
// correctness.
package report
