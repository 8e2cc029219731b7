// Package ledger records run history in a SQLite database: one row per
// dubbing run with its inputs, outcome counts, and timing accuracy. The
// ledger is advisory only; a broken database never blocks a run.
package ledger
