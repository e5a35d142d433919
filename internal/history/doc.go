// Package history is the append-only audit ledger of circulation events.
//
// Entries live in the history_events table of the circulation database but
// are written outside the circulation transaction: a failed append is
// retried with exponential backoff and, if it still fails, reported to the
// caller, which logs it. Queries and per-type statistics are built with goqu
// and scanned with sqlx.
package history
