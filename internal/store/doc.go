// Package store persists circulating books, their waitlists, handoffs, and
// ownership records in SQLite.
//
// The Store owns connection setup, schema initialization, and busy retries.
// All mutation happens through Tx inside WithTx, which runs as one IMMEDIATE
// transaction so that a single operation's reads and writes form one
// serializable unit. Tx deliberately exposes row-level primitives only: the
// rules for who may queue, hand off, or receive a gift live in the waitlist,
// handoff, and gift packages, which are the only callers of the mutating Tx
// methods.
//
// The schema version lives in SQLite's user_version header field. Schema
// changes bump schemaVersion in schema.go; databases stamped with another
// version are rejected rather than migrated.
package store
