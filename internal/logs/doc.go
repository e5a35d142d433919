// Package logs reads the daemon's log file for `pagepass logs`.
//
// Last returns the trailing lines of a file with bounded memory, and Follow
// polls for appended lines until its context is canceled. Both accept an
// optional Matcher so callers can narrow output to one book or to a minimum
// severity without caring whether the daemon writes console or JSON lines.
package logs
