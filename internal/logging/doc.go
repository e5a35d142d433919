// Package logging assembles structured slog loggers for the PagePass daemon
// and CLI.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so circulation code can tag log
// lines with the acting user, the book, and the request correlation ID. A
// no-op logger is available for tests and wiring code that cannot fail.
package logging
