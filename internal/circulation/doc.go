// Package circulation is the entry point for every book operation.
//
// The Coordinator serializes work per book with an in-process lock, runs each
// operation as one store transaction that drives the waitlist, handoff, and
// gift packages, and then delivers the collected notices, history entries,
// and visibility resets. Delivery failures are logged and never undo the
// committed state change.
package circulation
