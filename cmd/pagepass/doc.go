// Package main hosts the pagepass CLI.
//
// Commands talk to the local daemon over its unix socket and act on behalf of
// the user named by --as or $PAGEPASS_USER. Daemon control, status, log
// viewing and config scaffolding work without a running daemon where they
// can. Failures exit with a code derived from the error kind so scripts can
// tell a missing book from a refused action.
package main
