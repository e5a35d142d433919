// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and request/response DTOs. The local
// socket is trusted: requests name the acting user directly instead of
// carrying a bearer token. Circulation errors cross the socket tagged with
// their faults.Kind so that the client can rebuild them and errors.Is keeps
// working on the CLI side.
//
// Reuse these types when adding new RPC endpoints to keep the protocol stable
// and compatible with existing command implementations.
package ipc
