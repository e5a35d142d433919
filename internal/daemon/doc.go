// Package daemon coordinates the long-running PagePass process.
//
// It wires configuration, the circulation store, the coordinator, the history
// ledger, and the offer-expiry sweeper into a single lifecycle with
// flock-based locking to prevent multiple instances. The daemon serves the
// JWT-authenticated HTTP API and exposes the shared api.Service that the IPC
// server also uses.
//
// Keep orchestration logic here: circulation rules live in their respective
// packages while the daemon focuses on startup, shutdown, and high level
// coordination.
package daemon
