// Package api defines wire-format types, request validation, and a DTO
// service shared by the HTTP and IPC layers. It translates circulation models
// into transport-friendly shapes that the CLI and web clients can render
// without coupling to internal types.
//
// # Key Types
//
// Book, QueueEntry, Handoff, OwnershipRecord: transport representations of
// the store models.
//
// ConfirmResult, BatchSummary, PassResult, ReadyResponse, SweepReport: results
// of circulation operations.
//
// HistoryEvent, TypeCount: audit ledger views.
//
// ErrorBody: the error envelope, carrying a stable kind from the faults
// package.
//
// # Service
//
// Service wraps the circulation coordinator and the history ledger and
// returns DTOs. The daemon's HTTP handlers and the IPC server both call it, so
// the two transports always agree on payload shape.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Internal enums (store.Status, handoff kinds,
// roles) are exposed as lowercase strings. Timestamps use RFC3339 with
// milliseconds in UTC. Request bodies are validated with
// go-playground/validator; validation failures wrap faults.ErrInvalidArgument.
package api
