// Package preflight provides readiness checks for the filesystem paths and
// external services PagePass depends on.
//
// These checks run in two contexts:
//   - The daemon runner calls RunAll at startup and logs failures as
//     warnings. A missing notification sink never blocks circulation.
//   - The CLI "pagepass status" command uses the same checks to display
//     service health, including when the daemon is not running.
//
// Each check is gated by its config toggle. Disabled features are skipped.
package preflight
