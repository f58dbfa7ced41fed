// Package repositories implements SQLite persistence for migration run history.
//
// History is informational. A new run never reads it to skip tracks or resume a previous run.
//
// Key Implementations:
//   - [RunRepository] : one row per migration run and one row per submitted batch
//
// Sequence numbers provide stable, human-readable ordering (run #7) independent of UUIDs and timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
