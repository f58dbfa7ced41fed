// Package models defines the records that flow through a library migration.
//
// The package contains two categories of types:
//
// 1. Pipeline records: created per run and discarded when it ends
//   - [Track] : one entry of the library export, resolved at most once to a remote identifier
//   - [Batch] : a bounded, contiguous slice of remote identifiers submitted in one call
//
// 2. Persistent Entities: Database-backed run history
//   - [MigrationRun] : one invocation of the migrate command and its aggregate counts
//   - [BatchRecord] : the outcome of one submitted batch
//
// Persistent entities implement the [Model] interface providing IDs, timestamps, and validation.
// History is informational; nothing reads it back to skip work in a later run.
package models
