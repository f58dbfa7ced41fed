// Package tasks runs a library migration as a four-phase pipeline with real-time progress reporting.
//
// # Pipeline
//
// [MigrationEngine.Run] executes, in order:
//
//  1. Extracting : [library.ExtractTracks] reads (artist, title, album) from the export tree.
//     A malformed entry aborts the run before any network call.
//  2. Matching : [MigrationEngine.Match] searches once per track with limit 1, offset 0 and the
//     configured market. The top hit wins. Errors and empty results leave the track unmatched.
//  3. Batching : [Partition] splits the matched identifiers into consecutive batches of at most
//     Options.BatchSize (75 by default).
//  4. Submitting : [MigrationEngine.Submit] appends each batch to the playlist, strictly in order.
//     A rejected batch is recorded and logged; the following batches are still submitted.
//
// Nothing is retried and nothing is de-duplicated.
//
// # Ordering
//
// Matching may run concurrently (Options.Concurrency). Each search writes only its own slot of an
// index-addressed slice and identifiers are collected after every search has finished, so the
// playlist order always equals the export order of the matched tracks.
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, a message, and optional data.
// Updates are sent with select/default so a slow reader never blocks the pipeline.
//
// # Confidence
//
// Each match carries a Jaro-Winkler similarity between the library title and the hit's title
// ([Confidence]). It is only reported; it never changes which hit is used.
package tasks
