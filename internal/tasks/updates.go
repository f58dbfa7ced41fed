package tasks

import (
	"fmt"

	"github.com/desertthunder/plmigrate/internal/models"
)

// ProgressUpdate represents a progress event during a migration.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Pipeline phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Pipeline phase enumeration
type Phase int

const (
	Extracting Phase = iota
	Matching
	Batching
	Submitting
	Done
)

func (p Phase) String() string {
	switch p {
	case Extracting:
		return "extracting"
	case Matching:
		return "matching"
	case Batching:
		return "batching"
	case Submitting:
		return "submitting"
	case Done:
		return "done"
	default:
		return ""
	}
}

func extractingUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   Extracting,
		Step:    0,
		Total:   1,
		Message: "Reading library export...",
	}
}

func extractedUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Extracting,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d tracks in library", count),
	}
}

func matchTrackUpdate(step, total int, match *TrackMatch) ProgressUpdate {
	if match == nil {
		return ProgressUpdate{
			Phase:   Matching,
			Step:    step,
			Total:   total,
			Message: "Searching for tracks on Spotify...",
		}
	}

	mark := "✓"
	if match.Outcome != MatchFound {
		mark = "✗"
	}
	return ProgressUpdate{
		Phase:   Matching,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s - %s", step, total, mark, match.Track.Artist, match.Track.Title),
		Data:    match,
	}
}

func batchingUpdate(ids, batches int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Batching,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Split %d tracks into %d batches", ids, batches),
	}
}

func submitBatchUpdate(total int, result BatchResult) ProgressUpdate {
	step := result.Batch.Index + 1
	if result.Err != nil {
		return ProgressUpdate{
			Phase:   Submitting,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] ✗ batch of %d: %v", step, total, result.Batch.Len(), result.Err),
			Data:    result,
		}
	}
	return ProgressUpdate{
		Phase:   Submitting,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ added %d tracks", step, total, result.Batch.Len()),
		Data:    result,
	}
}

func doneUpdate(result *RunResult) ProgressUpdate {
	msg := fmt.Sprintf("Matched %d of %d tracks, added %d", result.Matched, result.Total, result.Added)
	if result.DryRun {
		msg = fmt.Sprintf("Matched %d of %d tracks (dry run, nothing added)", result.Matched, result.Total)
	}
	return ProgressUpdate{
		Phase:   Done,
		Step:    1,
		Total:   1,
		Message: msg,
		Data:    result,
	}
}

// batchLabel names a batch by its position in the identifier list.
func batchLabel(b models.Batch) string {
	return fmt.Sprintf("%d..%d", b.Start, b.End()-1)
}
