package models

import (
	"fmt"
	"time"
)

// RunStatus is the lifecycle state of a [MigrationRun].
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed" // every batch was accepted
	RunPartial   RunStatus = "partial"   // at least one batch was rejected
	RunFailed    RunStatus = "failed"    // aborted before submission finished
)

// RunCounts are the aggregate results of a run.
type RunCounts struct {
	Total         int
	Matched       int
	NotFound      int
	Errored       int
	Added         int
	BatchesFailed int
}

// MigrationRun is the persisted record of one migration.
type MigrationRun struct {
	id          string
	sequence    int
	userID      string
	playlistID  string
	sourceFile  string
	market      string
	batchSize   int
	dryRun      bool
	status      RunStatus
	counts      RunCounts
	errMessage  string
	startedAt   time.Time
	completedAt *time.Time
	createdAt   time.Time
	updatedAt   time.Time
}

// NewMigrationRun creates a running [MigrationRun] started now.
func NewMigrationRun(userID, playlistID, sourceFile, market string, batchSize int, dryRun bool) *MigrationRun {
	now := time.Now().UTC()
	return &MigrationRun{
		userID:     userID,
		playlistID: playlistID,
		sourceFile: sourceFile,
		market:     market,
		batchSize:  batchSize,
		dryRun:     dryRun,
		status:     RunRunning,
		startedAt:  now,
		createdAt:  now,
		updatedAt:  now,
	}
}

func (r *MigrationRun) ID() string              { return r.id }
func (r *MigrationRun) Sequence() int           { return r.sequence }
func (r *MigrationRun) UserID() string          { return r.userID }
func (r *MigrationRun) PlaylistID() string      { return r.playlistID }
func (r *MigrationRun) SourceFile() string      { return r.sourceFile }
func (r *MigrationRun) Market() string          { return r.market }
func (r *MigrationRun) BatchSize() int          { return r.batchSize }
func (r *MigrationRun) DryRun() bool            { return r.dryRun }
func (r *MigrationRun) Status() RunStatus       { return r.status }
func (r *MigrationRun) Counts() RunCounts       { return r.counts }
func (r *MigrationRun) ErrorMessage() string    { return r.errMessage }
func (r *MigrationRun) StartedAt() time.Time    { return r.startedAt }
func (r *MigrationRun) CompletedAt() *time.Time { return r.completedAt }
func (r *MigrationRun) CreatedAt() time.Time    { return r.createdAt }
func (r *MigrationRun) UpdatedAt() time.Time    { return r.updatedAt }

func (r *MigrationRun) SetID(id string)             { r.id = id }
func (r *MigrationRun) SetSequence(seq int)         { r.sequence = seq }
func (r *MigrationRun) SetStartedAt(t time.Time)    { r.startedAt = t }
func (r *MigrationRun) SetCreatedAt(t time.Time)    { r.createdAt = t }
func (r *MigrationRun) SetUpdatedAt(t time.Time)    { r.updatedAt = t }
func (r *MigrationRun) SetCompletedAt(t *time.Time) { r.completedAt = t }
func (r *MigrationRun) SetStatus(status RunStatus)  { r.status = status }
func (r *MigrationRun) SetCounts(counts RunCounts)  { r.counts = counts }
func (r *MigrationRun) SetErrorMessage(msg string)  { r.errMessage = msg }

// Complete marks the run finished with the given counts, deriving the status from failed batches.
func (r *MigrationRun) Complete(counts RunCounts) {
	now := time.Now().UTC()
	r.counts = counts
	r.completedAt = &now
	r.updatedAt = now
	if counts.BatchesFailed > 0 {
		r.status = RunPartial
	} else {
		r.status = RunCompleted
	}
}

// Fail marks the run aborted with err.
func (r *MigrationRun) Fail(counts RunCounts, err error) {
	now := time.Now().UTC()
	r.counts = counts
	r.completedAt = &now
	r.updatedAt = now
	r.status = RunFailed
	if err != nil {
		r.errMessage = err.Error()
	}
}

// Validate checks the run has its target and a usable batch size.
func (r *MigrationRun) Validate() error {
	if r.userID == "" {
		return fmt.Errorf("user ID is required")
	}
	if r.playlistID == "" {
		return fmt.Errorf("playlist ID is required")
	}
	if r.batchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", r.batchSize)
	}
	switch r.status {
	case RunRunning, RunCompleted, RunPartial, RunFailed:
	default:
		return fmt.Errorf("invalid status %q", r.status)
	}
	return nil
}

// BatchRecord is the persisted outcome of one submitted [Batch].
type BatchRecord struct {
	ID           string
	RunID        string
	Index        int
	Size         int
	FirstTrackID string
	LastTrackID  string
	Error        string
	SubmittedAt  time.Time
}

// NewBatchRecord summarizes batch and its submission error, if any.
func NewBatchRecord(runID string, batch Batch, err error) *BatchRecord {
	rec := &BatchRecord{
		RunID:       runID,
		Index:       batch.Index,
		Size:        batch.Len(),
		SubmittedAt: time.Now().UTC(),
	}
	if n := batch.Len(); n > 0 {
		rec.FirstTrackID = batch.IDs[0]
		rec.LastTrackID = batch.IDs[n-1]
	}
	if err != nil {
		rec.Error = err.Error()
	}
	return rec
}

// Failed reports whether the batch was rejected.
func (b *BatchRecord) Failed() bool {
	return b.Error != ""
}
