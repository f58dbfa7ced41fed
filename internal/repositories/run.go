package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/plmigrate/internal/models"
	"github.com/desertthunder/plmigrate/internal/shared"
)

const runColumns = `
	id, sequence, user_id, playlist_id, source_file, market, batch_size,
	status, tracks_total, tracks_matched, tracks_not_found, tracks_errored,
	tracks_added, batches_failed, dry_run, error_message, started_at,
	completed_at, created_at, updated_at
`

// RunRepository persists [models.MigrationRun] and [models.BatchRecord] rows.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run with generated ID and sequence
func (r *RunRepository) Create(run *models.MigrationRun) error {
	if err := validate(run); err != nil {
		return err
	}

	sequence, err := NextSequence(r.db, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	run.SetID(id)
	run.SetSequence(sequence)

	query := `INSERT INTO runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	counts := run.Counts()
	_, err = r.db.Exec(query,
		id,
		sequence,
		run.UserID(),
		run.PlaylistID(),
		run.SourceFile(),
		run.Market(),
		run.BatchSize(),
		string(run.Status()),
		counts.Total,
		counts.Matched,
		counts.NotFound,
		counts.Errored,
		counts.Added,
		counts.BatchesFailed,
		run.DryRun(),
		nullString(run.ErrorMessage()),
		run.StartedAt(),
		nullTime(run.CompletedAt()),
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return nil
}

// Finish stores the final status, counts, and error of a run
func (r *RunRepository) Finish(run *models.MigrationRun) error {
	if err := validate(run); err != nil {
		return err
	}

	now := time.Now().UTC()
	run.SetUpdatedAt(now)

	query := `
		UPDATE runs
		SET status = ?, tracks_total = ?, tracks_matched = ?, tracks_not_found = ?,
			tracks_errored = ?, tracks_added = ?, batches_failed = ?, error_message = ?,
			completed_at = ?, updated_at = ?
		WHERE id = ?
	`

	counts := run.Counts()
	result, err := r.db.Exec(query,
		string(run.Status()),
		counts.Total,
		counts.Matched,
		counts.NotFound,
		counts.Errored,
		counts.Added,
		counts.BatchesFailed,
		nullString(run.ErrorMessage()),
		nullTime(run.CompletedAt()),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, run.ID())
	}

	return nil
}

// AddBatch records the outcome of one submitted batch
func (r *RunRepository) AddBatch(record *models.BatchRecord) error {
	if record.RunID == "" {
		return fmt.Errorf("%w: batch record has no run", shared.ErrInvalidInput)
	}

	record.ID = shared.GenerateID()

	query := `
		INSERT INTO run_batches (
			id, run_id, batch_index, size, first_track_id, last_track_id, error_message, submitted_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		record.ID,
		record.RunID,
		record.Index,
		record.Size,
		record.FirstTrackID,
		record.LastTrackID,
		nullString(record.Error),
		record.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}

	return nil
}

// Get retrieves a run by ID
func (r *RunRepository) Get(id string) (*models.MigrationRun, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`

	run, err := scanRun(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}
	return run, err
}

// List retrieves the most recent runs, newest first. A limit of zero or less returns every run.
func (r *RunRepository) List(limit int) ([]*models.MigrationRun, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY sequence DESC`

	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.MigrationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// Batches retrieves the batch records of a run in submission order
func (r *RunRepository) Batches(runID string) ([]*models.BatchRecord, error) {
	query := `
		SELECT id, run_id, batch_index, size, first_track_id, last_track_id, error_message, submitted_at
		FROM run_batches
		WHERE run_id = ?
		ORDER BY batch_index
	`

	rows, err := r.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	var records []*models.BatchRecord
	for rows.Next() {
		var (
			rec    models.BatchRecord
			errMsg sql.NullString
		)
		if err := rows.Scan(
			&rec.ID, &rec.RunID, &rec.Index, &rec.Size,
			&rec.FirstTrackID, &rec.LastTrackID, &errMsg, &rec.SubmittedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		rec.Error = errMsg.String
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// scanner is satisfied by both [sql.Row] and [sql.Rows]
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*models.MigrationRun, error) {
	var (
		id          string
		sequence    int
		userID      string
		playlistID  string
		sourceFile  string
		market      string
		batchSize   int
		status      string
		counts      models.RunCounts
		dryRun      bool
		errMessage  sql.NullString
		startedAt   time.Time
		completedAt sql.NullTime
		createdAt   time.Time
		updatedAt   time.Time
	)

	err := row.Scan(
		&id, &sequence, &userID, &playlistID, &sourceFile, &market, &batchSize,
		&status, &counts.Total, &counts.Matched, &counts.NotFound, &counts.Errored,
		&counts.Added, &counts.BatchesFailed, &dryRun, &errMessage, &startedAt,
		&completedAt, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run := models.NewMigrationRun(userID, playlistID, sourceFile, market, batchSize, dryRun)
	run.SetID(id)
	run.SetSequence(sequence)
	run.SetStatus(models.RunStatus(status))
	run.SetCounts(counts)
	run.SetErrorMessage(errMessage.String)
	run.SetStartedAt(startedAt)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)
	if completedAt.Valid {
		run.SetCompletedAt(&completedAt.Time)
	}

	return run, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
