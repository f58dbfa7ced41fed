package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/plmigrate/internal/formatter"
	"github.com/desertthunder/plmigrate/internal/shared"
	"github.com/urfave/cli/v3"
)

// historyRun is the JSON form of a recorded run.
type historyRun struct {
	ID          string `json:"id"`
	Sequence    int    `json:"sequence"`
	Status      string `json:"status"`
	UserID      string `json:"user_id"`
	PlaylistID  string `json:"playlist_id"`
	SourceFile  string `json:"source_file"`
	DryRun      bool   `json:"dry_run"`
	Total       int    `json:"total"`
	Matched     int    `json:"matched"`
	NotFound    int    `json:"not_found"`
	Errored     int    `json:"errored"`
	Added       int    `json:"added"`
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at,omitempty"`
	Error       string `json:"error,omitempty"`
}

// HistoryList prints the most recent runs, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	history, closeHistory := r.openHistory(cmd, config)
	defer closeHistory()
	if history == nil {
		return fmt.Errorf("%w: run history database is unavailable", shared.ErrServiceUnavailable)
	}

	runs, err := history.List(cmd.Int("limit"))
	if err != nil {
		return err
	}

	if !cmd.Bool("json") {
		return r.writePlain("%s", formatter.FormatRuns(runs))
	}

	out := make([]historyRun, 0, len(runs))
	for _, run := range runs {
		c := run.Counts()
		item := historyRun{
			ID:         run.ID(),
			Sequence:   run.Sequence(),
			Status:     string(run.Status()),
			UserID:     run.UserID(),
			PlaylistID: run.PlaylistID(),
			SourceFile: run.SourceFile(),
			DryRun:     run.DryRun(),
			Total:      c.Total,
			Matched:    c.Matched,
			NotFound:   c.NotFound,
			Errored:    c.Errored,
			Added:      c.Added,
			StartedAt:  run.StartedAt().Format(time.RFC3339),
			Error:      run.ErrorMessage(),
		}
		if t := run.CompletedAt(); t != nil {
			item.CompletedAt = t.Format(time.RFC3339)
		}
		out = append(out, item)
	}
	return r.writeJSON(out, true)
}

// HistoryShow prints one run and its batch outcomes.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: run id is required", shared.ErrMissingArgument)
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	history, closeHistory := r.openHistory(cmd, config)
	defer closeHistory()
	if history == nil {
		return fmt.Errorf("%w: run history database is unavailable", shared.ErrServiceUnavailable)
	}

	run, err := history.Get(id)
	if err != nil {
		return err
	}

	batches, err := history.Batches(run.ID())
	if err != nil {
		return err
	}

	return r.writePlain("%s", formatter.FormatRun(run, batches))
}
