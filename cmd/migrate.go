package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/plmigrate/internal/formatter"
	"github.com/desertthunder/plmigrate/internal/library"
	"github.com/desertthunder/plmigrate/internal/models"
	"github.com/desertthunder/plmigrate/internal/repositories"
	"github.com/desertthunder/plmigrate/internal/services"
	"github.com/desertthunder/plmigrate/internal/shared"
	"github.com/desertthunder/plmigrate/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"
)

// matchProgressEvery controls how often successful lookups are echoed while matching.
const matchProgressEvery = 100

// Migrate reads a library export, matches every track on Spotify and appends the matches to a playlist.
//
// Tracks that cannot be found and batches that are rejected are reported, not fatal.
func (r *Runner) Migrate(ctx context.Context, cmd *cli.Command) error {
	filePath := cmd.String("file")
	playlistID := cmd.String("id")
	userID := cmd.String("user")
	dryRun := cmd.Bool("dry-run")

	if filePath == "" || playlistID == "" || userID == "" {
		return fmt.Errorf("%w: --file, --id and --user are required", shared.ErrMissingArgument)
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	opts := r.engineOptions(cmd, config)

	root, err := library.DecodeFile(filePath)
	if err != nil {
		return err
	}

	svc, err := r.spotifyService(ctx, config)
	if err != nil {
		return err
	}

	if err := r.verifyPlaylist(ctx, cmd, svc, userID, playlistID); err != nil {
		return err
	}

	history, closeHistory := r.openHistory(cmd, config)
	defer closeHistory()

	run := models.NewMigrationRun(userID, playlistID, filePath, opts.Market, opts.BatchSize, dryRun)
	if history != nil {
		if err := history.Create(run); err != nil {
			r.logger.Warn("failed to record run, continuing without history", "error", err)
			history = nil
		}
	}

	logger := r.logger
	if run.ID() != "" {
		logger = shared.WithLogger(r.logger, "run", run.ID())
	}
	opts.Logger = logger
	engine := tasks.NewMigrationEngine(svc, opts)

	logger.Info("starting migration", "file", filePath, "playlist", playlistID, "user", userID,
		"batch_size", opts.BatchSize, "market", opts.Market, "concurrency", opts.Concurrency, "dry_run", dryRun)

	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.printProgress(progress)
	}()

	result, runErr := engine.Run(ctx, tasks.RunRequest{
		UserID:     userID,
		PlaylistID: playlistID,
		Library:    root,
		DryRun:     dryRun,
	}, progress)
	close(progress)
	<-done

	if runErr != nil {
		run.Fail(models.RunCounts{}, runErr)
		r.finishRun(history, run, nil)
		return runErr
	}

	run.Complete(result.Counts())
	r.finishRun(history, run, result.Results)

	r.writePlainln("%s", formatter.Summary(result, r.styled))
	if low := formatter.LowConfidence(result, cmd.Float("confidence")); len(low) > 0 {
		r.writePlain("\n%s", formatter.FormatLowConfidence(low, r.styled))
	}

	if path := cmd.String("unmatched"); path != "" {
		if err := formatter.WriteUnmatchedFile(path, result); err != nil {
			return err
		}
		r.writePlain("\n✓ Unmatched tracks written to %s\n", path)
	}

	if path := cmd.String("report"); path != "" {
		if err := formatter.WriteReportFile(path, result); err != nil {
			return err
		}
		r.writePlain("✓ Report written to %s\n", path)
	}

	if run.ID() != "" {
		r.logger.Info("run recorded", "id", run.ID(), "status", run.Status())
	}
	return nil
}

// engineOptions layers flag overrides on top of the [migration] config section.
func (r *Runner) engineOptions(cmd *cli.Command, config *shared.Config) tasks.Options {
	opts := tasks.DefaultOptions()
	m := config.Migration

	if m.BatchSize > 0 {
		opts.BatchSize = m.BatchSize
	}
	if m.Market != "" {
		opts.Market = m.Market
	}
	if m.Concurrency > 0 {
		opts.Concurrency = m.Concurrency
	}
	if m.SearchTimeout.Duration > 0 {
		opts.SearchTimeout = m.SearchTimeout.Duration
	}
	if m.MutationTimeout.Duration > 0 {
		opts.MutationTimeout = m.MutationTimeout.Duration
	}
	if m.RequestsPerSecond > 0 {
		opts.RateLimit = rate.Limit(m.RequestsPerSecond)
	}

	if cmd.IsSet("batch-size") && cmd.Int("batch-size") > 0 {
		opts.BatchSize = cmd.Int("batch-size")
	}
	if cmd.IsSet("market") && cmd.String("market") != "" {
		opts.Market = cmd.String("market")
	}
	if cmd.IsSet("concurrency") && cmd.Int("concurrency") > 0 {
		opts.Concurrency = cmd.Int("concurrency")
	}
	return opts
}

// spotifyService returns the injected service, or builds one from the saved credentials.
func (r *Runner) spotifyService(ctx context.Context, config *shared.Config) (services.Service, error) {
	if r.spotify != nil {
		return r.spotify, nil
	}

	srv, err := services.NewSpotifyService(config.Credentials.Spotify.Map(), services.WithHTTPClient(r.httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Spotify service: %w", err)
	}
	srv.SetTokenRefreshCallback(r.saveToken(config, r.configPath))

	token := config.Credentials.Spotify.Token()
	if token == nil {
		return nil, fmt.Errorf("%w: no saved Spotify token, run `plmigrate auth` first", shared.ErrNotAuthenticated)
	}
	if err := srv.OAuthenticate(ctx, token); err != nil {
		return nil, err
	}

	r.spotify = srv
	return srv, nil
}

// verifyPlaylist checks the target playlist up front so a bad --id or --user fails before any search.
func (r *Runner) verifyPlaylist(ctx context.Context, cmd *cli.Command, svc services.Service, userID, playlistID string) error {
	verifier, ok := svc.(services.PlaylistVerifier)
	if !ok {
		return nil
	}

	err := verifier.VerifyPlaylist(ctx, userID, playlistID)
	if err == nil {
		return nil
	}

	reauthed, authErr := r.handleSpotifyAuthError(ctx, err, cmd)
	if !reauthed {
		return err
	}
	if authErr != nil {
		return authErr
	}
	return verifier.VerifyPlaylist(ctx, userID, playlistID)
}

// openHistory returns the run repository, or nil when history is disabled or unavailable.
func (r *Runner) openHistory(cmd *cli.Command, config *shared.Config) (*repositories.RunRepository, func()) {
	noop := func() {}
	if cmd.Bool("no-history") {
		return nil, noop
	}
	if r.history != nil {
		return r.history, noop
	}

	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		r.logger.Warn("run history unavailable", "path", config.Database.Path, "error", err)
		return nil, noop
	}
	return repositories.NewRunRepository(db), func() {
		if err := db.Close(); err != nil {
			r.logger.Warn("failed to close database", "error", err)
		}
	}
}

// finishRun stores the final state of run and one record per submitted batch.
func (r *Runner) finishRun(history *repositories.RunRepository, run *models.MigrationRun, results []tasks.BatchResult) {
	if history == nil {
		return
	}

	var errs []error
	for _, br := range results {
		errs = append(errs, history.AddBatch(models.NewBatchRecord(run.ID(), br.Batch, br.Err)))
	}
	errs = append(errs, history.Finish(run))

	if err := errors.Join(errs...); err != nil {
		r.logger.Warn("failed to record run outcome", "id", run.ID(), "error", err)
	}
}

// printProgress echoes pipeline updates until the channel is closed.
//
// Matches are only echoed every [matchProgressEvery] tracks and may be skipped when output lags.
// The engine waits on misses, batch outcomes and the final update, so those are always shown.
func (r *Runner) printProgress(progress <-chan tasks.ProgressUpdate) {
	for update := range progress {
		switch update.Phase {
		case tasks.Matching:
			match, ok := update.Data.(*tasks.TrackMatch)
			if !ok {
				r.writePlain("→ %s\n", update.Message)
				continue
			}
			if match.Outcome != tasks.MatchFound || update.Step%matchProgressEvery == 0 || update.Step == update.Total {
				r.writePlain("  %s\n", update.Message)
			}
		case tasks.Submitting:
			r.writePlain("  %s\n", update.Message)
		case tasks.Done:
		default:
			r.writePlain("→ %s\n", update.Message)
		}
	}
}
