// package tasks implements the library-to-playlist migration pipeline.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/plmigrate/internal/library"
	"github.com/desertthunder/plmigrate/internal/models"
	"github.com/desertthunder/plmigrate/internal/services"
	"github.com/desertthunder/plmigrate/internal/shared"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	DefaultBatchSize = 75
	DefaultMarket    = "US"
)

// Options tune a [MigrationEngine]. Zero values fall back to the defaults in [DefaultOptions].
type Options struct {
	BatchSize       int           // maximum identifiers per mutation call
	Market          string        // market passed to every search
	Concurrency     int           // concurrent searches; 1 is sequential
	SearchTimeout   time.Duration // per search call; zero disables
	MutationTimeout time.Duration // per mutation call; zero disables
	RateLimit       rate.Limit    // searches per second; zero or less is unlimited
	Logger          *log.Logger
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		BatchSize:       DefaultBatchSize,
		Market:          DefaultMarket,
		Concurrency:     1,
		SearchTimeout:   10 * time.Second,
		MutationTimeout: 30 * time.Second,
		RateLimit:       rate.Inf,
	}
}

// MatchOutcome classifies a single track search.
type MatchOutcome int

const (
	MatchFound    MatchOutcome = iota
	MatchNotFound              // search succeeded with zero results
	MatchErrored               // search call failed or timed out
)

func (o MatchOutcome) String() string {
	switch o {
	case MatchFound:
		return "found"
	case MatchNotFound:
		return "not_found"
	case MatchErrored:
		return "error"
	default:
		return ""
	}
}

// TrackMatch is the result of searching for one library track.
type TrackMatch struct {
	Track      models.Track // resolved when Outcome is MatchFound
	Outcome    MatchOutcome
	Hit        *services.Track // top search result, nil unless found
	Confidence float64         // title similarity of Hit to Track in [0, 1]; informational
	Err        error           // search error when Outcome is MatchErrored
}

// MatchResult holds per-track matches in input order and the identifiers of the matched ones.
type MatchResult struct {
	Matches []TrackMatch
	IDs     []string
}

// BatchResult is the outcome of one mutation call.
type BatchResult struct {
	Batch models.Batch
	Err   error
}

// RunRequest describes one migration.
type RunRequest struct {
	UserID     string
	PlaylistID string
	Library    library.Value // decoded export
	DryRun     bool          // match and batch without submitting
}

// RunResult is the summary of a completed run.
type RunResult struct {
	Matches []TrackMatch
	IDs     []string
	Batches []models.Batch
	Results []BatchResult // one per submitted batch; empty on a dry run
	DryRun  bool

	Total         int
	Matched       int
	NotFound      int
	Errored       int
	BatchesOK     int
	BatchesFailed int
	Added         int
}

// Counts converts the summary into the persisted form.
func (r *RunResult) Counts() models.RunCounts {
	return models.RunCounts{
		Total:         r.Total,
		Matched:       r.Matched,
		NotFound:      r.NotFound,
		Errored:       r.Errored,
		Added:         r.Added,
		BatchesFailed: r.BatchesFailed,
	}
}

// MigrationEngine runs the extract, match, batch, submit pipeline against a single service.
type MigrationEngine struct {
	searcher services.Searcher
	mutator  services.PlaylistMutator
	opts     Options
	logger   *log.Logger
}

// NewMigrationEngine creates an engine using svc for both search and mutation.
func NewMigrationEngine(svc services.Service, opts Options) *MigrationEngine {
	return newEngine(svc, svc, opts)
}

// NewMigrationEngineWith creates an engine from separate search and mutation capabilities.
func NewMigrationEngineWith(searcher services.Searcher, mutator services.PlaylistMutator, opts Options) *MigrationEngine {
	return newEngine(searcher, mutator, opts)
}

func newEngine(searcher services.Searcher, mutator services.PlaylistMutator, opts Options) *MigrationEngine {
	defaults := DefaultOptions()
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaults.BatchSize
	}
	if opts.Market == "" {
		opts.Market = defaults.Market
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaults.Concurrency
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Inf
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &MigrationEngine{searcher: searcher, mutator: mutator, opts: opts, logger: logger}
}

// Options returns the effective options.
func (e *MigrationEngine) Options() Options {
	return e.opts
}

// sendProgress sends a progress update through the channel without blocking.
func (e *MigrationEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// deliverProgress waits for the reader to take update, giving up only when ctx is done.
// Misses, batch outcomes and the final summary go through here so a slow reader never loses them.
func (e *MigrationEngine) deliverProgress(ctx context.Context, progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	case <-ctx.Done():
	}
}

// Run performs a full migration. Only extraction failures and context cancellation are returned as errors;
// failed searches and rejected batches are reported in the result.
func (e *MigrationEngine) Run(ctx context.Context, req RunRequest, progress chan<- ProgressUpdate) (*RunResult, error) {
	if e.searcher == nil || (e.mutator == nil && !req.DryRun) {
		return nil, fmt.Errorf("%w: migration engine has no service", shared.ErrServiceUnavailable)
	}
	if !req.DryRun && (req.UserID == "" || req.PlaylistID == "") {
		return nil, fmt.Errorf("%w: user and playlist are required", shared.ErrMissingArgument)
	}

	e.sendProgress(progress, extractingUpdate())
	tracks, err := library.ExtractTracks(req.Library)
	if err != nil {
		return nil, err
	}
	e.sendProgress(progress, extractedUpdate(len(tracks)))
	e.logger.Info("extracted tracks", "count", len(tracks))

	matched := e.Match(ctx, tracks, progress)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("matching interrupted: %w", err)
	}

	result := &RunResult{
		Matches: matched.Matches,
		IDs:     matched.IDs,
		DryRun:  req.DryRun,
		Total:   len(tracks),
		Matched: len(matched.IDs),
	}
	for _, m := range matched.Matches {
		switch m.Outcome {
		case MatchNotFound:
			result.NotFound++
		case MatchErrored:
			result.Errored++
		}
	}

	batches, err := Partition(matched.IDs, e.opts.BatchSize)
	if err != nil {
		return nil, err
	}
	result.Batches = batches
	e.sendProgress(progress, batchingUpdate(len(matched.IDs), len(batches)))

	if !req.DryRun {
		result.Results = e.Submit(ctx, req.UserID, req.PlaylistID, batches, progress)
		for _, br := range result.Results {
			if br.Err != nil {
				result.BatchesFailed++
				continue
			}
			result.BatchesOK++
			result.Added += br.Batch.Len()
		}
	}

	e.logger.Info("migration finished",
		"total", result.Total, "matched", result.Matched, "not_found", result.NotFound,
		"errored", result.Errored, "batches_failed", result.BatchesFailed, "added", result.Added)
	e.deliverProgress(ctx, progress, doneUpdate(result))
	return result, nil
}

// Match searches for every track and returns the matches in input order.
//
// Up to Options.Concurrency searches run at once; each writes only its own slot, so the
// identifier list is assembled in input order after all searches finish.
func (e *MigrationEngine) Match(ctx context.Context, tracks []models.Track, progress chan<- ProgressUpdate) MatchResult {
	matches := make([]TrackMatch, len(tracks))
	limiter := rate.NewLimiter(e.opts.RateLimit, max(1, e.opts.Concurrency))
	total := len(tracks)

	e.sendProgress(progress, matchTrackUpdate(0, total, nil))

	var done atomic.Int64
	var g errgroup.Group
	g.SetLimit(e.opts.Concurrency)

	for i, track := range tracks {
		g.Go(func() error {
			matches[i] = e.matchTrack(ctx, limiter, track)
			step := int(done.Add(1))
			update := matchTrackUpdate(step, total, &matches[i])
			if matches[i].Outcome == MatchFound {
				e.sendProgress(progress, update)
			} else {
				e.deliverProgress(ctx, progress, update)
			}
			return nil
		})
	}
	_ = g.Wait()

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		if id, ok := m.Track.RemoteID(); ok {
			ids = append(ids, id)
		}
	}
	return MatchResult{Matches: matches, IDs: ids}
}

func (e *MigrationEngine) matchTrack(ctx context.Context, limiter *rate.Limiter, track models.Track) TrackMatch {
	match := TrackMatch{Track: track}
	logger := e.logger.With("track", track.SourceKey, "artist", track.Artist, "title", track.Title)

	if err := limiter.Wait(ctx); err != nil {
		match.Outcome = MatchErrored
		match.Err = err
		logger.Warn("search skipped", "error", err)
		return match
	}

	searchCtx, cancel := withTimeout(ctx, e.opts.SearchTimeout)
	defer cancel()

	hits, err := e.searcher.SearchTracks(searchCtx, track.SearchQuery(), 1, 0, e.opts.Market)
	switch {
	case err != nil:
		match.Outcome = MatchErrored
		match.Err = err
		logger.Warn("search failed", "error", err)
	case len(hits) == 0 || hits[0].ID == "":
		match.Outcome = MatchNotFound
		logger.Debug("no match")
	default:
		hit := hits[0]
		if err := match.Track.Resolve(hit.ID); err != nil {
			match.Outcome = MatchErrored
			match.Err = err
			return match
		}
		match.Outcome = MatchFound
		match.Hit = &hit
		match.Confidence = Confidence(track.Title, hit.Title)
		logger.Debug("matched", "id", hit.ID, "confidence", fmt.Sprintf("%.2f", match.Confidence))
	}
	return match
}

// Partition splits ids into consecutive, non-overlapping batches of at most size identifiers.
// Every batch but the last is full. An empty list yields no batches.
func Partition(ids []string, size int) ([]models.Batch, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: batch size must be positive, got %d", shared.ErrInvalidArgument, size)
	}

	batches := make([]models.Batch, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		batches = append(batches, models.Batch{
			Index: len(batches),
			Start: start,
			IDs:   ids[start:end:end],
		})
	}
	return batches, nil
}

// Submit appends each batch to the playlist in order, one call at a time.
// A rejected batch is recorded and the remaining batches are still submitted.
func (e *MigrationEngine) Submit(ctx context.Context, userID, playlistID string, batches []models.Batch, progress chan<- ProgressUpdate) []BatchResult {
	results := make([]BatchResult, 0, len(batches))
	for _, batch := range batches {
		result := BatchResult{Batch: batch}

		if err := ctx.Err(); err != nil {
			result.Err = err
		} else {
			callCtx, cancel := withTimeout(ctx, e.opts.MutationTimeout)
			result.Err = e.mutator.AddTracks(callCtx, userID, playlistID, batch.IDs, nil)
			cancel()
		}

		logger := e.logger.With("batch", batch.Index, "range", batchLabel(batch), "size", batch.Len())
		if result.Err != nil {
			logger.Error("batch rejected", "error", result.Err)
		} else {
			logger.Info("batch added")
		}

		results = append(results, result)
		e.deliverProgress(ctx, progress, submitBatchUpdate(len(batches), result))
	}
	return results
}

// Confidence scores how closely a search hit's title matches the library title, from 0 to 1.
func Confidence(want, got string) float64 {
	want = strings.ToLower(strings.TrimSpace(want))
	got = strings.ToLower(strings.TrimSpace(got))
	if want == "" || got == "" {
		return 0
	}
	return strutil.Similarity(want, got, metrics.NewJaroWinkler())
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// IsTimeout reports whether a match or batch failed because its call ran out of time.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, shared.ErrTimeout)
}
