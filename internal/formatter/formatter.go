// package formatter renders migration results as text summaries, CSV reports, and JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/plmigrate/internal/models"
	"github.com/desertthunder/plmigrate/internal/shared"
	"github.com/desertthunder/plmigrate/internal/tasks"
)

// DefaultConfidenceThreshold is the similarity below which a match is listed for review.
const DefaultConfidenceThreshold = 0.6

// Summary describes a finished run: matched, not found, and errored counts, then batch outcomes.
// When styled is true the output is colored with lipgloss.
func Summary(result *tasks.RunResult, style bool) string {
	p := paletteFor(style)
	var b strings.Builder

	headline := fmt.Sprintf("Matched %d of %d tracks", result.Matched, result.Total)
	if result.DryRun {
		headline += " (dry run)"
	}
	b.WriteString(p.title.Render(headline) + "\n")

	fmt.Fprintf(&b, "  Not found:      %s\n", count(p.warn, result.NotFound))
	fmt.Fprintf(&b, "  Search errors:  %s\n", count(p.err, result.Errored))

	if result.DryRun {
		fmt.Fprintf(&b, "  Batches:        %d planned\n", len(result.Batches))
		return b.String()
	}

	fmt.Fprintf(&b, "  Batches:        %s ok, %s failed\n", count(p.ok, result.BatchesOK), count(p.err, result.BatchesFailed))
	fmt.Fprintf(&b, "  Tracks added:   %s\n", p.ok.Render(fmt.Sprint(result.Added)))

	for _, br := range result.Results {
		if br.Err == nil {
			continue
		}
		line := fmt.Sprintf("  ✗ batch %d (tracks %d-%d): %v", br.Batch.Index+1, br.Batch.Start+1, br.Batch.End(), br.Err)
		b.WriteString(p.err.Render(line) + "\n")
	}

	return b.String()
}

// count renders n with style only when it is non-zero
func count(style lipgloss.Style, n int) string {
	if n == 0 {
		return "0"
	}
	return style.Render(fmt.Sprint(n))
}

// UnmatchedCSV lists the tracks that were not matched with columns: Key, Artist, Title, Album, Reason
func UnmatchedCSV(result *tasks.RunResult) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteUnmatchedCSV(&buf, result); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteUnmatchedCSV writes [UnmatchedCSV] output to w
func WriteUnmatchedCSV(w io.Writer, result *tasks.RunResult) error {
	writer := csv.NewWriter(w)

	headers := []string{"Key", "Artist", "Title", "Album", "Reason"}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, m := range result.Matches {
		if m.Outcome == tasks.MatchFound {
			continue
		}
		record := []string{m.Track.SourceKey, m.Track.Artist, m.Track.Title, m.Track.Album, reason(m)}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	return nil
}

// WriteUnmatchedFile writes the unmatched tracks CSV to path
func WriteUnmatchedFile(path string, result *tasks.RunResult) error {
	data, err := UnmatchedCSV(result)
	if err != nil {
		return fmt.Errorf("failed to generate CSV: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write CSV file: %w", err)
	}
	return nil
}

func reason(m tasks.TrackMatch) string {
	switch m.Outcome {
	case tasks.MatchNotFound:
		return "not_found"
	case tasks.MatchErrored:
		if tasks.IsTimeout(m.Err) {
			return "error: timeout"
		}
		return fmt.Sprintf("error: %v", m.Err)
	default:
		return m.Outcome.String()
	}
}

// LowConfidence returns the matches whose title similarity is below threshold, in input order
func LowConfidence(result *tasks.RunResult, threshold float64) []tasks.TrackMatch {
	var low []tasks.TrackMatch
	for _, m := range result.Matches {
		if m.Outcome == tasks.MatchFound && m.Confidence < threshold {
			low = append(low, m)
		}
	}
	return low
}

// FormatLowConfidence renders low-confidence matches as "artist - title → hit title (score)" lines
func FormatLowConfidence(matches []tasks.TrackMatch, style bool) string {
	if len(matches) == 0 {
		return ""
	}

	p := paletteFor(style)
	var b strings.Builder
	b.WriteString(p.warn.Render(fmt.Sprintf("%d matches may be wrong:", len(matches))) + "\n")
	for _, m := range matches {
		hit := ""
		if m.Hit != nil {
			hit = m.Hit.Title
			if m.Hit.Artist != "" {
				hit = m.Hit.Artist + " - " + hit
			}
		}
		fmt.Fprintf(&b, "  %s - %s → %s %s\n", m.Track.Artist, m.Track.Title, hit, p.help.Render(fmt.Sprintf("(%.2f)", m.Confidence)))
	}
	return b.String()
}

// TrackList renders extracted tracks, numbered in export order
func TrackList(tracks []models.Track) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tracks: %d\n\n", len(tracks))
	for i, tr := range tracks {
		albumPart := ""
		if tr.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", tr.Album)
		}
		fmt.Fprintf(&b, "%d. %s - %s%s\n", i+1, tr.Artist, tr.Title, albumPart)
	}
	return b.String()
}

// FormatRuns renders run history as one line per run, newest first
func FormatRuns(runs []*models.MigrationRun) string {
	if len(runs) == 0 {
		return "No runs recorded.\n"
	}

	var b strings.Builder
	for _, run := range runs {
		c := run.Counts()
		fmt.Fprintf(&b, "#%-4d %s  %-9s  %s  %d/%d matched, %d added  %s\n",
			run.Sequence(), run.StartedAt().Local().Format(time.DateTime), run.Status(),
			run.PlaylistID(), c.Matched, c.Total, c.Added, run.ID())
	}
	return b.String()
}

// FormatRun renders one run with its batch records
func FormatRun(run *models.MigrationRun, batches []*models.BatchRecord) string {
	var b strings.Builder
	c := run.Counts()

	fmt.Fprintf(&b, "Run #%d (%s)\n", run.Sequence(), run.ID())
	fmt.Fprintf(&b, "Status: %s\n", run.Status())
	fmt.Fprintf(&b, "Playlist: %s (user %s)\n", run.PlaylistID(), run.UserID())
	fmt.Fprintf(&b, "Source: %s\n", run.SourceFile())
	fmt.Fprintf(&b, "Market: %s, batch size %d", run.Market(), run.BatchSize())
	if run.DryRun() {
		b.WriteString(", dry run")
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Started: %s\n", run.StartedAt().Local().Format(time.DateTime))
	if done := run.CompletedAt(); done != nil {
		fmt.Fprintf(&b, "Finished: %s\n", done.Local().Format(time.DateTime))
	}
	fmt.Fprintf(&b, "Matched %d of %d tracks (%d not found, %d errors), %d added\n",
		c.Matched, c.Total, c.NotFound, c.Errored, c.Added)
	if msg := run.ErrorMessage(); msg != "" {
		fmt.Fprintf(&b, "Error: %s\n", msg)
	}

	if len(batches) > 0 {
		b.WriteString("\nBatches:\n")
		for _, rec := range batches {
			status := "ok"
			if rec.Failed() {
				status = "failed: " + rec.Error
			}
			fmt.Fprintf(&b, "  %d. %d tracks (%s..%s) %s\n", rec.Index+1, rec.Size, rec.FirstTrackID, rec.LastTrackID, status)
		}
	}
	return b.String()
}

// Report is the JSON form of a run result
type Report struct {
	Total         int           `json:"total"`
	Matched       int           `json:"matched"`
	NotFound      int           `json:"not_found"`
	Errored       int           `json:"errored"`
	Added         int           `json:"added"`
	BatchesOK     int           `json:"batches_ok"`
	BatchesFailed int           `json:"batches_failed"`
	DryRun        bool          `json:"dry_run"`
	Tracks        []ReportTrack `json:"tracks"`
}

// ReportTrack is one track of a [Report]
type ReportTrack struct {
	Key        string  `json:"key"`
	Artist     string  `json:"artist"`
	Title      string  `json:"title"`
	Album      string  `json:"album"`
	Outcome    string  `json:"outcome"`
	SpotifyID  string  `json:"spotify_id,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// ToReportJSON generates an indented JSON report of result
func ToReportJSON(result *tasks.RunResult) ([]byte, error) {
	report := Report{
		Total:         result.Total,
		Matched:       result.Matched,
		NotFound:      result.NotFound,
		Errored:       result.Errored,
		Added:         result.Added,
		BatchesOK:     result.BatchesOK,
		BatchesFailed: result.BatchesFailed,
		DryRun:        result.DryRun,
		Tracks:        make([]ReportTrack, 0, len(result.Matches)),
	}

	for _, m := range result.Matches {
		rt := ReportTrack{
			Key:        m.Track.SourceKey,
			Artist:     m.Track.Artist,
			Title:      m.Track.Title,
			Album:      m.Track.Album,
			Outcome:    m.Outcome.String(),
			Confidence: m.Confidence,
		}
		rt.SpotifyID, _ = m.Track.RemoteID()
		if m.Err != nil {
			rt.Error = m.Err.Error()
		}
		report.Tracks = append(report.Tracks, rt)
	}

	return shared.MarshalJSON(report, true)
}

// WriteReportFile writes the JSON report of result to path
func WriteReportFile(path string, result *tasks.RunResult) error {
	data, err := ToReportJSON(result)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}
