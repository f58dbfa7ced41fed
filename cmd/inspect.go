package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/plmigrate/internal/formatter"
	"github.com/desertthunder/plmigrate/internal/library"
	"github.com/desertthunder/plmigrate/internal/shared"
	"github.com/urfave/cli/v3"
)

type inspectTrack struct {
	Key    string `json:"key"`
	Artist string `json:"artist"`
	Title  string `json:"title"`
	Album  string `json:"album"`
	Query  string `json:"query"`
}

// Inspect lists the tracks a library export contains and the query each one would search for.
//
// Nothing is sent over the network.
func (r *Runner) Inspect(ctx context.Context, cmd *cli.Command) error {
	filePath := cmd.String("file")
	if filePath == "" {
		return fmt.Errorf("%w: --file is required", shared.ErrMissingArgument)
	}

	tracks, err := library.LoadTracks(filePath)
	if err != nil {
		return err
	}
	r.logger.Debug("inspected library", "file", filePath, "tracks", len(tracks))

	if !cmd.Bool("json") {
		return r.writePlain("%s", formatter.TrackList(tracks))
	}

	out := make([]inspectTrack, 0, len(tracks))
	for _, tr := range tracks {
		out = append(out, inspectTrack{
			Key:    tr.SourceKey,
			Artist: tr.Artist,
			Title:  tr.Title,
			Album:  tr.Album,
			Query:  tr.SearchQuery(),
		})
	}
	return r.writeJSON(out, true)
}
