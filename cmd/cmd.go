// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/plmigrate/internal/formatter"
	"github.com/urfave/cli/v3"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   defaultConfigPath,
	}
}

// migrateCommand copies a library export into a playlist
func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Match every track of a library export on Spotify and append the matches to a playlist",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Path to the exported Library.xml",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "id",
				Aliases:  []string{"i"},
				Usage:    "Spotify ID of the target playlist",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "user",
				Aliases:  []string{"u"},
				Usage:    "Spotify username that owns the playlist",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Tracks per playlist request (overrides config)",
			},
			&cli.StringFlag{
				Name:  "market",
				Usage: "Search market, an ISO 3166-1 alpha-2 code (overrides config)",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Concurrent searches (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Search and batch but do not modify the playlist",
			},
			&cli.StringFlag{
				Name:  "unmatched",
				Usage: "Write tracks that were not matched to this CSV file",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write a JSON report of every track to this file",
			},
			&cli.FloatFlag{
				Name:  "confidence",
				Usage: "List matches whose title similarity is below this value",
				Value: formatter.DefaultConfidenceThreshold,
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record the run in the database",
			},
		},
		Action: r.Migrate,
	}
}

// inspectCommand lists the tracks of an export without touching the network
func inspectCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "List the tracks a library export contains",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Path to the exported Library.xml",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output JSON",
			},
		},
		Action: r.Inspect,
	}
}

// authCommand runs the Spotify OAuth2 flow
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with Spotify using OAuth2 and save the tokens",
		Flags: []cli.Flag{
			configFlag(),
		},
		Action: r.Auth,
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show which Spotify account the saved token belongs to",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthStatus,
			},
		},
	}
}

// setupCommand handles configuration and database initialization
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create the configuration file and database",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write config.toml from the built-in template",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize the database and run migrations",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recently applied migration",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// historyCommand reads recorded runs
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show previous migration runs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent runs",
				Flags: []cli.Flag{
					configFlag(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to show (0 for all)",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output JSON",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:  "show",
				Usage: "Show one run and its batches",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Flags:  []cli.Flag{configFlag()},
				Action: r.HistoryShow,
			},
		},
	}
}
