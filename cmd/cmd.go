// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// runCommand drives the full batch job against the work queue
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Fetch tracks from the work queue, resolve genres, submit updates",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Tracks to process this run (0 = continuous until budget expires)",
			},
			&cli.DurationFlag{
				Name:  "duration",
				Usage: "Total runtime budget (e.g. 5h15m)",
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Updates per submission batch",
			},
			&cli.IntFlag{
				Name:  "worker-index",
				Usage: "Shard index of this job instance",
			},
			&cli.IntFlag{
				Name:  "total-workers",
				Usage: "Total parallel job instances",
			},
			&cli.BoolFlag{
				Name:  "continuous",
				Usage: "Run continuously until the budget expires (same as --limit 0)",
			},
		},
		Action: r.RunJob,
	}
}

// resolveCommand resolves a single track for debugging, bypassing the queue
func resolveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "Resolve one Spotify track ID and print the resulting update",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "id",
			},
		},
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "isrc",
				Usage: "ISRC to attach to the update",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.ResolveTrack,
	}
}

// probeCommand exercises every enabled provider against sample tracks
func probeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "probe",
		Usage: "Test each enabled provider against sample Spotify URLs",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "genres",
				Usage: "Also scrape genres from each resolved Apple Music URL",
				Value: true,
			},
		},
		Action: r.Probe,
	}
}

// cacheCommand inspects the local resolution cache
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect the local resolution cache",
		Commands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show cached resolution counts",
				Flags:  []cli.Flag{configFlag()},
				Action: r.CacheStats,
			},
			{
				Name:   "clear",
				Usage:  "Drop every cached resolution",
				Flags:  []cli.Flag{configFlag()},
				Action: r.CacheClear,
			},
		},
	}
}

// setupCommand handles setup operations for configuration and the cache database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write an example config.toml",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output path for the config file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the resolution cache database",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
		},
	}
}
