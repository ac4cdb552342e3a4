package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/bankbunk/apple/internal/shared"
	"github.com/bankbunk/apple/internal/tasks"
)

// RunJob executes the full batch loop: fetch tracks missing Apple Music
// genres from the work queue, resolve each one, and submit updates back.
func (r *Runner) RunJob(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	if cmd.IsSet("limit") {
		config.Job.ProcessLimit = int(cmd.Int("limit"))
	}
	if cmd.Bool("continuous") {
		config.Job.ProcessLimit = 0
	}
	if cmd.IsSet("duration") {
		config.Job.MaxRuntimeSeconds = int(cmd.Duration("duration").Seconds())
	}
	if cmd.IsSet("batch-size") {
		config.Queue.BatchSize = int(cmd.Int("batch-size"))
	}
	if cmd.IsSet("worker-index") {
		config.Queue.WorkerIndex = int(cmd.Int("worker-index"))
	}
	if cmd.IsSet("total-workers") {
		config.Queue.TotalWorkers = int(cmd.Int("total-workers"))
	}

	runID := shared.GenerateID()
	logger := shared.WithLogger(r.logger, "run", runID)

	jobOpts, err := jobOptsFromConfig(config, logger)
	if err != nil {
		return err
	}

	engine, closeEngine, err := r.newEngine(config)
	if err != nil {
		return err
	}
	defer closeEngine()

	q := r.newQueue(config)

	logger.Info("starting run",
		"queue", config.Queue.BaseURL,
		"limit", config.Job.ProcessLimit,
		"batch_size", config.Queue.BatchSize,
	)
	r.writePlain("Resolving Apple Music genres...\n")
	if config.Job.ProcessLimit == 0 {
		r.writePlain("Mode: continuous (until budget expires)\n\n")
	} else {
		r.writePlain("Mode: single pass, up to %d tracks\n\n", config.Job.ProcessLimit)
	}

	// Create progress channel and goroutine to handle updates; drained holds
	// the summary back until every buffered update has been written.
	progressCh := make(chan tasks.ProgressUpdate, 50)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for update := range progressCh {
			switch update.Phase {
			case tasks.FetchBatch:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.ResolveTrack:
				r.writePlain("   %s\n", update.Message)
			case tasks.FlushBatch:
				r.writePlain("\n📤 %s\n", update.Message)
			case tasks.Pause:
				r.writePlain("⏸  %s\n", update.Message)
			case tasks.CycleDone:
				r.writePlain("✓ %s\n\n", update.Message)
			}
		}
	}()

	result, err := tasks.RunJob(ctx, progressCh, q, engine, jobOpts)
	close(progressCh)
	<-drained

	if err != nil {
		return err
	}

	r.writePlain("\n═══════════════════════════════════════\n")
	r.writePlain("Run Complete\n")
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("Processed: %d tracks\n", result.Processed)
	r.writePlain("With genres: %d\n", result.Found)
	r.writePlain("Without genres: %d\n", result.NotFound)
	r.writePlain("Submitted: %d updates\n", result.Sent)
	if result.FailedFlushes > 0 {
		r.writePlain("Failed submissions: %d\n", result.FailedFlushes)
	}
	r.writePlain("Elapsed: %s\n", result.Elapsed.Round(time.Second))

	return nil
}

// jobOptsFromConfig translates config into run options, validating that a
// queue endpoint is configured.
func jobOptsFromConfig(config *shared.Config, logger *log.Logger) (tasks.JobOpts, error) {
	if config.Queue.BaseURL == "" {
		return tasks.JobOpts{}, fmt.Errorf("%w: set queue.base_url in config or the WORKER_URL environment variable", shared.ErrMissingQueue)
	}

	return tasks.JobOpts{
		ProcessLimit:    config.Job.ProcessLimit,
		MaxRuntime:      time.Duration(config.Job.MaxRuntimeSeconds) * time.Second,
		BatchSize:       config.Queue.BatchSize,
		Pace:            config.Job.PacePerSecond,
		ContinuousBatch: config.Queue.FetchLimit,
		Logger:          logger,
	}, nil
}
