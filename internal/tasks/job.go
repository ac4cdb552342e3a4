package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/bankbunk/apple/internal/models"
	"github.com/bankbunk/apple/internal/shared"
)

// TrackProcessor resolves one track into its persisted outcome.
type TrackProcessor interface {
	Process(ctx context.Context, item models.TrackItem) models.TrackUpdate
}

// BatchQueue is the external work queue collaborator: fetch work, submit
// results.
type BatchQueue interface {
	FetchBatch(ctx context.Context, limit int) ([]models.TrackItem, error)
	Submit(ctx context.Context, updates []models.TrackUpdate) error
}

// JobOpts contains configuration for a job run.
type JobOpts struct {
	ProcessLimit    int           // tracks per cycle; 0 runs continuously until the budget expires
	MaxRuntime      time.Duration // total run budget (default 5h15m)
	BatchSize       int           // flush threshold (default 250)
	Pace            float64       // track starts per second (default 1)
	ContinuousBatch int           // fetch size in continuous mode (default 50)
	FetchRetryWait  time.Duration // wait after a failed fetch in continuous mode (default 60s)
	IdleWait        time.Duration // wait when the queue is empty in continuous mode (default 5m)
	Logger          *log.Logger
}

func (o JobOpts) withDefaults() JobOpts {
	if o.MaxRuntime <= 0 {
		o.MaxRuntime = 5*time.Hour + 15*time.Minute
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 250
	}
	if o.Pace <= 0 {
		o.Pace = 1.0
	}
	if o.ContinuousBatch <= 0 {
		o.ContinuousBatch = 50
	}
	if o.FetchRetryWait <= 0 {
		o.FetchRetryWait = 60 * time.Second
	}
	if o.IdleWait <= 0 {
		o.IdleWait = 5 * time.Minute
	}
	if o.Logger == nil {
		o.Logger = shared.NewLogger(nil)
	}
	return o
}

// JobResult summarizes one job run.
type JobResult struct {
	Processed     int           // tracks consumed
	Found         int           // tracks that yielded at least one genre
	NotFound      int           // tracks recorded with empty genres
	Sent          int           // updates delivered to the queue
	FailedFlushes int           // submit calls that did not return 200
	Cycles        int           // fetch/process/flush passes completed
	Elapsed       time.Duration // wall time consumed
}

// RunJob drives the full batch loop: fetch a batch, process each track
// through the processor, accumulate updates, and flush them in batches.
//
// Tracks are processed one at a time; the only concurrency lives inside the
// processor's provider fan-out. The runtime budget is checked before every
// new track and causes a graceful early exit with accumulated results still
// flushed. A failed flush keeps its updates and retries them with the next
// flush; the final flush's failure is only counted.
func RunJob(ctx context.Context, prog chan<- ProgressUpdate, q BatchQueue, proc TrackProcessor, opts JobOpts) (*JobResult, error) {
	opts = opts.withDefaults()
	logger := opts.Logger

	start := time.Now()
	deadline := start.Add(opts.MaxRuntime)
	continuous := opts.ProcessLimit == 0

	limiter := rate.NewLimiter(rate.Limit(opts.Pace), 1)
	result := &JobResult{}

	logger.Info("starting job", "continuous", continuous, "budget", opts.MaxRuntime)

	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			break
		}

		fetchLimit := opts.ProcessLimit
		if continuous {
			fetchLimit = opts.ContinuousBatch
		}

		sendProgress(prog, fetchBatchUpdate(fetchLimit))
		tracks, err := q.FetchBatch(ctx, fetchLimit)
		if err != nil {
			logger.Error("failed to fetch batch", "error", err)
			if !continuous {
				result.Elapsed = time.Since(start)
				return result, fmt.Errorf("%w: %v", shared.ErrQueueRequest, err)
			}
			sendProgress(prog, pauseUpdate("Fetch failed, retrying shortly..."))
			sleepContext(ctx, opts.FetchRetryWait)
			continue
		}

		if len(tracks) == 0 {
			if !continuous {
				logger.Info("no tracks need updating")
				break
			}
			logger.Info("queue empty, idling", "wait", opts.IdleWait)
			sendProgress(prog, pauseUpdate("No tracks found, sleeping..."))
			sleepContext(ctx, opts.IdleWait)
			continue
		}

		logger.Info("processing tracks", "count", len(tracks))

		var updates []models.TrackUpdate
		cycleSent := 0

		for i, item := range tracks {
			if !time.Now().Before(deadline) {
				logger.Warn("runtime budget reached, stopping gracefully")
				break
			}
			if err := limiter.Wait(ctx); err != nil {
				break
			}

			sendProgress(prog, resolveTrackUpdate(i+1, len(tracks), item.ID))

			update := proc.Process(ctx, item)
			updates = append(updates, update)
			result.Processed++
			if update.Genres != "[]" {
				result.Found++
			} else {
				result.NotFound++
			}

			if len(updates) >= opts.BatchSize {
				sendProgress(prog, flushBatchUpdate(len(updates)))
				if flush(ctx, q, updates, logger, result) {
					cycleSent += len(updates)
					updates = nil
				}
			}
		}

		if len(updates) > 0 {
			sendProgress(prog, flushBatchUpdate(len(updates)))
			if flush(ctx, q, updates, logger, result) {
				cycleSent += len(updates)
			}
		}

		result.Cycles++
		sendProgress(prog, cycleDoneUpdate(cycleSent))
		logger.Info("cycle done", "sent", cycleSent)

		if !continuous {
			break
		}
	}

	result.Elapsed = time.Since(start)
	logger.Info("job finished",
		"processed", result.Processed,
		"found", result.Found,
		"sent", result.Sent,
		"elapsed", result.Elapsed,
	)
	return result, nil
}

// flush submits one batch and records the outcome. Returns true when the
// batch was accepted.
func flush(ctx context.Context, q BatchQueue, updates []models.TrackUpdate, logger *log.Logger, result *JobResult) bool {
	if err := q.Submit(ctx, updates); err != nil {
		logger.Error("batch submission failed, will retry with next batch", "count", len(updates), "error", err)
		result.FailedFlushes++
		return false
	}

	result.Sent += len(updates)
	logger.Info("batch sent", "count", len(updates))
	return true
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(prog chan<- ProgressUpdate, update ProgressUpdate) {
	if prog == nil {
		return
	}
	select {
	case prog <- update:
	default:
	}
}
