package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"mime"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/driveput/driveput/internal/drive"
)

// Upload retry policy. Transient failures back off exponentially with ±25%
// jitter; non-transient failures fail on the first attempt.
const (
	maxUploadAttempts = 4
	uploadBaseBackoff = 2 * time.Second
	uploadMaxBackoff  = 60 * time.Second
)

// executor transfers tasks, owning retry accounting and post-upload sharing.
type executor struct {
	api     RemoteAPI
	workers int
	logger  *slog.Logger

	// sleepFunc waits between attempts. Tests override to avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

func newExecutor(api RemoteAPI, workers int, logger *slog.Logger) *executor {
	if workers < 1 {
		workers = 1
	}

	return &executor{
		api:     api,
		workers: workers,
		logger:  logger,
		sleepFunc: func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		},
	}
}

// executeAll runs tasks through a bounded worker pool and returns one Result
// per task, in task order. Batch semantics are best-effort: a failed task
// never aborts its siblings. Cancellation is honored between tasks — a task
// already started runs to completion or failure, later tasks are marked
// canceled without being attempted.
func (e *executor) executeAll(ctx context.Context, tasks []Task) []Result {
	results := make([]Result, len(tasks))

	g := new(errgroup.Group)
	g.SetLimit(e.workers)

	for i, task := range tasks {
		if ctx.Err() != nil {
			results[i] = Result{Task: task, Err: fmt.Errorf("canceled before start: %w", ctx.Err())}

			continue
		}

		g.Go(func() error {
			results[i] = e.execute(ctx, task)

			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // workers never return errors; results carry failures

	return results
}

// execute uploads one task, re-opening the source file per attempt so a
// partially-consumed reader is never retried. Attempts counts every upload
// try actually made, which tests use to verify the backoff policy.
func (e *executor) execute(ctx context.Context, task Task) Result {
	res := Result{Task: task}
	mimeType := mime.TypeByExtension(filepath.Ext(task.Name))

	for attempt := 1; attempt <= maxUploadAttempts; attempt++ {
		res.Attempts = attempt

		file, err := e.uploadOnce(ctx, task, mimeType)
		if err == nil {
			res.RemoteID = file.ID
			res.WebViewLink = file.WebViewLink

			e.logger.Info("upload complete",
				slog.String("name", task.Name),
				slog.String("remote_id", file.ID),
				slog.Int("attempts", attempt),
			)

			e.share(ctx, task, &res)

			return res
		}

		res.Err = err

		// Local I/O failures are not retryable; without this check they
		// would be mistaken for network errors.
		if errors.Is(err, ErrIO) || !drive.IsTransient(err) || ctx.Err() != nil {
			e.logger.Error("upload failed",
				slog.String("name", task.Name),
				slog.Int("attempts", attempt),
				slog.String("error", err.Error()),
			)

			return res
		}

		if attempt < maxUploadAttempts {
			backoff := uploadBackoff(attempt)
			e.logger.Warn("transient upload failure, retrying",
				slog.String("name", task.Name),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff),
				slog.String("error", err.Error()),
			)

			if sleepErr := e.sleepFunc(ctx, backoff); sleepErr != nil {
				res.Err = fmt.Errorf("canceled during backoff: %w", sleepErr)

				return res
			}
		}
	}

	e.logger.Error("upload failed after retries",
		slog.String("name", task.Name),
		slog.Int("attempts", res.Attempts),
	)

	return res
}

// uploadOnce performs a single upload attempt with a fresh reader.
func (e *executor) uploadOnce(ctx context.Context, task Task, mimeType string) (*drive.File, error) {
	src, err := os.Open(task.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", ErrIO, task.SourcePath, err)
	}
	defer src.Close()

	return e.api.Upload(ctx, task.FolderID, task.Name, mimeType, src, task.Size)
}

// share grants the task's share target access after a successful upload.
// A sharing failure does not roll back the upload; it is recorded as a
// partial-success condition on the Result.
func (e *executor) share(ctx context.Context, task Task, res *Result) {
	if task.ShareWith == "" {
		return
	}

	if err := e.api.Share(ctx, res.RemoteID, task.ShareWith); err != nil {
		e.logger.Warn("sharing failed after successful upload",
			slog.String("name", task.Name),
			slog.String("email", task.ShareWith),
			slog.String("error", err.Error()),
		)

		res.ShareErr = err
	}
}

// uploadBackoff computes exponential backoff with ±25% jitter for the given
// 1-based attempt number.
func uploadBackoff(attempt int) time.Duration {
	backoff := float64(uploadBaseBackoff) * math.Pow(2, float64(attempt-1))
	if backoff > float64(uploadMaxBackoff) {
		backoff = float64(uploadMaxBackoff)
	}

	jitter := backoff * 0.25 * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	backoff += jitter

	return time.Duration(backoff)
}
