// Package poller waits for a submission to leave automatic review.
//
// The wait between status fetches grows linearly from InitialDelay by Step
// up to MaxDelay. Each cycle retries a failed fetch with a short backoff
// before giving up on the whole poll.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/domain"
)

// ErrRetriesExhausted wraps the last fetch error once a cycle ran out of attempts.
var ErrRetriesExhausted = errors.New("poller: status fetch retries exhausted")

// FetchFunc loads the current snapshot of a submission.
type FetchFunc func(ctx context.Context, submissionID string) (*domain.SubmissionSummary, error)

// ProgressFunc receives the accumulated wait time and the last seen status
// (empty when no snapshot was fetched yet).
type ProgressFunc func(elapsed time.Duration, status domain.SubmissionStatus)

// Options tunes a poll. Zero values fall back to DefaultOptions.
type Options struct {
	InitialDelay     time.Duration
	Step             time.Duration
	MaxDelay         time.Duration
	Timeout          time.Duration
	ProgressInterval time.Duration
	MaxAttempts      int
	RetryBackoff     time.Duration

	OnProgress  ProgressFunc
	IsCancelled func() bool
	Clock       Clock
	Logger      *zap.Logger
}

// DefaultOptions returns the production polling schedule.
func DefaultOptions() Options {
	return Options{
		InitialDelay:     2 * time.Second,
		Step:             3 * time.Second,
		MaxDelay:         9_000_000 * time.Millisecond,
		Timeout:          24 * time.Hour,
		ProgressInterval: 5 * time.Minute,
		MaxAttempts:      3,
		RetryBackoff:     time.Second,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.InitialDelay <= 0 {
		o.InitialDelay = def.InitialDelay
	}
	if o.Step < 0 {
		o.Step = 0
	}
	if o.Step == 0 {
		o.Step = def.Step
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = def.MaxDelay
	}
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = def.ProgressInterval
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = def.MaxAttempts
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = def.RetryBackoff
	}
	if o.Clock == nil {
		o.Clock = RealClock()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.IsCancelled == nil {
		o.IsCancelled = func() bool { return false }
	}
	return o
}

// PollUntilDone fetches the submission until it reaches a terminal status,
// the timeout elapses, or IsCancelled reports true. The last snapshot (or
// nil) is returned on timeout and cancellation. A cycle whose fetch fails
// MaxAttempts times aborts the poll with an error wrapping
// ErrRetriesExhausted. If ctx is done the last snapshot is returned along
// with ctx.Err().
func PollUntilDone(ctx context.Context, fetch FetchFunc, submissionID string, opts Options) (*domain.SubmissionSummary, error) {
	opts = opts.withDefaults()
	log := opts.Logger.With(zap.String("submission_id", submissionID))

	var last *domain.SubmissionSummary
	if first, err := fetch(ctx, submissionID); err != nil {
		log.Debug("initial status fetch failed", zap.Error(err))
	} else if first != nil {
		last = first
		if first.Status.IsTerminal() {
			return first, nil
		}
	}

	var elapsed time.Duration
	delay := opts.InitialDelay
	lastProgress := opts.Clock.Now()

	for elapsed < opts.Timeout && !opts.IsCancelled() {
		if err := opts.Clock.Sleep(ctx, delay); err != nil {
			return last, err
		}
		elapsed += delay
		delay = min(delay+opts.Step, opts.MaxDelay)

		snapshot, err := fetchWithRetry(ctx, fetch, submissionID, opts, log)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return last, ctxErr
			}
			return last, err
		}
		if snapshot != nil {
			last = snapshot
			if snapshot.Status.IsTerminal() {
				return snapshot, nil
			}
		}

		if opts.OnProgress != nil && opts.Clock.Now().Sub(lastProgress) >= opts.ProgressInterval {
			lastProgress = opts.Clock.Now()
			var status domain.SubmissionStatus
			if last != nil {
				status = last.Status
			}
			opts.OnProgress(elapsed, status)
		}
	}

	log.Debug("polling stopped without terminal status",
		zap.Duration("elapsed", elapsed),
		zap.Bool("cancelled", opts.IsCancelled()))
	return last, nil
}

func fetchWithRetry(ctx context.Context, fetch FetchFunc, submissionID string, opts Options, log *zap.Logger) (*domain.SubmissionSummary, error) {
	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		snapshot, err := fetch(ctx, submissionID)
		if err == nil {
			return snapshot, nil
		}
		lastErr = err
		log.Warn("status fetch failed", zap.Int("attempt", attempt), zap.Error(err))
		if attempt == opts.MaxAttempts {
			break
		}
		if err := opts.Clock.Sleep(ctx, opts.RetryBackoff*time.Duration(attempt)); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, opts.MaxAttempts, lastErr)
}
