package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/scheduler"
)

// ErrTimeout is returned when a run outlives WithTimeout before quiescence.
var ErrTimeout = errors.New("run timed out")

// Rounder runs one scheduling round. *scheduler.Scheduler implements it.
type Rounder interface {
	Round(ctx context.Context) (scheduler.Report, error)
}

// Runner handles the round loop of a scheduler.
type Runner struct {
	rounder   Rounder
	logger    *slog.Logger
	follow    bool
	idle      time.Duration
	maxRounds int
	timeout   time.Duration
	signals   bool
	report    func(scheduler.Report)
}

// New creates a Runner around rounder.
func New(rounder Rounder, opts ...Option) *Runner {
	r := &Runner{
		rounder: rounder,
		logger:  logging.NewNop(),
		idle:    DefaultIdleInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes rounds until quiescence, or in follow mode until the context
// ends. A follow run that is cancelled or reaches its limits stops cleanly;
// a run to quiescence reports the limit it hit instead.
func (r *Runner) Run(ctx context.Context) (sum scheduler.Summary, err error) {
	start := time.Now()
	defer func() { sum.Duration = time.Since(start) }()

	if r.signals {
		signals := NewSignalManager(ctx)
		defer signals.Stop()
		ctx = signals.Context()
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		if r.maxRounds > 0 && sum.Rounds >= r.maxRounds {
			if r.follow {
				return sum, nil
			}
			return sum, fmt.Errorf("%w: %d rounds", scheduler.ErrRoundLimit, r.maxRounds)
		}

		report, err := r.rounder.Round(ctx)
		sum.Rounds++
		sum.Executed += report.Ready
		sum.Completed += report.Completed
		sum.Failed += report.Failed
		if r.report != nil {
			r.report(report)
		}
		if err != nil {
			if ctx.Err() != nil {
				return sum, r.stopped(ctx)
			}
			return sum, err
		}

		if report.Ready > 0 {
			continue
		}
		if !r.follow {
			sum.Quiescent = true
			r.logger.Debug("run quiescent", "rounds", sum.Rounds, "executed", sum.Executed)
			return sum, nil
		}

		if timer == nil {
			timer = time.NewTimer(r.idle)
		} else {
			timer.Reset(r.idle)
		}
		select {
		case <-ctx.Done():
			return sum, r.stopped(ctx)
		case <-timer.C:
		}
	}
}

// stopped maps the end of the run context to the error the caller sees.
func (r *Runner) stopped(ctx context.Context) error {
	if r.follow {
		r.logger.Info("follow stopped", "cause", context.Cause(ctx))
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, r.timeout)
	}
	return ctx.Err()
}
