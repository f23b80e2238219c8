package runner

import (
	"log/slog"
	"time"

	"github.com/aretw0/weft/pkg/scheduler"
)

// DefaultIdleInterval is how long follow mode waits after a round with no work.
const DefaultIdleInterval = 250 * time.Millisecond

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithFollow keeps polling after quiescence, for stores that other writers
// keep feeding.
func WithFollow(follow bool) Option {
	return func(r *Runner) {
		r.follow = follow
	}
}

// WithIdleInterval sets the pause between rounds that found no work in follow mode.
func WithIdleInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.idle = d
		}
	}
}

// WithMaxRounds stops after n rounds. Zero means no limit.
func WithMaxRounds(n int) Option {
	return func(r *Runner) {
		r.maxRounds = n
	}
}

// WithTimeout bounds the whole run.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithSignals cancels the run on SIGINT or SIGTERM.
func WithSignals(enabled bool) Option {
	return func(r *Runner) {
		r.signals = enabled
	}
}

// WithReporter is called after every round with its report.
func WithReporter(fn func(scheduler.Report)) Option {
	return func(r *Runner) {
		r.report = fn
	}
}
