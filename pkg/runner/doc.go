/*
Package runner drives scheduling rounds from the outside.

The scheduler never loops on its own. A Runner calls Round repeatedly and owns
the policy around it: stop at quiescence or keep following the store for new
work, a round limit, an overall timeout and OS signal cancellation.

# Usage

	r := runner.New(sched,
		runner.WithFollow(true),
		runner.WithIdleInterval(200*time.Millisecond),
		runner.WithSignals(true),
	)

	summary, err := r.Run(ctx)
*/
package runner
